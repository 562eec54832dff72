package restserver

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrissnell/flarewatch/internal/flare"
	"github.com/chrissnell/flarewatch/internal/ingest"
	"github.com/chrissnell/flarewatch/internal/metrics"
	"github.com/chrissnell/flarewatch/internal/report"
	"github.com/chrissnell/flarewatch/internal/storage"
	"github.com/chrissnell/flarewatch/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	origin := ""
	if ctrl.serverConfig.EnableCORS {
		origin = "*"
	}
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(origin),
	}
}

// UploadResponse is returned after a light curve has been processed
type UploadResponse struct {
	Run    *storage.Run        `json:"run"`
	Flares []flare.FlareRecord `json:"flares"`
}

// isInputError reports whether err came from a malformed light curve rather than a fault
func isInputError(err error) bool {
	return errors.Is(err, flare.ErrEmptyCurve) ||
		errors.Is(err, flare.ErrTooShort) ||
		errors.Is(err, flare.ErrUnordered) ||
		errors.Is(err, flare.ErrInvalidRate)
}

// multipartAllowance is the room left in the request body for multipart headers and
// boundaries on top of the file size limit
const multipartAllowance = 1 << 20

// Upload accepts a light curve in the multipart field "file", runs detection and stores the run
func (h *Handlers) Upload(w http.ResponseWriter, req *http.Request) {
	limit := int64(h.controller.serverConfig.MaxUploadMB) << 20
	tooLargeMsg := fmt.Sprintf("upload exceeds %d MB", h.controller.serverConfig.MaxUploadMB)
	req.Body = http.MaxBytesReader(w, req.Body, limit+multipartAllowance)

	if err := req.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.formatter.WriteError(w, req, http.StatusRequestEntityTooLarge, tooLargeMsg)
			return
		}
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "missing form field \"file\"")
		return
	}
	defer file.Close()

	if header.Size > limit {
		h.formatter.WriteError(w, req, http.StatusRequestEntityTooLarge, tooLargeMsg)
		return
	}

	if !ingest.IsSupported(header.Filename) {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "only .csv, .lc and .fits files are accepted")
		return
	}

	curve, err := ingest.Read(header.Filename, file)
	if err != nil {
		if errors.Is(err, ingest.ErrUnsupportedFormat) {
			h.formatter.WriteError(w, req, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		h.formatter.WriteError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	flares, err := h.controller.detector.Detect(req.Context(), curve)
	if err != nil {
		if isInputError(err) {
			metrics.ObserveDetection(metrics.ResultRejected, time.Since(start))
			h.formatter.WriteError(w, req, http.StatusUnprocessableEntity, err.Error())
			return
		}
		metrics.ObserveDetection(metrics.ResultError, time.Since(start))
		h.controller.logger.Errorf("detection failed for %s: %v", header.Filename, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "detection failed")
		return
	}
	metrics.ObserveDetection(metrics.ResultSuccess, time.Since(start))

	params := h.controller.detector.Params()
	run := &storage.Run{
		Source:      header.Filename,
		SampleCount: len(curve),
		BinWidth:    params.BinWidth,
		KernelWidth: params.KernelWidth,
	}
	if err := h.controller.store.SaveRun(req.Context(), run, flares); err != nil {
		h.controller.logger.Errorf("failed to store run for %s: %v", header.Filename, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "failed to store run")
		return
	}

	if flares == nil {
		flares = []flare.FlareRecord{}
	}
	h.formatter.WriteResponse(w, req, http.StatusCreated, UploadResponse{Run: run, Flares: flares})
}

// ListRuns returns the most recent runs
func (h *Handlers) ListRuns(w http.ResponseWriter, req *http.Request) {
	limit := 0
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.formatter.WriteError(w, req, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.controller.store.ListRuns(req.Context(), limit)
	if err != nil {
		h.writeStoreError(w, req, err)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, runs)
}

// GetRun returns a single run
func (h *Handlers) GetRun(w http.ResponseWriter, req *http.Request) {
	run, err := h.controller.store.GetRun(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		h.writeStoreError(w, req, err)
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, run)
}

// GetFlares returns the flares detected in a run
func (h *Handlers) GetFlares(w http.ResponseWriter, req *http.Request) {
	flares, err := h.controller.store.GetFlares(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		h.writeStoreError(w, req, err)
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, flares)
}

// DeleteRun removes a run and its flares
func (h *Handlers) DeleteRun(w http.ResponseWriter, req *http.Request) {
	if err := h.controller.store.DeleteRun(req.Context(), mux.Vars(req)["id"]); err != nil {
		h.writeStoreError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadResult renders a run as result.csv, result.xlsx or result.pdf
func (h *Handlers) DownloadResult(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	format := vars["format"]

	run, err := h.controller.store.GetRun(req.Context(), vars["id"])
	if err != nil {
		h.writeStoreError(w, req, err)
		return
	}
	flares, err := h.controller.store.GetFlares(req.Context(), run.ID)
	if err != nil {
		h.writeStoreError(w, req, err)
		return
	}

	summary := report.Summary{
		RunID:       run.ID,
		Source:      run.Source,
		SampleCount: run.SampleCount,
		BinWidth:    run.BinWidth,
		KernelWidth: run.KernelWidth,
		CreatedAt:   run.CreatedAt,
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case "csv":
		var buf bytes.Buffer
		err = report.WriteCSV(&buf, flares)
		body, contentType = buf.Bytes(), "text/csv"
	case "xlsx":
		body, err = report.BuildXLSX(summary, flares)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		body, err = report.BuildPDF(summary, flares)
		contentType = "application/pdf"
	}
	if err != nil {
		metrics.IncExport(format, metrics.ResultError)
		h.controller.logger.Errorf("failed to render %s for run %s: %v", format, run.ID, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "failed to render report")
		return
	}
	metrics.IncExport(format, metrics.ResultSuccess)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "result."+format))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Health reports whether the run database is reachable
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	if err := h.controller.store.Ping(req.Context()); err != nil {
		h.formatter.WriteResponse(w, req, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writeStoreError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, storage.ErrRunNotFound) {
		h.formatter.WriteError(w, req, http.StatusNotFound, "run not found")
		return
	}
	h.controller.logger.Errorf("run store error: %v", err)
	h.formatter.WriteError(w, req, http.StatusInternalServerError, "storage error")
}
