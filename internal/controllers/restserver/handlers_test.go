package restserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/flarewatch/internal/flare"
	"github.com/chrissnell/flarewatch/internal/storage"
	"github.com/chrissnell/flarewatch/pkg/config"
)

// flareCSV renders a baseline of 10 with a single rise to 15 and a power-law decay
func flareCSV() string {
	var rates []float64
	for i := 0; i < 50; i++ {
		rates = append(rates, 10)
	}
	rates = append(rates, 10, 10.1, 10.2, 10.3, 15)
	for k := 1; k <= 20; k++ {
		rates = append(rates, 10+5*math.Pow(float64(k+1), -1.5))
	}
	for i := 0; i < 10; i++ {
		rates = append(rates, 10)
	}

	var b strings.Builder
	b.WriteString("TIME,RATE\n")
	for i, r := range rates {
		fmt.Fprintf(&b, "%d,%g\n", i, r)
	}
	return b.String()
}

func newTestController(t *testing.T, sc config.ServerData) (*Controller, *storage.Store) {
	t.Helper()

	store, err := storage.Open(config.StorageData{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "runs.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	params := flare.DefaultParams()
	params.BinWidth = 1
	params.KernelWidth = 1
	detector, err := flare.NewDetector(params, nil)
	require.NoError(t, err)

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, sc, store, detector, zap.NewNop().Sugar())
	require.NoError(t, err)
	return ctrl, store
}

func uploadRequest(t *testing.T, filename, body string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(ctrl *Controller, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestUploadDetectsAndStores(t *testing.T) {
	ctrl, store := newTestController(t, config.ServerData{})

	rec := serve(ctrl, uploadRequest(t, "flare.csv", flareCSV()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Flares, 1)
	assert.Equal(t, "5.0B", resp.Flares[0].Class)
	assert.Equal(t, 15.0, resp.Flares[0].PeakRate)
	assert.Equal(t, "flare.csv", resp.Run.Source)
	assert.Equal(t, 85, resp.Run.SampleCount)

	stored, err := store.GetFlares(context.Background(), resp.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Flares, stored)
}

func TestUploadRejections(t *testing.T) {
	ctrl, _ := newTestController(t, config.ServerData{MaxUploadMB: 1})

	tests := []struct {
		name     string
		filename string
		body     string
		expected int
	}{
		{name: "malformed fits", filename: "obs.fits", body: "SIMPLE  =", expected: http.StatusBadRequest},
		{name: "malformed lc", filename: "obs.lc", body: "SIMPLE  =", expected: http.StatusBadRequest},
		{name: "unknown extension", filename: "obs.txt", body: "TIME,RATE\n", expected: http.StatusBadRequest},
		{name: "missing columns", filename: "obs.csv", body: "A,B\n1,2\n", expected: http.StatusBadRequest},
		{name: "too short", filename: "obs.csv", body: "TIME,RATE\n1,2\n2,3\n", expected: http.StatusUnprocessableEntity},
		{name: "too large", filename: "big.csv", body: strings.Repeat("x", 2<<20), expected: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(ctrl, uploadRequest(t, tt.filename, tt.body))
			assert.Equal(t, tt.expected, rec.Code, rec.Body.String())
		})
	}
}

// quietCSVOfSize renders a flat light curve padded with blank lines to exactly size bytes
func quietCSVOfSize(size int) string {
	var b strings.Builder
	b.WriteString("TIME,RATE\n")
	for i := 0; ; i++ {
		row := fmt.Sprintf("%d,10\n", i)
		if b.Len()+len(row) > size {
			break
		}
		b.WriteString(row)
	}
	b.WriteString(strings.Repeat("\n", size-b.Len()))
	return b.String()
}

func TestUploadSizeLimitAppliesToTheFile(t *testing.T) {
	ctrl, _ := newTestController(t, config.ServerData{MaxUploadMB: 1})

	atLimit := quietCSVOfSize(1 << 20)
	require.Len(t, atLimit, 1<<20)
	rec := serve(ctrl, uploadRequest(t, "quiet.csv", atLimit))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(ctrl, uploadRequest(t, "quiet.csv", atLimit+"\n"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestUploadMissingField(t *testing.T) {
	ctrl, _ := newTestController(t, config.ServerData{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, serve(ctrl, req).Code)
}

func TestRunLifecycle(t *testing.T) {
	ctrl, _ := newTestController(t, config.ServerData{})

	rec := serve(ctrl, uploadRequest(t, "flare.csv", flareCSV()))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	id := resp.Run.ID

	rec = serve(ctrl, httptest.NewRequest(http.MethodGet, "/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []storage.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)

	rec = serve(ctrl, httptest.NewRequest(http.MethodGet, "/runs/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(ctrl, httptest.NewRequest(http.MethodGet, "/runs/"+id+"/flares", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var flares []flare.FlareRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flares))
	assert.Len(t, flares, 1)

	rec = serve(ctrl, httptest.NewRequest(http.MethodDelete, "/runs/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(ctrl, httptest.NewRequest(http.MethodGet, "/runs/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadResult(t *testing.T) {
	ctrl, _ := newTestController(t, config.ServerData{})

	rec := serve(ctrl, uploadRequest(t, "flare.csv", flareCSV()))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	tests := []struct {
		format      string
		contentType string
		prefix      string
	}{
		{format: "csv", contentType: "text/csv", prefix: "flare_class,start_time"},
		{format: "xlsx", contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", prefix: "PK"},
		{format: "pdf", contentType: "application/pdf", prefix: "%PDF-"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := serve(ctrl, httptest.NewRequest(http.MethodGet, "/runs/"+resp.Run.ID+"/result."+tt.format, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.True(t, strings.HasPrefix(rec.Body.String(), tt.prefix))
		})
	}

	rec = serve(ctrl, httptest.NewRequest(http.MethodGet, "/runs/"+resp.Run.ID+"/result.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRunsRejectsBadLimit(t *testing.T) {
	ctrl, _ := newTestController(t, config.ServerData{})

	for _, limit := range []string{"zero", "0", "-3"} {
		rec := serve(ctrl, httptest.NewRequest(http.MethodGet, "/runs?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ctrl, _ := newTestController(t, config.ServerData{})

	rec := serve(ctrl, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(ctrl, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	ctrl, _ := newTestController(t, config.ServerData{EnableCORS: true})

	rec := serve(ctrl, httptest.NewRequest(http.MethodOptions, "/runs/abc", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(ctrl, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	plain, _ := newTestController(t, config.ServerData{})
	rec = serve(plain, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
