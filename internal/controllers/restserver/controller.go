package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chrissnell/flarewatch/internal/flare"
	"github.com/chrissnell/flarewatch/internal/storage"
	"github.com/chrissnell/flarewatch/pkg/config"
)

// RunStore is the persistence the API needs. *storage.Store implements it.
type RunStore interface {
	SaveRun(ctx context.Context, run *storage.Run, flares []flare.FlareRecord) error
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	ListRuns(ctx context.Context, limit int) ([]storage.Run, error)
	GetFlares(ctx context.Context, runID string) ([]flare.FlareRecord, error)
	DeleteRun(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// Controller represents the REST server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	serverConfig config.ServerData
	Server       http.Server
	store        RunStore
	detector     *flare.Detector
	logger       *zap.SugaredLogger
	handlers     *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData, store RunStore, detector *flare.Detector, logger *zap.SugaredLogger) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("REST server requires a run store")
	}
	if detector == nil {
		return nil, fmt.Errorf("REST server requires a detector")
	}

	if sc.ListenAddr == "" {
		logger.Infof("server.listen_addr not provided; defaulting to %s (all interfaces)", config.DefaultListenAddr)
		sc.ListenAddr = config.DefaultListenAddr
	}
	if sc.Port == 0 {
		logger.Infof("server.port not provided; defaulting to %d", config.DefaultPort)
		sc.Port = config.DefaultPort
	}
	if sc.MaxUploadMB == 0 {
		sc.MaxUploadMB = config.DefaultMaxUploadMB
	}

	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		serverConfig: sc,
		store:        store,
		detector:     detector,
		logger:       logger,
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.serverConfig.Cert != "" && c.serverConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.serverConfig.Cert, c.serverConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.Use(c.loggingMiddleware)
	if c.serverConfig.EnableCORS {
		router.Use(c.corsMiddleware)
		// mux only runs middleware on matched routes
		router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	}

	router.HandleFunc("/upload", c.handlers.Upload).Methods(http.MethodPost)
	router.HandleFunc("/runs", c.handlers.ListRuns).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}", c.handlers.GetRun).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}", c.handlers.DeleteRun).Methods(http.MethodDelete)
	router.HandleFunc("/runs/{id}/flares", c.handlers.GetFlares).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}/result.{format:csv|xlsx|pdf}", c.handlers.DownloadResult).Methods(http.MethodGet)

	router.HandleFunc("/healthz", c.handlers.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs all requests except for scrapes and health checks
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
			return
		}
		c.logger.Infow("request",
			"method", r.Method,
			"uri", r.RequestURI,
			"remote", r.RemoteAddr,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// corsMiddleware adds CORS headers
func (c *Controller) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
