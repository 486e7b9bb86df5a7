package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/hydromonitor/internal/metrics"
	"github.com/chrissnell/hydromonitor/internal/monitor"
	"github.com/chrissnell/hydromonitor/pkg/config"
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	monitor    *monitor.Monitor
	metrics    *metrics.Metrics
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, mon *monitor.Monitor, met *metrics.Metrics, logger *zap.SugaredLogger) (*Controller, error) {
	if mon == nil {
		return nil, fmt.Errorf("REST server requires a monitor")
	}
	if met == nil {
		met = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		monitor:    mon,
		metrics:    met,
		logger:     logger.Named("rest"),
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		ctrl.logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = config.DefaultListenAddr
	}

	// Set default HTTP port if not specified
	if rc.Port == 0 {
		ctrl.logger.Infof("rest.http_port not provided; defaulting to %d", config.DefaultHTTPPort)
		rc.Port = config.DefaultHTTPPort
	}
	ctrl.restConfig = rc

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infow("starting REST server", "addr", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() http.Handler {
	router := mux.NewRouter()
	router.Use(c.instrumentMiddleware)

	router.HandleFunc("/plants", c.handlers.GetPlants).Methods(http.MethodGet)
	router.HandleFunc("/plants/{plant}/entries", c.handlers.GetEntries).Methods(http.MethodGet)
	router.HandleFunc("/plants/{plant}/entries", c.handlers.AddEntry).Methods(http.MethodPost)
	router.HandleFunc("/entries/recent", c.handlers.GetRecent).Methods(http.MethodGet)

	router.HandleFunc("/import", c.handlers.ImportCSV).Methods(http.MethodPost)
	router.HandleFunc("/export", c.handlers.ExportCSV).Methods(http.MethodGet)

	router.HandleFunc("/alerts", c.handlers.GetAlerts).Methods(http.MethodGet)
	router.HandleFunc("/alerts/refresh", c.handlers.RefreshAlerts).Methods(http.MethodPost)

	router.HandleFunc("/trend/{metric}", c.handlers.GetTrend).Methods(http.MethodGet)
	router.HandleFunc("/chart/{metric}", c.handlers.GetChart).Methods(http.MethodGet)

	router.Handle("/metrics", c.metrics.Handler()).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Accept"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{c.logger}),
		handlers.PrintRecoveryStack(false),
	)
	return recovery(cors(router))
}

// instrumentMiddleware logs each request and records its duration under the
// matched route template.
func (c *Controller) instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		duration := time.Since(start)

		route := r.URL.Path
		if cr := mux.CurrentRoute(r); cr != nil {
			if tmpl, err := cr.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		c.metrics.ObserveHTTP(route, sw.status, duration)

		c.logger.Debugw("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", duration.Milliseconds(),
			"size", sw.size,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// recoveryLogger adapts zap to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	logger *zap.SugaredLogger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error(v...)
}
