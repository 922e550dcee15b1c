package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eargollo/docqueue/internal/api/handlers"
	"github.com/eargollo/docqueue/internal/config"
	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/fields"
	"github.com/eargollo/docqueue/internal/metrics"
	"github.com/eargollo/docqueue/internal/queue"
	"github.com/eargollo/docqueue/internal/report"
	"github.com/eargollo/docqueue/internal/scan"
	"github.com/eargollo/docqueue/internal/scheduler"
)

// Deps are the components the HTTP API serves.
type Deps struct {
	DB        *sql.DB
	Config    *config.Config
	Manager   *scan.Manager
	Scheduler *scheduler.Scheduler
	Queue     queue.Queue
	Report    report.Report
	Factory   *document.Factory
	Version   string
	// BaseCtx parents scans started over HTTP.
	BaseCtx context.Context
}

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr string
	srv  *http.Server
}

// New wires all routes and returns a Server ready to Run.
func New(addr string, d Deps) *Server {
	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: Router(d), ReadHeaderTimeout: 10 * time.Second},
	}
}

// Router builds the route tree. It is exported for tests.
func Router(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	statusH := &handlers.StatusHandler{
		DB:      d.DB,
		Manager: d.Manager,
		Sched:   d.Scheduler,
		Queue:   d.Queue,
		Report:  d.Report,
		Version: d.Version,
	}
	scansH := &handlers.ScansHandler{DB: d.DB, Manager: d.Manager, BaseCtx: d.BaseCtx}
	names := fields.Defaults()
	if d.Config != nil {
		names = d.Config.Fields.WithDefaults()
	}
	queueH := &handlers.QueueHandler{Queue: d.Queue, Fields: names}
	reportH := &handlers.ReportHandler{Report: d.Report, Factory: d.Factory}
	configH := &handlers.ConfigHandler{Cfg: d.Config, Manager: d.Manager, Sched: d.Scheduler}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)

		r.Post("/scans", scansH.Create)
		r.Get("/scans", scansH.List)
		r.Get("/scans/{id}", scansH.Get)
		r.Delete("/scans/current", scansH.Cancel)

		r.Get("/queue", queueH.Get)
		r.Post("/queue/poll", queueH.Poll)

		r.Get("/report", reportH.Get)
		r.Put("/report", reportH.Put)

		r.Get("/config", configH.Get)
		r.Patch("/config", configH.Update)
		r.Get("/fields", configH.Fields)
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
