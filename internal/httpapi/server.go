// Package httpapi exposes the backup, settings and WhatsApp operations over
// HTTP. Admin routes require an HS256 bearer token with role "admin".
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cafe-pos/internal/archive"
	"cafe-pos/internal/backup"
	"cafe-pos/internal/logging"
	"cafe-pos/internal/store"
	"cafe-pos/internal/whatsapp"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// DefaultMaxRestoreBytes caps restore uploads when Config leaves it unset
const DefaultMaxRestoreBytes int64 = 50 << 20

// Config configures the HTTP layer
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	JWTSecret       string
	Issuer          string
	MaxRestoreBytes int64
	AllowedOrigins  []string
}

// Deps are the services behind the API. Archives and Notifier may be nil,
// in which case their routes answer 503.
type Deps struct {
	Store    store.Store
	Backup   *backup.Service
	Archives *archive.Manager
	Notifier *whatsapp.Notifier
	Logger   *logging.Logger
}

// Server routes API requests
type Server struct {
	config Config
	deps   Deps
	logger *logging.Logger
	router *mux.Router
	now    func() time.Time
}

// NewServer builds the router
func NewServer(config Config, deps Deps) *Server {
	if config.MaxRestoreBytes <= 0 {
		config.MaxRestoreBytes = DefaultMaxRestoreBytes
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewDefaultLogger()
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.requestID, s.observe, s.recoverPanics)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/settings", s.handleSettings).Methods(http.MethodGet)

	admin := api.NewRoute().Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/backup", s.handleExport).Methods(http.MethodGet)
	admin.HandleFunc("/backup/restore", s.handleRestore).Methods(http.MethodPost)
	admin.HandleFunc("/backup/archives", s.handleListArchives).Methods(http.MethodGet)
	admin.HandleFunc("/backup/archives", s.handleCreateArchive).Methods(http.MethodPost)
	admin.HandleFunc("/backup/archives/{id}/restore", s.handleRestoreArchive).Methods(http.MethodPost)
	admin.HandleFunc("/backup/archives/{id}", s.handleDeleteArchive).Methods(http.MethodDelete)
	admin.HandleFunc("/whatsapp/test", s.handleWhatsAppTest).Methods(http.MethodPost)

	if s.deps.Backup != nil {
		if root := s.deps.Backup.Uploads().PrimaryRoot(); root != "" {
			r.PathPrefix(backup.UploadsPrefix).Handler(
				http.StripPrefix(backup.UploadsPrefix, http.FileServer(http.Dir(root))))
		}
	}
}

// Handler returns the router wrapped with CORS
func (s *Server) Handler() http.Handler {
	if len(s.config.AllowedOrigins) == 0 {
		return s.router
	}
	return cors.New(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", requestIDHeader},
		AllowCredentials: true,
	}).Handler(s.router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down within
// shutdownTimeout
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", s.config.Address).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
