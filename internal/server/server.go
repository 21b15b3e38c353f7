package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/taskapi/taskapi/config"
	"github.com/taskapi/taskapi/internal/db"
	"github.com/taskapi/taskapi/internal/handlers"
	"github.com/taskapi/taskapi/internal/logging"
	"github.com/taskapi/taskapi/internal/mq"
	"github.com/taskapi/taskapi/internal/services"
	"github.com/taskapi/taskapi/internal/storage"
	"github.com/taskapi/taskapi/internal/store"
)

// Dependencies are the collaborators the HTTP router is built from.
// Events, Objects and DB are optional.
type Dependencies struct {
	Users       services.UserRepository
	Tasks       services.TaskRepository
	Events      services.TaskEventPublisher
	Objects     services.ObjectWriter
	DB          handlers.Pinger
	Auth        config.AuthConfig
	CORSOrigins []string
	Logger      logrus.FieldLogger
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sqlx.DB
	mq         *mq.MQ
}

// New connects to the database and the optional broker and object store, and
// assembles the HTTP server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	deps := Dependencies{
		Users:       store.NewUserRepository(dbConn),
		Tasks:       store.NewTaskRepository(dbConn),
		DB:          dbConn,
		Auth:        cfg.Auth,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logrus.StandardLogger(),
	}

	broker, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("connect mq: %w", err)
	}
	if broker != nil {
		events, err := mq.NewTaskEvents(broker, cfg.MQ.TaskEventsChannel)
		if err != nil {
			_ = broker.Close()
			_ = dbConn.Close()
			return nil, err
		}
		deps.Events = events
	}

	objects, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		closeBroker(broker)
		_ = dbConn.Close()
		return nil, fmt.Errorf("connect storage: %w", err)
	}
	if objects != nil {
		deps.Objects = objects
	}

	router, err := NewRouter(deps)
	if err != nil {
		closeBroker(broker)
		_ = dbConn.Close()
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         broker,
	}, nil
}

// NewRouter builds the routes and middleware chain over deps.
func NewRouter(deps Dependencies) (*chi.Mux, error) {
	if deps.Users == nil || deps.Tasks == nil {
		return nil, errors.New("user and task repositories are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	authService, err := services.NewAuthService(deps.Users, deps.Auth)
	if err != nil {
		return nil, err
	}
	taskService := services.NewTaskService(deps.Tasks, deps.Events)

	var exportService *services.ExportService
	if deps.Objects != nil {
		exportService = services.NewExportService(deps.Tasks, deps.Objects)
	}

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"WWW-Authenticate"},
			MaxAge:         300,
		}),
	)

	healthz := handlers.Healthz(deps.DB)
	router.Get("/", handlers.Root)
	router.Get("/health", healthz)
	router.Get("/healthz", healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService)
	})
	router.Route("/tasks", func(r chi.Router) {
		handlers.TaskRouter(r, taskService, exportService, handlers.RequireAuth(authService))
	})

	return router, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	logrus.WithField("addr", s.httpServer.Addr).Info("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	closeBroker(s.mq)
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

func closeBroker(broker *mq.MQ) {
	if broker == nil {
		return
	}
	if err := broker.Close(); err != nil {
		logrus.WithError(err).Warn("close mq")
	}
}
