package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/bloglist/apiserver/config"
	"github.com/bloglist/apiserver/internal/auth"
	"github.com/bloglist/apiserver/internal/db"
	"github.com/bloglist/apiserver/internal/handlers"
	"github.com/bloglist/apiserver/internal/logging"
	"github.com/bloglist/apiserver/internal/mq"
	"github.com/bloglist/apiserver/internal/services"
	"github.com/bloglist/apiserver/internal/store"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Users            services.UserRepository
	Blogs            services.BlogRepository
	Sessions         services.SessionStore
	Tokens           *auth.TokenIssuer
	Events           *services.EventPublisher
	Logger           logrus.FieldLogger
	TestingEndpoints bool
}

// Server wraps the HTTP server and the connections it owns.
type Server struct {
	httpServer *http.Server
	logger     *logrus.Logger
	db         *sql.DB
	redis      redis.UniversalClient
	mq         *mq.MQ
}

// New constructs a Server from configuration, opening every backend the
// configuration selects.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{logger: logging.New(cfg.LogLevel, cfg.IsDev())}

	users, blogs, err := s.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessions, err := s.openSessions(ctx, cfg)
	if err != nil {
		s.close()
		return nil, err
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, err
	}
	var publisher mq.Publisher
	if broker != nil {
		s.mq = broker
		publisher = broker
	}

	router := NewRouter(Dependencies{
		Users:            users,
		Blogs:            blogs,
		Sessions:         sessions,
		Tokens:           auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Events:           services.NewEventPublisher(publisher, cfg.MQ.Channel, s.logger),
		Logger:           s.logger,
		TestingEndpoints: cfg.TestingEndpoints,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.WithFields(logrus.Fields{
		"store":    cfg.StoreDriver,
		"sessions": cfg.SessionDriver,
		"mq":       cfg.MQ.Driver,
		"testing":  cfg.TestingEndpoints,
	}).Info("server configured")

	return s, nil
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(deps Dependencies) *chi.Mux {
	userService := services.NewUserService(deps.Users, deps.Sessions, deps.Tokens)
	blogService := services.NewBlogService(deps.Blogs, userService, deps.Events)
	listingService := services.NewListingService(deps.Blogs, deps.Users)

	authHandler := handlers.NewAuthHandler(userService, deps.Logger)
	userHandler := handlers.NewUserHandler(userService, deps.Logger)
	blogHandler := handlers.NewBlogHandler(blogService, listingService, deps.Logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(deps.Logger),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
	)
	router.Get("/healthz", handlers.Healthz)

	router.Route("/api", func(r chi.Router) {
		r.Use(authHandler.Authenticate)

		handlers.AuthRouter(r, authHandler)
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, userHandler)
		})
		r.Route("/blogs", func(r chi.Router) {
			handlers.BlogRouter(r, blogHandler)
		})

		if deps.TestingEndpoints {
			resetService := services.NewResetService(deps.Blogs, deps.Users, deps.Sessions)
			r.Post("/testing/reset", handlers.NewResetHandler(resetService, deps.Logger).Reset)
		}
	})

	return router
}

func (s *Server) openStore(ctx context.Context, cfg config.Config) (services.UserRepository, services.BlogRepository, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return store.NewMemoryUserRepository(), store.NewMemoryBlogRepository(), nil
	case config.StoreDriverPostgres:
		dbConn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		s.db = dbConn
		return store.NewUserRepository(dbConn), store.NewBlogRepository(dbConn), nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func (s *Server) openSessions(ctx context.Context, cfg config.Config) (services.SessionStore, error) {
	switch cfg.SessionDriver {
	case config.SessionDriverMemory:
		return store.NewMemorySessionStore(), nil
	case config.SessionDriverRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.redis = client
		return store.NewRedisSessionStore(client, cfg.Redis.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown session driver %q", cfg.SessionDriver)
	}
}

// Start runs the HTTP server. It returns nil once the server has been shut
// down.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// every backend.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.logger.WithError(err).Warn("close mq")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
