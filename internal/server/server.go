package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"wallet-ledger/internal/config"
	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/handler"
	"wallet-ledger/internal/lock"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/service"
)

type pingStore interface {
	domain.Store
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	router *mux.Router
	server *http.Server
	store  pingStore
	db     *sql.DB
	redis  *redis.Client
	logger *slog.Logger
	port   string
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{logger: logger}

	if err := s.openStore(cfg); err != nil {
		return nil, err
	}

	locker, err := s.openLocker(cfg)
	if err != nil {
		s.close()
		return nil, err
	}

	policy := service.Policy{
		SuspendNegativeBalance: cfg.SuspendNegativeBalance,
		OperationTimeout:       cfg.OperationTimeout,
	}

	// Initialize services
	accountService := service.NewAccountService(s.store, logger)
	walletService := service.NewWalletService(s.store, locker, policy, logger)
	statementService := service.NewStatementService(s.store, logger)

	// Initialize handlers
	accountHandler := handler.NewAccountHandler(accountService)
	walletHandler := handler.NewWalletHandler(walletService, statementService)

	// Setup router
	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	// Account routes
	router.HandleFunc("/accounts", accountHandler.CreateAccount).Methods("POST")
	router.HandleFunc("/accounts/{account_id}", accountHandler.GetAccount).Methods("GET")

	// Wallet routes act on the account named by the bearer token
	wallet := router.PathPrefix("/wallet").Subrouter()
	wallet.Use(handler.Authenticate([]byte(cfg.JWTSecret), logger))
	wallet.HandleFunc("/deposit", walletHandler.Deposit).Methods("POST")
	wallet.HandleFunc("/transfer", walletHandler.Transfer).Methods("POST")
	wallet.HandleFunc("/reverse/{transaction_id}", walletHandler.Reverse).Methods("POST")
	wallet.HandleFunc("/statement", walletHandler.Statement).Methods("GET")

	router.HandleFunc("/health", s.health).Methods("GET")

	s.router = router
	return s, nil
}

func (s *Server) openStore(cfg *config.Config) error {
	switch cfg.StorageBackend {
	case config.StorageBackendMemory:
		s.logger.Warn("Using in-memory storage, data is lost on restart")
		s.store = repository.NewMemoryStore(s.logger)
		return nil
	case config.StorageBackendPostgres, "":
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	db, err := sql.Open("postgres", cfg.GetDBConnectionString())
	if err != nil {
		return err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}
	s.logger.Info("Successfully connected to database")

	if err := repository.Migrate(db, s.logger); err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.store = repository.NewStore(db, s.logger)
	return nil
}

func (s *Server) openLocker(cfg *config.Config) (lock.Locker, error) {
	switch cfg.LockBackend {
	case config.LockBackendMemory, "":
		return lock.NewMemoryLocker(), nil
	case config.LockBackendRedis:
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	s.logger.Info("Successfully connected to redis", "addr", cfg.RedisAddr)

	s.redis = client
	return lock.NewRedisLocker(client, s.logger, lock.WithTTL(cfg.LockTTL)), nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
		return
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "lock backend unavailable"})
			return
		}
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create response wrapper to capture status code
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	// Create listener first to get actual port
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server stopped unexpectedly", "error", err)
		}
	}()

	return s.port, nil
}

// Stop drains in-flight requests and then closes the backends they use.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.close()
	return err
}

func (s *Server) close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", "error", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", "error", err)
		}
	}
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() string {
	return s.port
}

// GetBaseURL returns the base URL for the server
func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// StartServer starts the server with the given configuration
func StartServer(cfg *config.Config) (*Server, string, error) {
	var logger *slog.Logger
	if cfg.ServerPort == "0" {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.close()
		return nil, "", err
	}

	return server, port, nil
}
