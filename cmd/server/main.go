/*
main.go - Application entry point

PURPOSE:
  Starts the TortiPOS server for the counter: loads the saved shop (or the
  bootstrap catalog), owns the background persister and serves the API.

STARTUP SEQUENCE:
  1. Load .env (if any) and read config from the environment
  2. Parse command-line flags (override env)
  3. Build the zap logger
  4. Open the storage gateway (sqlite, redis or memory)
  5. Load saved state, falling back to bootstrap data
  6. Start the persister and the Controller
  7. Configure HTTP router and serve

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: $HTTP_PORT or 8080)
  -db       SQLite database path (default: $SQLITE_PATH)
  -storage  sqlite | redis | memory (default: $STORAGE_DRIVER or sqlite)
  -static   Directory with the built UI (default: ./web/dist)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Flush the pending save
  4. Close the store

EXAMPLES:
  ./server -db="./data/tortipos.db"
  STORAGE_DRIVER=redis REDIS_ADDR=localhost:6379 ./server
  ./server -storage=memory -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - pos/persister.go: Background saves
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/tortipos/api"
	"github.com/warp/tortipos/config"
	"github.com/warp/tortipos/logger"
	"github.com/warp/tortipos/pos"
	"github.com/warp/tortipos/pos/store"
	"github.com/warp/tortipos/report"
	"github.com/warp/tortipos/store/redisstate"
	"github.com/warp/tortipos/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	// .env is optional
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// Flags
	port := flag.String("port", cfg.Server.HTTPPort, "HTTP server port")
	dbPath := flag.String("db", cfg.Storage.SQLitePath, "SQLite database path")
	driver := flag.String("storage", cfg.Storage.Driver, "Storage driver: sqlite, redis or memory")
	staticDir := flag.String("static", "./web/dist", "Directory with the built UI")
	flag.Parse()
	cfg.Server.HTTPPort = *port
	cfg.Storage.SQLitePath = *dbPath
	cfg.Storage.Driver = *driver

	log := logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment:     cfg.IsDevelopment(),
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	defer log.Sync()

	if err := run(cfg, *staticDir, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, staticDir string, log *zap.Logger) error {
	ctx := context.Background()

	gw, closer, err := openGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	// Initialize state
	initial, err := pos.LoadOrBootstrap(ctx, gw, log)
	if err != nil {
		return fmt.Errorf("failed to load saved state: %w", err)
	}

	persister := pos.NewPersister(gw, log)
	persister.Start()
	defer persister.Stop()

	ctrl := pos.NewController(initial, persister, log)
	ctrl.HighBalanceThreshold = cfg.Shop.HighBalanceThreshold

	loc, err := time.LoadLocation(cfg.Shop.Timezone)
	if err != nil {
		log.Warn("unknown timezone, using local time", zap.String("timezone", cfg.Shop.Timezone), zap.Error(err))
		loc = time.Local
	}

	handler := api.NewHandler(ctrl, report.NewAggregator(loc, cfg.Shop.TaxRate), log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      staticDir,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", "http://localhost:"+cfg.Server.HTTPPort),
			zap.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	// Flush the last save before reporting the final status.
	persister.Stop()
	log.Info("server stopped", zap.Bool("unsaved_changes", ctrl.SaveStatus().Unsaved))
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openGateway(ctx context.Context, cfg *config.Config) (pos.Gateway, io.Closer, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." && cfg.Storage.SQLitePath != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		s, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, s, nil
	case config.DriverRedis:
		s, err := redisstate.New(ctx, redisstate.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.DriverMemory:
		return store.NewMemory(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
