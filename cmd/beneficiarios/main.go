package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Platform-LSS/beneficiarios/internal/auth"
	"github.com/Platform-LSS/beneficiarios/internal/config"
	"github.com/Platform-LSS/beneficiarios/internal/logging"
	mcpserver "github.com/Platform-LSS/beneficiarios/internal/mcp"
	"github.com/Platform-LSS/beneficiarios/internal/metrics"
	"github.com/Platform-LSS/beneficiarios/internal/realtime"
	"github.com/Platform-LSS/beneficiarios/internal/store"
	"github.com/Platform-LSS/beneficiarios/internal/web"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	migrate := flag.Bool("migrate", false, "Run database migrations on startup")
	exitAfterMigrate := flag.Bool("exit-after-migrate", false, "Exit after running migrations")
	migrationsDir := flag.String("migrations-dir", "", "Path to migrations directory (default: auto-detect)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	cfg.MigrateOnStart = *migrate
	cfg.ExitAfterMigrate = *exitAfterMigrate
	if *migrationsDir != "" {
		cfg.MigrationsDir = *migrationsDir
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	// Run migrations if requested
	if cfg.MigrateOnStart {
		dir := findMigrationsDir(cfg.MigrationsDir)
		if dir == "" {
			slog.Error("migrations directory not found", "searched", cfg.MigrationsDir)
			os.Exit(1)
		}
		if err := store.RunMigrations(ctx, pgStore.Pool(), dir); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		if cfg.ExitAfterMigrate {
			slog.Info("migrations complete, exiting")
			return
		}
	}

	reg := metrics.NewRegistry()
	events := realtime.NewManager(realtime.Options{
		KeepaliveInterval: cfg.KeepaliveInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		WriteTimeout:      cfg.WriteTimeout,
		CacheSize:         cfg.EventCacheSize,
		Metrics:           realtime.NewMetrics(reg),
		Logger:            logger,
	})
	defer events.Shutdown()
	slog.Info("event broadcaster ready", "instancia", events.InstanceID())

	srv := mcpserver.New(pgStore, events)

	// Start transport
	switch cfg.Transport {
	case "web":
		webSrv := web.New(pgStore, events, auth.NewJWTVerifier(cfg.JWTSecret), reg)
		if err := serveWeb(ctx, cfg.Port, webSrv.Routes(), events); err != nil {
			slog.Error("web server error", "error", err)
			os.Exit(1)
		}
	case "sse":
		slog.Info("starting SSE transport", "port", cfg.Port)
		sseServer := server.NewSSEServer(srv.MCPServer(),
			server.WithBaseURL(fmt.Sprintf("http://localhost:%s", cfg.Port)),
		)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			sseServer.Shutdown(shutdownCtx) //nolint:errcheck
		}()
		if err := sseServer.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("SSE server error", "error", err)
			os.Exit(1)
		}
	default:
		slog.Info("starting stdio transport")
		stdioServer := server.NewStdioServer(srv.MCPServer())
		if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("stdio server error", "error", err)
			os.Exit(1)
		}
	}
}

// serveWeb runs the HTTP API until ctx is cancelled. Event streams are
// long-lived, so the server sets no WriteTimeout; each frame write carries
// its own deadline instead.
func serveWeb(ctx context.Context, port string, handler http.Handler, events *realtime.Manager) error {
	httpSrv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting web API", "port", port, "url", fmt.Sprintf("http://localhost:%s", port))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	// Streams never go idle on their own; end them before draining the rest.
	events.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return httpSrv.Close()
	}
	return nil
}

// findMigrationsDir checks common locations for the migrations directory.
func findMigrationsDir(configured string) string {
	candidates := []string{
		configured,
		"migrations",
		"/migrations",
		"./migrations",
	}
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
