package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/parisedai/budgetai/internal/api"
	"github.com/parisedai/budgetai/internal/budget"
	"github.com/parisedai/budgetai/internal/config"
	"github.com/parisedai/budgetai/internal/events"
	"github.com/parisedai/budgetai/internal/events/kafka"
	"github.com/parisedai/budgetai/internal/metrics"
	"github.com/parisedai/budgetai/internal/middleware"
	"github.com/parisedai/budgetai/internal/receipt"
	"github.com/parisedai/budgetai/internal/service"
	"github.com/parisedai/budgetai/internal/storage/sqlite"
	"github.com/parisedai/budgetai/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Setup(cfg.LogLevel)

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	var publisher events.Publisher = events.Nop{}
	if cfg.EventsEnabled() {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
		defer kp.Close()
		publisher = kp
		slog.Info("Event publishing enabled", "brokers", cfg.KafkaBrokers, "topic_prefix", cfg.KafkaTopicPrefix)
	}

	planner := budget.NewPlanner(cfg.OpenAIAPIKey)
	if cfg.MockMode() {
		slog.Warn("OPENAI_API_KEY not set, budget plans use the built-in template")
	}

	m := metrics.New()
	interceptors := connect.WithInterceptors(middleware.LoggingInterceptor())

	receiptSvc := service.NewReceiptService(store, receipt.NewProcessor(receipt.PlaceholderOCR{}), publisher, m, cfg.MaxUploadBytes)

	mux := http.NewServeMux()

	// Register Connect services
	mux.Handle(api.NewSplitServiceHandler(service.NewSplitService(store, publisher, m), interceptors))
	mux.Handle(api.NewReceiptServiceHandler(receiptSvc, interceptors))
	mux.Handle(api.NewBudgetServiceHandler(service.NewBudgetService(planner, m), interceptors))

	mux.Handle("/api/upload", receiptSvc.UploadHandler())
	mux.Handle("/api/health", service.HealthHandler())
	mux.Handle("/metrics", m.Handler())

	staticDir, err := filepath.Abs(cfg.StaticPath)
	if err != nil {
		return fmt.Errorf("resolve static path: %w", err)
	}
	slog.Info("Serving static files", "path", staticDir)
	mux.Handle("/", staticHandler(staticDir))

	// Wrap with h2c for HTTP/2 without TLS
	handler := h2c.NewHandler(middleware.Logging(middleware.CORS(mux)), &http2.Server{})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr), "mock_mode", cfg.MockMode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// staticHandler serves the frontend. Unknown paths fall back to index.html;
// RPC paths that reached here have no matching procedure.
func staticHandler(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.IsProcedurePath(r.URL.Path) {
			http.NotFound(w, r)
			return
		}

		urlPath := r.URL.Path
		if urlPath == "/" {
			urlPath = "/index.html"
		}

		filePath := filepath.Join(dir, filepath.Clean(urlPath))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		http.ServeFile(w, r, filePath)
	})
}
