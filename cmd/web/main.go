// Package main provides the CLI entrypoint for the sales dashboard.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
)

const (
	version               = "1.0.0"
	rateLimiterSweepEvery = time.Minute
)

var (
	configPath string
	csvFile    string
	port       int

	viewsCategory  string
	viewsRegion    string
	viewsChartType string
	viewsStart     string
	viewsEnd       string
	viewsChanged   []string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "web",
		Short:        "Superstore sales dashboard",
		SilenceUsage: true,
		RunE:         runServeCmd,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&csvFile, "csv", "", "sales CSV file (overrides CSV_FILE)")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "listen port (overrides SERVER_PORT)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newViewsCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
}

func newViewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Print dashboard views for a selection as JSON",
		Args:  cobra.NoArgs,
		RunE:  runViewsCmd,
	}

	cmd.Flags().StringVar(&viewsCategory, "category", "", "product category (default: first in data)")
	cmd.Flags().StringVar(&viewsRegion, "region", "", "region (default: first in data)")
	cmd.Flags().StringVar(&viewsChartType, "chart-type", string(models.ChartBar), "sub-category chart: bar or pie")
	cmd.Flags().StringVar(&viewsStart, "start", "", "range start, YYYY-MM-DD (default: earliest order)")
	cmd.Flags().StringVar(&viewsEnd, "end", "", "range end, YYYY-MM-DD (default: latest order)")
	cmd.Flags().StringSliceVar(&viewsChanged, "changed", nil, "changed inputs; only affected views are printed")

	return cmd
}

// loadConfig layers command line flags over the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("csv") {
		cfg.Data.CSVFile = csvFile
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services.RecordStore, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Data.LoadTimeout)
	defer cancel()

	start := time.Now()
	store, err := services.LoadFile(ctx, cfg.Data.CSVFile)
	if err != nil {
		return nil, err
	}
	logger.Info("CSV data loaded successfully",
		"file", cfg.Data.CSVFile,
		"records", store.Len(),
		"duration", time.Since(start),
	)
	return store, nil
}

// newHandler wraps the routes in the middleware chain.
func newHandler(cfg *config.Config, aggregator *services.Aggregator, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	srv := server.NewServer(aggregator, logger)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
	)

	return middlewareChain(srv)
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"addr", cfg.Address(),
		"csv_file", cfg.Data.CSVFile,
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := loadStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load CSV data", "error", err)
		return err
	}

	aggregator := services.NewAggregator(store)
	limiter := middleware.NewRateLimiter(cfg.Security)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, aggregator, limiter, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go limiter.Run(sweepCtx, rateLimiterSweepEvery)
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("stopping rate limiter sweep")
		stopSweep()
		return nil
	})

	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		logger.Error("server failed", "error", err)
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}

type viewOutput struct {
	ID    models.ViewID `json:"id"`
	View  *models.View  `json:"view,omitempty"`
	Error string        `json:"error,omitempty"`
}

func runViewsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cfg.Logger.Level = "error"
	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := loadStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	signals := models.NewSignals(store.DefaultSelection())
	setFlag(cmd, "category", &signals.Category, viewsCategory)
	setFlag(cmd, "region", &signals.Region, viewsRegion)
	setFlag(cmd, "chart-type", &signals.ChartType, viewsChartType)
	setFlag(cmd, "start", &signals.StartDate, viewsStart)
	setFlag(cmd, "end", &signals.EndDate, viewsEnd)

	sel, err := signals.Selection()
	if err != nil {
		return err
	}

	var changed []services.Input
	for _, name := range viewsChanged {
		inputs, ok := services.ParseInput(name)
		if !ok {
			return fmt.Errorf("unknown input %q", name)
		}
		changed = append(changed, inputs...)
	}

	results := services.NewAggregator(store).Recompute(ctx, sel, changed...)
	out := make([]viewOutput, 0, len(results))
	for _, res := range results {
		entry := viewOutput{ID: res.ID}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		} else {
			entry.View = &res.View
		}
		out = append(out, entry)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func setFlag(cmd *cobra.Command, name string, target *string, value string) {
	if cmd.Flags().Changed(name) {
		*target = value
	}
}
