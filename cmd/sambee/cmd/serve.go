package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sambee/sambee/internal/config"
	internalhttp "github.com/sambee/sambee/internal/http"
	"github.com/sambee/sambee/internal/http/handlers"
	"github.com/sambee/sambee/internal/observability"
	"github.com/sambee/sambee/internal/preview"
	"github.com/sambee/sambee/internal/storage"
	"github.com/sambee/sambee/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sambee server",
	Long: `Start the sambee HTTP server.

The server provides:
- Directory browsing for every configured share
- Original file downloads
- Browser-ready image previews with on-the-fly conversion
- Health check endpoint and OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to")
	serveCmd.Flags().Int("port", 0, "Port to listen on")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags beat env and file values, but only when explicitly set.
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	applyLoggingFlags(&cfg.Logging)

	logger := observability.WithApp(observability.NewLoggerWithWriter(cfg.Logging, os.Stderr), version.ApplicationName)
	observability.SetDefault(logger)

	logger.Info("starting",
		slog.String("version", version.Short()),
		slog.String("vips", preview.VipsVersion()),
	)

	store, err := storage.NewStore(cfg.Storage.Shares)
	if err != nil {
		return fmt.Errorf("initializing shares: %w", err)
	}
	if len(cfg.Storage.Shares) == 0 {
		logger.Warn("no shares configured; the server will have nothing to browse")
	}

	converter := preview.New(preview.Options{
		Limits: preview.ResourceLimits{
			MaxInputSize:      cfg.Preview.MaxInputSize.Bytes(),
			MaxPixelArea:      cfg.Preview.MaxPixelArea,
			SubprocessTimeout: cfg.Preview.SubprocessTimeout,
			ProbeTimeout:      cfg.Preview.ProbeTimeout,
		},
		Encode: preview.EncodeOptions{
			JPEGQuality:    cfg.Preview.Quality,
			PNGCompression: cfg.Preview.PNGCompression,
			StripMetadata:  cfg.Preview.StripMetadata,
		},
		MaxDimension: cfg.Preview.MaxDimension,
		Prefer:       cfg.Preview.PreferredPreprocessor(),
		Logger:       logger,
	})

	server := internalhttp.NewServer(internalhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}, logger, version.Version)

	handlers.NewHealthHandler(version.Version, converter, store).Register(server.API())
	handlers.NewFormatsHandler().Register(server.API())
	handlers.NewSharesHandler(store).Register(server.API())
	handlers.NewPreviewHandler(store, converter, cfg.Preview.MaxInputSize.Bytes(), logger).
		RegisterFileServer(server.Router())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.ListenAndServe(ctx)
}

// applyLoggingFlags overrides logging config with explicitly set CLI flags.
func applyLoggingFlags(cfg *config.LoggingConfig) {
	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		cfg.Level = strings.ToLower(level)
		if cfg.Level == "warning" {
			cfg.Level = "warn"
		}
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ := rootCmd.PersistentFlags().GetString("log-format")
		cfg.Format = strings.ToLower(format)
	}
}
