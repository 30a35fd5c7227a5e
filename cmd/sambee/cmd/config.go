package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sambee/sambee/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing sambee configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This shows every configuration option after defaults, config file, and
environment variables are applied. Redirect the output to a file to create
a configuration template:

  sambee config dump > config.yaml

Environment variables use the SAMBEE_ prefix and underscores for nesting.
Example: server.port -> SAMBEE_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	shares := make([]map[string]any, 0, len(cfg.Storage.Shares))
	for _, s := range cfg.Storage.Shares {
		shares = append(shares, map[string]any{"name": s.Name, "path": s.Path})
	}

	// Durations and sizes render in their human-readable forms, the same
	// forms Load accepts back.
	dump := map[string]any{
		"server": map[string]any{
			"host":             cfg.Server.Host,
			"port":             cfg.Server.Port,
			"read_timeout":     cfg.Server.ReadTimeout.String(),
			"write_timeout":    cfg.Server.WriteTimeout.String(),
			"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
			"cors_origins":     cfg.Server.CORSOrigins,
		},
		"storage": map[string]any{
			"shares": shares,
		},
		"logging": map[string]any{
			"level":       cfg.Logging.Level,
			"format":      cfg.Logging.Format,
			"add_source":  cfg.Logging.AddSource,
			"time_format": cfg.Logging.TimeFormat,
		},
		"preview": map[string]any{
			"quality":            cfg.Preview.Quality,
			"png_compression":    cfg.Preview.PNGCompression,
			"max_dimension":      cfg.Preview.MaxDimension,
			"max_pixel_area":     cfg.Preview.MaxPixelArea,
			"max_input_size":     cfg.Preview.MaxInputSize.String(),
			"subprocess_timeout": cfg.Preview.SubprocessTimeout.String(),
			"probe_timeout":      cfg.Preview.ProbeTimeout.String(),
			"preprocessor":       cfg.Preview.Preprocessor,
			"strip_metadata":     cfg.Preview.StripMetadata,
		},
	}

	out, err := yaml.Marshal(dump)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}
