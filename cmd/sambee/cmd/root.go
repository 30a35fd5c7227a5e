// Package cmd implements the CLI commands for sambee.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sambee/sambee/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "sambee",
	Short:   "Network share file browser with image previews",
	Version: version.Short(),
	Long: `sambee serves configured directory shares over HTTP with directory
browsing, downloads, and browser-ready image previews.

Formats browsers cannot display (TIFF, HEIC, BMP, PSD, ...) are converted
on the fly: libvips handles most rasters natively, and ImageMagick or
GraphicsMagick covers the rest.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/sambee, $HOME/.sambee)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}
