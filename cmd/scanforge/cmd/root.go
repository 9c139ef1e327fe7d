package cmd

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/slogutil"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "scanforge",
	Short:         "Paginated scanning over forensic disk images",
	Long:          `scanforge reads raw, split-raw, EWF and directory evidence through one paginated access layer and feeds the pages to scanners.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to YAML config file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setupLogging installs the global slog logger according to the config:
// text logs to stderr, or a rotated log file when one is configured.
func setupLogging(cfg *config.Config) {
	var w io.Writer = os.Stderr
	if cfg.Log.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
	}

	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slogutil.NewContextHandler(
		slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(slog.New(handler))
}
