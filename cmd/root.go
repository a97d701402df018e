package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tiliavir/diary-migrate/internal/config"
	"github.com/Tiliavir/diary-migrate/internal/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "diary-migrate",
	Short: "Move exported diary text archives into nideriji",
	Long: `diary-migrate reads the year folders of a diary text export, merges the
entries of each calendar day into one document and writes it to nideriji,
uploading referenced images along the way. Re-running is safe: days whose
content is already present remotely are skipped.

Configuration lives in ~/.diary-migrate/config.toml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit status through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		os.Exit(code)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.diary-migrate/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
}

// env bundles what every command needs after startup.
type env struct {
	cfg   config.Config
	log   *zap.Logger
	close func()
}

func setup() (*env, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(logLevel) != "" {
		cfg.Logging.Level = logLevel
	}

	opts := logging.Options{
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	}
	if cfg.Logging.File != "" {
		if opts.File, err = config.StatePath(cfg.Logging.File); err != nil {
			return nil, err
		}
	}
	logger, closeFn, err := logging.New(opts)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: logger, close: closeFn}, nil
}
