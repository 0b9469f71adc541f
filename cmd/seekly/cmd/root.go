// Package cmd provides the CLI commands for the seekly retrieval engine.
package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/seekly/seekly/internal/config"
	"github.com/seekly/seekly/internal/logging"
	"github.com/seekly/seekly/internal/metrics"
	"github.com/seekly/seekly/internal/profiling"
)

var (
	configPath string
	logLevel   string
	profileCPU string
	profileMem string

	cfg            *config.Config
	engineMetrics  *metrics.Metrics
	loggingCleanup func()
	profiler       = profiling.NewProfiler()
	cpuCleanup     func()
)

// NewRootCmd creates the root command for the seekly CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seekly",
		Short: "Hybrid retrieval engine for document QA",
		Long: `Seekly indexes document passages and answers natural-language
queries with a ranked, deduplicated passage list, combining BM25 keyword
scoring with semantic vector search and a multi-level result cache.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("seekly version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write heap profile to file on exit")

	cmd.PersistentPreRunE = setup
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if cpuCleanup != nil {
			cpuCleanup()
			cpuCleanup = nil
		}
		if profileMem != "" {
			if err := profiler.WriteHeap(profileMem); err != nil {
				slog.Warn("heap_profile_failed", slog.String("error", err.Error()))
			}
		}
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads config and initializes logging and metrics for every command.
func setup(_ *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	cfg = loaded

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		WriteToStderr: cfg.Logging.Stderr,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup

	if profileCPU != "" {
		cleanup, err := profiler.StartCPU(profileCPU)
		if err != nil {
			return err
		}
		cpuCleanup = cleanup
	}

	engineMetrics = metrics.New()
	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		server := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           engineMetrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Warn("metrics_server_failed",
					slog.String("addr", cfg.Metrics.Addr),
					slog.String("error", err.Error()))
			}
		}()
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
