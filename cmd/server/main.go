package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/welldanyogia/webrana-cms-backend/internal/config"
	"github.com/welldanyogia/webrana-cms-backend/internal/logger"
)

const defaultEnvFile = ".env"

// runtime is filled by the root command before any subcommand runs
type runtime struct {
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
	closer  io.Closer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rt := &runtime{}

	rootCmd := &cobra.Command{
		Use:           "webrana-cms",
		Short:         "Attachment lifecycle service for the Webrana CMS.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.closer != nil {
				return rt.closer.Close()
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&rt.envFile, "env-file", defaultEnvFile,
		"dotenv file loaded before reading the environment; empty skips it")

	rootCmd.AddCommand(newServeCommand(rt))
	rootCmd.AddCommand(newSweepCommand(rt))
	rootCmd.AddCommand(newMigrateCommand(rt))
	return rootCmd
}

// load reads the dotenv file, the configuration and sets up logging
func (rt *runtime) load() error {
	if rt.envFile != "" {
		// Variables already in the environment win over the file
		if err := godotenv.Load(rt.envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || rt.envFile != defaultEnvFile {
				return fmt.Errorf("failed to load %s: %w", rt.envFile, err)
			}
		}
	}

	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, closer, err := logger.New(logger.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(log)

	rt.cfg = cfg
	rt.logger = log
	rt.closer = closer
	return nil
}
