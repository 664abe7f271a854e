package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	stt "github.com/agnivade/stt_relay"
	"github.com/agnivade/stt_relay/config"
	"github.com/agnivade/stt_relay/logging"
	"github.com/agnivade/stt_relay/metrics"
)

type options struct {
	configFile string
	envFile    string
	port       int
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "stt-relay",
		Short: "Relay producer audio over WebSocket to a streaming transcription service",
		Long: `stt-relay accepts producer WebSocket connections carrying binary audio frames.
- The first audio frame of a session opens a streaming connection to the transcription backend
- Audio received while that connection is opening is queued and flushed in order
- Transcription results are sent back to the producer as text frames`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "path to a .env file (default: .env if present)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "listen port, overrides the config file and PORT")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides the config file and LOG_LEVEL")

	return cmd
}

func loadConfig(opts *options) (*config.Config, error) {
	var envFiles []string
	if opts.envFile != "" {
		envFiles = append(envFiles, opts.envFile)
	}

	cfg, err := config.Load(opts.configFile, envFiles...)
	if err != nil {
		return nil, err
	}

	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	factory, cleanup, err := newFactory(ctx, &cfg.Remote)
	if err != nil {
		logger.Error("Failed to create transcription backend", zap.Error(err))
		return err
	}
	defer cleanup()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Address, m, logger)
		metricsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Stop(shutdownCtx)
		}()
	}

	s := stt.New(cfg, factory, logger, m)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
		return err
	case <-sig:
	}

	if err := s.Stop(); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
		return err
	}
	return <-errChan
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
