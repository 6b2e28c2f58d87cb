package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"igmirror/internal/server"
	"igmirror/pkg/config"
	"igmirror/pkg/egress"
	"igmirror/pkg/logger"
	"igmirror/pkg/mirror"
	"igmirror/pkg/upstream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mirror server",
	Long: `Start the HTTP server. Configuration is read from the config file,
overridden by IGMIRROR_* environment variables and then by flags.`,
	RunE: runServe,
}

var listenAddr string

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return err
	}
	logger.SetLogger(log)

	sw, err := egress.NewSwitchboard(&cfg.Egress, cfg.Upstream.Timeout)
	if err != nil {
		return err
	}

	client := upstream.NewClient(&cfg.Upstream, cfg.Quota.Weights, cfg.Egress.ForceAnonymized, sw, log)
	svc := mirror.New(cfg, client, sw, log)
	srv := server.New(svc, &cfg.Server, log)

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":    cfg.Server.ListenAddr,
			"version": version,
		}).Info("mirror server starting")
		if err := srv.Start(cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
