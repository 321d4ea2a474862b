// Package server implements the serve command, which runs the webhook
// endpoint until interrupted.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oar-cd/pushdeploy/app"
	"github.com/oar-cd/pushdeploy/cmd/utils"
	"github.com/oar-cd/pushdeploy/config"
)

const readHeaderTimeout = 10 * time.Second

// NewCmdServer creates the command that runs the webhook server
func NewCmdServer() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Run the webhook server",
		Long: `Listen for GitHub push webhooks on /deploy and run the deploy script of
the pushed repository. On SIGINT or SIGTERM the server stops accepting
requests and waits up to the shutdown timeout for running deploys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd)
		},
	}
	return cmd
}

func runServer(cmd *cobra.Command) error {
	cfg, err := utils.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	closer, err := utils.InitLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer closer.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Address(), err)
	}

	return serve(ctx, cfg, slog.Default(), listener)
}

// serve runs the HTTP server on listener until ctx is done, then shuts
// down gracefully within cfg.ShutdownTimeout
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, listener net.Listener) error {
	a := app.New(cfg, logger)

	server := &http.Server{
		Handler:           a.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	logger.Info("Starting pushdeploy server",
		"layer", "server",
		"version", app.Version,
		"address", listener.Addr().String(),
		"projects_root", cfg.ProjectsRoot,
		"target_branch", cfg.TargetBranch,
		"notifications", cfg.NotificationsEnabled())

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("web server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down web server", "layer", "server", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown failed: %w", err)
	}

	if err := a.Drain(shutdownCtx); err != nil {
		logger.Warn("Exiting with deploys still running", "layer", "server", "error", err)
	}

	logger.Info("Web server stopped", "layer", "server")
	return nil
}
