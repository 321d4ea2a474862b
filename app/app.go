// Package app wires configuration, launcher, notifier and webhook handler
// into a runnable pushdeploy service.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/oar-cd/pushdeploy/config"
	"github.com/oar-cd/pushdeploy/launcher"
	"github.com/oar-cd/pushdeploy/notify"
	"github.com/oar-cd/pushdeploy/webhook"
)

var (
	// Version is set at build time via -ldflags
	Version = "dev"
)

type App struct {
	Config   *config.Config
	Notifier *notify.Notifier
	Launcher *launcher.Launcher
	Handler  *webhook.Handler
	logger   *slog.Logger
}

// New builds the service from an already validated config
func New(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	var sink notify.Sink
	if cfg.NotificationsEnabled() {
		sink = notify.NewTelegramSink(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.TelegramChatID, &http.Client{})
	} else {
		logger.Warn("Telegram credentials not set, notifications disabled",
			"layer", "app",
			"operation", "initialize")
	}
	notifier := notify.New(sink, cfg.NotifyTimeout, logger)

	l := launcher.New(launcher.Options{
		ProjectsRoot:  cfg.ProjectsRoot,
		ScriptName:    cfg.ScriptName,
		TailLines:     cfg.OutputTailLines,
		NotifyOnStart: cfg.NotifyOnStart,
		Logger:        logger,
	}, notifier)

	handler := webhook.NewHandler(webhook.Options{
		Secret:       []byte(cfg.WebhookSecret),
		TargetBranch: cfg.TargetBranch,
		Logger:       logger,
	}, l, notifier)

	return &App{
		Config:   cfg,
		Notifier: notifier,
		Launcher: l,
		Handler:  handler,
		logger:   logger.With("layer", "app"),
	}
}

// Routes returns the HTTP handler for the service
func (a *App) Routes() http.Handler {
	return a.Handler.Routes()
}

// Drain waits for running deploys until ctx expires, then for the
// notifications already queued.
func (a *App) Drain(ctx context.Context) error {
	err := a.Launcher.Wait(ctx)
	a.Notifier.Wait()
	if err != nil {
		return err
	}
	a.logger.Info("All deploys finished", "operation", "drain")
	return nil
}
