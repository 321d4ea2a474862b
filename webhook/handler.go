// Package webhook authenticates GitHub push webhooks and turns them into
// deploy launches.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/go-github/v66/github"
	"github.com/google/uuid"

	"github.com/oar-cd/pushdeploy/domain"
	"github.com/oar-cd/pushdeploy/launcher"
)

// MaxBodySize matches the largest payload GitHub delivers
const MaxBodySize = 25 << 20

const (
	HeaderSignature = "X-Hub-Signature-256"
	HeaderEvent     = "X-GitHub-Event"
	HeaderDelivery  = "X-GitHub-Delivery"
)

// Launcher starts a deploy for a repository without waiting for it
type Launcher interface {
	Launch(repository string) launcher.Result
}

// Notifier reports outcomes known before the response is written
type Notifier interface {
	Notify(outcome domain.Outcome)
}

type Options struct {
	Secret       []byte
	TargetBranch string
	Logger       *slog.Logger
}

type Handler struct {
	secret       []byte
	targetBranch string
	launcher     Launcher
	notifier     Notifier
	logger       *slog.Logger
}

func NewHandler(opts Options, l Launcher, n Notifier) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		secret:       opts.Secret,
		targetBranch: domain.NormalizeBranch(opts.TargetBranch),
		launcher:     l,
		notifier:     n,
		logger:       logger.With("layer", "webhook"),
	}
}

// Routes returns the router serving /deploy and /health
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)

	r.Post("/deploy", h.Deploy)
	r.Get("/health", h.Health)

	return r
}

// Health answers liveness probes
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Deploy handles one webhook delivery
func (h *Handler) Deploy(w http.ResponseWriter, r *http.Request) {
	deliveryID := github.DeliveryID(r)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	eventKind := github.WebHookType(r)
	logger := h.logger.With(
		"operation", "deploy",
		"delivery_id", deliveryID,
		"event", eventKind,
		"remote_addr", r.RemoteAddr)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			logger.Warn("Webhook body too large", "limit", maxErr.Limit)
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		logger.Warn("Failed to read webhook body", "error", err)
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	logger.Info("Webhook received", "bytes", len(body))

	if !Verify(body, r.Header.Get(HeaderSignature), h.secret) {
		logger.Warn("Invalid webhook signature")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	logger.Info("Webhook signature verified")

	if eventKind == EventPing {
		logger.Info("Webhook ping received")
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
		return
	}

	var payload domain.PushPayload
	if eventKind == EventPush {
		payload, err = DecodePush(body)
		if err != nil {
			logger.Warn("Invalid push payload", "error", err)
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}

	decision := Classify(eventKind, payload, h.targetBranch)
	if decision != DecisionDeploy {
		logger.Info("Event ignored",
			"reason", decision.String(),
			"ref", payload.Ref,
			"repository", payload.Repository)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	logger = logger.With("repository", payload.Repository, "after", payload.After, "pusher", payload.Pusher)

	if payload.Repository == "" {
		logger.Error("Push payload has no repository name")
		h.notifier.Notify(domain.RepositoryMissing())
		writeError(w, http.StatusBadRequest, "repository not found in payload")
		return
	}

	result := h.launcher.Launch(payload.Repository)
	switch result.Status {
	case launcher.ResultStarted:
		logger.Info("Deploy started", "run_id", result.Run.ID.String(), "pid", result.Run.PID)
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "deploy started",
			"repo":   payload.Repository,
			"run_id": result.Run.ID.String(),
		})
	case launcher.ResultDirectoryNotFound:
		h.notifier.Notify(domain.DirectoryMissing(payload.Repository))
		writeError(w, http.StatusNotFound, "project directory not found")
	case launcher.ResultScriptNotFound:
		h.notifier.Notify(domain.ScriptMissing(payload.Repository))
		writeError(w, http.StatusNotFound, "deploy script not found")
	default:
		reason := "unknown launch failure"
		if result.Err != nil {
			reason = result.Err.Error()
		}
		h.notifier.Notify(domain.LaunchFailed(payload.Repository, reason))
		writeError(w, http.StatusInternalServerError, "failed to start deploy")
	}
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		}()
		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "layer", "webhook", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
