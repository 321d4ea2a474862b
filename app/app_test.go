package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oar-cd/pushdeploy/config"
	"github.com/oar-cd/pushdeploy/launcher"
	"github.com/oar-cd/pushdeploy/webhook"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func newTestApp(t *testing.T, env mapEnv) *App {
	t.Helper()
	cfg, err := config.NewConfigWithEnv("", env)
	require.NoError(t, err)
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNew_NotificationsDisabledWithoutCredentials(t *testing.T) {
	a := newTestApp(t, mapEnv{"WEBHOOK_SECRET": "s3cret", "PROJECTS_ROOT": t.TempDir()})
	assert.False(t, a.Notifier.Enabled())
}

func TestNew_NotificationsEnabledWithCredentials(t *testing.T) {
	a := newTestApp(t, mapEnv{
		"WEBHOOK_SECRET": "s3cret",
		"PROJECTS_ROOT":  t.TempDir(),
		"TG_BOT_TOKEN":   "123:abc",
		"TG_CHAT_ID":     "-42",
	})
	assert.True(t, a.Notifier.Enabled())
}

func TestApp_EndToEndDeploy(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "api")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	marker := filepath.Join(dir, "deployed")
	script := "#!/bin/sh\necho deploying\ntouch " + marker + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.sh"), []byte(script), 0o755))

	var mu sync.Mutex
	var messages []string
	telegram := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		messages = append(messages, r.PostForm.Get("text"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer telegram.Close()

	a := newTestApp(t, mapEnv{
		"WEBHOOK_SECRET":  "s3cret",
		"PROJECTS_ROOT":   root,
		"TG_BOT_TOKEN":    "123:abc",
		"TG_CHAT_ID":      "-42",
		"TG_API_URL":      telegram.URL,
		"NOTIFY_ON_START": "false",
	})

	body := []byte(`{"ref":"refs/heads/main","repository":{"name":"api"}}`)
	req := httptest.NewRequest(http.MethodPost, "/deploy", strings.NewReader(string(body)))
	req.Header.Set(webhook.HeaderEvent, webhook.EventPush)
	req.Header.Set(webhook.HeaderSignature, webhook.Sign(body, []byte("s3cret")))
	rec := httptest.NewRecorder()

	a.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Drain(ctx))

	assert.FileExists(t, marker)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "DEPLOY SUCCEEDED")
	assert.Contains(t, messages[0], "deploying")
}

func TestApp_DrainTimesOut(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "slow")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.sh"), []byte("#!/bin/sh\nsleep 2\n"), 0o755))

	a := newTestApp(t, mapEnv{"WEBHOOK_SECRET": "s3cret", "PROJECTS_ROOT": root})
	result := a.Launcher.Launch("slow")
	require.NoError(t, result.Err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Drain(ctx), context.DeadlineExceeded)

	wait, cancelWait := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelWait()
	assert.NoError(t, a.Launcher.Wait(wait))
}

func TestApp_StartNotificationArrivesFirst(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "api")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.sh"), []byte("#!/bin/sh\nexit 0\n"), 0o755))

	var mu sync.Mutex
	var messages []string
	telegram := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		messages = append(messages, r.PostForm.Get("text"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer telegram.Close()

	a := newTestApp(t, mapEnv{
		"WEBHOOK_SECRET": "s3cret",
		"PROJECTS_ROOT":  root,
		"TG_BOT_TOKEN":   "123:abc",
		"TG_CHAT_ID":     "-42",
		"TG_API_URL":     telegram.URL,
	})

	const pushes = 5
	for i := 0; i < pushes; i++ {
		require.Equal(t, launcher.ResultStarted, a.Launcher.Launch("api").Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Drain(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, messages, 2*pushes)
	started := 0
	for _, message := range messages {
		if strings.Contains(message, "DEPLOY STARTED") {
			started++
			continue
		}
		require.Contains(t, message, "DEPLOY SUCCEEDED")
		// Every terminal message follows its own start message
		assert.Greater(t, started, 0)
		started--
	}
}
