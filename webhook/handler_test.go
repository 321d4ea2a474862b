package webhook_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oar-cd/pushdeploy/domain"
	"github.com/oar-cd/pushdeploy/launcher"
	"github.com/oar-cd/pushdeploy/testing/mocks"
	"github.com/oar-cd/pushdeploy/webhook"
)

var testSecret = []byte("s3cret")

func newTestHandler() (*webhook.Handler, *mocks.MockLauncher, *mocks.MockNotifier) {
	return newTestHandlerWithLogs(io.Discard)
}

func newTestHandlerWithLogs(w io.Writer) (*webhook.Handler, *mocks.MockLauncher, *mocks.MockNotifier) {
	l := &mocks.MockLauncher{}
	n := &mocks.MockNotifier{}
	h := webhook.NewHandler(webhook.Options{
		Secret:       testSecret,
		TargetBranch: "main",
		Logger:       slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}, l, n)
	return h, l, n
}

type logRecord struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

func decodeLogs(t *testing.T, buf *bytes.Buffer) []logRecord {
	t.Helper()
	var records []logRecord
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var record logRecord
		require.NoError(t, json.Unmarshal([]byte(line), &record), line)
		records = append(records, record)
	}
	return records
}

func messages(records []logRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Msg)
	}
	return out
}

func countLevel(records []logRecord, level string) int {
	n := 0
	for _, r := range records {
		if r.Level == level {
			n++
		}
	}
	return n
}

func pushBody(repo, ref string) []byte {
	body, _ := json.Marshal(map[string]any{
		"ref":        ref,
		"after":      "abc123",
		"repository": map[string]string{"name": repo},
		"pusher":     map[string]string{"name": "octocat"},
	})
	return body
}

func deliver(h *webhook.Handler, event string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/deploy", bytes.NewReader(body))
	req.Header.Set(webhook.HeaderEvent, event)
	req.Header.Set(webhook.HeaderDelivery, "delivery-1")
	if signature != "" {
		req.Header.Set(webhook.HeaderSignature, signature)
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestDeploy_Started(t *testing.T) {
	h, l, n := newTestHandler()
	run := domain.DeploymentRun{ID: uuid.New(), PID: 123}
	l.On("Launch", "api").Return(launcher.Result{Status: launcher.ResultStarted, Run: run})

	body := pushBody("api", "refs/heads/main")
	rec := deliver(h, webhook.EventPush, body, webhook.Sign(body, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "deploy started", out["status"])
	assert.Equal(t, "api", out["repo"])
	assert.Equal(t, run.ID.String(), out["run_id"])
	l.AssertExpectations(t)
	n.AssertNotCalled(t, "Notify", mock.Anything)
}

func TestDeploy_LogsStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		body     []byte
		sign     bool
		launch   bool
		expected []string
	}{
		{
			name:     "started",
			event:    webhook.EventPush,
			body:     pushBody("api", "refs/heads/main"),
			sign:     true,
			launch:   true,
			expected: []string{"Webhook received", "Webhook signature verified", "Deploy started"},
		},
		{
			name:     "ignored branch",
			event:    webhook.EventPush,
			body:     pushBody("api", "refs/heads/develop"),
			sign:     true,
			expected: []string{"Webhook received", "Webhook signature verified", "Event ignored"},
		},
		{
			name:     "ignored event",
			event:    "issues",
			body:     []byte(`{"action":"opened"}`),
			sign:     true,
			expected: []string{"Webhook received", "Webhook signature verified", "Event ignored"},
		},
		{
			name:     "rejected",
			event:    webhook.EventPush,
			body:     pushBody("api", "refs/heads/main"),
			sign:     false,
			expected: []string{"Webhook received", "Invalid webhook signature"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			h, l, _ := newTestHandlerWithLogs(&logs)
			if tt.launch {
				l.On("Launch", "api").Return(launcher.Result{Status: launcher.ResultStarted})
			}
			signature := webhook.Sign(tt.body, []byte("wrong"))
			if tt.sign {
				signature = webhook.Sign(tt.body, testSecret)
			}

			deliver(h, tt.event, tt.body, signature)

			assert.Equal(t, tt.expected, messages(decodeLogs(t, &logs)))
		})
	}
}

func TestDeploy_StartedDoesNotNotify(t *testing.T) {
	// The launcher sends the start notification so it is ordered before
	// the run's terminal outcome
	h, l, n := newTestHandler()
	l.On("Launch", "api").Return(launcher.Result{Status: launcher.ResultStarted})

	body := pushBody("api", "refs/heads/main")
	rec := deliver(h, webhook.EventPush, body, webhook.Sign(body, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	n.AssertNotCalled(t, "Notify", mock.Anything)
}

func TestDeploy_InvalidSignature(t *testing.T) {
	tests := []struct {
		name      string
		signature func(body []byte) string
	}{
		{name: "missing", signature: func([]byte) string { return "" }},
		{name: "wrong secret", signature: func(body []byte) string { return webhook.Sign(body, []byte("nope")) }},
		{name: "garbage", signature: func([]byte) string { return "sha256=zz" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			h, l, n := newTestHandlerWithLogs(&logs)
			body := pushBody("api", "refs/heads/main")

			rec := deliver(h, webhook.EventPush, body, tt.signature(body))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			l.AssertNotCalled(t, "Launch", mock.Anything)
			n.AssertNotCalled(t, "Notify", mock.Anything)

			records := decodeLogs(t, &logs)
			assert.Equal(t, 1, countLevel(records, "WARN"), "records: %v", messages(records))
			assert.Equal(t, 0, countLevel(records, "ERROR"))
		})
	}
}

func TestDeploy_Ping(t *testing.T) {
	h, l, _ := newTestHandler()
	body := []byte(`{"zen":"Keep it logically awesome."}`)

	rec := deliver(h, webhook.EventPing, body, webhook.Sign(body, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", decode(t, rec)["status"])
	l.AssertNotCalled(t, "Launch", mock.Anything)
}

func TestDeploy_Ignored(t *testing.T) {
	tests := []struct {
		name  string
		event string
		body  []byte
	}{
		{name: "other branch", event: webhook.EventPush, body: pushBody("api", "refs/heads/develop")},
		{name: "tag", event: webhook.EventPush, body: pushBody("api", "refs/tags/main")},
		{name: "other event", event: "issues", body: []byte(`{"action":"opened"}`)},
		{name: "other event with invalid json", event: "issues", body: []byte(`not json`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, l, n := newTestHandler()

			rec := deliver(h, tt.event, tt.body, webhook.Sign(tt.body, testSecret))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "ignored", decode(t, rec)["status"])
			l.AssertNotCalled(t, "Launch", mock.Anything)
			n.AssertNotCalled(t, "Notify", mock.Anything)
		})
	}
}

func TestDeploy_InvalidPushPayload(t *testing.T) {
	h, l, _ := newTestHandler()
	body := []byte(`{"ref":`)

	rec := deliver(h, webhook.EventPush, body, webhook.Sign(body, testSecret))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	l.AssertNotCalled(t, "Launch", mock.Anything)
}

func TestDeploy_MissingRepository(t *testing.T) {
	h, l, n := newTestHandler()
	n.On("Notify", domain.RepositoryMissing()).Return()
	body := pushBody("", "refs/heads/main")

	rec := deliver(h, webhook.EventPush, body, webhook.Sign(body, testSecret))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	l.AssertNotCalled(t, "Launch", mock.Anything)
	n.AssertExpectations(t)
}

func TestDeploy_LaunchFailures(t *testing.T) {
	tests := []struct {
		name    string
		result  launcher.Result
		outcome domain.Outcome
		code    int
	}{
		{
			name:    "script missing",
			result:  launcher.Result{Status: launcher.ResultScriptNotFound, Err: launcher.ErrScriptNotFound},
			outcome: domain.ScriptMissing("api"),
			code:    http.StatusNotFound,
		},
		{
			name:    "directory missing",
			result:  launcher.Result{Status: launcher.ResultDirectoryNotFound, Err: launcher.ErrDirectoryNotFound},
			outcome: domain.DirectoryMissing("api"),
			code:    http.StatusNotFound,
		},
		{
			name:    "launch failed",
			result:  launcher.Result{Status: launcher.ResultLaunchFailed, Err: errors.New("exec format error")},
			outcome: domain.LaunchFailed("api", "exec format error"),
			code:    http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, l, n := newTestHandler()
			l.On("Launch", "api").Return(tt.result)
			n.On("Notify", tt.outcome).Return().Once()
			body := pushBody("api", "refs/heads/main")

			rec := deliver(h, webhook.EventPush, body, webhook.Sign(body, testSecret))

			assert.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
			n.AssertExpectations(t)
			n.AssertNumberOfCalls(t, "Notify", 1)
		})
	}
}

func TestDeploy_BodyTooLarge(t *testing.T) {
	h, l, _ := newTestHandler()
	body := bytes.Repeat([]byte("a"), webhook.MaxBodySize+1)

	rec := deliver(h, webhook.EventPush, body, webhook.Sign(body, testSecret))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	l.AssertNotCalled(t, "Launch", mock.Anything)
}

func TestDeploy_MethodNotAllowed(t *testing.T) {
	h, _, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/deploy", nil)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDeploy_LauncherPanicIsRecovered(t *testing.T) {
	h, l, _ := newTestHandler()
	l.On("Launch", "api").Run(func(mock.Arguments) { panic("boom") }).Return(launcher.Result{})
	body := pushBody("api", "refs/heads/main")

	rec := deliver(h, webhook.EventPush, body, webhook.Sign(body, testSecret))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
	assert.Equal(t, "ok", decode(t, rec)["status"])
}
