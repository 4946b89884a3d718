package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"inductionlog/internal/config"
	"inductionlog/internal/db"
	"inductionlog/internal/domain"
	"inductionlog/internal/engine"
	"inductionlog/internal/events"
	"inductionlog/internal/migrate"
)

type received struct {
	headers http.Header
	body    webhookEvent
}

type hookRecorder struct {
	mu     sync.Mutex
	got    []received
	status int
}

func (h *hookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var evt webhookEvent
	_ = json.Unmarshal(data, &evt)
	h.mu.Lock()
	defer h.mu.Unlock()
	status := h.status
	if status == 0 {
		status = http.StatusNoContent
	}
	if status < 300 {
		h.got = append(h.got, received{headers: r.Header.Clone(), body: evt})
	}
	w.WriteHeader(status)
}

func (h *hookRecorder) events() []received {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]received(nil), h.got...)
}

func newWebhookEngine(t *testing.T) engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	e := engine.New(conn, config.Default())
	_, err = e.CreateLog(context.Background(), engine.CreateLogOptions{ID: "log-1", ActorID: "admin-1"})
	require.NoError(t, err)
	return e
}

func setInductee(t *testing.T, e engine.Engine, value string) {
	t.Helper()
	_, err := e.SetField(context.Background(), engine.FieldUpdate{
		LogID:   "log-1",
		Ref:     domain.FieldRef{Section: "coverPage", Field: "inductee"},
		Value:   value,
		Role:    domain.RoleAdmin,
		ActorID: "admin-1",
	})
	require.NoError(t, err)
}

func TestWebhookDeliversNewEventsOnly(t *testing.T) {
	e := newWebhookEngine(t)
	rec := &hookRecorder{}
	hook := httptest.NewServer(rec)
	defer hook.Close()

	d := NewWebhookDispatcher(e.Repo, []config.WebhookConfig{{URL: hook.URL, Secret: "s3cret"}}, nil)
	// First pass pins the cursor past the seed event.
	d.DispatchAll(context.Background())
	assert.Empty(t, rec.events())

	setInductee(t, e, "Jane Doe")
	d.DispatchAll(context.Background())

	got := rec.events()
	require.Len(t, got, 1)
	assert.Equal(t, events.FieldSet, got[0].body.Type)
	assert.Equal(t, "log-1", got[0].body.LogID)
	assert.Equal(t, events.FieldSet, got[0].headers.Get("X-InductionLog-Event"))
	assert.NotEmpty(t, got[0].headers.Get("X-InductionLog-Delivery"))

	raw, err := json.Marshal(got[0].body)
	require.NoError(t, err)
	assert.Equal(t, SignPayload("s3cret", raw), got[0].headers.Get("X-InductionLog-Signature"))

	d.DispatchAll(context.Background())
	assert.Len(t, rec.events(), 1)
}

func TestWebhookEventFilter(t *testing.T) {
	e := newWebhookEngine(t)
	rec := &hookRecorder{}
	hook := httptest.NewServer(rec)
	defer hook.Close()

	d := NewWebhookDispatcher(e.Repo, []config.WebhookConfig{{URL: hook.URL, Events: []string{events.LogSubmitted}}}, nil)
	d.DispatchAll(context.Background())
	setInductee(t, e, "Jane Doe")
	d.DispatchAll(context.Background())
	assert.Empty(t, rec.events())
}

func TestWebhookRetriesFailedDelivery(t *testing.T) {
	e := newWebhookEngine(t)
	rec := &hookRecorder{status: http.StatusBadGateway}
	hook := httptest.NewServer(rec)
	defer hook.Close()

	d := NewWebhookDispatcher(e.Repo, []config.WebhookConfig{{URL: hook.URL}}, nil)
	d.DispatchAll(context.Background())
	setInductee(t, e, "Jane Doe")
	d.DispatchAll(context.Background())
	assert.Empty(t, rec.events())

	rec.mu.Lock()
	rec.status = http.StatusOK
	rec.mu.Unlock()
	d.DispatchAll(context.Background())
	assert.Len(t, rec.events(), 1)
}

func TestWebhookDisabledHookIsSkipped(t *testing.T) {
	e := newWebhookEngine(t)
	rec := &hookRecorder{}
	hook := httptest.NewServer(rec)
	defer hook.Close()

	off := false
	d := NewWebhookDispatcher(e.Repo, []config.WebhookConfig{{URL: hook.URL, Enabled: &off}}, nil)
	d.DispatchAll(context.Background())
	setInductee(t, e, "Jane Doe")
	d.DispatchAll(context.Background())
	assert.Empty(t, rec.events())
}

func TestWebhookRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
	e := newWebhookEngine(t)

	d := NewWebhookDispatcher(e.Repo, []config.WebhookConfig{{URL: "http://127.0.0.1:1/never"}}, nil)
	d.Interval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestEventFilterPrefixes(t *testing.T) {
	f := newEventFilter([]string{"log.*", events.APIKeyCreated})
	assert.True(t, f.match(events.FieldSet))
	assert.True(t, f.match(events.LogSubmitted))
	assert.True(t, f.match(events.APIKeyCreated))
	assert.False(t, f.match("api_key.revoked"))

	assert.True(t, newEventFilter(nil).match("anything"))
	assert.True(t, newEventFilter([]string{" ", "*"}).match("anything"))
}
