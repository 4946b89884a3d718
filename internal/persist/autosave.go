// Package persist keeps a session's form configuration in local storage and
// hands the document back to the host page on an explicit save.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"inductionlog/internal/domain"
	"inductionlog/internal/ingest"
	"inductionlog/internal/metrics"
	"inductionlog/internal/session"
	"inductionlog/internal/storage"
)

const (
	// LocalStorageKey holds the autosaved FormConfig.
	LocalStorageKey = "teacher-induction-log-data"
	// DefaultDelay is the quiet period before a change is written.
	DefaultDelay = 3000 * time.Millisecond
)

// Autosaver mirrors a session into a Store. Store failures are logged and
// never returned.
type Autosaver struct {
	Store storage.Store
	Key   string
	// LogID names the log being edited. It is saved with the snapshot and a
	// snapshot of another log is never restored.
	LogID   string
	Delay   time.Duration
	Clock   Clock
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Snapshot is a saved configuration and the log it was taken from.
type Snapshot struct {
	Config domain.FormConfig
	LogID  string
}

type storedSnapshot struct {
	domain.FormConfig
	LogID string `json:"logId,omitempty"`
}

func (a *Autosaver) logger() *zap.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return zap.NewNop()
}

func (a *Autosaver) key() string {
	if a.Key != "" {
		return a.Key
	}
	return LocalStorageKey
}

func (a *Autosaver) delay() time.Duration {
	if a.Delay > 0 {
		return a.Delay
	}
	return DefaultDelay
}

// Start restores any saved snapshot into s, then writes s to the store
// once it has been quiet for the configured delay after a change. The
// returned stop func, or cancelling ctx, unsubscribes and drops a pending
// write.
func (a *Autosaver) Start(ctx context.Context, s *session.Session) (stop func()) {
	a.Restore(ctx, s)

	deb := NewDebouncer(a.Clock, a.delay())
	unsubscribe := s.Subscribe(func(cfg domain.FormConfig) {
		deb.Debounce(func() { a.SaveNow(ctx, cfg) })
	})

	done := make(chan struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() {
			unsubscribe()
			deb.Cancel()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()
	return stop
}

// Restore loads the saved snapshot into s. It reports whether one was applied.
func (a *Autosaver) Restore(ctx context.Context, s *session.Session) bool {
	snap, ok := a.LoadSnapshot(ctx)
	if !ok {
		return false
	}
	if a.LogID != "" && snap.LogID != a.LogID {
		a.logger().Warn("Saved form data belongs to another log",
			zap.String("log_id", a.LogID), zap.String("saved_log_id", snap.LogID))
		return false
	}
	s.Replace(snap.Config)
	a.logger().Info("Form data loaded from local storage")
	return true
}

// Load reads the saved configuration without applying it.
func (a *Autosaver) Load(ctx context.Context) (domain.FormConfig, bool) {
	snap, ok := a.LoadSnapshot(ctx)
	return snap.Config, ok
}

// LoadSnapshot reads the saved configuration and the log it belongs to.
func (a *Autosaver) LoadSnapshot(ctx context.Context) (Snapshot, bool) {
	b, err := a.Store.Get(ctx, a.key())
	if errors.Is(err, storage.ErrNotFound) {
		return Snapshot{}, false
	}
	if err != nil {
		a.logger().Error("Error loading form data from local storage", zap.Error(err))
		return Snapshot{}, false
	}
	snap, err := decodeSnapshot(b)
	if err != nil {
		a.logger().Error("Error loading form data from local storage", zap.Error(err))
		return Snapshot{}, false
	}
	return snap, true
}

// SaveNow writes cfg immediately.
func (a *Autosaver) SaveNow(ctx context.Context, cfg domain.FormConfig) bool {
	cfg.Data = cfg.Data.Normalize()
	b, err := json.Marshal(storedSnapshot{FormConfig: cfg, LogID: a.LogID})
	if err == nil {
		err = a.Store.Set(ctx, a.key(), b)
	}
	a.Metrics.AutosaveWrite(err == nil)
	if err != nil {
		a.logger().Error("Error saving form data to local storage", zap.Error(err))
		return false
	}
	a.logger().Info("Form data auto-saved", zap.Time("at", time.Now()))
	return true
}

// ClearSavedData removes the saved snapshot.
func (a *Autosaver) ClearSavedData(ctx context.Context) {
	if err := a.Store.Delete(ctx, a.key()); err != nil {
		a.logger().Error("Error clearing saved form data", zap.Error(err))
		return
	}
	a.logger().Info("Saved form data cleared")
}

// DecodeSnapshot parses a saved FormConfig. The document goes through the
// same legacy-column upgrade as ingestion.
func DecodeSnapshot(b []byte) (domain.FormConfig, error) {
	snap, err := decodeSnapshot(b)
	return snap.Config, err
}

func decodeSnapshot(b []byte) (Snapshot, error) {
	var raw struct {
		UserRole string             `json:"userRole"`
		Options  domain.FormOptions `json:"options"`
		Editable domain.Editability `json:"editable"`
		Data     json.RawMessage    `json:"data"`
		LogID    string             `json:"logId"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Snapshot{}, err
	}
	data, err := ingest.DecodeFormData(raw.Data)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Config: domain.FormConfig{
			UserRole: domain.ParseRole(raw.UserRole),
			Options:  raw.Options,
			Editable: raw.Editable,
			Data:     data,
		},
		LogID: raw.LogID,
	}, nil
}
