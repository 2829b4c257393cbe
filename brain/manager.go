package brain

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/onnwee/markov-chatter/markov"
	"github.com/onnwee/markov-chatter/telemetry"
)

// Manager applies the durability policy on top of a Store: loading never
// fails hard and save failures never block message processing.
// It is not safe for concurrent use; bot.Bot calls it under its lock.
type Manager struct {
	store    Store
	newTable func() *markov.Table

	lastSave    time.Time
	lastSaveErr error
}

// NewManager wraps store. newTable builds the empty table used on a fresh start
// or after a failed load; nil means markov.NewTable().
func NewManager(store Store, newTable func() *markov.Table) *Manager {
	if newTable == nil {
		newTable = func() *markov.Table { return markov.NewTable() }
	}
	return &Manager{store: store, newTable: newTable}
}

// Backend returns the store name.
func (m *Manager) Backend() string { return m.store.Name() }

// Load hydrates a table from the store. The returned table is never nil: a
// missing brain yields an empty table and a nil error; an unreadable or
// malformed brain yields an empty table and the error, already logged.
func (m *Manager) Load(ctx context.Context) (*markov.Table, error) {
	t := m.newTable()
	data, err := m.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		slog.Info("no existing brain found; starting empty", slog.String("backend", m.store.Name()), slog.String("component", "brain"))
		return t, nil
	}
	if err != nil {
		telemetry.Inc(telemetry.BrainLoadFailed)
		slog.Error("failed to load brain; starting empty", slog.String("backend", m.store.Name()), slog.Any("err", err), slog.String("component", "brain"))
		return t, err
	}
	t.Replace(data)
	telemetry.SetBrainSize(t.Len(), t.SuccessorCount())
	slog.Info("brain loaded", slog.String("backend", m.store.Name()), slog.Int("keys", t.Len()), slog.String("component", "brain"))
	return t, nil
}

// Save writes a snapshot of t. Errors are logged and counted before being
// returned; callers are free to ignore them.
func (m *Manager) Save(ctx context.Context, t *markov.Table) error {
	var err error
	telemetry.TimeFunc(telemetry.BrainSaveDuration, func() {
		err = m.store.Save(ctx, t.Snapshot())
	})
	m.lastSaveErr = err
	if err != nil {
		telemetry.Inc(telemetry.BrainSaveFailed)
		slog.Error("failed to save brain", slog.String("backend", m.store.Name()), slog.Any("err", err), slog.String("component", "brain"))
		return err
	}
	m.lastSave = time.Now().UTC()
	telemetry.SetBrainSize(t.Len(), t.SuccessorCount())
	slog.Debug("brain saved", slog.String("backend", m.store.Name()), slog.Int("keys", t.Len()), slog.String("component", "brain"))
	return nil
}

// LastSave reports when the last successful save happened and the error of
// the most recent attempt.
func (m *Manager) LastSave() (time.Time, error) { return m.lastSave, m.lastSaveErr }
