// Package session maps session identifiers to their result stores.
package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"vidbatch/internal/config"
	"vidbatch/internal/observability"
	"vidbatch/internal/storage"

	"github.com/google/uuid"
)

// Session owns the result store of one client and serializes its batches.
type Session struct {
	ID    string
	Store *storage.Store

	reg     *Registry
	running sync.Mutex
}

// TryBegin marks the session as running a batch. It reports false when a
// batch is already running; the caller must call End after a true result.
func (s *Session) TryBegin() bool {
	if !s.running.TryLock() {
		return false
	}

	s.reg.batchStarted()

	return true
}

// End marks the running batch as finished.
func (s *Session) End() {
	s.reg.batchFinished()
	s.running.Unlock()
}

// Registry holds all sessions of the process.
type Registry struct {
	log     *slog.Logger
	cfg     *config.Config
	metrics *observability.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session

	batchMu sync.Mutex
	active  int
	idle    chan struct{} // closed when active drops to zero
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) *Registry {
	return &Registry{
		log:      log.With(slog.String("package", "session")),
		cfg:      cfg,
		metrics:  metrics,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session with the given ID. It never creates one.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]

	return sess, ok
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Resolve returns the session for id, or a new session when id is unknown.
// A new session always gets a freshly generated ID: an ID presented by a
// client but unknown to this process (for example after a restart) may name
// a directory that still holds files, and a new store would number its
// outputs from 1 again. The boolean reports whether a session was created.
func (r *Registry) Resolve(ctx context.Context, id string) (*Session, bool) {
	if sess, ok := r.Get(id); ok {
		return sess, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	newID := uuid.NewString()

	sess := &Session{
		ID:    newID,
		Store: storage.New(r.log, r.cfg, r.metrics, filepath.Join(r.cfg.Dir.Downloads, newID)),
		reg:   r,
	}

	r.sessions[newID] = sess
	r.metrics.SetSessions(len(r.sessions))

	r.log.InfoContext(ctx, "session created", slog.String("session_id", newID), slog.String("requested_id", id))

	return sess, true
}

func (r *Registry) batchStarted() {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()

	if r.active == 0 {
		r.idle = make(chan struct{})
	}

	r.active++
}

func (r *Registry) batchFinished() {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()

	r.active--
	if r.active == 0 {
		close(r.idle)
	}
}

// Wait blocks until no session runs a batch or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	r.batchMu.Lock()

	if r.active == 0 {
		r.batchMu.Unlock()

		return nil
	}

	idle := r.idle
	r.batchMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
