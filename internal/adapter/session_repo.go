package adapter

import (
	"bookstore-web/internal/core"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	errNotFound = errors.New("not found")
	errConflict = errors.New("conflict")
	errFull     = errors.New("session limit reached")
)

// Session is one visitor: their storefront and when they were last seen.
type Session struct {
	ID         uuid.UUID
	Storefront *core.Storefront
	CreatedAt  time.Time
	LastSeen   time.Time
}

// SessionRepo keeps visitor sessions in memory.
type SessionRepo struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Session

	max     int
	now     func() time.Time
	onOpen  func()
	onClose func()
}

type SessionRepoOption func(*SessionRepo)

// WithSessionHooks is told whenever a session is added or dropped.
func WithSessionHooks(onOpen, onClose func()) SessionRepoOption {
	return func(r *SessionRepo) {
		r.onOpen = onOpen
		r.onClose = onClose
	}
}

// WithMaxSessions caps how many sessions are kept at once. Zero means no cap.
func WithMaxSessions(n int) SessionRepoOption {
	return func(r *SessionRepo) { r.max = n }
}

func withClock(now func() time.Time) SessionRepoOption {
	return func(r *SessionRepo) { r.now = now }
}

func NewSessionRepo(opts ...SessionRepoOption) *SessionRepo {
	r := &SessionRepo{
		byID:    make(map[uuid.UUID]*Session),
		now:     time.Now,
		onOpen:  func() {},
		onClose: func() {},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Insert stores sf under id, which must not be taken yet.
func (r *SessionRepo) Insert(_ context.Context, id uuid.UUID, sf *core.Storefront) (Session, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		return Session{}, errConflict
	}
	if r.max > 0 && len(r.byID) >= r.max {
		return Session{}, errFull
	}
	s := &Session{ID: id, Storefront: sf, CreatedAt: now, LastSeen: now}
	r.byID[id] = s
	r.onOpen()
	return *s, nil
}

// Touch returns the session and marks it as seen now.
func (r *SessionRepo) Touch(_ context.Context, id uuid.UUID) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return Session{}, errNotFound
	}
	s.LastSeen = r.now()
	return *s, nil
}

// Delete ends a session, as when the visitor signs out.
func (r *SessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return errNotFound
	}
	delete(r.byID, id)
	r.onClose()
	return nil
}

func (r *SessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Sweep drops sessions not seen for longer than idle and returns how many.
func (r *SessionRepo) Sweep(_ context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.byID {
		if s.LastSeen.Before(cutoff) {
			delete(r.byID, id)
			r.onClose()
			n++
		}
	}
	return n
}

// RunSweeper sweeps every interval until ctx is done.
func (r *SessionRepo) RunSweeper(ctx context.Context, interval, idle time.Duration, onSweep func(n int)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(ctx, idle); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
