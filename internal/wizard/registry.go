package wizard

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHandleNotFound is returned for unknown or expired handles.
var ErrHandleNotFound = errors.New("wizard: assessment handle not found")

// ErrTokenMismatch is returned when the access token does not belong to the
// handle.
var ErrTokenMismatch = errors.New("wizard: token does not match handle")

// Handle identifies a controller held by a Registry. The token is handed to
// the client once and must accompany every later request.
type Handle struct {
	ID    uuid.UUID `json:"handle"`
	Token string    `json:"token"`
}

type entry struct {
	mu      sync.Mutex // held while a request uses ctrl
	ctrl    *Controller
	token   string
	touched time.Time // guarded by Registry.mu
}

// Registry holds the in-progress controllers of the HTTP layer. Each
// controller is used by at most one caller at a time.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	ttl     time.Duration
	now     func() time.Time
}

// NewRegistry returns an empty registry. Controllers untouched for longer than
// ttl are dropped by Sweep; ttl <= 0 disables expiry.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		entries: make(map[uuid.UUID]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add stores ctrl under a fresh handle.
func (r *Registry) Add(ctrl *Controller) (Handle, error) {
	// 32 bytes → 64 hex chars.
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return Handle{}, fmt.Errorf("wizard: generate token: %w", err)
	}
	h := Handle{ID: uuid.New(), Token: hex.EncodeToString(tokenBytes)}

	r.mu.Lock()
	r.entries[h.ID] = &entry{ctrl: ctrl, token: h.Token, touched: r.now()}
	r.mu.Unlock()
	return h, nil
}

// Authorize checks that token belongs to id.
func (r *Registry) Authorize(id uuid.UUID, token string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	if subtle.ConstantTimeCompare([]byte(e.token), []byte(token)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}

// With runs fn with exclusive access to the controller behind id and returns
// fn's error.
func (r *Registry) With(id uuid.UUID, fn func(*Controller) error) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		e.touched = r.now()
	}
	r.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.ctrl)
}

// Remove forgets id. Unknown ids are ignored.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Len returns the number of held controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops every controller idle for longer than the ttl and returns how
// many were dropped.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.touched.Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	return n
}
