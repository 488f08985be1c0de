// Package session holds per-user session state.
//
// A session owns the user's Global context and the UI queue its workflows
// talk through. Sessions live in a Manager that expires them after a period
// of inactivity; an expired or logged-out session has its pending dialogs
// closed and its context cleared.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/nomis52/vetflow/appcontext"
	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/metrics"
	"github.com/nomis52/vetflow/ui"
)

// ErrNotFound is returned for an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

const (
	defaultTTL      = 30 * time.Minute
	defaultCapacity = 100
)

// Session is one user's state.
type Session struct {
	ID      string           `json:"id"`
	User    archetype.Object `json:"user"`
	Created time.Time        `json:"created"`

	Global *appcontext.Global `json:"-"`
	UI     *ui.Queue          `json:"-"`
}

// Manager tracks live sessions.
type Manager struct {
	mu          sync.Mutex // serialises Logout
	cache       *ttlcache.Cache[string, *Session]
	base        *slog.Logger
	logger      *slog.Logger
	clock       clock.Clock
	ttl         time.Duration
	capacity    uint64
	historySize int
	active      metrics.Gauge
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets how long an idle session lives.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithCapacity limits the number of sessions. The least recently used
// session is evicted when a new one would exceed it.
func WithCapacity(n int) Option {
	return func(m *Manager) {
		m.capacity = uint64(n)
	}
}

// WithHistorySize sets the selection history kept per context slot.
func WithHistorySize(n int) Option {
	return func(m *Manager) {
		m.historySize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the clock used for session timestamps and dialogs.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithActiveGauge reports the number of live sessions to g.
func WithActiveGauge(g metrics.Gauge) Option {
	return func(m *Manager) {
		m.active = g
	}
}

// NewManager creates a session manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:      slog.Default(),
		clock:       clock.New(),
		ttl:         defaultTTL,
		capacity:    defaultCapacity,
		historySize: appcontext.DefaultHistorySize,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.base = m.logger
	m.logger = m.logger.With("component", "sessions")

	m.cache = ttlcache.New(
		ttlcache.WithTTL[string, *Session](m.ttl),
		ttlcache.WithCapacity[string, *Session](m.capacity),
	)
	m.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		m.close(item.Value(), evictionReason(reason))
	})
	return m
}

// Login starts a session for user. The user must be a security.user; seed
// objects such as the practice and location are added to the new context.
func (m *Manager) Login(user archetype.Object, seed ...archetype.Object) (*Session, error) {
	global := appcontext.NewGlobal(
		appcontext.WithHistorySize(m.historySize),
		appcontext.WithLogger(m.base),
	)
	if err := global.Set(appcontext.User, user); err != nil {
		return nil, fmt.Errorf("invalid user: %w", err)
	}
	for _, obj := range seed {
		global.Add(obj)
	}

	s := &Session{
		ID:      uuid.NewString(),
		User:    user,
		Created: m.clock.Now(),
		Global:  global,
	}
	s.UI = ui.NewQueue(
		ui.WithLogger(m.base.With("session", s.ID)),
		ui.WithClock(m.clock),
	)

	m.cache.Set(s.ID, s, ttlcache.DefaultTTL)
	m.updateGauge()
	m.logger.Info("session started", "session", s.ID, "user", user.Reference().String())
	return s, nil
}

// Get returns a live session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, error) {
	item := m.cache.Get(id)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item.Value(), nil
}

// Logout ends a session. Only one of several concurrent calls for the same
// id succeeds; the rest get ErrNotFound.
func (m *Manager) Logout(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cache.Get(id) == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.cache.Delete(id)
	return nil
}

// List returns the live sessions without extending their lifetime.
func (m *Manager) List() []*Session {
	items := m.cache.Items()
	out := make([]*Session, 0, len(items))
	for _, item := range items {
		out = append(out, item.Value())
	}
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Sweep ends every expired session.
func (m *Manager) Sweep() {
	m.cache.DeleteExpired()
}

// Start runs background expiry until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	go m.cache.Start()
	<-ctx.Done()
	m.cache.Stop()
}

// Close ends every session.
func (m *Manager) Close() {
	m.cache.DeleteAll()
}

// close releases a session's state. Pending dialogs are answered with Close
// so suspended tasks finish before the context is cleared.
func (m *Manager) close(s *Session, reason string) {
	s.UI.CloseAll()
	s.Global.Clear()
	m.updateGauge()
	m.logger.Info("session ended", "session", s.ID, "reason", reason)
}

func (m *Manager) updateGauge() {
	if m.active != nil {
		m.active.Set(float64(m.cache.Len()))
	}
}

func evictionReason(r ttlcache.EvictionReason) string {
	switch r {
	case ttlcache.EvictionReasonExpired:
		return "expired"
	case ttlcache.EvictionReasonCapacityReached:
		return "capacity"
	default:
		return "logout"
	}
}
