// Package session owns the question tabs and orchestrates the
// multi-stage query pipeline: draft SQL, optional acknowledged
// execution, narrative answer, and visualization. Each tab is an
// independent pipeline goroutine whose writes are keyed by tab id; the
// shared view (active tab pointer, chat transcript) is guarded by a
// monotonically increasing request token so a superseded pipeline can
// never clobber a newer one.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/clinsight/internal/api"
	"github.com/leapstack-labs/clinsight/internal/viz"
	"github.com/leapstack-labs/clinsight/pkg/core"
)

// conversationTail bounds how much trailing chat context rides along
// with a draft request.
const conversationTail = 10

// Answer sampling caps: the narrative stage sees at most this slice of
// the preview.
const (
	maxAnswerRows = 120
	maxAnswerCols = 20
)

// Backend is the slice of the api client the session engine consumes.
type Backend interface {
	Draft(ctx context.Context, req api.DraftRequest) (*core.DraftResponse, error)
	Execute(ctx context.Context, req api.ExecuteRequest) (*core.RunResult, error)
	Answer(ctx context.Context, req api.AnswerRequest) (*api.AnswerResponse, error)
	LoadHistory(ctx context.Context) (*core.PersistedState, error)
	SaveHistory(ctx context.Context, state *core.PersistedState) error
}

// Resolver resolves visualizations; satisfied by *viz.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, req viz.Request) (*viz.Resolution, error)
}

// OrchestratorContext carries the process-wide request token. It is an
// explicit object passed through every pipeline invocation rather than
// a free-floating counter, so tests can own their own instance.
type OrchestratorContext struct {
	counter atomic.Uint64
}

// Next allocates the token for a new dispatch.
func (o *OrchestratorContext) Next() uint64 { return o.counter.Add(1) }

// IsCurrent reports whether token is still the latest dispatch. A
// stale pipeline may keep writing to its own tab, but must not touch
// shared view state.
func (o *OrchestratorContext) IsCurrent(token uint64) bool {
	return o.counter.Load() == token
}

// Config configures a session manager.
type Config struct {
	Backend  Backend
	Resolver Resolver
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Persist enables the debounced server-side session snapshot.
	Persist bool
	// PersistQuiet overrides the debounce quiet period (default 600ms).
	PersistQuiet time.Duration
	// PreferredChartFor maps a question to a saved dashboard shortcut's
	// chart type; empty means no preference. Optional.
	PreferredChartFor func(question string) string
	// OnChange is invoked (on pipeline goroutines) after every
	// observable mutation. Optional.
	OnChange func()
}

// Manager owns the ordered tab list, the active-tab pointer, and the
// chat transcript.
type Manager struct {
	mu         sync.Mutex
	tabs       []*core.Tab // front = newest
	active     string
	transcript []core.ChatMessage
	cancels    map[string]context.CancelFunc
	waiters    map[string]chan struct{}

	orch      OrchestratorContext
	backend   Backend
	resolver  Resolver
	logger    *slog.Logger
	persister *persister
	prefFor   func(string) string
	onChange  func()
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		cancels:  make(map[string]context.CancelFunc),
		waiters:  make(map[string]chan struct{}),
		backend:  cfg.Backend,
		resolver: cfg.Resolver,
		logger:   logger,
		prefFor:  cfg.PreferredChartFor,
		onChange: cfg.OnChange,
	}
	if cfg.Persist {
		quiet := cfg.PersistQuiet
		if quiet == 0 {
			quiet = 600 * time.Millisecond
		}
		m.persister = newPersister(quiet, m.snapshot, func(st *core.PersistedState) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := cfg.Backend.SaveHistory(ctx, st); err != nil {
				logger.Warn("session snapshot save failed", "err", err)
			}
		})
	}
	return m
}

// Close stops the persister, flushing a final snapshot, and cancels
// all in-flight pipelines.
func (m *Manager) Close() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.cancels))
	for _, c := range m.cancels {
		cancels = append(cancels, c)
	}
	m.mu.Unlock()
	for _, c := range cancels {
		c()
	}
	if m.persister != nil {
		m.persister.Stop()
	}
}

// notify fires the change callback and marks the snapshot dirty.
func (m *Manager) notify() {
	if m.persister != nil {
		m.persister.MarkDirty()
	}
	if m.onChange != nil {
		m.onChange()
	}
}

// snapshot projects the current active tab + transcript; nil when
// there is nothing to persist.
func (m *Manager) snapshot() *core.PersistedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	tab := m.findLocked(m.active)
	if tab == nil {
		return nil
	}
	return core.SnapshotTab(tab, m.transcript)
}

// findLocked returns the tab with the given id; callers hold mu.
func (m *Manager) findLocked(id string) *core.Tab {
	for _, t := range m.tabs {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// newTabLocked creates a pending tab at the front of the list and
// makes it active; callers hold mu.
func (m *Manager) newTabLocked(question string) *core.Tab {
	tab := &core.Tab{
		ID:              uuid.New().String(),
		Question:        question,
		Status:          core.TabPending,
		ShowSQLPanel:    true,
		ShowResultPanel: true,
		CreatedAt:       time.Now(),
	}
	m.tabs = append([]*core.Tab{tab}, m.tabs...)
	m.active = tab.ID
	m.waiters[tab.ID] = make(chan struct{})
	return tab
}

// appendChatLocked appends to the transcript; callers hold mu.
func (m *Manager) appendChatLocked(role core.ChatRole, content string) {
	m.transcript = append(m.transcript, core.ChatMessage{
		Role:    role,
		Content: content,
		At:      time.Now(),
	})
}

// writeTab applies fn to the tab with the given id under the lock.
// Tab-scoped writes are keyed by id, not by token: a stale pipeline
// still records its outcome into its own tab. Returns false when the
// tab has been closed.
func (m *Manager) writeTab(id string, fn func(*core.Tab)) bool {
	m.mu.Lock()
	tab := m.findLocked(id)
	if tab != nil {
		fn(tab)
	}
	m.mu.Unlock()
	if tab != nil {
		m.notify()
	}
	return tab != nil
}

// appendChatIfFresh appends an assistant/user message to the shared
// transcript only when the token is still current.
func (m *Manager) appendChatIfFresh(token uint64, role core.ChatRole, content string) {
	if !m.orch.IsCurrent(token) || content == "" {
		return
	}
	m.mu.Lock()
	m.appendChatLocked(role, content)
	m.mu.Unlock()
	m.notify()
}

// finish closes the tab's waiter channel.
func (m *Manager) finish(id string) {
	m.mu.Lock()
	ch := m.waiters[id]
	delete(m.waiters, id)
	delete(m.cancels, id)
	m.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Wait blocks until the tab's pipeline has finished (or the context is
// done). Waiting on an unknown or already-finished tab returns
// immediately.
func (m *Manager) Wait(ctx context.Context, id string) error {
	m.mu.Lock()
	ch := m.waiters[id]
	m.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transcript returns a copy of the chat transcript.
func (m *Manager) Transcript() []core.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.ChatMessage(nil), m.transcript...)
}
