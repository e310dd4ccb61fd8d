package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/har-viewer/backend/internal/logging"
	"github.com/har-viewer/backend/internal/metrics"
	"github.com/har-viewer/backend/internal/models"
	"github.com/har-viewer/backend/internal/redact"
	"github.com/har-viewer/backend/internal/search"
	"github.com/har-viewer/backend/internal/view"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 10

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// DefaultSlowThreshold is the record time in ms above which a row is badged slow.
const DefaultSlowThreshold = 1000

var (
	ErrNotFound         = errors.New("session not found")
	ErrRecordOutOfRange = errors.New("record index out of range")
)

// Options configures a Manager.
type Options struct {
	// Redact masks sensitive headers and JSON values once, when a session is created.
	Redact          bool
	MaxSessions     int
	SlowThresholdMs float64
	Engine          *search.Engine
	Metrics         *metrics.Metrics
	// OnEvict is called with the upload id of every session removed by cleanup or
	// capacity eviction. It runs outside the manager lock.
	OnEvict func(fileID string)
}

// Manager holds the viewer sessions, one per analyzed archive.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	opts     Options
}

// SessionState holds the session metadata, the immutable record store and the
// derived view of one archive.
type SessionState struct {
	Session      *models.ViewSession
	Result       *models.AnalysisResult
	LastAccessed time.Time // Last time the session was accessed (for keep-alive)

	kind    view.Kind
	sortKey view.SortKey
	desc    bool
	query   string

	viewLen   int
	displayed []models.TransactionRecord
	sources   []int // displayed position -> index in view.Select(Result, kind)
	nav       search.Navigator

	// toggles holds manual tree expansion per record body, keyed by toggleKey.
	toggles map[string]map[string]bool
}

// NewManager creates a new session manager.
func NewManager(opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = MaxSessions
	}
	if opts.SlowThresholdMs <= 0 {
		opts.SlowThresholdMs = DefaultSlowThreshold
	}
	if opts.Engine == nil {
		opts.Engine = search.NewEngine(opts.Metrics)
	}
	return &Manager{
		sessions: make(map[string]*SessionState),
		opts:     opts,
	}
}

// Create registers a session over an analysis result. The result is owned by the
// session from here on and is never modified after redaction.
func (m *Manager) Create(fileID, fileName string, res *models.AnalysisResult) (*models.ViewSession, error) {
	if res == nil {
		return nil, fmt.Errorf("creating session for %s: no analysis result", fileName)
	}
	if m.opts.Redact {
		redact.Result(res)
	}

	sess := &models.ViewSession{
		ID:        uuid.New().String(),
		FileID:    fileID,
		FileName:  fileName,
		Status:    models.SessionStatusReady,
		CreatedAt: time.Now(),
	}
	state := &SessionState{
		Session:      sess,
		Result:       res,
		LastAccessed: time.Now(),
		kind:         view.All,
		sortKey:      view.SortNone,
		toggles:      make(map[string]map[string]bool),
	}
	m.recompute(state)

	m.mu.Lock()
	evicted := m.evictLocked()
	m.sessions[sess.ID] = state
	cp := *state.Session
	m.updateGauge()
	m.mu.Unlock()

	m.notifyEvicted(evicted)
	logging.L.Info("session created",
		zap.String("session", logging.ShortID(sess.ID)),
		zap.String("file", fileName),
		zap.Int("records", state.viewLen))
	return &cp, nil
}

// evictLocked drops the least recently used sessions so one more fits. It must be
// called with the write lock held, in the same critical section as the insert.
func (m *Manager) evictLocked() []string {
	if len(m.sessions) < m.opts.MaxSessions {
		return nil
	}

	states := make([]*SessionState, 0, len(m.sessions))
	for _, s := range m.sessions {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].LastAccessed.Before(states[j].LastAccessed)
	})

	toFree := len(m.sessions) - m.opts.MaxSessions + 1
	var fileIDs []string
	for _, s := range states[:toFree] {
		delete(m.sessions, s.Session.ID)
		fileIDs = append(fileIDs, s.Session.FileID)
		logging.L.Info("evicted session to free memory", zap.String("session", logging.ShortID(s.Session.ID)))
	}
	return fileIDs
}

func (m *Manager) notifyEvicted(fileIDs []string) {
	if m.opts.OnEvict == nil {
		return
	}
	for _, id := range fileIDs {
		m.opts.OnEvict(id)
	}
}

// updateGauge must be called with the lock held.
func (m *Manager) updateGauge() {
	if m.opts.Metrics != nil {
		m.opts.Metrics.ActiveSessions.Set(float64(len(m.sessions)))
	}
}

// Get returns a copy of the session.
func (m *Manager) Get(id string) (*models.ViewSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *state.Session
	return &cp, nil
}

// List returns all sessions, newest first.
func (m *Manager) List() []models.ViewSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ViewSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s.Session)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete discards a session and returns the upload id it was built from.
func (m *Manager) Delete(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.sessions, id)
	m.updateGauge()
	return state.Session.FileID, nil
}

// TouchSession updates the LastAccessed timestamp for a session.
// This should be called whenever a session is actively being used
// to prevent it from being cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// CleanupOldSessions removes sessions idle for longer than maxAge. Sessions
// touched within SessionKeepAliveWindow are always kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	var evicted []string
	for id, state := range m.sessions {
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, state.Session.FileID)
			logging.L.Info("cleaned up idle session",
				zap.String("session", logging.ShortID(id)),
				zap.Duration("idle", time.Since(state.LastAccessed).Round(time.Second)))
		}
	}
	m.updateGauge()
	m.mu.Unlock()

	m.notifyEvicted(evicted)
	return len(evicted)
}

// Stats returns the dashboard summary of a session.
func (m *Manager) Stats(id string) (view.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return view.Summary{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return view.Stats(state.Result), nil
}

// lookup must be called with the lock held.
func (m *Manager) lookup(id string) (*SessionState, error) {
	state, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	state.LastAccessed = time.Now()
	return state, nil
}

// recompute derives the displayed list and match sequence from the view, sort and
// query of state. The cursor is reset.
func (m *Manager) recompute(state *SessionState) {
	base := view.Select(state.Result, state.kind)
	order := view.SortIndexes(base, state.sortKey, state.desc)
	sorted := make([]models.TransactionRecord, len(order))
	for i, idx := range order {
		sorted[i] = base[idx]
	}

	res := m.opts.Engine.Search(sorted, state.query)
	state.viewLen = len(base)
	state.displayed = res.Records
	state.sources = make([]int, len(res.Positions))
	for i, p := range res.Positions {
		state.sources[i] = order[p]
	}
	state.nav.Reset(res.Matches)

	s := state.Session
	s.View = string(state.kind)
	s.SortBy = string(state.sortKey)
	s.SortDir = "asc"
	if state.desc {
		s.SortDir = "desc"
	}
	s.Query = state.query
	s.Displayed = len(state.displayed)
	s.MatchCount = state.nav.Len()
	s.Cursor = state.nav.Cursor()
}
