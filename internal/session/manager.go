package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"canvas-backend/internal/store"
)

// Manager keeps one Session per open document for the HTTP layer.
type Manager struct {
	store Store
	log   *zap.Logger
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// entry 열린 세션과 사용 정보
type entry struct {
	session  *Session
	refs     int // 연결된 WebSocket 클라이언트 수
	lastUsed time.Time
}

// NewManager creates an empty registry.
func NewManager(st Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:    st,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Get returns the open session of a document.
func (m *Manager) Get(documentID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[documentID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Open returns the session of documentID. A session that is already open is
// refreshed from the store first so changes by other writers show up; if the
// document is gone the session is dropped and store.ErrNotFound returned.
func (m *Manager) Open(ctx context.Context, documentID string) (*Session, error) {
	if s, ok := m.Get(documentID); ok {
		err := s.Refresh(ctx)
		switch {
		case err == nil:
			m.touch(documentID, s)
			return s, nil
		case errors.Is(err, store.ErrNotFound):
			m.drop(documentID, s)
			return nil, err
		case errors.Is(err, ErrNoDocument):
			// reset by a clear, load it again below
			m.drop(documentID, s)
		default:
			m.log.Warn("session refresh failed, serving cached pages",
				zap.String("document_id", documentID), zap.Error(err))
			m.touch(documentID, s)
			return s, nil
		}
	}

	s := New(m.store, m.log)
	if err := s.LoadDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return m.register(documentID, s), nil
}

// OpenByResponse finds or creates the document of responseID and returns its
// session.
func (m *Manager) OpenByResponse(ctx context.Context, visitID, responseID int64, name string) (*Session, error) {
	s := New(m.store, m.log)
	id, err := s.LoadOrCreateNamed(ctx, visitID, responseID, name)
	if err != nil {
		return nil, err
	}
	return m.register(id, s), nil
}

// Acquire opens documentID for a long-lived client. The session is not
// evicted until release is called.
func (m *Manager) Acquire(ctx context.Context, documentID string) (*Session, func(), error) {
	s, err := m.Open(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	e, ok := m.sessions[documentID]
	if !ok {
		e = &entry{session: s}
		m.sessions[documentID] = e
	}
	e.refs++
	e.lastUsed = m.now()
	m.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			e.refs--
			e.lastUsed = m.now()
			m.mu.Unlock()
		})
	}
	return e.session, release, nil
}

// register stores s unless another goroutine opened the same document
// first, in which case the existing session wins.
func (m *Manager) register(documentID string, s *Session) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[documentID]; ok {
		existing.lastUsed = m.now()
		return existing.session
	}
	m.sessions[documentID] = &entry{session: s, lastUsed: m.now()}
	m.log.Debug("session opened", zap.String("document_id", documentID), zap.Int("open", len(m.sessions)))
	return s
}

func (m *Manager) touch(documentID string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[documentID]; ok && e.session == s {
		e.lastUsed = m.now()
	}
}

// drop removes documentID only while it still maps to s.
func (m *Manager) drop(documentID string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[documentID]; ok && e.session == s {
		delete(m.sessions, documentID)
	}
}

// Forget drops the session of a document.
func (m *Manager) Forget(documentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, documentID)
}

// Count 열린 세션 수
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// Sweep evicts sessions unused for idle that have no connected clients and
// no strokes waiting for the store. It returns how many were evicted.
func (m *Manager) Sweep(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	evicted := 0
	for id, e := range m.sessions {
		if e.refs > 0 || now.Sub(e.lastUsed) < idle || e.session.HasPending() {
			continue
		}
		delete(m.sessions, id)
		evicted++
	}
	if evicted > 0 {
		m.log.Debug("idle sessions evicted", zap.Int("evicted", evicted), zap.Int("open", len(m.sessions)))
	}
	return evicted
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(idle)
		}
	}
}

// ClearAll wipes the store and resets every open session.
func (m *Manager) ClearAll(ctx context.Context) error {
	if err := New(m.store, m.log).ClearAllData(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	open := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range open {
		e.session.Reset()
	}
	return nil
}
