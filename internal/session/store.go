package session

import (
	"sync"
	"time"

	"github.com/xkilldash9x/grantscout/internal/chat"
)

type entry struct {
	state    chat.State
	lastSeen time.Time
}

// turnLock serializes chat turns on one session. refs counts holders and waiters.
type turnLock struct {
	mu   sync.Mutex
	refs int
}

// MemoryStore keeps chat state per session id in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
	turns    map[string]*turnLock
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*entry),
		turns:    make(map[string]*turnLock),
		now:      time.Now,
	}
}

// Lock holds the turn lock for id until the returned func is called, so a
// read-handle-write cycle on one session cannot interleave with another.
// Get, Put and other sessions are not blocked.
func (s *MemoryStore) Lock(id string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.turns[id]
	if !ok {
		l = &turnLock{}
		s.turns[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		defer s.mu.Unlock()
		l.refs--
		if l.refs == 0 {
			delete(s.turns, id)
		}
	}
}

// Get returns a copy of the state for id and refreshes its idle timer.
func (s *MemoryStore) Get(id string) (chat.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return chat.State{}, false
	}
	e.lastSeen = s.now()
	return e.state.Clone(), true
}

// Put stores state for id, replacing whatever was there.
func (s *MemoryStore) Put(id string, state chat.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &entry{state: state.Clone(), lastSeen: s.now()}
}

// Delete forgets id.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep evicts sessions idle for longer than idle and returns how many were removed.
func (s *MemoryStore) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	removed := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
