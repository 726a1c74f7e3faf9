package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"marinehub/internal/util"
)

// MemorySessionStore keeps sessions in process. Values are stored encoded
// so callers never share state with the store.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &MemorySessionStore{ttl: ttl, now: time.Now, sessions: make(map[string]memoryEntry)}
}

func (s *MemorySessionStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = util.NewID()
	sess.CreatedAt = s.now().UTC()
	sess.UpdatedAt = sess.CreatedAt
	return s.put(sess)
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok || !s.now().Before(entry.expiresAt) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	var sess Session
	if err := json.Unmarshal(entry.data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *MemorySessionStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sess.ID]
	if !ok || !s.now().Before(entry.expiresAt) {
		return ErrSessionNotFound
	}
	sess.UpdatedAt = s.now().UTC()
	return s.put(sess)
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemorySessionStore) put(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.sessions[sess.ID] = memoryEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	return nil
}
