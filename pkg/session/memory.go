package session

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps sessions in process memory. Sessions live until End,
// until they have not been opened for the idle TTL, or until process exit.
type MemoryBackend struct {
	mu        sync.Mutex
	sessions  map[string]*memorySession
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type MemoryOption func(*MemoryBackend)

// WithIdleTTL expires sessions that have not been opened for ttl. Zero
// keeps them until End.
func WithIdleTTL(ttl time.Duration) MemoryOption {
	return func(b *MemoryBackend) { b.idleTTL = ttl }
}

func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{sessions: make(map[string]*memorySession), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *MemoryBackend) Open(_ context.Context, id string) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if now.Sub(b.lastSweep) >= b.idleTTL/2 {
		b.expireLocked(now)
	}
	s, ok := b.sessions[id]
	if !ok {
		s = &memorySession{id: id, fields: make(map[FieldKey]string)}
		b.sessions[id] = s
	}
	s.lastOpened = now
	return s, nil
}

// expireLocked ends sessions idle for at least the TTL. Open runs it at most
// twice per TTL.
func (b *MemoryBackend) expireLocked(now time.Time) {
	if b.idleTTL <= 0 {
		return
	}
	b.lastSweep = now
	for id, s := range b.sessions {
		if now.Sub(s.lastOpened) >= b.idleTTL {
			delete(b.sessions, id)
			s.end()
		}
	}
}

func (b *MemoryBackend) End(_ context.Context, id string) error {
	b.mu.Lock()
	s, ok := b.sessions[id]
	delete(b.sessions, id)
	b.mu.Unlock()
	if ok {
		s.end()
	}
	return nil
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

// Len reports the number of live sessions.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked(b.now())
	return len(b.sessions)
}

type memorySession struct {
	id         string
	lastOpened time.Time // guarded by MemoryBackend.mu

	mu       sync.RWMutex
	fields   map[FieldKey]string
	selected string
	ended    bool
}

func (s *memorySession) ID() string { return s.id }

func (s *memorySession) Get(_ context.Context, key FieldKey) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended {
		return "", ErrSessionEnded
	}
	return s.fields[key], nil
}

func (s *memorySession) Set(_ context.Context, key FieldKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	s.fields[key] = value
	return nil
}

func (s *memorySession) EnsureInitialized(_ context.Context, keys []FieldKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	for _, k := range keys {
		if _, ok := s.fields[k]; !ok {
			s.fields[k] = ""
		}
	}
	return nil
}

func (s *memorySession) Selected(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended {
		return "", ErrSessionEnded
	}
	return s.selected, nil
}

func (s *memorySession) Select(_ context.Context, panelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	s.selected = panelID
	return nil
}

func (s *memorySession) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	s.fields = nil
	s.selected = ""
}
