package history

import (
	"context"
	"sync"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
)

const DefaultRetention = 1000

// MemoryStore keeps the newest retention messages in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	msgs      []domain.ChatMessage
	index     map[string]int
	retention int
	closed    bool
}

func NewMemoryStore(retention int) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		index:     make(map[string]int),
		retention: retention,
	}
}

func (s *MemoryStore) Append(ctx context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.index[msg.ID]; ok {
		return nil
	}

	s.msgs = append(s.msgs, msg)
	if len(s.msgs) > s.retention {
		s.msgs = append([]domain.ChatMessage(nil), s.msgs[len(s.msgs)-s.retention:]...)
		s.reindex()
		return nil
	}
	s.index[msg.ID] = len(s.msgs) - 1
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	i, ok := s.index[msg.ID]
	if !ok {
		return nil
	}
	s.msgs[i].Body = msg.Body
	s.msgs[i].EditedAt = msg.EditedAt
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	ordered := Chronological(s.msgs)
	if limit <= 0 || limit > len(ordered) {
		limit = len(ordered)
	}

	out := make([]domain.ChatMessage, 0, limit)
	for i := len(ordered) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, ordered[i])
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// reindex rebuilds id positions. Caller must hold s.mu.
func (s *MemoryStore) reindex() {
	s.index = make(map[string]int, len(s.msgs))
	for i, m := range s.msgs {
		s.index[m.ID] = i
	}
}
