package pvpchess

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Store is the durable side of a match. CreateMatch must succeed before a match
// is announced; the other writes are best effort and reconciled by the sweep.
type Store interface {
	CreateMatch(ctx context.Context, m *Match) error
	AppendMove(ctx context.Context, matchID string, mv Move, status Status) error
	SetStatus(ctx context.Context, matchID string, u StatusUpdate) error
	FindMatch(ctx context.Context, matchID string) (*Match, error)
	// Save overwrites the stored record with a full snapshot.
	Save(ctx context.Context, m *Match) error
}

// MemoryStore keeps matches in process. It backs development runs without
// Redis and the tests.
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[string]*Match
	writes  map[string]int // matchID -> SetStatus transitions applied
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches: make(map[string]*Match),
		writes:  make(map[string]int),
	}
}

func (s *MemoryStore) CreateMatch(ctx context.Context, m *Match) error {
	if m == nil || strings.TrimSpace(m.ID) == "" {
		return ErrInvalidArgs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.matches[m.ID]; exists {
		return fmt.Errorf("match %s already exists", m.ID)
	}
	s.matches[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) AppendMove(ctx context.Context, matchID string, mv Move, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	return m.appendMove(mv, status)
}

func (s *MemoryStore) SetStatus(ctx context.Context, matchID string, u StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	if m.applyUpdate(u) {
		s.writes[matchID]++
	}
	return nil
}

func (s *MemoryStore) FindMatch(ctx context.Context, matchID string) (*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, m *Match) error {
	if m == nil {
		return ErrInvalidArgs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.matches[m.ID]; ok && cur.Status.Terminal() && !m.Status.Terminal() {
		return nil
	}
	s.matches[m.ID] = m.Clone()
	return nil
}

// Transitions returns how many status transitions were applied to matchID.
func (s *MemoryStore) Transitions(matchID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[matchID]
}
