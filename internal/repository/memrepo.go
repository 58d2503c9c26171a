package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/park285/cheese-reversi/internal/domain"
)

// memrepo is used when no database is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID    int64
	byID      map[int64]*domain.Game
	bySession map[string]*domain.Game
}

func NewMemory() Repository {
	return &memrepo{
		byID:      make(map[int64]*domain.Game),
		bySession: make(map[string]*domain.Game),
	}
}

func (m *memrepo) InsertGame(ctx context.Context, game *domain.Game) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bySession[game.SessionID]; exists {
		return 0, ErrDuplicateGame
	}
	m.nextID++
	stored := *game
	stored.ID = m.nextID
	stored.Moves = append([]string(nil), game.Moves...)
	m.byID[stored.ID] = &stored
	m.bySession[stored.SessionID] = &stored
	return stored.ID, nil
}

func (m *memrepo) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneGame(m.byID[id]), nil
}

func (m *memrepo) GetGameBySession(ctx context.Context, sessionID string) (*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneGame(m.bySession[sessionID]), nil
}

func (m *memrepo) RecentGames(ctx context.Context, limit int) ([]*domain.Game, error) {
	m.mu.RLock()
	items := make([]*domain.Game, 0, len(m.byID))
	for _, g := range m.byID {
		items = append(items, cloneGame(g))
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func cloneGame(g *domain.Game) *domain.Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Moves = append([]string(nil), g.Moves...)
	return &c
}
