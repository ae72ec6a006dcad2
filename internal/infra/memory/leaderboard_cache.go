package memory

import (
	"context"
	"sync"
	"time"

	"simulado-service/internal/domain"
)

// LeaderboardCache is an in-memory implementation of app.LeaderboardCache.
type LeaderboardCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu     sync.RWMutex
	boards map[string]cachedBoard
	gens   map[string]int64
}

type cachedBoard struct {
	board     domain.Leaderboard
	expiresAt time.Time
}

func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		ttl:    ttl,
		clock:  time.Now,
		boards: make(map[string]cachedBoard),
		gens:   make(map[string]int64),
	}
}

func (c *LeaderboardCache) Get(_ context.Context, examID string) (domain.Leaderboard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.boards[examID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Leaderboard{}, false
	}
	lb := entry.board
	lb.Entries = append([]domain.LeaderboardEntry(nil), lb.Entries...)
	return lb, true
}

func (c *LeaderboardCache) Generation(_ context.Context, examID string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[examID], nil
}

func (c *LeaderboardCache) Put(_ context.Context, lb domain.Leaderboard, gen int64) error {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[lb.ExamID] != gen {
		return nil
	}
	lb.Entries = append([]domain.LeaderboardEntry(nil), lb.Entries...)
	c.boards[lb.ExamID] = cachedBoard{board: lb, expiresAt: c.clock().Add(c.ttl)}
	return nil
}

func (c *LeaderboardCache) Invalidate(_ context.Context, examID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[examID]++
	delete(c.boards, examID)
	return nil
}
