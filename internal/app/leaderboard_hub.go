package app

import (
	"sync"

	"simulado-service/internal/domain"
)

// LeaderboardHub fans rebuilt leaderboards out to subscribers of an exam.
// Boards are tagged with the cache generation they were built at; once a
// generation has been published for an exam, older boards are dropped.
type LeaderboardHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
	published   map[string]int64
}

func NewLeaderboardHub() *LeaderboardHub {
	return &LeaderboardHub{
		subscribers: make(map[string]map[chan domain.Leaderboard]struct{}),
		published:   make(map[string]int64),
	}
}

func (h *LeaderboardHub) subscribe(examID string) (chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[examID]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		h.subscribers[examID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[examID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, examID)
			delete(h.published, examID)
		}
	}
	return ch, cancel
}

// Subscribers reports how many streams are open for an exam.
func (h *LeaderboardHub) Subscribers(examID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[examID])
}

func (h *LeaderboardHub) publish(lb domain.Leaderboard, gen int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[lb.ExamID]
	if !ok || gen < h.published[lb.ExamID] {
		return
	}
	h.published[lb.ExamID] = gen
	for ch := range subs {
		sendLatest(ch, lb)
	}
}

// offer delivers lb to a single subscriber if it is still registered and lb
// is not older than what the exam's subscribers already received.
func (h *LeaderboardHub) offer(ch chan domain.Leaderboard, lb domain.Leaderboard, gen int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[lb.ExamID][ch]; !ok || gen < h.published[lb.ExamID] {
		return
	}
	sendLatest(ch, lb)
}

// sendLatest never blocks: a full buffer loses its oldest update.
func sendLatest(ch chan domain.Leaderboard, lb domain.Leaderboard) {
	select {
	case ch <- lb:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- lb
	}
}
