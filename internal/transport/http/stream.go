package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"quiz-scoring-service/internal/app"
	"quiz-scoring-service/internal/domain"
)

// Hub streams the top of the global leaderboard to websocket subscribers.
// It implements app.LeaderboardNotifier: award paths poke it and it refreshes
// the snapshot for everyone.
type Hub struct {
	leaderboard *app.LeaderboardService
	topN        int
	upgrader    websocket.Upgrader

	mu          sync.Mutex
	subscribers map[chan domain.LeaderboardPage]struct{}
	trigger     chan struct{}
}

func NewHub(leaderboard *app.LeaderboardService, topN int) *Hub {
	return &Hub{
		leaderboard: leaderboard,
		topN:        topN,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subscribers: make(map[chan domain.LeaderboardPage]struct{}),
		trigger:     make(chan struct{}, 1),
	}
}

// LeaderboardChanged must not block; coalescing concurrent pokes into one
// refresh is fine since subscribers only want the latest snapshot.
func (h *Hub) LeaderboardChanged() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes and fans out snapshots until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.trigger:
			h.broadcast(ctx)
		}
	}
}

func (h *Hub) broadcast(ctx context.Context) {
	page, err := h.leaderboard.Query(ctx, domain.LeaderboardQuery{
		Scope: domain.ScopeGlobal,
		Limit: h.topN,
		Page:  1,
		Desc:  true,
	})
	if err != nil {
		log.Printf("leaderboard stream refresh: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- page:
		default:
			// Drop the stale snapshot so a slow client never blocks the rest.
			select {
			case <-ch:
			default:
			}
			ch <- page
		}
	}
}

func (h *Hub) subscribe() (chan domain.LeaderboardPage, func()) {
	ch := make(chan domain.LeaderboardPage, 8)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// ServeWS upgrades the request and streams leaderboard snapshots until the
// client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.subscribe()
	defer cancel()

	// Send the current snapshot immediately so clients render on connect.
	if page, err := h.leaderboard.Query(r.Context(), domain.LeaderboardQuery{
		Scope: domain.ScopeGlobal,
		Limit: h.topN,
		Page:  1,
		Desc:  true,
	}); err == nil {
		if err := conn.WriteJSON(page); err != nil {
			return
		}
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case page, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(page); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
