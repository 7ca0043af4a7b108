package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hoshinonyaruko/snakeplus/snake"
	"github.com/hoshinonyaruko/snakeplus/structs"
)

// Hub 管理所有会话
type Hub struct {
	ctx   context.Context
	rules snake.Rules
	store Store
	frame time.Duration
	seed  uint64

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHub creates a hub. A frame of zero disables the per-session driver, so
// callers feed Frame themselves. A seed of zero picks a random one per session.
func NewHub(ctx context.Context, rules snake.Rules, store Store, frame time.Duration, seed uint64) *Hub {
	return &Hub{
		ctx:      ctx,
		rules:    rules,
		store:    store,
		frame:    frame,
		seed:     seed,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new Idle session in the last used mode.
func (h *Hub) Create() *Session {
	mode := structs.Walled
	var opts []snake.Option
	if h.store != nil {
		m, err := h.store.GetMode()
		if err != nil {
			log.Printf("load last mode: %v", err)
		}
		mode = m
		opts = append(opts, snake.WithScoreKeeper(h.store))
	}
	if h.seed != 0 {
		opts = append(opts, snake.WithSeed(h.seed))
	}

	s := newSession(snake.New(h.rules, mode, opts...), h.store)

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	if h.frame > 0 {
		go s.Run(h.ctx, h.frame)
	}
	return s
}

func (h *Hub) Get(id string) (*Session, error) {
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (h *Hub) Close(id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// CloseAll stops every session, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
