// Package session hosts running games: one engine per session, a frame driver
// standing in for the render loop, and websocket subscribers for the HUD and
// feedback collaborators.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hoshinonyaruko/snakeplus/snake"
	"github.com/hoshinonyaruko/snakeplus/structs"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrUnknownCommand = errors.New("unknown command")
)

// Store is the persistence collaborator a session needs. It may be nil.
type Store interface {
	snake.ScoreKeeper
	GetMode() (structs.Mode, error)
	SetMode(mode structs.Mode) error
}

// Envelope 是推送给客户端的消息
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Session serializes every engine call behind mu; the engine itself is not
// safe for concurrent use.
type Session struct {
	ID string

	mu     sync.Mutex
	engine *snake.Engine
	store  Store
	start  time.Time

	cmu     sync.Mutex
	clients map[*client]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(engine *snake.Engine, store Store) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		engine:  engine,
		store:   store,
		start:   time.Now(),
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
	}
	engine.SubscribeAll(s.onEvent)
	return s
}

// onEvent runs inside an engine call, with mu already held.
func (s *Session) onEvent(ev snake.Event) {
	switch ev.Type {
	case snake.EventStepped, snake.EventReset, snake.EventStateChanged:
		s.broadcast("snapshot", s.engine.Snapshot())
	case snake.EventCollided:
		log.Printf("session %s ended: %s, score %d", s.ID, ev.Cause, ev.Score)
		s.broadcast(ev.Type.String(), ev)
	default:
		s.broadcast(ev.Type.String(), ev)
	}
}

func (s *Session) broadcast(typ string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("session %s: marshal %s: %v", s.ID, typ, err)
		return
	}
	out, _ := json.Marshal(Envelope{Type: typ, Data: b})

	s.cmu.Lock()
	defer s.cmu.Unlock()
	for c := range s.clients {
		// 慢客户端直接丢弃，不阻塞步进
		select {
		case c.send <- out:
		default:
		}
	}
}

// Run drives the engine with monotonic timestamps until ctx is done or the
// session is closed.
func (s *Session) Run(ctx context.Context, frame time.Duration) {
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.Frame(time.Since(s.start).Milliseconds())
		}
	}
}

// Frame feeds one render-loop timestamp (milliseconds) to the engine.
func (s *Session) Frame(now int64) snake.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Frame(now)
}

func (s *Session) Snapshot() structs.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot()
}

func (s *Session) Start() {
	s.mu.Lock()
	s.engine.Start()
	s.mu.Unlock()
}

func (s *Session) TogglePause() {
	s.mu.Lock()
	s.engine.TogglePause()
	s.mu.Unlock()
}

func (s *Session) Reset() {
	s.mu.Lock()
	s.engine.Reset()
	s.mu.Unlock()
}

// SetMode resets the run and remembers the mode for the next session.
func (s *Session) SetMode(mode structs.Mode) {
	s.mu.Lock()
	s.engine.SetMode(mode)
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.SetMode(mode); err != nil {
			log.Printf("session %s: save mode: %v", s.ID, err)
		}
	}
}

func (s *Session) SetDirection(h structs.Heading) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SetDirection(h)
}

// Apply runs a named input command: start, pause, reset, direction <up|down|left|right>
// or mode <classic|noWalls>.
func (s *Session) Apply(op, arg string) error {
	switch op {
	case "start":
		s.Start()
	case "pause":
		s.TogglePause()
	case "reset", "restart":
		s.Reset()
	case "direction":
		h, err := structs.ParseHeading(arg)
		if err != nil {
			return err
		}
		s.SetDirection(h)
	case "mode":
		m, err := structs.ParseMode(arg)
		if err != nil {
			return err
		}
		s.SetMode(m)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, op)
	}
	return nil
}

// Attach streams events to conn and reads input commands from it until the
// connection fails. It blocks.
func (s *Session) Attach(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, 64)}
	go c.writer()

	// 先放入当前状态再注册，之后的广播都排在它后面
	s.mu.Lock()
	s.cmu.Lock()
	b, _ := json.Marshal(s.engine.Snapshot())
	out, _ := json.Marshal(Envelope{Type: "snapshot", Data: b})
	c.send <- out
	select {
	case <-s.done:
		close(c.send)
	default:
		s.clients[c] = struct{}{}
	}
	s.cmu.Unlock()
	s.mu.Unlock()

	s.reader(c)
}

func (s *Session) detach(c *client) {
	s.cmu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.cmu.Unlock()
}

type command struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

func (s *Session) reader(c *client) {
	defer func() {
		s.detach(c)
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Printf("session %s: bad command: %v", s.ID, err)
			continue
		}
		if err := s.Apply(cmd.Type, cmd.Data); err != nil {
			log.Printf("session %s: %v", s.ID, err)
		}
	}
}

func (c *client) writer() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Close stops the driver and disconnects every subscriber.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cmu.Lock()
		for c := range s.clients {
			delete(s.clients, c)
			close(c.send)
		}
		s.cmu.Unlock()
	})
}
