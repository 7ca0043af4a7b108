package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hoshinonyaruko/snakeplus/snake"
	"github.com/hoshinonyaruko/snakeplus/structs"
)

type memStore struct {
	best map[structs.Mode]int
	mode structs.Mode
}

func (m *memStore) Best(mode structs.Mode) int            { return m.best[mode] }
func (m *memStore) SaveBest(mode structs.Mode, score int) { m.best[mode] = score }
func (m *memStore) GetMode() (structs.Mode, error)        { return m.mode, nil }
func (m *memStore) SetMode(mode structs.Mode) error {
	m.mode = mode
	return nil
}

func newHub(t *testing.T, store Store) *Hub {
	t.Helper()
	h := NewHub(context.Background(), snake.DefaultRules(), store, 0, 5)
	t.Cleanup(h.CloseAll)
	return h
}

func TestHubCreateGetClose(t *testing.T) {
	h := newHub(t, nil)
	s := h.Create()
	got, err := h.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get(%s) = %v, %v", s.ID, got, err)
	}
	if err := h.Close(s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := h.Close(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double close: %v", err)
	}
}

func TestHubUsesStoredMode(t *testing.T) {
	store := &memStore{best: map[structs.Mode]int{structs.Wrapping: 50}, mode: structs.Wrapping}
	s := newHub(t, store).Create()
	snap := s.Snapshot()
	if snap.Mode != "noWalls" || snap.Best != 50 {
		t.Fatalf("snapshot %+v", snap)
	}
	if err := s.Apply("mode", "classic"); err != nil {
		t.Fatal(err)
	}
	if store.mode != structs.Walled {
		t.Fatal("mode change not persisted")
	}
}

func TestApplyCommands(t *testing.T) {
	s := newHub(t, nil).Create()
	if err := s.Apply("direction", "up"); err != nil {
		t.Fatal(err)
	}
	if err := s.Apply("start", ""); err != nil {
		t.Fatal(err)
	}
	if st := s.Snapshot().State; st != "running" {
		t.Fatalf("state %s", st)
	}
	if err := s.Apply("pause", ""); err != nil {
		t.Fatal(err)
	}
	if st := s.Snapshot().State; st != "paused" {
		t.Fatalf("state %s", st)
	}
	if err := s.Apply("direction", "sideways"); !errors.Is(err, structs.ErrInvalidHeading) {
		t.Fatalf("want ErrInvalidHeading, got %v", err)
	}
	if err := s.Apply("mode", "hex"); !errors.Is(err, structs.ErrInvalidMode) {
		t.Fatalf("want ErrInvalidMode, got %v", err)
	}
	if err := s.Apply("jump", ""); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("want ErrUnknownCommand, got %v", err)
	}
	if err := s.Apply("reset", ""); err != nil {
		t.Fatal(err)
	}
	if st := s.Snapshot().State; st != "idle" {
		t.Fatalf("state %s", st)
	}
}

func TestFrameSteps(t *testing.T) {
	s := newHub(t, nil).Create()
	s.Start()
	s.Frame(0)
	if r := s.Frame(150); !r.Applied {
		t.Fatal("expected a step")
	}
	if head := s.Snapshot().Snake[0]; head.X != 13 {
		t.Fatalf("head %v", head)
	}
}

func TestRunDriverSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, snake.DefaultRules(), nil, 5*time.Millisecond, 5)
	defer h.CloseAll()
	s := h.Create()
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for s.Snapshot().Snake[0].X == 12 {
		if time.Now().After(deadline) {
			t.Fatal("driver never stepped")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestWebsocketStream(t *testing.T) {
	s := newHub(t, nil).Create()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.Attach(conn)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	env := readEnvelope(t, conn)
	if env.Type != "snapshot" {
		t.Fatalf("first message %q", env.Type)
	}

	if err := conn.WriteJSON(command{Type: "start"}); err != nil {
		t.Fatal(err)
	}
	for {
		env = readEnvelope(t, conn)
		if env.Type != "snapshot" {
			continue
		}
		var snap structs.Snapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			t.Fatal(err)
		}
		if snap.State == "running" {
			break
		}
	}

	s.Frame(0)
	s.Frame(150)
	env = readEnvelope(t, conn)
	for env.Type != "snapshot" {
		env = readEnvelope(t, conn)
	}
	var snap structs.Snapshot
	json.Unmarshal(env.Data, &snap)
	if snap.Snake[0].X != 13 {
		t.Fatalf("stepped snapshot head %v", snap.Snake[0])
	}
}

func TestAttachSendsSnapshotFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rules := snake.DefaultRules()
	rules.BaseTickMs = 1
	rules.MinTickMs = 1
	h := NewHub(ctx, rules, nil, time.Millisecond, 5)
	defer h.CloseAll()
	s := h.Create()
	s.SetMode(structs.Wrapping)
	s.Start()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.Attach(conn)
	}))
	defer srv.Close()

	// 引擎一直在步进，新连接收到的第一条仍然必须是快照
	for i := 0; i < 20; i++ {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		if err != nil {
			t.Fatal(err)
		}
		env := readEnvelope(t, conn)
		conn.Close()
		if env.Type != "snapshot" {
			t.Fatalf("connection %d: first message %q", i, env.Type)
		}
	}
}
