package snake

import "github.com/hoshinonyaruko/snakeplus/structs"

type EventType int

const (
	EventReset EventType = iota
	EventStateChanged
	EventStepped
	EventAte
	EventWrapped
	EventCollided
	EventModeChanged
	EventFoodExpired
)

func (t EventType) String() string {
	switch t {
	case EventReset:
		return "reset"
	case EventStateChanged:
		return "state"
	case EventStepped:
		return "step"
	case EventAte:
		return "eat"
	case EventWrapped:
		return "wrap"
	case EventCollided:
		return "collide"
	case EventModeChanged:
		return "mode"
	case EventFoodExpired:
		return "food_expired"
	}
	return "unknown"
}

// Event 是引擎发出的离散通知，观察者（HUD、音效、震动、存储）自行处理。
type Event struct {
	Type  EventType        `json:"-"`
	Cell  structs.Cell     `json:"cell"`            // 相关格子：新蛇头、被吃的食物或新食物
	Cause structs.EndCause `json:"cause,omitempty"` // 仅 EventCollided
	Score int              `json:"score"`
	State structs.RunState `json:"-"`
	Mode  structs.Mode     `json:"-"`
}

type EventHandler func(Event)

// EventBus dispatches synchronously on the caller's goroutine.
type EventBus struct {
	handlers map[EventType][]EventHandler
	all      []EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

func (eb *EventBus) Subscribe(t EventType, fn EventHandler) {
	eb.handlers[t] = append(eb.handlers[t], fn)
}

// SubscribeAll registers fn for every event type.
func (eb *EventBus) SubscribeAll(fn EventHandler) {
	eb.all = append(eb.all, fn)
}

func (eb *EventBus) Emit(e Event) {
	for _, fn := range eb.handlers[e.Type] {
		fn(e)
	}
	for _, fn := range eb.all {
		fn(e)
	}
}
