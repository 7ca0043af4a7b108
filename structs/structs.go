package structs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMode    = errors.New("invalid mode")
	ErrInvalidHeading = errors.New("invalid direction")
)

// Cell 描述棋盘上的一个格子坐标。
type Cell struct {
	X int `json:"x"` // X坐标
	Y int `json:"y"` // Y坐标
}

// Add 返回 c 沿 h 方向移动一格后的位置（不做边界处理）
func (c Cell) Add(h Heading) Cell {
	return Cell{X: c.X + h.X, Y: c.Y + h.Y}
}

// Heading 是四个轴向单位向量之一。
type Heading struct {
	X int `json:"x"`
	Y int `json:"y"`
}

var (
	Up    = Heading{X: 0, Y: -1}
	Down  = Heading{X: 0, Y: 1}
	Left  = Heading{X: -1, Y: 0}
	Right = Heading{X: 1, Y: 0}
)

// Reverse returns the opposite heading.
func (h Heading) Reverse() Heading {
	return Heading{X: -h.X, Y: -h.Y}
}

// Valid reports whether h is one of Up, Down, Left, Right.
func (h Heading) Valid() bool {
	return h == Up || h == Down || h == Left || h == Right
}

func (h Heading) String() string {
	switch h {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("(%d,%d)", h.X, h.Y)
}

// ParseHeading 解析 "up", "down", "left", "right"
func ParseHeading(s string) (Heading, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return Heading{}, fmt.Errorf("%w: %q", ErrInvalidHeading, s)
}

// Mode 选择边界行为，一局之内不可变。
type Mode int

const (
	Walled   Mode = iota // 撞墙结束
	Wrapping             // 穿墙，环面拓扑
)

// ID is the stable identifier used in storage keys and on the wire.
func (m Mode) ID() string {
	if m == Wrapping {
		return "noWalls"
	}
	return "classic"
}

// Label is the human readable mode name shown in the HUD.
func (m Mode) Label() string {
	if m == Wrapping {
		return "No Walls"
	}
	return "Classic"
}

func (m Mode) String() string { return m.ID() }

// ParseMode accepts the mode id as well as the plain names "walled" and "wrapping".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "classic", "walled":
		return Walled, nil
	case "noWalls", "nowalls", "wrapping":
		return Wrapping, nil
	}
	return Walled, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// RunState 游戏运行状态
type RunState int

const (
	Idle RunState = iota
	Running
	Paused
	Ended
)

func (s RunState) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	default:
		return "idle"
	}
}

// EndCause 描述一局结束的原因
type EndCause string

const (
	CauseNone EndCause = ""
	CauseWall EndCause = "wall"
	CauseSelf EndCause = "self"
)

// Reason 返回结束画面上显示的文字
func (c EndCause) Reason() string {
	switch c {
	case CauseWall:
		return "You hit the wall."
	case CauseSelf:
		return "You ran into yourself."
	}
	return "Tap Restart to try again."
}

// Food 描述当前的食物，SpawnedAt 为生成时的毫秒时间戳。
type Food struct {
	X         int   `json:"x"`
	Y         int   `json:"y"`
	SpawnedAt int64 `json:"spawned_at"`
}

// Cell returns the food position.
func (f Food) Cell() Cell {
	return Cell{X: f.X, Y: f.Y}
}

// Snapshot 是提供给 HUD 和绘图的只读视图。
type Snapshot struct {
	Grid            int      `json:"grid"`             // 棋盘边长
	Snake           []Cell   `json:"snake"`            // 蛇头在下标0
	Food            *Food    `json:"food"`             // nil 表示棋盘已满
	Heading         Heading  `json:"heading"`          // 当前已提交的方向
	Score           int      `json:"score"`            // 分数
	Best            int      `json:"best"`             // 当前模式最高分
	FoodsEaten      int      `json:"foods_eaten"`      // 吃掉的食物数量
	TickMs          int      `json:"tick_ms"`          // 当前步进间隔
	SpeedMultiplier float64  `json:"speed_multiplier"` // 基础间隔/当前间隔
	Mode            string   `json:"mode"`             // 模式ID
	ModeLabel       string   `json:"mode_label"`       // 模式名称
	State           string   `json:"state"`            // 运行状态
	Cause           EndCause `json:"cause,omitempty"`  // 结束原因
}

// Options 是玩家的开关设置。
type Options struct {
	Sound    bool `json:"sound"`
	Haptics  bool `json:"haptics"`
	Dpad     bool `json:"dpad"`
	Contrast bool `json:"contrast"`
}

// DefaultOptions matches the values used when nothing has been stored yet.
func DefaultOptions() Options {
	return Options{Sound: true, Haptics: true, Dpad: false, Contrast: false}
}
