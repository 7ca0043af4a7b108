// 关于蛇的移动、碰撞和食物
package snake

import (
	"github.com/hoshinonyaruko/snakeplus/clock"
	"github.com/hoshinonyaruko/snakeplus/structs"
	"golang.org/x/exp/rand"
)

// Rules 是一局游戏的可调参数
type Rules struct {
	Grid          int   `json:"grid"`          // 棋盘边长 N
	StartLength   int   `json:"startlength"`   // 初始长度
	BaseTickMs    int   `json:"basetickms"`    // 初始步进间隔
	MinTickMs     int   `json:"mintickms"`     // 步进间隔下限
	SpeedupEvery  int   `json:"speedupevery"`  // 每吃几个食物加速一次
	SpeedupStepMs int   `json:"speedupstepms"` // 每次加速减少的毫秒数
	ScorePerFood  int   `json:"scoreperfood"`  // 每个食物的分数
	FoodTTLMs     int64 `json:"foodttlms"`     // 食物存活时间，0 表示不限
	FoodAttempts  int   `json:"foodattempts"`  // 随机放置的尝试次数，0 表示直接扫描
}

// DefaultRules returns the standard game constants.
func DefaultRules() Rules {
	return Rules{
		Grid:          24,
		StartLength:   4,
		BaseTickMs:    150,
		MinTickMs:     70,
		SpeedupEvery:  5,
		SpeedupStepMs: 10,
		ScorePerFood:  10,
		FoodTTLMs:     9000,
		FoodAttempts:  999,
	}
}

// normalize 修正会导致越界或除零的取值
func (r Rules) normalize() Rules {
	d := DefaultRules()
	if r.Grid <= 0 {
		r.Grid = d.Grid
	}
	if r.StartLength <= 0 {
		r.StartLength = d.StartLength
	}
	// 蛇从中心向左排开，不能超出左边界
	if limit := r.Grid/2 + 1; r.StartLength > limit {
		r.StartLength = limit
	}
	if r.BaseTickMs <= 0 {
		r.BaseTickMs = d.BaseTickMs
	}
	if r.MinTickMs <= 0 {
		r.MinTickMs = 1
	}
	// 加速只能让间隔变短
	if r.MinTickMs > r.BaseTickMs {
		r.MinTickMs = r.BaseTickMs
	}
	if r.SpeedupStepMs < 0 {
		r.SpeedupStepMs = d.SpeedupStepMs
	}
	if r.SpeedupEvery <= 0 {
		r.SpeedupEvery = d.SpeedupEvery
	}
	if r.FoodAttempts < 0 {
		r.FoodAttempts = 0
	}
	return r
}

// ScoreKeeper 是最高分存储的外部协作者，写入失败由实现方自行处理。
type ScoreKeeper interface {
	Best(mode structs.Mode) int
	SaveBest(mode structs.Mode, score int)
}

type Option func(*Engine)

// WithSeed makes food placement reproducible.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed))
	}
}

func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

func WithScoreKeeper(k ScoreKeeper) Option {
	return func(e *Engine) {
		e.keeper = k
	}
}

// Result 描述一次步进的结果
type Result struct {
	Applied bool             // 本次确实执行了一步
	Ate     bool             // 吃到了食物
	Wrapped bool             // 穿过了边界
	Cause   structs.EndCause // 非空表示本步结束了游戏
}

// Engine owns the snake, heading, food and progression of a single run.
// It is not safe for concurrent use; callers must serialize every method.
type Engine struct {
	rules  Rules
	rng    *rand.Rand
	keeper ScoreKeeper
	bus    *EventBus
	clock  clock.Clock

	mode  structs.Mode
	state structs.RunState
	cause structs.EndCause

	body      []structs.Cell // 蛇头在下标0
	heading   structs.Heading
	queued    structs.Heading
	hasQueued bool

	food    *structs.Food // nil 表示棋盘已满
	foodAge int64         // 运行状态下食物已存在的毫秒数

	now       int64
	lastFrame int64
	framed    bool

	score      int
	foodsEaten int
	tickMs     int
	best       int
	bests      map[structs.Mode]int // 没有 ScoreKeeper 时在内存里记录
}

// New creates an engine in the Idle state with a freshly placed snake and food.
func New(rules Rules, mode structs.Mode, opts ...Option) *Engine {
	e := &Engine{
		rules: rules.normalize(),
		mode:  mode,
		bus:   NewEventBus(),
		bests: make(map[structs.Mode]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(rand.Uint64()))
	}
	e.Reset()
	return e
}

func (e *Engine) Subscribe(t EventType, fn EventHandler) {
	e.bus.Subscribe(t, fn)
}

func (e *Engine) SubscribeAll(fn EventHandler) {
	e.bus.SubscribeAll(fn)
}

func (e *Engine) Rules() Rules            { return e.rules }
func (e *Engine) Mode() structs.Mode      { return e.mode }
func (e *Engine) State() structs.RunState { return e.state }
func (e *Engine) Cause() structs.EndCause { return e.cause }
func (e *Engine) Score() int              { return e.score }
func (e *Engine) TickMs() int             { return e.tickMs }

// Reset 回到 Idle：初始蛇居中向右，重新放置食物，进度清零
func (e *Engine) Reset() {
	e.state = structs.Idle
	e.cause = structs.CauseNone
	e.score = 0
	e.foodsEaten = 0
	e.tickMs = e.rules.BaseTickMs
	e.clock.Rearm()
	e.framed = false

	e.heading = structs.Right
	e.hasQueued = false

	startX := e.rules.Grid / 2
	startY := e.rules.Grid / 2
	e.body = make([]structs.Cell, 0, e.rules.StartLength+1)
	for i := 0; i < e.rules.StartLength; i++ {
		e.body = append(e.body, structs.Cell{X: startX - i, Y: startY})
	}

	e.spawnFood()

	e.best = e.bests[e.mode]
	if e.keeper != nil {
		e.best = e.keeper.Best(e.mode)
	}

	e.bus.Emit(Event{Type: EventReset, Mode: e.mode, State: e.state})
}

// Start 开始或继续一局。已结束的局会先重置。
func (e *Engine) Start() {
	switch e.state {
	case structs.Running:
		return
	case structs.Ended:
		e.Reset()
	}
	e.resume()
}

// TogglePause switches between Running and Paused. Idle and Ended ignore it.
func (e *Engine) TogglePause() {
	switch e.state {
	case structs.Running:
		e.setState(structs.Paused)
	case structs.Paused:
		e.resume()
	}
}

func (e *Engine) resume() {
	// 暂停期间不累计时间，恢复后重新记录基准
	e.clock.Rearm()
	e.framed = false
	e.setState(structs.Running)
}

// SetMode 切换边界模式，总是完整重置当前局
func (e *Engine) SetMode(mode structs.Mode) {
	e.mode = mode
	e.bus.Emit(Event{Type: EventModeChanged, Mode: mode, State: e.state})
	e.Reset()
}

// SetDirection queues h for the next step. A reversal of the committed heading
// is dropped silently, and a later call before the next step overwrites the
// queued value. It reports whether h was queued.
func (e *Engine) SetDirection(h structs.Heading) bool {
	if !h.Valid() {
		return false
	}
	if e.state != structs.Running && e.state != structs.Paused {
		return false
	}
	if h == e.heading.Reverse() {
		return false
	}
	e.queued = h
	e.hasQueued = true
	return true
}

// Frame is called by the render loop with a monotonic timestamp in
// milliseconds. It expires stale food and fires at most one step.
func (e *Engine) Frame(now int64) Result {
	if e.state != structs.Running {
		return Result{}
	}
	e.now = now
	if e.framed && e.food != nil {
		e.foodAge += now - e.lastFrame
	}
	e.lastFrame = now
	e.framed = true

	if e.rules.FoodTTLMs > 0 && e.food != nil && e.foodAge >= e.rules.FoodTTLMs {
		e.spawnFood()
		ev := Event{Type: EventFoodExpired, Score: e.score, State: e.state, Mode: e.mode}
		if e.food != nil {
			ev.Cell = e.food.Cell()
		}
		e.bus.Emit(ev)
	}

	if !e.clock.Tick(now, int64(e.tickMs)) {
		return Result{}
	}
	return e.Step()
}

// Step applies the movement rules once. Only a Running engine moves.
func (e *Engine) Step() Result {
	if e.state != structs.Running {
		return Result{}
	}

	// 食物无效或与蛇重叠时先重新生成
	if e.food == nil || e.occupied(e.food.Cell()) {
		e.spawnFood()
	}

	if e.hasQueued {
		e.heading = e.queued
		e.hasQueued = false
	}

	next := e.body[0].Add(e.heading)
	wrapped := false
	if !e.inBounds(next) {
		if e.mode != structs.Wrapping {
			e.end(structs.CauseWall)
			return Result{Applied: true, Cause: structs.CauseWall}
		}
		next.X, next.Y = WrapPosition(next.X, next.Y, e.rules.Grid, e.rules.Grid)
		wrapped = true
	}

	eating := e.food != nil && next == e.food.Cell()

	// 尾巴这一步会离开，所以不算碰撞；吃到食物时尾巴不动
	limit := len(e.body) - 1
	if eating {
		limit = len(e.body)
	}
	for i := 0; i < limit; i++ {
		if e.body[i] == next {
			e.end(structs.CauseSelf)
			return Result{Applied: true, Cause: structs.CauseSelf}
		}
	}

	e.body = append(e.body, structs.Cell{})
	copy(e.body[1:], e.body[:len(e.body)-1])
	e.body[0] = next

	if wrapped {
		e.bus.Emit(Event{Type: EventWrapped, Cell: next, Score: e.score, State: e.state, Mode: e.mode})
	}

	if eating {
		e.score += e.rules.ScorePerFood
		e.foodsEaten++
		if e.foodsEaten%e.rules.SpeedupEvery == 0 {
			e.tickMs -= e.rules.SpeedupStepMs
			if e.tickMs < e.rules.MinTickMs {
				e.tickMs = e.rules.MinTickMs
			}
		}
		e.bus.Emit(Event{Type: EventAte, Cell: next, Score: e.score, State: e.state, Mode: e.mode})
		e.spawnFood()
	} else {
		e.body = e.body[:len(e.body)-1]
	}

	e.recordBest()
	e.bus.Emit(Event{Type: EventStepped, Cell: next, Score: e.score, State: e.state, Mode: e.mode})
	return Result{Applied: true, Ate: eating, Wrapped: wrapped}
}

func (e *Engine) end(cause structs.EndCause) {
	e.cause = cause
	e.recordBest()
	e.bus.Emit(Event{Type: EventCollided, Cell: e.body[0], Cause: cause, Score: e.score, State: structs.Ended, Mode: e.mode})
	e.setState(structs.Ended)
}

func (e *Engine) setState(s structs.RunState) {
	if e.state == s {
		return
	}
	e.state = s
	e.bus.Emit(Event{Type: EventStateChanged, Score: e.score, State: s, Mode: e.mode, Cause: e.cause})
}

func (e *Engine) recordBest() {
	if e.score <= e.best {
		return
	}
	e.best = e.score
	e.bests[e.mode] = e.score
	if e.keeper != nil {
		e.keeper.SaveBest(e.mode, e.score)
	}
}

func (e *Engine) inBounds(c structs.Cell) bool {
	return c.X >= 0 && c.X < e.rules.Grid && c.Y >= 0 && c.Y < e.rules.Grid
}

func (e *Engine) occupied(c structs.Cell) bool {
	for _, b := range e.body {
		if b == c {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the state for rendering; it has no side effects.
func (e *Engine) Snapshot() structs.Snapshot {
	body := make([]structs.Cell, len(e.body))
	copy(body, e.body)
	var food *structs.Food
	if e.food != nil {
		f := *e.food
		food = &f
	}
	return structs.Snapshot{
		Grid:            e.rules.Grid,
		Snake:           body,
		Food:            food,
		Heading:         e.heading,
		Score:           e.score,
		Best:            e.best,
		FoodsEaten:      e.foodsEaten,
		TickMs:          e.tickMs,
		SpeedMultiplier: float64(e.rules.BaseTickMs) / float64(e.tickMs),
		Mode:            e.mode.ID(),
		ModeLabel:       e.mode.Label(),
		State:           e.state.String(),
		Cause:           e.cause,
	}
}

// WrapPosition 把坐标按棋盘大小取模，任意越界距离都能回到棋盘内
func WrapPosition(x, y, width, height int) (int, int) {
	x %= width
	if x < 0 {
		x += width
	}
	y %= height
	if y < 0 {
		y += height
	}
	return x, y
}
