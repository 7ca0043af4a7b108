package snake

import (
	"testing"

	"github.com/hoshinonyaruko/snakeplus/structs"
	"golang.org/x/exp/rand"
)

func smallEngine(t *testing.T) *Engine {
	t.Helper()
	r := DefaultRules()
	r.Grid = 4
	return New(r, structs.Wrapping, WithSeed(11))
}

func fillExcept(n int, free ...structs.Cell) []structs.Cell {
	skip := make(map[structs.Cell]bool)
	for _, c := range free {
		skip[c] = true
	}
	var body []structs.Cell
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			c := structs.Cell{X: x, Y: y}
			if !skip[c] {
				body = append(body, c)
			}
		}
	}
	return body
}

func TestSpawnFoodFullBoard(t *testing.T) {
	e := smallEngine(t)
	e.body = fillExcept(4)
	e.spawnFood()
	if e.food != nil {
		t.Fatalf("full board should leave no food, got %+v", e.food)
	}
	if s := e.Snapshot(); s.Food != nil {
		t.Fatal("snapshot should carry the no-food sentinel")
	}
}

func TestSpawnFoodLastFreeCell(t *testing.T) {
	e := smallEngine(t)
	free := structs.Cell{X: 2, Y: 3}
	e.body = fillExcept(4, free)
	e.spawnFood()
	if e.food == nil || e.food.Cell() != free {
		t.Fatalf("want food at %v, got %+v", free, e.food)
	}
}

func TestSpawnFoodScanIsRowMajor(t *testing.T) {
	e := smallEngine(t)
	e.rules.FoodAttempts = 0
	e.body = []structs.Cell{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}}
	e.spawnFood()
	if e.food == nil || e.food.Cell() != (structs.Cell{X: 0, Y: 1}) {
		t.Fatalf("want (0,1), got %+v", e.food)
	}
}

// 随机游走，检查每一步之后的不变量
func TestRandomWalkInvariants(t *testing.T) {
	headings := []structs.Heading{structs.Up, structs.Down, structs.Left, structs.Right}
	for _, mode := range []structs.Mode{structs.Walled, structs.Wrapping} {
		r := rand.New(rand.NewSource(42))
		e := New(DefaultRules(), mode, WithRand(rand.New(rand.NewSource(99))))
		e.Start()
		lastTick := e.TickMs()
		for i := 0; i < 5000; i++ {
			e.SetDirection(headings[r.Intn(len(headings))])
			// 偶尔把食物放到蛇头前方，让蛇变长
			if r.Intn(4) == 0 {
				next := e.body[0].Add(e.heading)
				if e.inBounds(next) && !e.occupied(next) {
					e.food = &structs.Food{X: next.X, Y: next.Y}
				}
			}
			before := len(e.body)
			res := e.Step()

			seen := make(map[structs.Cell]bool, len(e.body))
			for _, c := range e.body {
				if seen[c] {
					t.Fatalf("%v: duplicate cell %v after step %d", mode, c, i)
				}
				if !e.inBounds(c) {
					t.Fatalf("%v: cell %v out of bounds", mode, c)
				}
				seen[c] = true
			}
			if e.food != nil && seen[e.food.Cell()] {
				t.Fatalf("%v: food on snake at step %d", mode, i)
			}
			switch {
			case res.Cause != structs.CauseNone:
				if len(e.body) != before {
					t.Fatalf("%v: collision changed length", mode)
				}
			case res.Ate:
				if len(e.body) != before+1 {
					t.Fatalf("%v: eating grew by %d", mode, len(e.body)-before)
				}
			default:
				if len(e.body) != before {
					t.Fatalf("%v: plain move changed length", mode)
				}
			}
			if e.TickMs() > lastTick || e.TickMs() < e.rules.MinTickMs {
				t.Fatalf("%v: tick %d after %d", mode, e.TickMs(), lastTick)
			}
			lastTick = e.TickMs()

			if e.State() == structs.Ended {
				e.Start()
				lastTick = e.TickMs()
			}
		}
	}
}
