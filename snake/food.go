package snake

import "github.com/hoshinonyaruko/snakeplus/structs"

// spawnFood 在空格子上随机放置食物。随机尝试失败后按行扫描第一个空格，
// 棋盘已满时食物为 nil。
func (e *Engine) spawnFood() {
	n := e.rules.Grid
	occupied := make([]bool, n*n)
	for _, c := range e.body {
		if e.inBounds(c) {
			occupied[c.Y*n+c.X] = true
		}
	}

	e.foodAge = 0
	if cell, ok := e.placeFood(occupied); ok {
		e.food = &structs.Food{X: cell.X, Y: cell.Y, SpawnedAt: e.now}
		return
	}
	e.food = nil
}

func (e *Engine) placeFood(occupied []bool) (structs.Cell, bool) {
	n := e.rules.Grid
	for attempt := 0; attempt < e.rules.FoodAttempts; attempt++ {
		x := e.rng.Intn(n)
		y := e.rng.Intn(n)
		if !occupied[y*n+x] {
			return structs.Cell{X: x, Y: y}, true
		}
	}
	return firstFree(occupied, n)
}

// firstFree scans in row-major order.
func firstFree(occupied []bool, n int) (structs.Cell, bool) {
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if !occupied[y*n+x] {
				return structs.Cell{X: x, Y: y}, true
			}
		}
	}
	return structs.Cell{}, false
}
