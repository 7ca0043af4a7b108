// Package render draws a board snapshot. Drawing is a pure read of the snapshot.
package render

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/hoshinonyaruko/snakeplus/memimg"
	"github.com/hoshinonyaruko/snakeplus/structs"
)

// Palette 绘图配色
type Palette struct {
	Board color.Color
	Grid  color.Color
	Food  color.Color
	Head  color.Color
	Body  color.Color
	Eye   color.Color
	Frame color.Color
	Dim   color.Color
	Text  color.Color
}

var DefaultPalette = Palette{
	Board: color.NRGBA{0x0a, 0x0d, 0x10, 0xff},
	Grid:  color.NRGBA{0xff, 0xff, 0xff, 0x29},
	Food:  color.NRGBA{0x34, 0xd3, 0x99, 0xff},
	Head:  color.NRGBA{0xea, 0xff, 0xf6, 0xff},
	Body:  color.NRGBA{0xa7, 0xf3, 0xd0, 0xff},
	Eye:   color.NRGBA{0x0c, 0x0f, 0x12, 0xd9},
	Frame: color.NRGBA{0xff, 0xff, 0xff, 0x2e},
	Dim:   color.NRGBA{0x00, 0x00, 0x00, 0x99},
	Text:  color.NRGBA{0xff, 0xff, 0xff, 0xff},
}

// ContrastPalette is used when the high-contrast option is on.
var ContrastPalette = Palette{
	Board: color.NRGBA{0x00, 0x00, 0x00, 0xff},
	Grid:  color.NRGBA{0xff, 0xff, 0xff, 0x55},
	Food:  color.NRGBA{0xff, 0xd6, 0x00, 0xff},
	Head:  color.NRGBA{0xff, 0xff, 0xff, 0xff},
	Body:  color.NRGBA{0x00, 0xe5, 0xff, 0xff},
	Eye:   color.NRGBA{0x00, 0x00, 0x00, 0xff},
	Frame: color.NRGBA{0xff, 0xff, 0xff, 0xaa},
	Dim:   color.NRGBA{0x00, 0x00, 0x00, 0xbb},
	Text:  color.NRGBA{0xff, 0xff, 0xff, 0xff},
}

// Board renders s at blockSize pixels per cell. Idle, Paused and Ended get a
// blurred board under a title card.
func Board(s structs.Snapshot, blockSize int, pal Palette) image.Image {
	size := s.Grid * blockSize
	dc := gg.NewContext(size, size)
	cell := float64(blockSize)

	// 背景
	dc.SetColor(pal.Board)
	dc.Clear()
	renderGrid(dc, s.Grid, blockSize, pal.Grid)

	// 食物
	if s.Food != nil {
		fx, fy := float64(s.Food.X)*cell, float64(s.Food.Y)*cell
		if tile, ok := memimg.GetTile("food"); ok {
			dc.DrawImage(tile, s.Food.X*blockSize, s.Food.Y*blockSize)
		} else {
			dc.SetColor(pal.Food)
			dc.DrawRoundedRectangle(fx+3, fy+3, cell-6, cell-6, math.Min(6, (cell-6)/2))
			dc.Fill()
		}
	}

	// 蛇，从尾到头画，头在最上层
	n := len(s.Snake)
	for i := n - 1; i >= 0; i-- {
		c := s.Snake[i]
		x, y := float64(c.X)*cell, float64(c.Y)*cell
		isHead := i == 0

		name := "body"
		if isHead {
			name = "head"
		}
		if tile, ok := memimg.GetTile(name); ok {
			dc.DrawImage(tile, c.X*blockSize, c.Y*blockSize)
			continue
		}

		col := pal.Body
		if isHead {
			col = pal.Head
		} else {
			t := float64(i) / math.Max(1, float64(n-1))
			col = withAlpha(col, 0.75+0.25*(1-t))
		}
		dc.SetColor(col)
		dc.DrawRoundedRectangle(x+2, y+2, cell-4, cell-4, math.Min(7, (cell-4)/2))
		dc.Fill()

		if isHead {
			r := math.Max(1.4, cell*0.06)
			dc.SetColor(pal.Eye)
			dc.DrawCircle(x+cell*0.35, y+cell*0.38, r)
			dc.DrawCircle(x+cell*0.65, y+cell*0.38, r)
			dc.Fill()
		}
	}

	// 边框
	dc.SetColor(pal.Frame)
	dc.SetLineWidth(2)
	dc.DrawRectangle(1, 1, float64(size)-2, float64(size)-2)
	dc.Stroke()

	title, text, ok := overlayText(s)
	if !ok {
		return dc.Image()
	}
	return renderOverlay(dc.Image(), title, text, pal)
}

func renderGrid(dc *gg.Context, grid, blockSize int, col color.Color) {
	size := float64(grid * blockSize)
	dc.SetColor(col)
	dc.SetLineWidth(1)
	for i := 1; i < grid; i++ {
		p := float64(i*blockSize) + 0.5
		dc.DrawLine(p, 0, p, size)
		dc.Stroke()
		dc.DrawLine(0, p, size, p)
		dc.Stroke()
	}
}

func overlayText(s structs.Snapshot) (string, string, bool) {
	switch s.State {
	case structs.Idle.String():
		return "Snake+", "Swipe to move. Eat the dot. Don't hit yourself.", true
	case structs.Paused.String():
		return "Paused", "Press pause to resume. Restart to reset.", true
	case structs.Ended.String():
		return "Game Over", s.Cause.Reason(), true
	}
	return "", "", false
}

func renderOverlay(board image.Image, title, text string, pal Palette) image.Image {
	blurred := imaging.Blur(board, 3)
	dc := gg.NewContextForImage(blurred)
	w, h := float64(dc.Width()), float64(dc.Height())

	dc.SetColor(pal.Dim)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	dc.SetColor(pal.Text)
	dc.DrawStringAnchored(title, w/2, h/2-12, 0.5, 0.5)
	dc.DrawStringWrapped(text, w/2, h/2+12, 0.5, 0, w*0.8, 1.4, gg.AlignCenter)
	return dc.Image()
}

func withAlpha(c color.Color, a float64) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(math.Round(float64(n.A) * a))
	return n
}

// SavePNG 保存图片，目录不存在时创建
func SavePNG(fileName string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return err
	}
	return gg.SavePNG(fileName, img)
}
