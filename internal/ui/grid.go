package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"

	"camera-viewer-go/internal/helpers"
)

// stackTileSize is the frame size of a tile in the stacked layout.
var stackTileSize = fyne.NewSize(480, 270)

// fillGridLayout places objects row by row in equally sized cells that
// fill all available space.
type fillGridLayout struct {
	rows, cols int
}

func (g *fillGridLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(100, 100)
}

func (g *fillGridLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	if len(objects) == 0 || g.rows < 1 || g.cols < 1 {
		return
	}

	cellWidth := size.Width / float32(g.cols)
	cellHeight := size.Height / float32(g.rows)

	for i, obj := range objects {
		row := i / g.cols
		col := i % g.cols
		obj.Move(fyne.NewPos(float32(col)*cellWidth, float32(row)*cellHeight))
		obj.Resize(fyne.NewSize(cellWidth, cellHeight))
	}
}

// layoutTiles arranges tiles for the multi view. The stack layout scrolls
// vertically with one tile per row; grid and auto fill the window.
func layoutTiles(layout string, columns int, tiles []*StreamTile) fyne.CanvasObject {
	objects := make([]fyne.CanvasObject, len(tiles))
	for i, t := range tiles {
		objects[i] = t
	}

	if layout == helpers.LayoutStack {
		for _, t := range tiles {
			t.SetMinFrameSize(stackTileSize)
		}
		return container.NewVScroll(container.NewVBox(objects...))
	}

	rows, cols := helpers.GridFor(layout, len(tiles), columns)
	return container.New(&fillGridLayout{rows: rows, cols: cols}, objects...)
}
