package ui

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camera-viewer-go/internal/helpers"
	"camera-viewer-go/internal/player"
)

func TestStatusText(t *testing.T) {
	authErr := &player.StreamError{Category: player.ErrCategoryAuth, Err: errors.New("exit status 1")}

	tests := []struct {
		name string
		st   player.Status
		want string
	}{
		{"idle", player.Status{State: player.StateIdle}, "Autoplay off"},
		{"connecting", player.Status{State: player.StateConnecting}, "Connecting..."},
		{"playing", player.Status{State: player.StatePlaying}, ""},
		{"retrying", player.Status{State: player.StateRetrying, Attempt: 2, RetryIn: 2 * time.Second}, "Reconnecting in 2s (2/5)"},
		{"failed classified", player.Status{State: player.StateFailed, Err: authErr}, "Failed: auth error"},
		{"failed other", player.Status{State: player.StateFailed, Err: errors.New("boom")}, "Failed"},
		{"ended", player.Status{State: player.StateEnded}, "Stream ended"},
		{"stopped", player.Status{State: player.StateStopped}, "Stopped"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusText(tt.st, 5))
		})
	}
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestApplyNightModeRGBA(t *testing.T) {
	src := solid(4, 2, color.RGBA{100, 100, 100, 255})
	dst := applyNightMode(src, nil)

	require.Equal(t, src.Bounds(), dst.Bounds())
	assert.Equal(t, color.RGBA{160, 0, 0, 255}, dst.RGBAAt(1, 1))

	white := applyNightMode(solid(4, 2, color.RGBA{255, 255, 255, 255}), dst)
	assert.Same(t, dst, white, "buffer is reused")
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, white.RGBAAt(0, 0), "gain saturates")
}

func TestApplyNightModeYCbCr(t *testing.T) {
	src := image.NewYCbCr(image.Rect(0, 0, 4, 4), image.YCbCrSubsampleRatio420)
	for i := range src.Y {
		src.Y[i] = 50
	}
	dst := applyNightMode(src, nil)
	assert.Equal(t, color.RGBA{80, 0, 0, 255}, dst.RGBAAt(3, 3))
}

func TestApplyNightModeSubImage(t *testing.T) {
	src := solid(8, 8, color.RGBA{0, 0, 0, 255})
	src.SetRGBA(5, 5, color.RGBA{100, 100, 100, 255})
	sub := src.SubImage(image.Rect(4, 4, 8, 8))

	dst := applyNightMode(sub, nil)
	assert.Equal(t, image.Rect(0, 0, 4, 4), dst.Bounds())
	assert.Equal(t, color.RGBA{160, 0, 0, 255}, dst.RGBAAt(1, 1))
}

func TestCoverCrop(t *testing.T) {
	src := solid(400, 200, color.RGBA{1, 2, 3, 255})

	tests := []struct {
		name string
		w, h float32
		want image.Rectangle
	}{
		{"square tile trims width", 100, 100, image.Rect(100, 0, 300, 200)},
		{"tall tile", 100, 200, image.Rect(150, 0, 250, 200)},
		{"wide tile trims height", 400, 100, image.Rect(0, 50, 400, 150)},
		{"same aspect", 200, 100, image.Rect(0, 0, 400, 200)},
		{"zero size", 0, 0, image.Rect(0, 0, 400, 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coverCrop(src, tt.w, tt.h).Bounds())
		})
	}
}

func TestLayoutTiles(t *testing.T) {
	test.NewApp()
	tiles := make([]*StreamTile, 5)
	for i := range tiles {
		tiles[i] = NewStreamTile("cam", player.ResizeContain, nil, nil)
	}

	grid, ok := layoutTiles(helpers.LayoutGrid, 2, tiles).(*fyne.Container)
	require.True(t, ok)
	grid.Resize(fyne.NewSize(400, 300))
	assert.Equal(t, fyne.NewSize(200, 100), tiles[0].Size())
	assert.Equal(t, fyne.NewPos(200, 100), tiles[3].Position())

	_, ok = layoutTiles(helpers.LayoutStack, 2, tiles).(*container.Scroll)
	assert.True(t, ok)
}

func TestStreamTileInput(t *testing.T) {
	test.NewApp()
	taps, longTaps := 0, 0
	tile := NewStreamTile("cam", player.ResizeCover, func() { taps++ }, func() { longTaps++ })

	test.Tap(tile)
	assert.Equal(t, 1, taps)

	test.TapSecondary(tile)
	assert.Equal(t, 1, longTaps)

	tile.SetStatus("Connecting...")
	assert.Equal(t, "Connecting...", tile.Status())
	assert.False(t, tile.status.Hidden)
	tile.SetStatus("")
	assert.True(t, tile.status.Hidden)

	tile.SetFrame(solid(2, 2, color.RGBA{}))
	tile.SetFrame(nil)
	assert.Equal(t, uint64(1), tile.Frames())
}
