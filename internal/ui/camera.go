package ui

import (
	"image"
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"camera-viewer-go/internal/player"
)

const longPressDuration = 600 * time.Millisecond

var (
	tileBackground = color.RGBA{25, 25, 25, 255}
	tileStatusText = color.RGBA{180, 180, 180, 255}
	tileNameText   = color.RGBA{230, 230, 230, 255}
)

// StreamTile shows the frames of one camera with its name and a status
// overlay. Tap and long-press are reported through the callbacks.
type StreamTile struct {
	widget.BaseWidget

	image  *canvas.Image
	bg     *canvas.Rectangle
	name   *canvas.Text
	status *canvas.Text

	onTap     func()
	onLongTap func()

	mu             sync.Mutex
	longPressTimer *time.Timer
	longPressFired bool
	tapHandled     bool
	frames         uint64
}

// NewStreamTile creates a tile with a dark placeholder frame.
func NewStreamTile(name string, mode player.ResizeMode, onTap, onLongTap func()) *StreamTile {
	t := &StreamTile{
		image:     canvas.NewImageFromImage(placeholderFrame(320, 240)),
		bg:        canvas.NewRectangle(tileBackground),
		name:      canvas.NewText(name, tileNameText),
		status:    canvas.NewText("", tileStatusText),
		onTap:     onTap,
		onLongTap: onLongTap,
	}
	t.image.FillMode = fillModeFor(mode)
	t.name.TextSize = 13
	t.status.TextSize = 18
	t.status.Alignment = fyne.TextAlignCenter
	t.status.Hidden = true

	t.ExtendBaseWidget(t)
	return t
}

func fillModeFor(mode player.ResizeMode) canvas.ImageFill {
	switch mode {
	case player.ResizeStretch, player.ResizeCover:
		// cover frames are cropped before display, then fill the tile
		return canvas.ImageFillStretch
	}
	return canvas.ImageFillContain
}

func placeholderFrame(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	stride := img.Stride
	for x := 0; x < width; x++ {
		off := x * 4
		img.Pix[off+0] = tileBackground.R
		img.Pix[off+1] = tileBackground.G
		img.Pix[off+2] = tileBackground.B
		img.Pix[off+3] = tileBackground.A
	}
	first := img.Pix[:stride]
	for y := 1; y < height; y++ {
		copy(img.Pix[y*stride:(y+1)*stride], first)
	}
	return img
}

func (t *StreamTile) CreateRenderer() fyne.WidgetRenderer {
	// bg, frame, centered status, name in the top-left corner
	nameBar := container.NewVBox(container.NewHBox(t.name))
	c := container.NewStack(t.bg, t.image, container.NewCenter(t.status), nameBar)
	return widget.NewSimpleRenderer(c)
}

// SetMinFrameSize sets the smallest size the frame may be drawn at.
func (t *StreamTile) SetMinFrameSize(size fyne.Size) {
	t.image.SetMinSize(size)
}

// SetFrame shows img.
func (t *StreamTile) SetFrame(img image.Image) {
	if img == nil {
		return
	}
	t.mu.Lock()
	t.frames++
	t.mu.Unlock()

	t.image.Image = img
	t.image.Refresh()
}

// Frames returns how many frames were shown.
func (t *StreamTile) Frames() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// SetStatus shows text over the frame; empty text hides the overlay.
func (t *StreamTile) SetStatus(text string) {
	t.status.Text = text
	t.status.Hidden = text == ""
	t.status.Refresh()
}

// Status returns the overlay text.
func (t *StreamTile) Status() string {
	return t.status.Text
}

// MouseDown starts the long-press timer.
func (t *StreamTile) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.longPressFired = false
	t.tapHandled = false
	if t.longPressTimer != nil {
		t.longPressTimer.Stop()
	}
	t.longPressTimer = time.AfterFunc(longPressDuration, func() {
		t.mu.Lock()
		t.longPressFired = true
		t.mu.Unlock()
		if t.onLongTap != nil {
			t.onLongTap()
		}
	})
}

// MouseUp cancels the long-press timer, or taps if it had not fired yet.
func (t *StreamTile) MouseUp(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	t.mu.Lock()
	if t.longPressTimer != nil {
		t.longPressTimer.Stop()
		t.longPressTimer = nil
	}
	fired := t.longPressFired
	if !fired {
		t.tapHandled = true
	}
	t.mu.Unlock()

	if !fired && t.onTap != nil {
		t.onTap()
	}
}

// Tapped handles touch input, which arrives without mouse events.
func (t *StreamTile) Tapped(_ *fyne.PointEvent) {
	t.mu.Lock()
	handled := t.tapHandled
	fired := t.longPressFired
	t.tapHandled = false
	t.mu.Unlock()

	if !handled && !fired && t.onTap != nil {
		t.onTap()
	}
}

// TappedSecondary treats a right click as a long press.
func (t *StreamTile) TappedSecondary(_ *fyne.PointEvent) {
	if t.onLongTap != nil {
		t.onLongTap()
	}
}
