package player

import (
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// FrameBuffer holds the latest decoded frame of one stream. The player
// goroutine writes as fast as frames arrive; the UI polls with ReadIfNew and
// only refreshes when the count moved.
type FrameBuffer struct {
	latest atomic.Pointer[image.Image]

	frameCount   atomic.Uint64
	lastFrameAt  atomic.Int64 // unix nanos
	droppedCount atomic.Uint64

	mu        sync.RWMutex
	startedAt time.Time
}

// NewFrameBuffer returns an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{startedAt: time.Now()}
}

// Write publishes frame. Never blocks.
func (fb *FrameBuffer) Write(frame image.Image) {
	fb.latest.Store(&frame)
	fb.frameCount.Add(1)
	fb.lastFrameAt.Store(time.Now().UnixNano())
}

// Read returns the latest frame, or nil before the first one.
func (fb *FrameBuffer) Read() image.Image {
	p := fb.latest.Load()
	if p == nil {
		return nil
	}
	return *p
}

// ReadIfNew returns the latest frame only if frames arrived since lastRead.
func (fb *FrameBuffer) ReadIfNew(lastRead uint64) (image.Image, uint64, bool) {
	count := fb.frameCount.Load()
	if count <= lastRead {
		return nil, lastRead, false
	}
	return fb.Read(), count, true
}

// FrameCount returns the number of frames written since the last Reset.
func (fb *FrameBuffer) FrameCount() uint64 {
	return fb.frameCount.Load()
}

// LastFrameTime returns when the last frame was written.
func (fb *FrameBuffer) LastFrameTime() time.Time {
	nanos := fb.lastFrameAt.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// Stats returns the average frame rate since the last Reset.
func (fb *FrameBuffer) Stats() (fps float64, total uint64, uptime time.Duration) {
	fb.mu.RLock()
	started := fb.startedAt
	fb.mu.RUnlock()

	uptime = time.Since(started)
	total = fb.frameCount.Load()
	if uptime.Seconds() > 0 {
		fps = float64(total) / uptime.Seconds()
	}
	return fps, total, uptime
}

// Stale reports whether no frame arrived within d. A buffer that never saw
// a frame is stale.
func (fb *FrameBuffer) Stale(d time.Duration) bool {
	last := fb.LastFrameTime()
	return last.IsZero() || time.Since(last) > d
}

// MarkDropped counts a frame the player discarded.
func (fb *FrameBuffer) MarkDropped() {
	fb.droppedCount.Add(1)
}

// Dropped returns the discarded frame count.
func (fb *FrameBuffer) Dropped() uint64 {
	return fb.droppedCount.Load()
}

// Reset clears the frame and the counters.
func (fb *FrameBuffer) Reset() {
	fb.mu.Lock()
	fb.latest.Store(nil)
	fb.frameCount.Store(0)
	fb.droppedCount.Store(0)
	fb.lastFrameAt.Store(0)
	fb.startedAt = time.Now()
	fb.mu.Unlock()
}
