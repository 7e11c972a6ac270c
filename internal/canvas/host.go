package canvas

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/threadline-rugs/roomview/internal/models"
)

const (
	// ResizeDebounce is how long Host waits for resizes to settle
	ResizeDebounce = 200 * time.Millisecond
	// ResizeThreshold is the width change that triggers a re-mount
	ResizeThreshold = 50
)

// Factory builds a canvas for a container width
type Factory func(containerWidth int) (*Canvas, error)

// NewFactory returns a Factory for fixed images and starting pose
func NewFactory(background, rug image.Image, initial *models.PlacementTransform) Factory {
	return func(containerWidth int) (*Canvas, error) {
		return New(background, rug, containerWidth, initial)
	}
}

// Host owns at most one live canvas. Mounting always disposes the previous
// canvas before the new one is created.
type Host struct {
	mu       sync.Mutex
	factory  Factory
	canvas   *Canvas
	width    int
	timer    *time.Timer
	closed   bool
	Debounce time.Duration
	// OnMount is called with each newly mounted canvas
	OnMount func(*Canvas)
}

// NewHost creates a host that builds canvases with factory
func NewHost(factory Factory) *Host {
	return &Host{factory: factory, Debounce: ResizeDebounce}
}

// Mount disposes the current canvas and creates one for width
func (h *Host) Mount(width int) (*Canvas, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mount(width)
}

func (h *Host) mount(width int) (*Canvas, error) {
	if h.closed {
		return nil, ErrDisposed
	}
	if h.canvas != nil {
		h.canvas.Dispose()
		h.canvas = nil
	}

	c, err := h.factory(width)
	if err != nil {
		return nil, err
	}
	h.canvas = c
	h.width = width
	slog.Debug("Mounted placement canvas", "container_width", width)

	if h.OnMount != nil {
		h.OnMount(c)
	}
	return c, nil
}

// Canvas returns the live canvas, or nil
func (h *Host) Canvas() *Canvas {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canvas
}

// Resize reports a new container width. After the debounce interval the
// canvas is re-mounted if the width moved by more than ResizeThreshold.
func (h *Host) Resize(width int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(h.Debounce, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.closed || h.canvas == nil {
			return
		}
		delta := width - h.width
		if delta < 0 {
			delta = -delta
		}
		if delta <= ResizeThreshold {
			return
		}
		if _, err := h.mount(width); err != nil {
			slog.Error("Failed to re-mount canvas", "width", width, "err", err)
		}
	})
}

// Close disposes the live canvas and stops pending resizes
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	if h.timer != nil {
		h.timer.Stop()
	}
	if h.canvas != nil {
		h.canvas.Dispose()
		h.canvas = nil
	}
}
