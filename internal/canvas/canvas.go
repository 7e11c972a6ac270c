package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/threadline-rugs/roomview/internal/models"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var (
	// ErrDisposed is returned by every call on a disposed canvas
	ErrDisposed = errors.New("canvas has been disposed")
	// ErrLocked is returned for commands aimed at the background layer
	ErrLocked = errors.New("background layer is locked")
)

const (
	// ExportFileName is the download name of an exported canvas
	ExportFileName = "room-with-rug.png"
	// ExportScale is the pixel multiplier applied on export
	ExportScale = 2

	defaultWidthFraction = 0.3
	defaultCenterY       = 0.65
	centerY              = 0.6
	aspectLimit          = 0.75

	handleSize     = 10.0
	rotateDistance = 30.0
	minRugSize     = 10.0
)

// Layer identifies one of the two canvas layers
type Layer int

const (
	LayerBackground Layer = iota
	LayerRug
)

// Target is what a pointer event landed on
type Target int

const (
	TargetNone Target = iota
	TargetBackground
	TargetBody
	TargetCorner
	TargetRotate
)

func (t Target) String() string {
	switch t {
	case TargetBackground:
		return "background"
	case TargetBody:
		return "body"
	case TargetCorner:
		return "corner"
	case TargetRotate:
		return "rotate"
	default:
		return "none"
	}
}

var (
	borderColor = color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	handleFill  = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

type drag struct {
	target    Target
	lastX     float64
	lastY     float64
	startDist float64
	startAng  float64
	startPose models.PlacementTransform
}

// Canvas poses a rug image over a locked room photo. It is safe for
// concurrent use.
type Canvas struct {
	mu sync.Mutex

	background image.Image
	surface    *image.NRGBA
	rug        image.Image

	width  int
	height int

	pose     models.PlacementTransform
	selected bool
	drag     *drag
	onRedraw func()
	disposed bool
}

// New creates a canvas fitted to containerWidth with the rug selected.
// initial, when non-nil, is the starting pose; scale components that are not
// positive fall back to the default 30% width scale.
func New(background, rug image.Image, containerWidth int, initial *models.PlacementTransform) (*Canvas, error) {
	if background == nil || rug == nil {
		return nil, errors.New("both background and rug images are required")
	}
	bb, rb := background.Bounds(), rug.Bounds()
	if bb.Dx() == 0 || bb.Dy() == 0 || rb.Dx() == 0 || rb.Dy() == 0 {
		return nil, errors.New("images must not be empty")
	}
	if containerWidth <= 0 {
		return nil, fmt.Errorf("invalid container width %d", containerWidth)
	}

	w, h := FitSize(bb.Dx(), bb.Dy(), containerWidth)

	c := &Canvas{
		background: background,
		surface:    imaging.Resize(background, w, h, imaging.Lanczos),
		rug:        rug,
		width:      w,
		height:     h,
		selected:   true,
	}
	c.pose = c.defaultPose()
	if initial != nil {
		c.pose = *initial
		if c.pose.ScaleX <= 0 || c.pose.ScaleY <= 0 {
			d := c.defaultScale()
			if c.pose.ScaleX <= 0 {
				c.pose.ScaleX = d
			}
			if c.pose.ScaleY <= 0 {
				c.pose.ScaleY = d
			}
		}
	}
	return c, nil
}

// FitSize returns the display size of a bgW x bgH image inside a container
// of the given width, capped at a 4:3 height.
func FitSize(bgW, bgH, containerWidth int) (int, int) {
	cw := float64(containerWidth)
	s := math.Min(cw/float64(bgW), cw*aspectLimit/float64(bgH))
	return int(math.Round(float64(bgW) * s)), int(math.Round(float64(bgH) * s))
}

func (c *Canvas) defaultScale() float64 {
	return defaultWidthFraction * float64(c.width) / float64(c.rug.Bounds().Dx())
}

func (c *Canvas) defaultPose() models.PlacementTransform {
	s := c.defaultScale()
	return models.PlacementTransform{
		X:      float64(c.width) / 2,
		Y:      float64(c.height) * defaultCenterY,
		ScaleX: s,
		ScaleY: s,
	}
}

// OnRedraw registers fn to be called after every change that alters the frame
func (c *Canvas) OnRedraw(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRedraw = fn
}

// Size returns the on-screen surface dimensions
func (c *Canvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// Pose returns the rug layer pose
func (c *Canvas) Pose() (models.PlacementTransform, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return models.PlacementTransform{}, ErrDisposed
	}
	return c.pose, nil
}

// mutate applies fn under the lock and fires the redraw notification
func (c *Canvas) mutate(fn func() error) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	redraw := c.onRedraw
	c.mu.Unlock()

	if redraw != nil {
		redraw()
	}
	return nil
}

// Move shifts the rug by dx, dy surface pixels
func (c *Canvas) Move(dx, dy float64) error {
	return c.mutate(func() error {
		c.pose.X += dx
		c.pose.Y += dy
		return nil
	})
}

// MoveTo places the rug centre at x, y
func (c *Canvas) MoveTo(x, y float64) error {
	return c.mutate(func() error {
		c.pose.X, c.pose.Y = x, y
		return nil
	})
}

// ScaleUniform multiplies both scale components by f
func (c *Canvas) ScaleUniform(f float64) error {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid scale factor %v", f)
	}
	return c.mutate(func() error {
		c.pose.ScaleX *= f
		c.pose.ScaleY *= f
		return nil
	})
}

// Rotate turns the rug by deg degrees clockwise
func (c *Canvas) Rotate(deg float64) error {
	return c.mutate(func() error {
		c.pose.RotationDeg = normalizeAngle(c.pose.RotationDeg + deg)
		return nil
	})
}

// SetPose replaces the rug pose
func (c *Canvas) SetPose(t models.PlacementTransform) error {
	if t.ScaleX <= 0 || t.ScaleY <= 0 {
		return fmt.Errorf("invalid scale %vx%v", t.ScaleX, t.ScaleY)
	}
	return c.mutate(func() error {
		c.pose = t
		return nil
	})
}

// ResetToDefault restores the initial centred pose at 30% width and 0 degrees
// and selects the rug.
func (c *Canvas) ResetToDefault() error {
	return c.mutate(func() error {
		c.pose = c.defaultPose()
		c.selected = true
		return nil
	})
}

// CenterOnly moves the rug to the middle of the floor area, keeping its
// scale and rotation, and selects it.
func (c *Canvas) CenterOnly() error {
	return c.mutate(func() error {
		c.pose.X = float64(c.width) / 2
		c.pose.Y = float64(c.height) * centerY
		c.selected = true
		return nil
	})
}

// Select makes a layer active for interaction. The background cannot be selected.
func (c *Canvas) Select(l Layer) error {
	if l == LayerBackground {
		return ErrLocked
	}
	return c.mutate(func() error {
		c.selected = true
		return nil
	})
}

// Deselect clears the active selection
func (c *Canvas) Deselect() error {
	return c.mutate(func() error {
		c.selected = false
		return nil
	})
}

// Selected reports whether the rug is selected
func (c *Canvas) Selected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Dispose releases the canvas buffers. Every later call fails with ErrDisposed.
func (c *Canvas) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	c.background = nil
	c.surface = nil
	c.rug = nil
	c.drag = nil
	c.onRedraw = nil
}

// Disposed reports whether Dispose has been called
func (c *Canvas) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Render draws the on-screen frame, including the selection border and
// handles when the rug is selected.
func (c *Canvas) Render() (*image.NRGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, ErrDisposed
	}

	dst := imaging.Clone(c.surface)
	c.drawRug(dst, 1)
	if c.selected {
		c.drawSelection(dst)
	}
	return dst, nil
}

// ExportRaster renders the scene at twice the surface size without any
// selection decoration and encodes it as PNG. The rug is selected afterwards.
func (c *Canvas) ExportRaster() ([]byte, error) {
	var data []byte
	err := c.mutate(func() error {
		dst := imaging.Resize(c.background, c.width*ExportScale, c.height*ExportScale, imaging.Lanczos)
		c.drawRug(dst, ExportScale)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, dst, imaging.PNG); err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
		data = buf.Bytes()
		c.selected = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// transform maps rug image coordinates onto a surface scaled by k
func (c *Canvas) transform(k float64) f64.Aff3 {
	rb := c.rug.Bounds()
	hw, hh := float64(rb.Dx())/2, float64(rb.Dy())/2
	sin, cos := math.Sincos(c.pose.RotationDeg * math.Pi / 180)

	a := cos * c.pose.ScaleX
	b := -sin * c.pose.ScaleY
	d := sin * c.pose.ScaleX
	e := cos * c.pose.ScaleY
	tx := c.pose.X - a*(hw+float64(rb.Min.X)) - b*(hh+float64(rb.Min.Y))
	ty := c.pose.Y - d*(hw+float64(rb.Min.X)) - e*(hh+float64(rb.Min.Y))

	return f64.Aff3{a * k, b * k, tx * k, d * k, e * k, ty * k}
}

func (c *Canvas) drawRug(dst *image.NRGBA, k float64) {
	xdraw.CatmullRom.Transform(dst, c.transform(k), c.rug, c.rug.Bounds(), xdraw.Over, nil)
}

// halfExtent is half the rug's on-surface width and height
func (c *Canvas) halfExtent() (float64, float64) {
	rb := c.rug.Bounds()
	return float64(rb.Dx()) * c.pose.ScaleX / 2, float64(rb.Dy()) * c.pose.ScaleY / 2
}

// toLocal maps a surface point into the rug's unrotated frame around its centre
func (c *Canvas) toLocal(x, y float64) (float64, float64) {
	sin, cos := math.Sincos(c.pose.RotationDeg * math.Pi / 180)
	dx, dy := x-c.pose.X, y-c.pose.Y
	return cos*dx + sin*dy, -sin*dx + cos*dy
}

// toSurface is the inverse of toLocal
func (c *Canvas) toSurface(lx, ly float64) (float64, float64) {
	sin, cos := math.Sincos(c.pose.RotationDeg * math.Pi / 180)
	return c.pose.X + cos*lx - sin*ly, c.pose.Y + sin*lx + cos*ly
}

func normalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
