package canvas

import (
	"image"
	"image/color"
	"math"
)

// Hit reports what lies under the surface point x, y. Handles only exist
// while the rug is selected.
func (c *Canvas) Hit(x, y float64) (Target, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return TargetNone, ErrDisposed
	}
	return c.hit(x, y), nil
}

func (c *Canvas) hit(x, y float64) Target {
	lx, ly := c.toLocal(x, y)
	hw, hh := c.halfExtent()
	tol := handleSize/2 + 2

	if c.selected {
		if math.Abs(lx) <= tol && math.Abs(ly-(-hh-rotateDistance)) <= tol {
			return TargetRotate
		}
		for _, corner := range [][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}} {
			if math.Abs(lx-corner[0]) <= tol && math.Abs(ly-corner[1]) <= tol {
				return TargetCorner
			}
		}
	}
	if math.Abs(lx) <= hw && math.Abs(ly) <= hh {
		return TargetBody
	}
	if x >= 0 && y >= 0 && x < float64(c.width) && y < float64(c.height) {
		return TargetBackground
	}
	return TargetNone
}

// PointerDown starts an interaction at x, y. Pressing the rug selects it;
// pressing the background clears the selection and starts nothing.
func (c *Canvas) PointerDown(x, y float64) (Target, error) {
	var target Target
	err := c.mutate(func() error {
		target = c.hit(x, y)
		switch target {
		case TargetBody, TargetCorner, TargetRotate:
			c.selected = true
			c.drag = &drag{
				target:    target,
				lastX:     x,
				lastY:     y,
				startDist: math.Hypot(x-c.pose.X, y-c.pose.Y),
				startAng:  math.Atan2(y-c.pose.Y, x-c.pose.X),
				startPose: c.pose,
			}
		default:
			c.selected = false
			c.drag = nil
		}
		return nil
	})
	return target, err
}

// PointerMove continues the active interaction. Corner drags scale
// proportionally around the centre; the rotate handle turns the rug.
func (c *Canvas) PointerMove(x, y float64) error {
	return c.mutate(func() error {
		d := c.drag
		if d == nil {
			return nil
		}
		switch d.target {
		case TargetBody:
			c.pose.X += x - d.lastX
			c.pose.Y += y - d.lastY
		case TargetCorner:
			if d.startDist == 0 {
				break
			}
			f := math.Hypot(x-c.pose.X, y-c.pose.Y) / d.startDist
			rb := c.rug.Bounds()
			minF := minRugSize / (math.Min(float64(rb.Dx())*d.startPose.ScaleX, float64(rb.Dy())*d.startPose.ScaleY))
			if f < minF {
				f = minF
			}
			c.pose.ScaleX = d.startPose.ScaleX * f
			c.pose.ScaleY = d.startPose.ScaleY * f
		case TargetRotate:
			delta := math.Atan2(y-c.pose.Y, x-c.pose.X) - d.startAng
			c.pose.RotationDeg = normalizeAngle(d.startPose.RotationDeg + delta*180/math.Pi)
		}
		d.lastX, d.lastY = x, y
		return nil
	})
}

// PointerUp ends the active interaction
func (c *Canvas) PointerUp() error {
	return c.mutate(func() error {
		c.drag = nil
		return nil
	})
}

// drawSelection outlines the rug and draws its handles
func (c *Canvas) drawSelection(dst *image.NRGBA) {
	hw, hh := c.halfExtent()
	corners := [][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}

	for i := range corners {
		x0, y0 := c.toSurface(corners[i][0], corners[i][1])
		next := corners[(i+1)%len(corners)]
		x1, y1 := c.toSurface(next[0], next[1])
		drawLine(dst, x0, y0, x1, y1, borderColor)
	}

	tx, ty := c.toSurface(0, -hh)
	rx, ry := c.toSurface(0, -hh-rotateDistance)
	drawLine(dst, tx, ty, rx, ry, borderColor)

	for _, corner := range corners {
		x, y := c.toSurface(corner[0], corner[1])
		drawHandle(dst, x, y)
	}
	drawHandle(dst, rx, ry)
}

func drawLine(dst *image.NRGBA, x0, y0, x1, y1 float64, col color.NRGBA) {
	steps := int(math.Ceil(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))))
	if steps == 0 {
		dst.SetNRGBA(int(x0), int(y0), col)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		dst.SetNRGBA(int(math.Round(x0+(x1-x0)*t)), int(math.Round(y0+(y1-y0)*t)), col)
	}
}

func drawHandle(dst *image.NRGBA, cx, cy float64) {
	half := int(handleSize / 2)
	x, y := int(math.Round(cx)), int(math.Round(cy))
	for py := y - half; py <= y+half; py++ {
		for px := x - half; px <= x+half; px++ {
			if px == x-half || px == x+half || py == y-half || py == y+half {
				dst.SetNRGBA(px, py, borderColor)
			} else {
				dst.SetNRGBA(px, py, handleFill)
			}
		}
	}
}
