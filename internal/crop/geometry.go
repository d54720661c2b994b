// Package crop implements rectangular region selection over a still image.
//
// Geometry is pure: every function takes a region and returns a new one.
// Regions are expressed in displayed-image coordinates and only mapped to
// native pixels on commit.
package crop

import (
	"fmt"
	"math"
)

const (
	// DefaultInitialRatio sizes a new region relative to the displayed image
	DefaultInitialRatio = 0.7
	// DefaultMinWidth and DefaultMinHeight floor the region size
	DefaultMinWidth  = 50
	DefaultMinHeight = 50
)

// Size is a width and height in displayed pixels
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Region is an axis-aligned rectangle
type Region struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge
func (r Region) Right() float64 { return r.Left + r.Width }

// Bottom returns the y coordinate of the bottom edge
func (r Region) Bottom() float64 { return r.Top + r.Height }

// Handle names the edge or corner being dragged during a resize
type Handle string

const (
	HandleN  Handle = "n"
	HandleS  Handle = "s"
	HandleE  Handle = "e"
	HandleW  Handle = "w"
	HandleNE Handle = "ne"
	HandleNW Handle = "nw"
	HandleSE Handle = "se"
	HandleSW Handle = "sw"
)

var handleAliases = map[string]Handle{
	"top":          HandleN,
	"bottom":       HandleS,
	"right":        HandleE,
	"left":         HandleW,
	"top-right":    HandleNE,
	"top-left":     HandleNW,
	"bottom-right": HandleSE,
	"bottom-left":  HandleSW,
}

// ParseHandle accepts compass names (n, se, ...) and their long forms (top, bottom-right, ...)
func ParseHandle(s string) (Handle, error) {
	switch h := Handle(s); h {
	case HandleN, HandleS, HandleE, HandleW, HandleNE, HandleNW, HandleSE, HandleSW:
		return h, nil
	}
	if h, ok := handleAliases[s]; ok {
		return h, nil
	}
	return "", fmt.Errorf("unknown resize handle %q", s)
}

func (h Handle) moves(edge byte) bool {
	for i := 0; i < len(h); i++ {
		if h[i] == edge {
			return true
		}
	}
	return false
}

// Bounds carries the image extent and the minimum region size used by the
// geometry functions.
type Bounds struct {
	Image Size
	Min   Size
}

// effectiveMin caps the minimum size at the image size so tiny images still
// yield a valid region.
func (b Bounds) effectiveMin() Size {
	return Size{
		Width:  math.Min(b.Min.Width, b.Image.Width),
		Height: math.Min(b.Min.Height, b.Image.Height),
	}
}

// Initial returns a region centered on the image and sized at ratio of each
// dimension.
func Initial(b Bounds, ratio float64) Region {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultInitialRatio
	}
	floor := b.effectiveMin()
	w := math.Max(b.Image.Width*ratio, floor.Width)
	h := math.Max(b.Image.Height*ratio, floor.Height)
	return Clamp(Region{
		Left:   (b.Image.Width - w) / 2,
		Top:    (b.Image.Height - h) / 2,
		Width:  w,
		Height: h,
	}, b)
}

// Drag translates r by (dx, dy) and keeps it fully inside the image
func Drag(r Region, b Bounds, dx, dy float64) Region {
	r = Clamp(r, b)
	r.Left = clamp(r.Left+dx, 0, b.Image.Width-r.Width)
	r.Top = clamp(r.Top+dy, 0, b.Image.Height-r.Height)
	return r
}

// Resize moves the edges named by h by (dx, dy). Each moving edge is clamped
// between the image border and the opposite edge offset by the minimum size,
// so the region cannot invert.
func Resize(r Region, b Bounds, h Handle, dx, dy float64) Region {
	r = Clamp(r, b)
	floor := b.effectiveMin()
	left, top, right, bottom := r.Left, r.Top, r.Right(), r.Bottom()

	if h.moves('n') {
		top = clamp(top+dy, 0, bottom-floor.Height)
	}
	if h.moves('s') {
		bottom = clamp(bottom+dy, top+floor.Height, b.Image.Height)
	}
	if h.moves('w') {
		left = clamp(left+dx, 0, right-floor.Width)
	}
	if h.moves('e') {
		right = clamp(right+dx, left+floor.Width, b.Image.Width)
	}

	return Region{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

// Clamp forces r into the image and up to the minimum size
func Clamp(r Region, b Bounds) Region {
	floor := b.effectiveMin()
	r.Width = clamp(r.Width, floor.Width, b.Image.Width)
	r.Height = clamp(r.Height, floor.Height, b.Image.Height)
	r.Left = clamp(r.Left, 0, b.Image.Width-r.Width)
	r.Top = clamp(r.Top, 0, b.Image.Height-r.Height)
	return r
}

// Contains reports whether r satisfies the bounds and minimum size, allowing
// for floating point rounding.
func (b Bounds) Contains(r Region) bool {
	const eps = 1e-9
	floor := b.effectiveMin()
	return r.Left >= -eps && r.Top >= -eps &&
		r.Right() <= b.Image.Width+eps && r.Bottom() <= b.Image.Height+eps &&
		r.Width >= floor.Width-eps && r.Height >= floor.Height-eps
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Max(lo, math.Min(v, hi))
}
