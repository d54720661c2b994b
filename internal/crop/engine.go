package crop

import (
	"errors"
	"image"
	"image/draw"
	"math"
)

// Options configures an Engine
type Options struct {
	InitialRatio float64
	MinWidth     float64
	MinHeight    float64
}

// DefaultOptions returns the standard crop settings
func DefaultOptions() Options {
	return Options{
		InitialRatio: DefaultInitialRatio,
		MinWidth:     DefaultMinWidth,
		MinHeight:    DefaultMinHeight,
	}
}

// Engine tracks an in-progress crop over one still image. The image is
// displayed at some size (which may not match its native aspect ratio) and
// all gestures are in displayed coordinates.
type Engine struct {
	img    image.Image
	bounds Bounds
	region Region
}

// Begin starts a crop over img shown at display. A zero display size means
// the image is shown at its native size.
func Begin(img image.Image, display Size, opts Options) (*Engine, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("cannot crop an empty image")
	}
	if display.Width <= 0 || display.Height <= 0 {
		display = nativeSize(img)
	}
	if opts.MinWidth <= 0 {
		opts.MinWidth = DefaultMinWidth
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = DefaultMinHeight
	}
	b := Bounds{Image: display, Min: Size{Width: opts.MinWidth, Height: opts.MinHeight}}
	return &Engine{
		img:    img,
		bounds: b,
		region: Initial(b, opts.InitialRatio),
	}, nil
}

// Region returns the current selection in displayed coordinates
func (e *Engine) Region() Region {
	return e.region
}

// Display returns the displayed image size
func (e *Engine) Display() Size {
	return e.bounds.Image
}

// Drag translates the selection
func (e *Engine) Drag(dx, dy float64) Region {
	e.region = Drag(e.region, e.bounds, dx, dy)
	return e.region
}

// Resize moves the edges named by h
func (e *Engine) Resize(h Handle, dx, dy float64) Region {
	e.region = Resize(e.region, e.bounds, h, dx, dy)
	return e.region
}

// NativeRect maps the selection onto native pixel coordinates. Each axis is
// scaled independently.
func (e *Engine) NativeRect() image.Rectangle {
	b := e.img.Bounds()
	scaleX := float64(b.Dx()) / e.bounds.Image.Width
	scaleY := float64(b.Dy()) / e.bounds.Image.Height

	r := image.Rect(
		b.Min.X+int(math.Round(e.region.Left*scaleX)),
		b.Min.Y+int(math.Round(e.region.Top*scaleY)),
		b.Min.X+int(math.Round(e.region.Right()*scaleX)),
		b.Min.Y+int(math.Round(e.region.Bottom()*scaleY)),
	)
	return r.Intersect(b)
}

// Commit produces a new image holding the selected native pixels. The
// source image is left untouched.
func (e *Engine) Commit() (image.Image, error) {
	r := e.NativeRect()
	if r.Empty() {
		return nil, errors.New("crop region is empty")
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), e.img, r.Min, draw.Src)
	return out, nil
}

func nativeSize(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}
