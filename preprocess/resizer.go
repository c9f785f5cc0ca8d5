package preprocess

import (
	"errors"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// ErrEmptySource is returned when asked to letterbox an empty image
var ErrEmptySource = errors.New("empty source image")

// LetterboxColor is the gray used by YOLOv8 for letterbox padding
var LetterboxColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Resizer letterboxes images of any size into a fixed model input size.  The
// scaling of the last image letterboxed is kept so boxes found on the model
// input can be mapped back onto the source image.  A Resizer is not safe for
// concurrent use.
type Resizer struct {
	// size is the model input size images are letterboxed into
	size image.Point
	// src is the size of the last source image
	src image.Point
	// scaled is the source size after scaling, before padding
	scaled image.Point
	// pad is the left and top padding
	pad   image.Point
	scale float32
	// Color is used for the padding
	Color color.RGBA
	// scratch holds the scaled image before padding
	scratch gocv.Mat
}

// NewResizer returns a Resizer for a model input of width x height
func NewResizer(width, height int) *Resizer {
	return &Resizer{
		size:    image.Pt(width, height),
		Color:   LetterboxColor,
		scratch: gocv.NewMat(),
	}
}

// Size returns the model input size
func (r *Resizer) Size() image.Point {
	return r.size
}

// SetSource recalculates the scaling for a source image of width x height,
// it is a no-op when the size matches the last one
func (r *Resizer) SetSource(width, height int) {

	src := image.Pt(width, height)

	if src == r.src {
		return
	}

	r.src = src

	scaleW := float32(r.size.X) / float32(src.X)
	scaleH := float32(r.size.Y) / float32(src.Y)

	// fit the longer side, the shorter side gets padded
	r.scaled = r.size
	r.scale = scaleH

	if scaleW < scaleH {
		r.scale = scaleW
		r.scaled.Y = int(float32(src.Y) * r.scale)
	} else {
		r.scaled.X = int(float32(src.X) * r.scale)
	}

	r.pad = r.size.Sub(r.scaled).Div(2)
}

// Letterbox scales src into dest keeping its aspect ratio and pads the
// remainder with Color, centering the image
func (r *Resizer) Letterbox(src gocv.Mat, dest *gocv.Mat) error {

	if src.Empty() {
		return ErrEmptySource
	}

	r.SetSource(src.Cols(), src.Rows())

	gocv.Resize(src, &r.scratch, r.scaled, 0, 0, gocv.InterpolationArea)

	rest := r.size.Sub(r.scaled).Sub(r.pad)

	gocv.CopyMakeBorder(r.scratch, dest, r.pad.Y, rest.Y, r.pad.X, rest.X,
		gocv.BorderConstant, r.Color)

	return nil
}

// ScaleFactor returns the scale applied to the last source image
func (r *Resizer) ScaleFactor() float32 {
	return r.scale
}

// XPad returns the left padding of the last letterbox
func (r *Resizer) XPad() int {
	return r.pad.X
}

// YPad returns the top padding of the last letterbox
func (r *Resizer) YPad() int {
	return r.pad.Y
}

// SrcWidth returns the width of the last source image
func (r *Resizer) SrcWidth() int {
	return r.src.X
}

// SrcHeight returns the height of the last source image
func (r *Resizer) SrcHeight() int {
	return r.src.Y
}

// Close frees the scratch image
func (r *Resizer) Close() error {
	return r.scratch.Close()
}
