package tracker

import (
	"fmt"
	"math"
)

// Point represents an x,y coordinate in frame pixel space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points
func (p Point) Distance(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Size represents the width and height of a bounding box
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BBox represents a bounding box with top-left (X1,Y1) and bottom-right (X2,Y2)
// corners in frame pixel coordinates
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// NewBBox creates a new BBox from its corner coordinates
func NewBBox(x1, y1, x2, y2 float64) BBox {
	return BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Width returns the width of the box
func (b BBox) Width() float64 {
	return b.X2 - b.X1
}

// Height returns the height of the box
func (b BBox) Height() float64 {
	return b.Y2 - b.Y1
}

// Size returns the width and height of the box
func (b BBox) Size() Size {
	return Size{Width: b.Width(), Height: b.Height()}
}

// Centroid returns the center point of the box
func (b BBox) Centroid() Point {
	return Point{
		X: (b.X1 + b.X2) / 2.0,
		Y: (b.Y1 + b.Y2) / 2.0,
	}
}

// Validate checks the box has positive area and finite coordinates
func (b BBox) Validate() error {

	for _, v := range []float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bbox %v has non-finite coordinate", b)
		}
	}

	if b.X1 >= b.X2 || b.Y1 >= b.Y2 {
		return fmt.Errorf("bbox %v requires x1<x2 and y1<y2", b)
	}

	return nil
}

// BBoxFromCentroid creates a box of the given size centered on point c
func BBoxFromCentroid(c Point, size Size) BBox {
	return BBox{
		X1: c.X - size.Width/2,
		Y1: c.Y - size.Height/2,
		X2: c.X + size.Width/2,
		Y2: c.Y + size.Height/2,
	}
}
