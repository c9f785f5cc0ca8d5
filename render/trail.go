package render

import (
	"image"

	"github.com/swdee/go-vidcount/tracker"
	"gocv.io/x/gocv"
)

// Trail draws the centroid history of each tracked object on the image
func Trail(img *gocv.Mat, objs []tracker.TrackedObject, trail *tracker.Trail,
	style TrailStyle) {

	for _, obj := range objs {

		objClr := colorFor(obj.ID)

		// determine style colors to use
		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		points := trail.GetPoints(obj.ID)

		for i := 1; i < len(points); i++ {
			// draw line segment of trail
			gocv.Line(img, toPoint(points[i-1]), toPoint(points[i]),
				lineClr, style.LineThickness)
		}

		if len(points) > 0 {
			// draw centroid circle at the most recent position
			gocv.Circle(img, toPoint(points[len(points)-1]), style.CircleRadius,
				circleClr, -1)
		}
	}
}

func toPoint(p tracker.Point) image.Point {
	return image.Pt(int(p.X), int(p.Y))
}
