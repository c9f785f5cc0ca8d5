package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-vidcount/tracker"
	"gocv.io/x/gocv"
)

// boxLabel holds the details of a label drawn above a bounding box
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// DetectionBoxes renders the bounding boxes around the objects detected in
// a single frame
func DetectionBoxes(img *gocv.Mat, dets []tracker.Detection, font Font,
	lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(dets))

	for i, det := range dets {

		useClr := colorFor(i)
		rect := toRect(det.Box)

		gocv.Rectangle(img, rect, useClr, lineThickness)

		text := fmt.Sprintf("%s %.2f", det.Label, det.Score)
		boxLabels = append(boxLabels, placeLabel(rect, text, useClr, font, lineThickness))
	}

	drawLabels(img, boxLabels, font)
}

// TrackerBoxes renders the bounding boxes of the live tracked objects with
// their id.  Objects not matched in the current frame are drawn with a thin
// line at their last known position.
func TrackerBoxes(img *gocv.Mat, objs []tracker.TrackedObject, font Font,
	lineThickness int) {

	boxLabels := make([]boxLabel, 0, len(objs))

	for _, obj := range objs {

		useClr := colorFor(obj.ID)
		rect := toRect(obj.Box())

		thickness := lineThickness

		if obj.Disappeared > 0 {
			thickness = 1
		}

		gocv.Rectangle(img, rect, useClr, thickness)

		text := fmt.Sprintf("%s %d", obj.Label, obj.ID)
		boxLabels = append(boxLabels, placeLabel(rect, text, useClr, font, lineThickness))
	}

	drawLabels(img, boxLabels, font)
}

// Counts renders the running per label counts in the top left corner
func Counts(img *gocv.Mat, counts map[string]int, labels []string, font Font) {

	y := 20

	for _, label := range labels {

		n, ok := counts[label]

		if !ok {
			continue
		}

		text := fmt.Sprintf("%s: %d", label, n)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		gocv.Rectangle(img, image.Rect(5, y-textSize.Y-font.TopPad,
			10+textSize.X+font.RightPad, y+font.TopPad), Black, -1)

		gocv.PutTextWithParams(img, text, image.Pt(10, y), font.Face,
			font.Scale, font.Color, font.Thickness, font.LineType, false)

		y += textSize.Y + font.TopPad + font.BottomPad
	}
}

// toRect converts a bounding box to integer pixel coordinates
func toRect(b tracker.BBox) image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// placeLabel calculates where a box label is drawn for the font alignment
func placeLabel(rect image.Rectangle, text string, clr color.RGBA, font Font,
	lineThickness int) boxLabel {

	textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

	// Calculate the alignment of text label
	var centerX int

	switch font.Alignment {
	case Center:
		centerX = (rect.Min.X + rect.Max.X) / 2

	case Right:
		centerX = rect.Max.X - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

	case Left:
		fallthrough
	default:
		centerX = rect.Min.X + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
	}

	return boxLabel{
		rect: image.Rect(centerX-textSize.X/2-font.LeftPad,
			rect.Min.Y-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, rect.Min.Y),
		clr:     clr,
		text:    text,
		textPos: image.Pt(centerX-textSize.X/2, rect.Min.Y-font.BottomPad),
	}
}

// drawLabels draws the labels after all boxes so they are the top most layer
func drawLabels(img *gocv.Mat, boxLabels []boxLabel, font Font) {

	for _, box := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(img, box.rect, box.clr, -1)

		// Draw the label over box
		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}
