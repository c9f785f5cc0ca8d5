package postprocess

import (
	"fmt"
)

// YOLOv8 defines the struct for YOLOv8 ONNX model inference post processing
type YOLOv8 struct {
	// Params are the Model configuration parameters
	Params YOLOv8Params
}

// YOLOv8Params defines the struct containing the YOLOv8 parameters to use
// for post processing operations
type YOLOv8Params struct {
	// BoxThreshold is the minimum probability score required for a bounding box
	// region to be considered for processing
	BoxThreshold float32
	// NMSThreshold is the Non-Maximum Suppression threshold used for defining
	// the maximum allowed Intersection Over Union (IoU) between two
	// bounding boxes for both to be kept
	NMSThreshold float32
	// ObjectClassNum is the number of different object classes the Model has
	// been trained with
	ObjectClassNum int
	// MaxObjectNumber is the maximum number of objects detected that can be
	// returned
	MaxObjectNumber int
}

// YOLOv8COCOParams returns an instance of YOLOv8Params configured with
// default values for a Model trained on the COCO dataset featuring:
// - Object Classes: 80
// - Box Threshold: 0.25
// - NMS Threshold: 0.45
// - Maximum Object Number: 300
func YOLOv8COCOParams() YOLOv8Params {
	return YOLOv8Params{
		BoxThreshold:    0.25,
		NMSThreshold:    0.45,
		ObjectClassNum:  80,
		MaxObjectNumber: 300,
	}
}

// NewYOLOv8 returns an instance of the YOLOv8 post processor
func NewYOLOv8(p YOLOv8Params) *YOLOv8 {
	return &YOLOv8{
		Params: p,
	}
}

// candidates holds the boxes that passed the score threshold
type candidates struct {
	// boxes in x1,y1,x2,y2 quads in model input coordinates
	boxes   []float32
	scores  []float32
	classID []int
}

// DetectObjects takes the raw output tensor of the model, either shaped
// [1, 4+classes, anchors] or [1, anchors, 4+classes], and returns the
// detected objects mapped back to source image coordinates
func (y *YOLOv8) DetectObjects(data []float32, shape []int,
	lb Letterbox) ([]DetectResult, error) {

	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected YOLOv8 output shape %v", shape)
	}

	rows, cols := shape[1], shape[2]

	if len(data) < rows*cols {
		return nil, fmt.Errorf("output has %d values, shape %v needs %d", len(data), shape, rows*cols)
	}

	// channels first when the attribute axis is the smaller one, unless the
	// class count pins down which axis holds the attributes
	transposed := rows < cols

	if y.Params.ObjectClassNum > 0 {
		want := y.Params.ObjectClassNum + 4

		switch want {
		case rows:
			transposed = true
		case cols:
			transposed = false
		default:
			return nil, fmt.Errorf("output shape %v does not hold %d classes", shape, y.Params.ObjectClassNum)
		}
	}

	channels, anchors := cols, rows

	if transposed {
		channels, anchors = rows, cols
	}

	classNum := channels - 4

	if classNum <= 0 {
		return nil, fmt.Errorf("output shape %v has no class scores", shape)
	}

	at := func(anchor, channel int) float32 {
		if transposed {
			return data[channel*anchors+anchor]
		}
		return data[anchor*channels+channel]
	}

	cands := candidates{}

	for a := 0; a < anchors; a++ {

		maxScore := float32(-1)
		maxClassID := -1

		for c := 0; c < classNum; c++ {
			if s := at(a, 4+c); s > maxScore {
				maxScore = s
				maxClassID = c
			}
		}

		if maxScore < y.Params.BoxThreshold {
			continue
		}

		cx, cy, w, h := at(a, 0), at(a, 1), at(a, 2), at(a, 3)

		cands.boxes = append(cands.boxes, cx-w/2, cy-h/2, cx+w/2, cy+h/2)
		cands.scores = append(cands.scores, maxScore)
		cands.classID = append(cands.classID, maxClassID)
	}

	if len(cands.scores) == 0 {
		// no object detected
		return nil, nil
	}

	order := sortIndicesByScore(cands.scores)
	nms(cands.boxes, cands.classID, order, y.Params.NMSThreshold)

	// collate objects into a result for returning
	group := make([]DetectResult, 0)

	for _, n := range order {

		if n == -1 {
			continue
		}

		if y.Params.MaxObjectNumber > 0 && len(group) >= y.Params.MaxObjectNumber {
			break
		}

		box := y.unletterbox(cands.boxes[n*4:n*4+4], lb)

		// boxes fully clipped by the image border have no area left
		if box.Right <= box.Left || box.Bottom <= box.Top {
			continue
		}

		group = append(group, DetectResult{
			Box:         box,
			Probability: cands.scores[n],
			Class:       cands.classID[n],
		})
	}

	return group, nil
}

// unletterbox maps a box from model input coordinates back to the source
// image, clipping it to the image bounds
func (y *YOLOv8) unletterbox(quad []float32, lb Letterbox) BoxRect {

	scale := lb.ScaleFactor()
	xPad := float32(lb.XPad())
	yPad := float32(lb.YPad())

	return BoxRect{
		Left:   clamp((quad[0]-xPad)/scale, 0, lb.SrcWidth()),
		Top:    clamp((quad[1]-yPad)/scale, 0, lb.SrcHeight()),
		Right:  clamp((quad[2]-xPad)/scale, 0, lb.SrcWidth()),
		Bottom: clamp((quad[3]-yPad)/scale, 0, lb.SrcHeight()),
	}
}
