package tracker

import (
	"fmt"

	"github.com/swdee/go-vidcount/postprocess"
)

// DetectionsFromResults takes postprocess object detection results and
// converts them into tracker detections, resolving each class number to
// its label name
func DetectionsFromResults(results []postprocess.DetectResult, labels []string) []Detection {

	dets := make([]Detection, 0, len(results))

	for _, res := range results {

		label := fmt.Sprintf("class_%d", res.Class)

		if res.Class >= 0 && res.Class < len(labels) {
			label = labels[res.Class]
		}

		box := NewBBox(float64(res.Box.Left), float64(res.Box.Top),
			float64(res.Box.Right), float64(res.Box.Bottom))

		dets = append(dets, NewDetection(box, label, res.Probability).WithClassID(res.Class))
	}

	return dets
}
