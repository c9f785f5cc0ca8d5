package postprocess

import (
	"math"
	"sort"
)

// clamp restricts the value x to be within the range min and max
func clamp(val float32, min, max int) float32 {

	if val > float32(min) {

		if val < float32(max) {
			return val
		}

		return float32(max)
	}

	return float32(min)
}

// sortIndicesByScore returns the candidate indices ordered by descending
// score
func sortIndicesByScore(scores []float32) []int {

	indices := make([]int, len(scores))

	for i := range indices {
		indices[i] = i
	}

	sort.SliceStable(indices, func(a, b int) bool {
		return scores[indices[a]] > scores[indices[b]]
	})

	return indices
}

// nms implements a class aware Non-Maximum Suppression (NMS) algorithm.  Boxes
// are given as x1,y1,x2,y2 quads and order holds the candidate indices sorted
// by descending score.  Suppressed entries in order are set to -1.
func nms(boxes []float32, classIDs, order []int, threshold float32) {

	for i := 0; i < len(order); i++ {

		n := order[i]

		if n == -1 {
			continue
		}

		for j := i + 1; j < len(order); j++ {
			m := order[j]

			if m == -1 || classIDs[m] != classIDs[n] {
				continue
			}

			iou := calculateOverlap(
				boxes[n*4+0], boxes[n*4+1], boxes[n*4+2], boxes[n*4+3],
				boxes[m*4+0], boxes[m*4+1], boxes[m*4+2], boxes[m*4+3],
			)

			if iou > threshold {
				order[j] = -1
			}
		}
	}
}

// calculateOverlap works out the Intersection of Union (IoU) value of two
// boxes dimensions
func calculateOverlap(xmin0, ymin0, xmax0, ymax0, xmin1, ymin1,
	xmax1, ymax1 float32) float32 {

	w := math.Max(0.0, math.Min(float64(xmax0), float64(xmax1))-math.Max(float64(xmin0), float64(xmin1)))
	h := math.Max(0.0, math.Min(float64(ymax0), float64(ymax1))-math.Max(float64(ymin0), float64(ymin1)))
	intersection := w * h

	area0 := (xmax0 - xmin0) * (ymax0 - ymin0)
	area1 := (xmax1 - xmin1) * (ymax1 - ymin1)

	union := area0 + area1 - float32(intersection)

	if union <= 0 {
		return 0.0
	}

	return float32(intersection) / union
}
