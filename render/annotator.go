package render

import (
	"sort"

	"github.com/swdee/go-vidcount/tracker"
	"gocv.io/x/gocv"
)

// Annotator draws tracked objects, their trails and the running counts onto
// the frames of one video
type Annotator struct {
	Font          Font
	Style         TrailStyle
	LineThickness int
	trail         *tracker.Trail
	registered    map[int]string
}

// NewAnnotator returns an Annotator keeping trailSize centroids per object
func NewAnnotator(trailSize int) *Annotator {
	return &Annotator{
		Font:          DefaultFont(),
		Style:         DefaultTrailStyle(),
		LineThickness: 2,
		trail:         tracker.NewTrail(trailSize),
		registered:    make(map[int]string),
	}
}

// Draw annotates img with the state of the tracker after the frame was
// processed.  The count overlay shows every object seen so far per label.
func (a *Annotator) Draw(img *gocv.Mat, objs []tracker.TrackedObject) {

	a.trail.Add(objs)

	for _, obj := range objs {
		a.registered[obj.ID] = obj.Label
	}

	counts := make(map[string]int)

	for _, label := range a.registered {
		counts[label]++
	}

	labels := make([]string, 0, len(counts))

	for label := range counts {
		labels = append(labels, label)
	}

	sort.Strings(labels)

	Trail(img, objs, a.trail, a.Style)
	TrackerBoxes(img, objs, a.Font, a.LineThickness)
	Counts(img, counts, labels, a.Font)
}
