package tracker

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultMaxDisappeared is the default number of consecutive updates an
	// object may go unmatched before it is removed
	DefaultMaxDisappeared = 30
	// DefaultMaxDistance is the default maximum centroid distance in pixels
	// for associating an object with a detection
	DefaultMaxDistance = 100.0
	// registerMarginFactor is the fraction of the maximum distance an
	// unmatched detection must exceed from every existing object before it is
	// registered as a new object
	registerMarginFactor = 0.5
)

// object is the tracker's mutable record of a tracked object
type object struct {
	id          int
	centroid    Point
	label       string
	size        Size
	disappeared int
}

// snapshot returns a read only copy of the object
func (o *object) snapshot() TrackedObject {
	return TrackedObject{
		ID:          o.id,
		Centroid:    o.centroid,
		Label:       o.label,
		Size:        o.size,
		Disappeared: o.disappeared,
	}
}

// candidate is an (object, detection) pairing considered during matching
type candidate struct {
	row  int
	col  int
	dist float64
}

// CentroidTracker associates detections across frames using the distance
// between bounding box centroids.  A tracker instance holds the state for a
// single video and must not be shared between videos or goroutines.
type CentroidTracker struct {
	// maxDisappeared is the number of consecutive unmatched updates allowed
	// before an object is removed
	maxDisappeared int
	// maxDistance is the maximum centroid distance for a match
	maxDistance float64
	// nextID is the id given to the next registered object
	nextID int
	// objects is the arena of live objects keyed by id
	objects map[int]*object
	// order holds the live object ids in registration order
	order []int
	// registered is a count of every object ever registered per label
	registered map[string]int
}

// NewCentroidTracker returns a new CentroidTracker with the given policy
func NewCentroidTracker(maxDisappeared int, maxDistance float64) *CentroidTracker {
	ct := &CentroidTracker{
		maxDisappeared: maxDisappeared,
		maxDistance:    maxDistance,
	}
	ct.Reset()
	return ct
}

// Reset clears all tracked objects and restarts id numbering from zero
func (ct *CentroidTracker) Reset() {
	ct.nextID = 0
	ct.objects = make(map[int]*object)
	ct.order = make([]int, 0)
	ct.registered = make(map[string]int)
}

// MaxDisappeared returns the eviction threshold of the tracker
func (ct *CentroidTracker) MaxDisappeared() int {
	return ct.maxDisappeared
}

// MaxDistance returns the association distance of the tracker
func (ct *CentroidTracker) MaxDistance() float64 {
	return ct.maxDistance
}

// Update updates the tracker with the detections of the next sampled frame
// and returns a snapshot of the live objects in registration order.  An
// invalid detection returns an error and leaves the tracker unchanged.
func (ct *CentroidTracker) Update(dets []Detection) ([]TrackedObject, error) {

	for i, det := range dets {
		if err := det.Validate(); err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
	}

	switch {
	case len(dets) == 0:
		for _, id := range ct.liveIDs() {
			ct.markDisappeared(ct.objects[id])
		}

	case len(ct.order) == 0:
		for _, det := range dets {
			ct.register(det)
		}

	default:
		ct.match(dets)
	}

	return ct.Objects(), nil
}

// match associates the detections with the live objects using greedy global
// matching on ascending centroid distance
func (ct *CentroidTracker) match(dets []Detection) {

	ids := ct.liveIDs()

	// centroids of the objects as they were at the start of this update
	existing := make([]Point, len(ids))
	for i, id := range ids {
		existing[i] = ct.objects[id].centroid
	}

	inputs := make([]Point, len(dets))
	for j, det := range dets {
		inputs[j] = det.Box.Centroid()
	}

	dist := distanceMatrix(existing, inputs)

	usedRows := make([]bool, len(ids))
	usedCols := make([]bool, len(dets))

	for _, c := range sortedCandidates(dist) {

		if usedRows[c.row] || usedCols[c.col] {
			continue
		}

		if c.dist > ct.maxDistance {
			// every remaining candidate is further away
			break
		}

		obj := ct.objects[ids[c.row]]

		if obj.label != dets[c.col].Label {
			continue
		}

		obj.centroid = inputs[c.col]
		obj.size = dets[c.col].Box.Size()
		obj.disappeared = 0

		usedRows[c.row] = true
		usedCols[c.col] = true
	}

	for row, id := range ids {
		if !usedRows[row] {
			ct.markDisappeared(ct.objects[id])
		}
	}

	minSep := ct.maxDistance * registerMarginFactor

	for col, det := range dets {

		if usedCols[col] {
			continue
		}

		// only register detections clear of everything already tracked,
		// others are most likely a label flicker of an existing object
		if nearest(dist, col) > minSep {
			ct.register(det)
		}
	}
}

// register adds a new object for the detection under the next id
func (ct *CentroidTracker) register(det Detection) {

	obj := &object{
		id:       ct.nextID,
		centroid: det.Box.Centroid(),
		label:    det.Label,
		size:     det.Box.Size(),
	}

	ct.objects[obj.id] = obj
	ct.order = append(ct.order, obj.id)
	ct.registered[obj.label]++
	ct.nextID++
}

// markDisappeared increments the objects disappeared count and removes it
// once the count exceeds the threshold
func (ct *CentroidTracker) markDisappeared(obj *object) {

	obj.disappeared++

	if obj.disappeared > ct.maxDisappeared {
		ct.remove(obj.id)
	}
}

// remove evicts an object from tracking, its id is never reused
func (ct *CentroidTracker) remove(id int) {

	if _, exists := ct.objects[id]; !exists {
		return
	}

	delete(ct.objects, id)

	for i, oid := range ct.order {
		if oid == id {
			ct.order = append(ct.order[:i], ct.order[i+1:]...)
			break
		}
	}
}

// liveIDs returns a copy of the live object ids in registration order
func (ct *CentroidTracker) liveIDs() []int {
	ids := make([]int, len(ct.order))
	copy(ids, ct.order)
	return ids
}

// Objects returns a snapshot of the live objects in registration order
func (ct *CentroidTracker) Objects() []TrackedObject {

	objs := make([]TrackedObject, 0, len(ct.order))

	for _, id := range ct.order {
		objs = append(objs, ct.objects[id].snapshot())
	}

	return objs
}

// UniqueCounts returns the number of live objects per label
func (ct *CentroidTracker) UniqueCounts() map[string]int {

	counts := make(map[string]int)

	for _, id := range ct.order {
		counts[ct.objects[id].label]++
	}

	return counts
}

// TotalUnique returns the number of live objects
func (ct *CentroidTracker) TotalUnique() int {
	return len(ct.order)
}

// RegisteredCounts returns the number of objects ever registered per label,
// including those since removed
func (ct *CentroidTracker) RegisteredCounts() map[string]int {

	counts := make(map[string]int, len(ct.registered))

	for label, n := range ct.registered {
		counts[label] = n
	}

	return counts
}

// TotalRegistered returns the number of ids issued by the tracker
func (ct *CentroidTracker) TotalRegistered() int {
	return ct.nextID
}

// distanceMatrix computes the Euclidean distance between every object
// centroid (rows) and detection centroid (columns)
func distanceMatrix(objs, dets []Point) *mat.Dense {

	d := mat.NewDense(len(objs), len(dets), nil)

	for i, o := range objs {
		for j, p := range dets {
			d.Set(i, j, o.Distance(p))
		}
	}

	return d
}

// sortedCandidates returns every cell of the distance matrix ordered by
// ascending distance.  Ties keep row-major order, so the earlier registered
// object and then the earlier detection win.
func sortedCandidates(dist *mat.Dense) []candidate {

	rows, cols := dist.Dims()
	cands := make([]candidate, 0, rows*cols)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			cands = append(cands, candidate{row: i, col: j, dist: dist.At(i, j)})
		}
	}

	sort.SliceStable(cands, func(a, b int) bool {
		return cands[a].dist < cands[b].dist
	})

	return cands
}

// nearest returns the smallest distance in column col
func nearest(dist *mat.Dense, col int) float64 {
	return mat.Min(dist.ColView(col))
}
