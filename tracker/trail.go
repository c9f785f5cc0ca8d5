package tracker

import "sync"

// Track represents the centroid history of one tracked object
type Track struct {
	points []Point
}

// Trail keeps a history of tracked object centroids used for drawing a trail
type Trail struct {
	// size is the maximum number of most recent points to keep in history
	size int
	// history of tracked points keyed by object id
	history map[int]*Track
	sync.Mutex
}

// NewTrail returns a new trail history instance.  Size is the number of most
// recent centroids to keep and specifies the maximum length of the trail
func NewTrail(size int) *Trail {
	return &Trail{
		size:    size,
		history: make(map[int]*Track),
	}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int]*Track)
}

// Add records the current centroid of each object.  History of objects no
// longer present in objs is dropped.
func (t *Trail) Add(objs []TrackedObject) {
	t.Lock()
	defer t.Unlock()

	live := make(map[int]bool, len(objs))

	for _, obj := range objs {
		live[obj.ID] = true

		// objects that were not matched this frame keep their last centroid
		if obj.Disappeared > 0 {
			continue
		}

		track, exists := t.history[obj.ID]

		if !exists {
			track = &Track{}
			t.history[obj.ID] = track
		}

		track.points = append(track.points, obj.Centroid)

		// check if history is exceeded and drop oldest point
		if len(track.points) > t.size {
			track.points = track.points[1:]
		}
	}

	for id := range t.history {
		if !live[id] {
			delete(t.history, id)
		}
	}
}

// GetPoints gets the point history for a specific object id
func (t *Trail) GetPoints(id int) []Point {
	t.Lock()
	defer t.Unlock()

	if track, exists := t.history[id]; exists {
		points := make([]Point, len(track.points))
		copy(points, track.points)
		return points
	}

	// no history yet
	return nil
}
