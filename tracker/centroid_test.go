package tracker

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// det returns a 10x10 detection centered on the given point
func det(label string, cx, cy float64) Detection {
	return NewDetection(NewBBox(cx-5, cy-5, cx+5, cy+5), label, 0.9)
}

// mustUpdate updates the tracker and fails the test on error
func mustUpdate(t *testing.T, ct *CentroidTracker, dets ...Detection) []TrackedObject {
	t.Helper()

	objs, err := ct.Update(dets)

	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	return objs
}

// TestScenarioMatchThenDisappear registers, matches and then misses a car
func TestScenarioMatchThenDisappear(t *testing.T) {

	ct := NewCentroidTracker(DefaultMaxDisappeared, DefaultMaxDistance)

	objs := mustUpdate(t, ct, det("car", 5, 5))

	if len(objs) != 1 || objs[0].ID != 0 {
		t.Fatalf("expected object id 0 registered, got %v", objs)
	}

	objs = mustUpdate(t, ct, det("car", 10, 10))

	want := []TrackedObject{
		{ID: 0, Centroid: Point{X: 10, Y: 10}, Label: "car", Size: Size{Width: 10, Height: 10}},
	}

	if diff := cmp.Diff(want, objs); diff != "" {
		t.Errorf("frame 1 snapshot mismatch (-want +got):\n%s", diff)
	}

	objs = mustUpdate(t, ct)

	if len(objs) != 1 || objs[0].Disappeared != 1 {
		t.Errorf("expected id 0 disappeared=1, got %v", objs)
	}

	if diff := cmp.Diff(map[string]int{"car": 1}, ct.UniqueCounts()); diff != "" {
		t.Errorf("unique counts mismatch (-want +got):\n%s", diff)
	}

	if ct.TotalUnique() != 1 {
		t.Errorf("expected 1 unique object, got %d", ct.TotalUnique())
	}
}

// TestScenarioLabelMismatchNotRegistered checks a nearby detection with a
// different label is dropped rather than spawning a new object
func TestScenarioLabelMismatchNotRegistered(t *testing.T) {

	ct := NewCentroidTracker(DefaultMaxDisappeared, DefaultMaxDistance)

	mustUpdate(t, ct, det("car", 0, 0))
	objs := mustUpdate(t, ct, det("truck", 1, 1))

	want := []TrackedObject{
		{ID: 0, Centroid: Point{X: 0, Y: 0}, Label: "car", Size: Size{Width: 10, Height: 10}, Disappeared: 1},
	}

	if diff := cmp.Diff(want, objs); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	if n := ct.UniqueCounts()["truck"]; n != 0 {
		t.Errorf("expected no truck objects, got %d", n)
	}
}

// TestRemovedExactlyAfterMaxDisappeared checks eviction happens on the
// update where the disappeared count first exceeds the threshold
func TestRemovedExactlyAfterMaxDisappeared(t *testing.T) {

	const maxDisappeared = 3

	tests := []struct {
		name string
		// miss returns the detections of a frame in which the car is unmatched
		miss []Detection
	}{
		{name: "empty frames", miss: nil},
		{name: "frames with distant other label", miss: []Detection{det("person", 500, 500)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			ct := NewCentroidTracker(maxDisappeared, DefaultMaxDistance)
			mustUpdate(t, ct, det("car", 50, 50))

			for i := 1; i <= maxDisappeared; i++ {
				mustUpdate(t, ct, tc.miss...)

				if ct.UniqueCounts()["car"] != 1 {
					t.Fatalf("car removed early after %d misses", i)
				}
			}

			mustUpdate(t, ct, tc.miss...)

			if n := ct.UniqueCounts()["car"]; n != 0 {
				t.Errorf("expected car removed after %d misses, still have %d", maxDisappeared+1, n)
			}
		})
	}
}

// TestMatchResetsDisappeared checks a match resets the disappeared count
func TestMatchResetsDisappeared(t *testing.T) {

	ct := NewCentroidTracker(2, DefaultMaxDistance)

	mustUpdate(t, ct, det("car", 50, 50))
	mustUpdate(t, ct)
	mustUpdate(t, ct)
	objs := mustUpdate(t, ct, det("car", 55, 50))

	if len(objs) != 1 || objs[0].Disappeared != 0 || objs[0].ID != 0 {
		t.Fatalf("expected id 0 matched with disappeared=0, got %v", objs)
	}

	mustUpdate(t, ct)
	mustUpdate(t, ct)

	if ct.TotalUnique() != 1 {
		t.Errorf("object evicted despite match resetting its count")
	}
}

// TestIDsNeverReused checks ids keep increasing after objects are removed
func TestIDsNeverReused(t *testing.T) {

	ct := NewCentroidTracker(0, DefaultMaxDistance)

	seen := make(map[int]bool)
	lastID := -1

	frames := [][]Detection{
		{det("car", 10, 10), det("car", 300, 300)},
		{},
		{det("car", 10, 10)},
		{det("bus", 600, 600)},
		{},
		{det("car", 10, 10), det("bus", 600, 600)},
	}

	for i, frame := range frames {
		objs := mustUpdate(t, ct, frame...)

		for _, obj := range objs {
			if seen[obj.ID] {
				continue
			}

			if obj.ID <= lastID {
				t.Errorf("frame %d: id %d issued after %d", i, obj.ID, lastID)
			}

			seen[obj.ID] = true
			lastID = obj.ID
		}
	}

	if ct.TotalRegistered() != lastID+1 {
		t.Errorf("expected %d ids issued, got %d", lastID+1, ct.TotalRegistered())
	}

	if ct.TotalRegistered() != 6 {
		t.Errorf("expected 6 registrations, got %d", ct.TotalRegistered())
	}
}

// TestLabelFixedAtRegistration checks an object never takes on the label of
// a detection
func TestLabelFixedAtRegistration(t *testing.T) {

	ct := NewCentroidTracker(DefaultMaxDisappeared, DefaultMaxDistance)

	mustUpdate(t, ct, det("dog", 100, 100))

	for i := 0; i < 5; i++ {
		label := "cat"
		if i%2 == 0 {
			label = "dog"
		}

		objs := mustUpdate(t, ct, det(label, 100+float64(i), 100))

		for _, obj := range objs {
			if obj.ID == 0 && obj.Label != "dog" {
				t.Fatalf("object 0 label changed to %q", obj.Label)
			}
		}
	}
}

// TestIdenticalCentroidsDifferentLabels checks two co-located detections of
// different labels stay separate objects
func TestIdenticalCentroidsDifferentLabels(t *testing.T) {

	ct := NewCentroidTracker(DefaultMaxDisappeared, DefaultMaxDistance)

	mustUpdate(t, ct, det("car", 200, 200), det("truck", 200, 200))
	objs := mustUpdate(t, ct, det("car", 200, 200), det("truck", 200, 200))

	want := []TrackedObject{
		{ID: 0, Centroid: Point{X: 200, Y: 200}, Label: "car", Size: Size{Width: 10, Height: 10}},
		{ID: 1, Centroid: Point{X: 200, Y: 200}, Label: "truck", Size: Size{Width: 10, Height: 10}},
	}

	if diff := cmp.Diff(want, objs); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

// TestGreedyGlobalMatching checks conflicts are resolved by ascending
// distance across the whole matrix rather than per object
func TestGreedyGlobalMatching(t *testing.T) {

	ct := NewCentroidTracker(DefaultMaxDisappeared, DefaultMaxDistance)

	mustUpdate(t, ct, det("p", 0, 0), det("p", 50, 0))

	// object 1 is closest to the detection at x=40 (10px) so it wins that
	// detection even though it is also object 0's closest
	objs := mustUpdate(t, ct, det("p", 40, 0), det("p", 95, 0))

	want := []TrackedObject{
		{ID: 0, Centroid: Point{X: 95, Y: 0}, Label: "p", Size: Size{Width: 10, Height: 10}},
		{ID: 1, Centroid: Point{X: 40, Y: 0}, Label: "p", Size: Size{Width: 10, Height: 10}},
	}

	if diff := cmp.Diff(want, objs); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

// TestMatchDistanceBoundary checks the maximum distance is inclusive
func TestMatchDistanceBoundary(t *testing.T) {

	ct := NewCentroidTracker(DefaultMaxDisappeared, 100)

	mustUpdate(t, ct, det("car", 0, 0))
	objs := mustUpdate(t, ct, det("car", 100, 0))

	if len(objs) != 1 || objs[0].Disappeared != 0 || objs[0].Centroid.X != 100 {
		t.Errorf("expected match at exactly max distance, got %v", objs)
	}

	objs = mustUpdate(t, ct, det("car", 200.5, 0))

	// too far to match, but beyond the registration margin so a new object
	if len(objs) != 2 || objs[0].Disappeared != 1 || objs[1].ID != 1 {
		t.Errorf("expected unmatched object and new registration, got %v", objs)
	}
}

// TestRegistrationMargin checks unmatched detections are only registered
// beyond half the maximum distance from every existing object
func TestRegistrationMargin(t *testing.T) {

	tests := []struct {
		name       string
		x          float64
		registered bool
	}{
		{name: "inside margin", x: 30, registered: false},
		{name: "on margin", x: 50, registered: false},
		{name: "beyond margin", x: 60, registered: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			ct := NewCentroidTracker(DefaultMaxDisappeared, 100)

			mustUpdate(t, ct, det("car", 0, 0))
			objs := mustUpdate(t, ct, det("person", tc.x, 0))

			if got := len(objs) == 2; got != tc.registered {
				t.Errorf("expected registered=%v, got objects %v", tc.registered, objs)
			}
		})
	}
}

// TestRegistrationMarginIncludesMatchedObjects checks the margin is measured
// against object positions from the start of the update, matched or not
func TestRegistrationMarginIncludesMatchedObjects(t *testing.T) {

	ct := NewCentroidTracker(DefaultMaxDisappeared, 100)

	mustUpdate(t, ct, det("car", 0, 0), det("car", 300, 0))

	// the car at 0 moves away to 90 and matches; the bike at 20 is within the
	// margin of where the car was so it is dropped
	objs := mustUpdate(t, ct, det("car", 90, 0), det("bike", 20, 0), det("car", 300, 0))

	if len(objs) != 2 {
		t.Fatalf("expected bike to be dropped, got %v", objs)
	}

	if objs[0].Centroid.X != 90 {
		t.Errorf("expected object 0 moved to x=90, got %v", objs[0].Centroid)
	}
}

// TestInvalidDetection checks malformed boxes are rejected without changing
// tracker state
func TestInvalidDetection(t *testing.T) {

	ct := NewCentroidTracker(DefaultMaxDisappeared, DefaultMaxDistance)
	mustUpdate(t, ct, det("car", 10, 10))

	bad := []Detection{
		NewDetection(NewBBox(10, 10, 5, 20), "car", 0.5),
		NewDetection(NewBBox(10, 10, 20, 10), "car", 0.5),
		NewDetection(NewBBox(math.NaN(), 10, 20, 20), "car", 0.5),
		NewDetection(NewBBox(0, 0, 10, 10), "", 0.5),
	}

	for i, b := range bad {
		_, err := ct.Update([]Detection{det("car", 12, 10), b})

		if !errors.Is(err, ErrInvalidDetection) {
			t.Errorf("case %d: expected ErrInvalidDetection, got %v", i, err)
		}
	}

	objs := ct.Objects()

	if len(objs) != 1 || objs[0].Centroid.X != 10 || objs[0].Disappeared != 0 {
		t.Errorf("tracker state changed by rejected update: %v", objs)
	}
}

// TestRegisteredCountsIncludeRemoved checks lifetime counts survive eviction
// while unique counts only reflect live objects
func TestRegisteredCountsIncludeRemoved(t *testing.T) {

	ct := NewCentroidTracker(1, DefaultMaxDistance)

	mustUpdate(t, ct, det("car", 10, 10))
	mustUpdate(t, ct)
	mustUpdate(t, ct)
	mustUpdate(t, ct, det("car", 400, 400), det("person", 10, 10))

	if diff := cmp.Diff(map[string]int{"car": 2, "person": 1}, ct.RegisteredCounts()); diff != "" {
		t.Errorf("registered counts mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(map[string]int{"car": 1, "person": 1}, ct.UniqueCounts()); diff != "" {
		t.Errorf("unique counts mismatch (-want +got):\n%s", diff)
	}

	if ct.TotalRegistered() != 3 || ct.TotalUnique() != 2 {
		t.Errorf("expected 3 registered and 2 unique, got %d and %d",
			ct.TotalRegistered(), ct.TotalUnique())
	}
}

// TestReset checks the tracker restarts id numbering
func TestReset(t *testing.T) {

	ct := NewCentroidTracker(DefaultMaxDisappeared, DefaultMaxDistance)
	mustUpdate(t, ct, det("car", 10, 10), det("car", 300, 300))

	ct.Reset()

	objs := mustUpdate(t, ct, det("bus", 10, 10))

	if len(objs) != 1 || objs[0].ID != 0 {
		t.Errorf("expected fresh id 0 after reset, got %v", objs)
	}

	if ct.TotalRegistered() != 1 {
		t.Errorf("expected registered count reset, got %d", ct.TotalRegistered())
	}
}
