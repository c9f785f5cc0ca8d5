package tracker

import (
	"errors"
	"fmt"
)

// ErrInvalidDetection is returned when a detection violates the detector
// contract, eg: a degenerate bounding box or empty label
var ErrInvalidDetection = errors.New("invalid detection")

// Detection represents a single object detected in one frame by the
// detection provider
type Detection struct {
	// Box is the bounding box of the detected object
	Box BBox `json:"bbox"`
	// Label is the class label of the object detected
	Label string `json:"label"`
	// ClassID is the optional numeric class of the label the model was
	// trained on
	ClassID *int `json:"cls_id"`
	// Score is the confidence of the object detected
	Score float32 `json:"score"`
}

// NewDetection is a constructor function for the Detection struct
func NewDetection(box BBox, label string, score float32) Detection {
	return Detection{
		Box:   box,
		Label: label,
		Score: score,
	}
}

// WithClassID returns a copy of the detection with the numeric class id set
func (d Detection) WithClassID(id int) Detection {
	d.ClassID = &id
	return d
}

// Validate checks the detection honours the detector contract
func (d Detection) Validate() error {

	if d.Label == "" {
		return fmt.Errorf("%w: empty label", ErrInvalidDetection)
	}

	if err := d.Box.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDetection, err)
	}

	return nil
}

// TrackedObject is a point in time snapshot of an object maintained by the
// CentroidTracker
type TrackedObject struct {
	// ID is the unique id of the object within one tracking session
	ID int `json:"id"`
	// Centroid is the center point of the last matched bounding box
	Centroid Point `json:"centroid"`
	// Label is the class label fixed at registration
	Label string `json:"label"`
	// Size is the width and height of the last matched bounding box
	Size Size `json:"size"`
	// Disappeared is the number of consecutive updates the object was not
	// matched to a detection
	Disappeared int `json:"disappeared"`
}

// Box returns the bounding box of the object rebuilt from its centroid and size
func (o TrackedObject) Box() BBox {
	return BBoxFromCentroid(o.Centroid, o.Size)
}
