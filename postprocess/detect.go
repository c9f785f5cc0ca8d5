package postprocess

// BoxRect are the dimensions of the bounding box of a detected object in
// source image pixels
type BoxRect struct {
	Left   float32
	Right  float32
	Top    float32
	Bottom float32
}

// DetectResult defines the attributes of a single object detected
type DetectResult struct {
	// Class is the line number in the labels file the Model was trained on
	// defining the Class of the detected object
	Class int
	// Box are the bounding box dimensions of the object location
	Box BoxRect
	// Probability is the confidence score of the object detected
	Probability float32
}

// Letterbox describes how a source image was scaled and padded to fit the
// model input tensor, so boxes can be mapped back to source coordinates
type Letterbox interface {
	ScaleFactor() float32
	XPad() int
	YPad() int
	SrcWidth() int
	SrcHeight() int
}
