package vidcount

import (
	"errors"
	"fmt"
	"sync"

	"github.com/swdee/go-vidcount/capture"
	"github.com/swdee/go-vidcount/postprocess"
	"github.com/swdee/go-vidcount/preprocess"
	"github.com/swdee/go-vidcount/sampler"
	"github.com/swdee/go-vidcount/tracker"
	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when asked to detect objects on an empty image
var ErrEmptyImage = errors.New("empty image")

// DetectorConfig defines the model and post processing settings of a Detector
type DetectorConfig struct {
	// ModelFile is the path to the YOLOv8 ONNX model
	ModelFile string
	// ModelName is the model identifier reported to callers
	ModelName string
	// Labels are the class labels in model class order
	Labels []string
	// InputSize is the square input tensor size of the model
	InputSize int
	// ConfThreshold is the minimum class score for a detection
	ConfThreshold float32
	// NMSThreshold is the IoU above which overlapping boxes of the same
	// class are suppressed
	NMSThreshold float32
	// MaxObjects is the maximum number of detections returned per image
	MaxObjects int
}

// DefaultDetectorConfig returns a DetectorConfig for the YOLOv8 nano COCO model
func DefaultDetectorConfig() DetectorConfig {

	params := postprocess.YOLOv8COCOParams()

	return DetectorConfig{
		ModelFile:     "yolov8n.onnx",
		ModelName:     "yolov8n",
		Labels:        COCOLabels(),
		InputSize:     640,
		ConfThreshold: params.BoxThreshold,
		NMSThreshold:  params.NMSThreshold,
		MaxObjects:    params.MaxObjectNumber,
	}
}

// Detector runs YOLOv8 object detection with the OpenCV DNN module.  A
// Detector is not safe for concurrent use, use a Pool to share them.
type Detector struct {
	cfg     DetectorConfig
	net     gocv.Net
	post    *postprocess.YOLOv8
	resizer *preprocess.Resizer
	// padded holds the letterboxed input image
	padded gocv.Mat
	close  sync.Once
}

// NewDetector loads the model and returns a Detector
func NewDetector(cfg DetectorConfig) (*Detector, error) {

	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("invalid model input size %d", cfg.InputSize)
	}

	if len(cfg.Labels) == 0 {
		return nil, fmt.Errorf("no class labels given for model %s", cfg.ModelName)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelFile)

	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("error loading model %s", cfg.ModelFile)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("error setting backend: %w", err)
	}

	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("error setting target: %w", err)
	}

	post := postprocess.NewYOLOv8(postprocess.YOLOv8Params{
		BoxThreshold:    cfg.ConfThreshold,
		NMSThreshold:    cfg.NMSThreshold,
		ObjectClassNum:  len(cfg.Labels),
		MaxObjectNumber: cfg.MaxObjects,
	})

	return &Detector{
		cfg:     cfg,
		net:     net,
		post:    post,
		resizer: preprocess.NewResizer(cfg.InputSize, cfg.InputSize),
		padded:  gocv.NewMat(),
	}, nil
}

// Name returns the model identifier
func (d *Detector) Name() string {
	return d.cfg.ModelName
}

// Labels returns the class labels of the model
func (d *Detector) Labels() []string {
	return d.cfg.Labels
}

// Detect runs object detection on a frame read from a capture.VideoSource
func (d *Detector) Detect(frame sampler.Frame) ([]tracker.Detection, error) {

	img, err := capture.Mat(frame)

	if err != nil {
		return nil, err
	}

	return d.DetectImage(img)
}

// DetectImage runs object detection on a BGR image returning detections in
// the image's pixel coordinates
func (d *Detector) DetectImage(img gocv.Mat) ([]tracker.Detection, error) {

	if img.Empty() {
		return nil, ErrEmptyImage
	}

	// letterbox the image to the model input size keeping aspect ratio
	if err := d.resizer.Letterbox(img, &d.padded); err != nil {
		return nil, fmt.Errorf("error letterboxing image: %w", err)
	}

	blob := gocv.BlobFromImage(d.padded, 1.0/255.0, d.resizer.Size(), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()

	if err != nil {
		return nil, fmt.Errorf("error reading model output: %w", err)
	}

	results, err := d.post.DetectObjects(data, output.Size(), d.resizer)

	if err != nil {
		return nil, err
	}

	return tracker.DetectionsFromResults(results, d.cfg.Labels), nil
}

// Close frees the model and buffers held by the Detector
func (d *Detector) Close() error {

	var err error

	d.close.Do(func() {
		d.padded.Close()
		d.resizer.Close()
		err = d.net.Close()
	})

	return err
}

// DecodeImage decodes an encoded image (JPEG, PNG, ...) into a BGR Mat.  The
// caller must close the returned Mat.
func DecodeImage(buf []byte) (gocv.Mat, error) {

	if len(buf) == 0 {
		return gocv.Mat{}, ErrEmptyImage
	}

	img, err := gocv.IMDecode(buf, gocv.IMReadColor)

	if err != nil {
		return gocv.Mat{}, fmt.Errorf("error decoding image: %w", err)
	}

	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("error decoding image: %w", ErrEmptyImage)
	}

	return img, nil
}
