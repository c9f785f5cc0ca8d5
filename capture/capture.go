package capture

import (
	"fmt"
	"io"

	"github.com/swdee/go-vidcount/sampler"
	"gocv.io/x/gocv"
)

// VideoSource is a sampler.Source reading frames from a video file or stream
// URL through OpenCV.  Frames are delivered as *gocv.Mat.
type VideoSource struct {
	name  string
	video *gocv.VideoCapture
	fps   float64
	count int
}

// Open opens the named video file or stream URL (http, rtsp, rtmp) for
// reading
func Open(name string) (*VideoSource, error) {

	video, err := gocv.VideoCaptureFile(name)

	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", sampler.ErrOpenSource, name, err)
	}

	if !video.IsOpened() {
		video.Close()
		return nil, fmt.Errorf("%w %s", sampler.ErrOpenSource, name)
	}

	count := int(video.Get(gocv.VideoCaptureFrameCount))

	if count < 0 {
		// live streams report no frame count
		count = 0
	}

	return &VideoSource{
		name:  name,
		video: video,
		fps:   video.Get(gocv.VideoCaptureFPS),
		count: count,
	}, nil
}

// Opener returns a sampler.Opener for the named video
func Opener(name string) sampler.Opener {
	return func() (sampler.Source, error) {
		src, err := Open(name)

		if err != nil {
			return nil, err
		}

		return src, nil
	}
}

// Name returns the file name or URL of the video
func (v *VideoSource) Name() string {
	return v.name
}

// FPS returns the native frame rate reported by the container, zero if unknown
func (v *VideoSource) FPS() float64 {
	return v.fps
}

// FrameCount returns the number of frames reported by the container, zero if
// unknown
func (v *VideoSource) FrameCount() int {
	return v.count
}

// Next reads the next frame of the video returning io.EOF after the last frame
func (v *VideoSource) Next() (sampler.Frame, error) {

	img := gocv.NewMat()

	// read the next frame from the video
	if ok := v.video.Read(&img); !ok || img.Empty() {
		img.Close()
		// reached last video frame
		return nil, io.EOF
	}

	return &img, nil
}

// Close releases the video handle
func (v *VideoSource) Close() error {
	return v.video.Close()
}

// Mat returns the image held by a frame read from a VideoSource
func Mat(frame sampler.Frame) (gocv.Mat, error) {

	img, ok := frame.(*gocv.Mat)

	if !ok {
		return gocv.Mat{}, fmt.Errorf("unsupported frame type %T", frame)
	}

	return *img, nil
}
