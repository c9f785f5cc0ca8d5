package sampler

import (
	"errors"
)

// DefaultFPS is the native frame rate assumed when a source does not report one
const DefaultFPS = 30.0

// ErrOpenSource is returned when a frame source can not be opened or read.
// Unlike end of stream it is fatal for the video being processed.
var ErrOpenSource = errors.New("unable to open video source")

// Frame is a single decoded image delivered by a Source.  The holder of a
// frame is responsible for closing it.
type Frame interface {
	Close() error
}

// Source delivers decoded frames sequentially at the video's native rate
type Source interface {
	// FPS returns the native frame rate reported by the source, zero or
	// negative if unknown
	FPS() float64
	// FrameCount returns the total native frame count, zero if unknown
	FrameCount() int
	// Next returns the next frame, or io.EOF once the stream has ended
	Next() (Frame, error)
	// Close releases the source
	Close() error
}

// Opener opens a Source.  Failures should wrap ErrOpenSource.
type Opener func() (Source, error)
