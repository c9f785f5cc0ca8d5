package sampler

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// Sample is a frame selected for evaluation
type Sample struct {
	// Index is the frame number in the source's native frame numbering
	Index int
	// Timestamp is the position of the frame in seconds
	Timestamp float64
	// Frame is the decoded image, owned by the consumer of the sample
	Frame Frame
}

// Sampler walks a Source and emits every stride'th frame until the maximum
// number of samples is reached or the stream ends.  A Sampler is lazy and can
// only be iterated once.
type Sampler struct {
	src        Source
	fps        float64
	stride     int
	maxSamples int
	// index is the native index of the next frame to read
	index   int
	emitted int
	current Sample
	err     error
	done    bool
}

// New returns a Sampler over src emitting frames at sampleRate frames per
// second, stopping after maxSamples frames
func New(src Source, sampleRate float64, maxSamples int) (*Sampler, error) {

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %v", sampleRate)
	}

	if maxSamples <= 0 {
		return nil, fmt.Errorf("max samples must be positive, got %d", maxSamples)
	}

	fps := NativeFPS(src)

	return &Sampler{
		src:        src,
		fps:        fps,
		stride:     Stride(fps, sampleRate),
		maxSamples: maxSamples,
	}, nil
}

// NativeFPS returns the frame rate reported by the source, or DefaultFPS when
// it is unknown
func NativeFPS(src Source) float64 {

	fps := src.FPS()

	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return DefaultFPS
	}

	return fps
}

// Stride returns the number of native frames between consecutive samples
func Stride(nativeFPS, sampleRate float64) int {

	stride := int(math.Round(nativeFPS / sampleRate))

	if stride < 1 {
		return 1
	}

	return stride
}

// Stride returns the number of native frames between samples
func (s *Sampler) Stride() int {
	return s.stride
}

// FPS returns the native frame rate used for timestamps
func (s *Sampler) FPS() float64 {
	return s.fps
}

// Emitted returns the number of samples emitted so far
func (s *Sampler) Emitted() int {
	return s.emitted
}

// Next advances to the next sample, returning false when sampling has ended
// either normally or due to an error reported by Err
func (s *Sampler) Next() bool {

	if s.done {
		return false
	}

	if s.emitted >= s.maxSamples {
		s.done = true
		return false
	}

	for {
		frame, err := s.src.Next()

		if err != nil {
			s.done = true

			if !errors.Is(err, io.EOF) {
				s.err = fmt.Errorf("reading frame %d: %w", s.index, err)
			}

			return false
		}

		idx := s.index
		s.index++

		if idx%s.stride != 0 {
			// skipped frames are not handed to the consumer
			frame.Close()
			continue
		}

		s.current = Sample{
			Index:     idx,
			Timestamp: float64(idx) / s.fps,
			Frame:     frame,
		}
		s.emitted++

		return true
	}
}

// Sample returns the sample produced by the last call to Next
func (s *Sampler) Sample() Sample {
	return s.current
}

// Err returns the error that ended sampling, nil on end of stream or after
// the maximum was reached
func (s *Sampler) Err() error {
	return s.err
}
