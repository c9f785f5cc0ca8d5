package vidcount

import (
	"context"
	"fmt"

	"github.com/swdee/go-vidcount/capture"
	"github.com/swdee/go-vidcount/metrics"
	"github.com/swdee/go-vidcount/session"
	"github.com/swdee/go-vidcount/tracker"
)

// Service detects objects in images and counts unique objects in videos
// using a pool of detectors, so requests can be served concurrently
type Service struct {
	pool    *Pool
	proc    *session.Processor
	metrics metrics.Sink
}

// NewService returns a Service running sessions with the given options on
// detectors taken from pool
func NewService(pool *Pool, opts session.Options) (*Service, error) {

	if opts.Model == "" {
		opts.Model = pool.Name()
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	proc, err := session.NewProcessor(opts)

	if err != nil {
		return nil, err
	}

	return &Service{
		pool:    pool,
		proc:    proc,
		metrics: opts.Metrics,
	}, nil
}

// Model returns the identifier of the model in use
func (s *Service) Model() string {
	return s.proc.Options().Model
}

// DetectImage decodes an encoded image and returns the objects detected in it
func (s *Service) DetectImage(ctx context.Context, buf []byte) ([]tracker.Detection, error) {

	img, err := DecodeImage(buf)

	if err != nil {
		return nil, err
	}

	defer img.Close()

	det, err := s.pool.Get(ctx)

	if err != nil {
		return nil, err
	}

	defer s.pool.Return(det)

	dets, err := det.DetectImage(img)

	if err != nil {
		return nil, err
	}

	s.metrics.ImageProcessed(len(dets))

	return dets, nil
}

// ProcessVideo counts the unique objects in a video file or stream URL
func (s *Service) ProcessVideo(ctx context.Context, source string) (*session.Report, error) {

	det, err := s.pool.Get(ctx)

	if err != nil {
		return nil, fmt.Errorf("waiting for detector: %w", err)
	}

	defer s.pool.Return(det)

	return s.proc.Process(ctx, source, capture.Opener(source), det)
}
