package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/swdee/go-vidcount/logging"
	"github.com/swdee/go-vidcount/metrics"
	"github.com/swdee/go-vidcount/sampler"
	"github.com/swdee/go-vidcount/tracker"
	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultSampleRate is the default number of frames per second evaluated
	DefaultSampleRate = 2
	// DefaultMaxFrames is the default maximum number of sampled frames
	DefaultMaxFrames = 120
	// DefaultYieldEvery is the default number of processed frames between
	// yields to the scheduler
	DefaultYieldEvery = 5
)

// Detector runs object detection on a single frame, returning detections
// already filtered by the configured confidence policy
type Detector interface {
	Detect(frame sampler.Frame) ([]tracker.Detection, error)
}

// DetectorFunc adapts a function to the Detector interface
type DetectorFunc func(frame sampler.Frame) ([]tracker.Detection, error)

// Detect calls f(frame)
func (f DetectorFunc) Detect(frame sampler.Frame) ([]tracker.Detection, error) {
	return f(frame)
}

// Observer is called after each sampled frame has been tracked, before the
// frame is released.  It is used to annotate or record frames.
type Observer func(smp sampler.Sample, dets []tracker.Detection, objs []tracker.TrackedObject) error

// Options configures a Processor
type Options struct {
	// Model is the model identifier recorded in the report
	Model string
	// SampleRate is the number of frames per second to evaluate
	SampleRate int
	// MaxFrames is the maximum number of frames to evaluate
	MaxFrames int
	// MaxDisappeared is the tracker eviction threshold
	MaxDisappeared int
	// MaxDistance is the tracker association distance in pixels
	MaxDistance float64
	// YieldEvery is the number of frames between scheduler yields and
	// cancellation checks
	YieldEvery int
	// Metrics receives pipeline events, may be nil
	Metrics metrics.Sink
	// Logger is used for session logging, may be nil
	Logger *slog.Logger
	// Observer is an optional per frame hook
	Observer Observer
}

// DefaultOptions returns the Options with default values set
func DefaultOptions() Options {
	return Options{
		SampleRate:     DefaultSampleRate,
		MaxFrames:      DefaultMaxFrames,
		MaxDisappeared: tracker.DefaultMaxDisappeared,
		MaxDistance:    tracker.DefaultMaxDistance,
		YieldEvery:     DefaultYieldEvery,
	}
}

// Processor drives videos through sampling, detection and tracking.  A
// Processor holds no per video state so it may run many sessions
// concurrently, provided the Detector given to each is not shared.
type Processor struct {
	opts Options
}

// NewProcessor returns a Processor for the given options
func NewProcessor(opts Options) (*Processor, error) {

	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", opts.SampleRate)
	}

	if opts.MaxFrames <= 0 {
		return nil, fmt.Errorf("max frames must be positive, got %d", opts.MaxFrames)
	}

	if opts.MaxDisappeared < 0 {
		return nil, fmt.Errorf("max disappeared must not be negative, got %d", opts.MaxDisappeared)
	}

	if opts.MaxDistance <= 0 {
		return nil, fmt.Errorf("max distance must be positive, got %v", opts.MaxDistance)
	}

	if opts.YieldEvery <= 0 {
		opts.YieldEvery = DefaultYieldEvery
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	return &Processor{opts: opts}, nil
}

// Options returns the options of the processor
func (p *Processor) Options() Options {
	return p.opts
}

// Process opens a video source and runs it through the pipeline, returning
// the aggregate report.  The source is always closed before returning.  If
// ctx is cancelled the session is abandoned at the next yield point and the
// context error is returned.
func (p *Processor) Process(ctx context.Context, name string, open sampler.Opener,
	det Detector) (*Report, error) {

	p.opts.Metrics.SessionStarted()

	rep, err := p.process(ctx, name, open, det)

	if err != nil {
		p.opts.Metrics.SessionFailed()
		return nil, err
	}

	p.opts.Metrics.SessionCompleted(rep.ProcessedFrames)

	return rep, nil
}

func (p *Processor) process(ctx context.Context, name string, open sampler.Opener,
	det Detector) (*Report, error) {

	log := p.opts.Logger.With(slog.String("source", name))
	start := time.Now()

	src, err := open()

	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}

	defer src.Close()

	smp, err := sampler.New(src, float64(p.opts.SampleRate), p.opts.MaxFrames)

	if err != nil {
		return nil, err
	}

	log.Info("Session started",
		slog.Float64("fps", smp.FPS()),
		slog.Int("stride", smp.Stride()),
		slog.Int("total_frames", src.FrameCount()),
	)

	trk := tracker.NewCentroidTracker(p.opts.MaxDisappeared, p.opts.MaxDistance)
	results := make([]FrameResult, 0)
	raw := make(map[string]int)

	for smp.Next() {

		sample := smp.Sample()

		res, err := p.step(sample, det, trk, raw)

		sample.Frame.Close()

		if err != nil {
			return nil, err
		}

		results = append(results, res)

		log.Debug("Frame processed",
			slog.Int("frame", res.FrameIndex),
			slog.Int("detections", len(res.Detections)),
			slog.Int("tracked", res.TrackedObjects),
		)

		if len(results)%p.opts.YieldEvery == 0 {
			runtime.Gosched()

			if err := ctx.Err(); err != nil {
				log.Warn("Session cancelled", slog.Int("processed", len(results)))
				return nil, err
			}
		}
	}

	if err := smp.Err(); err != nil {
		return nil, err
	}

	rep := p.report(src.FrameCount(), results, raw, trk)

	log.Info("Session completed",
		slog.Int("processed", rep.ProcessedFrames),
		slog.Int("unique", rep.TrackingInfo.TotalUniqueObjects),
		slog.Float64("reduction", rep.TrackingInfo.ReductionPercentage),
		slog.Duration("elapsed", time.Since(start)),
	)

	return rep, nil
}

// step runs detection and tracking for a single sampled frame
func (p *Processor) step(sample sampler.Sample, det Detector,
	trk *tracker.CentroidTracker, raw map[string]int) (FrameResult, error) {

	dets, err := det.Detect(sample.Frame)

	if err != nil {
		return FrameResult{}, fmt.Errorf("detecting frame %d: %w", sample.Index, err)
	}

	if dets == nil {
		dets = make([]tracker.Detection, 0)
	}

	objs, err := trk.Update(dets)

	if err != nil {
		return FrameResult{}, fmt.Errorf("tracking frame %d: %w", sample.Index, err)
	}

	for _, d := range dets {
		raw[d.Label]++
	}

	p.opts.Metrics.FrameProcessed(len(dets))

	if p.opts.Observer != nil {
		if err := p.opts.Observer(sample, dets, objs); err != nil {
			return FrameResult{}, fmt.Errorf("observing frame %d: %w", sample.Index, err)
		}
	}

	return FrameResult{
		FrameIndex:     sample.Index,
		TimeSec:        sample.Timestamp,
		Detections:     dets,
		TrackedObjects: len(objs),
	}, nil
}

// report assembles the aggregate report from the final session state
func (p *Processor) report(totalFrames int, results []FrameResult,
	raw map[string]int, trk *tracker.CentroidTracker) *Report {

	unique := trk.UniqueCounts()
	uniqueTotal := trk.TotalUnique()
	rawTotal := int(floats.Sum(countValues(raw)))

	return &Report{
		Model:           p.opts.Model,
		TotalFrames:     totalFrames,
		ProcessedFrames: len(results),
		FPSSample:       p.opts.SampleRate,
		Results:         results,
		CountsByLabel:   unique,
		TrackingInfo: &TrackingInfo{
			TotalUniqueObjects:  uniqueTotal,
			UniqueCountsByLabel: trk.UniqueCounts(),
			RawDetectionCounts:  raw,
			ReductionPercentage: ReductionPercentage(rawTotal, uniqueTotal),
			TrackerConfig: TrackerConfig{
				MaxDisappeared: trk.MaxDisappeared(),
				MaxDistance:    trk.MaxDistance(),
			},
			TotalRegisteredObjects:  trk.TotalRegistered(),
			RegisteredCountsByLabel: trk.RegisteredCounts(),
		},
	}
}

// countValues returns the counts of a label map in label order
func countValues(counts map[string]int) []float64 {

	labels := make([]string, 0, len(counts))

	for label := range counts {
		labels = append(labels, label)
	}

	sort.Strings(labels)

	vals := make([]float64, len(labels))

	for i, label := range labels {
		vals[i] = float64(counts[label])
	}

	return vals
}
