package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-vidcount/metrics"
	"github.com/swdee/go-vidcount/sampler"
	"github.com/swdee/go-vidcount/tracker"
)

type fakeFrame struct {
	index int
}

func (f *fakeFrame) Close() error {
	return nil
}

type fakeSource struct {
	fps    float64
	total  int
	reads  int
	closed bool
	// failAt is the frame index whose read returns failErr
	failAt  int
	failErr error
}

func (s *fakeSource) FPS() float64 {
	return s.fps
}

func (s *fakeSource) FrameCount() int {
	return s.total
}

func (s *fakeSource) Next() (sampler.Frame, error) {

	if s.failErr != nil && s.reads == s.failAt {
		return nil, s.failErr
	}

	if s.reads >= s.total {
		return nil, io.EOF
	}

	f := &fakeFrame{index: s.reads}
	s.reads++

	return f, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func opener(src *fakeSource) sampler.Opener {
	return func() (sampler.Source, error) {
		return src, nil
	}
}

func box(cx, cy float64) tracker.BBox {
	return tracker.BBoxFromCentroid(tracker.Point{X: cx, Y: cy}, tracker.Size{Width: 20, Height: 20})
}

// scripted returns a detector answering with the detections for each native
// frame index, or none when the index is missing
func scripted(script map[int][]tracker.Detection) DetectorFunc {
	return func(frame sampler.Frame) ([]tracker.Detection, error) {
		return script[frame.(*fakeFrame).index], nil
	}
}

func newProcessor(t *testing.T, mut func(*Options)) *Processor {
	t.Helper()

	opts := DefaultOptions()
	opts.Model = "yolov8n"

	if mut != nil {
		mut(&opts)
	}

	p, err := NewProcessor(opts)
	require.NoError(t, err)

	return p
}

func TestProcessCarMovingThroughVideo(t *testing.T) {

	car := func(cx float64) []tracker.Detection {
		return []tracker.Detection{tracker.NewDetection(box(cx, 100), "car", 0.9)}
	}

	// a car moving 20 pixels per sample, then a person far away
	script := map[int][]tracker.Detection{
		0:  car(100),
		15: car(120),
		30: car(140),
		45: append(car(160), tracker.NewDetection(box(600, 400), "person", 0.8)),
	}

	src := &fakeSource{fps: 30, total: 300}
	counters := metrics.NewCounters()

	p := newProcessor(t, func(o *Options) {
		o.MaxFrames = 5
		o.Metrics = counters
	})

	rep, err := p.Process(context.Background(), "cars.mp4", opener(src), scripted(script))
	require.NoError(t, err)

	assert.True(t, src.closed)
	assert.Equal(t, "yolov8n", rep.Model)
	assert.Equal(t, 300, rep.TotalFrames)
	assert.Equal(t, 5, rep.ProcessedFrames)
	assert.Equal(t, 2, rep.FPSSample)

	indices := make([]int, 0)
	times := make([]float64, 0)
	tracked := make([]int, 0)

	for _, r := range rep.Results {
		indices = append(indices, r.FrameIndex)
		times = append(times, r.TimeSec)
		tracked = append(tracked, r.TrackedObjects)
	}

	assert.Equal(t, []int{0, 15, 30, 45, 60}, indices)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1.0, 1.5, 2.0}, times, 1e-9)
	assert.Equal(t, []int{1, 1, 1, 2, 2}, tracked)
	assert.NotNil(t, rep.Results[4].Detections)
	assert.Empty(t, rep.Results[4].Detections)

	expected := &TrackingInfo{
		TotalUniqueObjects:  2,
		UniqueCountsByLabel: map[string]int{"car": 1, "person": 1},
		RawDetectionCounts:  map[string]int{"car": 4, "person": 1},
		ReductionPercentage: 60,
		TrackerConfig: TrackerConfig{
			MaxDisappeared: tracker.DefaultMaxDisappeared,
			MaxDistance:    tracker.DefaultMaxDistance,
		},
		TotalRegisteredObjects:  2,
		RegisteredCountsByLabel: map[string]int{"car": 1, "person": 1},
	}

	if diff := cmp.Diff(expected, rep.TrackingInfo); diff != "" {
		t.Errorf("tracking info mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, map[string]int{"car": 1, "person": 1}, rep.CountsByLabel)

	snap := counters.Snapshot()
	assert.Equal(t, int64(1), snap.SessionsStarted)
	assert.Equal(t, int64(1), snap.SessionsCompleted)
	assert.Equal(t, int64(5), snap.FramesProcessed)
	assert.Equal(t, int64(5), snap.CompletedFrames)
	assert.Equal(t, int64(5), snap.Detections)
}

func TestProcessEvictedObjectsLeaveLiveCount(t *testing.T) {

	script := map[int][]tracker.Detection{
		0: {tracker.NewDetection(box(100, 100), "dog", 0.7)},
	}

	src := &fakeSource{fps: 10, total: 100}

	p := newProcessor(t, func(o *Options) {
		o.SampleRate = 10
		o.MaxFrames = 10
		o.MaxDisappeared = 2
	})

	rep, err := p.Process(context.Background(), "dog.mp4", opener(src), scripted(script))
	require.NoError(t, err)

	assert.Empty(t, rep.CountsByLabel)
	assert.Equal(t, 0, rep.TrackingInfo.TotalUniqueObjects)
	assert.Equal(t, 1, rep.TrackingInfo.TotalRegisteredObjects)
	assert.Equal(t, map[string]int{"dog": 1}, rep.TrackingInfo.RegisteredCountsByLabel)
	assert.InDelta(t, 100.0, rep.TrackingInfo.ReductionPercentage, 1e-9)
}

func TestProcessNoDetections(t *testing.T) {

	src := &fakeSource{fps: 30, total: 40}
	p := newProcessor(t, nil)

	rep, err := p.Process(context.Background(), "empty.mp4", opener(src), scripted(nil))
	require.NoError(t, err)

	assert.Equal(t, 3, rep.ProcessedFrames)
	assert.Equal(t, 0.0, rep.TrackingInfo.ReductionPercentage)
	assert.Empty(t, rep.TrackingInfo.RawDetectionCounts)
}

func TestProcessOpenFailure(t *testing.T) {

	p := newProcessor(t, nil)

	open := func() (sampler.Source, error) {
		return nil, sampler.ErrOpenSource
	}

	rep, err := p.Process(context.Background(), "missing.mp4", open, scripted(nil))

	assert.Nil(t, rep)
	assert.ErrorIs(t, err, sampler.ErrOpenSource)
	assert.Contains(t, err.Error(), "missing.mp4")
}

func TestProcessDetectorErrorAborts(t *testing.T) {

	src := &fakeSource{fps: 30, total: 300}
	counters := metrics.NewCounters()
	p := newProcessor(t, func(o *Options) { o.Metrics = counters })

	boom := errors.New("inference failed")
	det := DetectorFunc(func(frame sampler.Frame) ([]tracker.Detection, error) {
		if frame.(*fakeFrame).index == 30 {
			return nil, boom
		}
		return nil, nil
	})

	rep, err := p.Process(context.Background(), "bad.mp4", opener(src), det)

	assert.Nil(t, rep)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "frame 30")
	assert.True(t, src.closed)
	assert.Equal(t, int64(1), counters.Snapshot().SessionsFailed)
}

func TestProcessReadErrorAborts(t *testing.T) {

	broken := errors.New("corrupt packet")
	src := &fakeSource{fps: 30, total: 300, failAt: 20, failErr: broken}
	counters := metrics.NewCounters()
	p := newProcessor(t, func(o *Options) { o.Metrics = counters })

	var seen []int
	det := DetectorFunc(func(frame sampler.Frame) ([]tracker.Detection, error) {
		seen = append(seen, frame.(*fakeFrame).index)
		return nil, nil
	})

	rep, err := p.Process(context.Background(), "broken.mp4", opener(src), det)

	assert.Nil(t, rep)
	require.Error(t, err)
	assert.ErrorIs(t, err, broken)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Contains(t, err.Error(), "reading frame")
	assert.Equal(t, []int{0, 15}, seen)
	assert.Equal(t, 20, src.reads)
	assert.True(t, src.closed)

	snap := counters.Snapshot()
	assert.Equal(t, int64(1), snap.SessionsFailed)
	assert.Equal(t, int64(0), snap.SessionsCompleted)
	assert.Equal(t, int64(2), snap.FramesProcessed)
}

func TestProcessInvalidDetectionAborts(t *testing.T) {

	src := &fakeSource{fps: 30, total: 300}
	p := newProcessor(t, nil)

	script := map[int][]tracker.Detection{
		15: {tracker.NewDetection(tracker.NewBBox(10, 10, 5, 20), "car", 0.9)},
	}

	_, err := p.Process(context.Background(), "bad.mp4", opener(src), scripted(script))

	assert.ErrorIs(t, err, tracker.ErrInvalidDetection)
	assert.True(t, src.closed)
}

func TestProcessCancelledAtYield(t *testing.T) {

	src := &fakeSource{fps: 30, total: 3000}
	p := newProcessor(t, func(o *Options) { o.YieldEvery = 5 })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames := 0
	det := DetectorFunc(func(frame sampler.Frame) ([]tracker.Detection, error) {
		frames++
		return nil, nil
	})

	rep, err := p.Process(ctx, "long.mp4", opener(src), det)

	assert.Nil(t, rep)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, frames)
	assert.True(t, src.closed)
}

func TestProcessObserver(t *testing.T) {

	src := &fakeSource{fps: 30, total: 30}

	var seen []int

	p := newProcessor(t, func(o *Options) {
		o.Observer = func(smp sampler.Sample, dets []tracker.Detection, objs []tracker.TrackedObject) error {
			seen = append(seen, smp.Index)
			return nil
		}
	})

	_, err := p.Process(context.Background(), "clip.mp4", opener(src), scripted(nil))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 15}, seen)
}

func TestNewProcessorValidation(t *testing.T) {

	tests := []func(*Options){
		func(o *Options) { o.SampleRate = 0 },
		func(o *Options) { o.MaxFrames = 0 },
		func(o *Options) { o.MaxDisappeared = -1 },
		func(o *Options) { o.MaxDistance = 0 },
	}

	for i, mut := range tests {
		opts := DefaultOptions()
		mut(&opts)

		_, err := NewProcessor(opts)
		assert.Error(t, err, "case %d", i)
	}
}

func TestReductionPercentage(t *testing.T) {
	assert.Equal(t, 0.0, ReductionPercentage(0, 0))
	assert.InDelta(t, 75.0, ReductionPercentage(8, 2), 1e-9)
	assert.InDelta(t, 0.0, ReductionPercentage(3, 3), 1e-9)
}

func TestProcessConcurrentSessions(t *testing.T) {

	p := newProcessor(t, nil)

	var wg sync.WaitGroup
	reports := make([]*Report, 6)
	errs := make([]error, 6)

	for i := range reports {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			// each video holds i+1 cars spread far apart
			dets := make([]tracker.Detection, 0, i+1)
			for n := 0; n <= i; n++ {
				dets = append(dets, tracker.NewDetection(box(float64(100+n*300), 100), "car", 0.9))
			}

			det := DetectorFunc(func(frame sampler.Frame) ([]tracker.Detection, error) {
				return dets, nil
			})

			src := &fakeSource{fps: 30, total: 150}
			reports[i], errs[i] = p.Process(context.Background(), "cars.mp4", opener(src), det)
		}(i)
	}

	wg.Wait()

	for i, rep := range reports {
		require.NoError(t, errs[i])
		assert.Equal(t, map[string]int{"car": i + 1}, rep.CountsByLabel, "session %d", i)
		assert.Equal(t, 10*(i+1), rep.TrackingInfo.RawDetectionCounts["car"], "session %d", i)
	}
}
