package metrics

import (
	"sync/atomic"
)

// Sink receives pipeline events for observability
type Sink interface {
	// SessionStarted is called when a video session begins
	SessionStarted()
	// SessionCompleted is called when a video session produced a report
	SessionCompleted(frames int)
	// SessionFailed is called when a video session aborted with an error
	SessionFailed()
	// FrameProcessed is called for every sampled frame with the number of
	// detections found
	FrameProcessed(detections int)
	// ImageProcessed is called for every single image detection request
	ImageProcessed(detections int)
}

// Nop is a Sink that discards all events
type Nop struct{}

// SessionStarted implements Sink
func (Nop) SessionStarted() {}

// SessionCompleted implements Sink
func (Nop) SessionCompleted(int) {}

// SessionFailed implements Sink
func (Nop) SessionFailed() {}

// FrameProcessed implements Sink
func (Nop) FrameProcessed(int) {}

// ImageProcessed implements Sink
func (Nop) ImageProcessed(int) {}

// Snapshot is a point in time copy of the counters.  CompletedFrames only
// counts frames of sessions that produced a report, FramesProcessed counts all.
type Snapshot struct {
	SessionsStarted   int64 `json:"sessions_started"`
	SessionsCompleted int64 `json:"sessions_completed"`
	SessionsFailed    int64 `json:"sessions_failed"`
	CompletedFrames   int64 `json:"completed_frames"`
	FramesProcessed   int64 `json:"frames_processed"`
	Detections        int64 `json:"detections"`
	ImagesProcessed   int64 `json:"images_processed"`
}

// Counters is a Sink keeping running totals, safe for concurrent use
type Counters struct {
	sessionsStarted   atomic.Int64
	sessionsCompleted atomic.Int64
	sessionsFailed    atomic.Int64
	completedFrames   atomic.Int64
	framesProcessed   atomic.Int64
	detections        atomic.Int64
	imagesProcessed   atomic.Int64
}

// NewCounters returns a zeroed set of counters
func NewCounters() *Counters {
	return &Counters{}
}

// SessionStarted counts a started session
func (c *Counters) SessionStarted() {
	c.sessionsStarted.Add(1)
}

// SessionCompleted counts a completed session and the frames it processed
func (c *Counters) SessionCompleted(frames int) {
	c.sessionsCompleted.Add(1)
	c.completedFrames.Add(int64(frames))
}

// SessionFailed counts an aborted session
func (c *Counters) SessionFailed() {
	c.sessionsFailed.Add(1)
}

// FrameProcessed counts a sampled video frame and its detections
func (c *Counters) FrameProcessed(detections int) {
	c.framesProcessed.Add(1)
	c.detections.Add(int64(detections))
}

// ImageProcessed counts a single image request and its detections
func (c *Counters) ImageProcessed(detections int) {
	c.imagesProcessed.Add(1)
	c.detections.Add(int64(detections))
}

// Snapshot returns the current counter values
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		SessionsStarted:   c.sessionsStarted.Load(),
		SessionsCompleted: c.sessionsCompleted.Load(),
		SessionsFailed:    c.sessionsFailed.Load(),
		CompletedFrames:   c.completedFrames.Load(),
		FramesProcessed:   c.framesProcessed.Load(),
		Detections:        c.detections.Load(),
		ImagesProcessed:   c.imagesProcessed.Load(),
	}
}
