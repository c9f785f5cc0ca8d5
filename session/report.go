package session

import (
	"github.com/swdee/go-vidcount/tracker"
)

// FrameResult is the record of one sampled frame
type FrameResult struct {
	// FrameIndex is the native index of the frame in the video
	FrameIndex int `json:"frame_index"`
	// TimeSec is the timestamp of the frame in seconds
	TimeSec float64 `json:"time_sec"`
	// Detections are the detections returned for the frame
	Detections []tracker.Detection `json:"detections"`
	// TrackedObjects is the number of live tracked objects after the frame
	TrackedObjects int `json:"tracked_objects"`
}

// TrackerConfig records the tracker policy used for a session
type TrackerConfig struct {
	MaxDisappeared int     `json:"max_disappeared"`
	MaxDistance    float64 `json:"max_distance"`
}

// TrackingInfo holds the diagnostics of a session
type TrackingInfo struct {
	// TotalUniqueObjects is the number of live objects at the end of the video
	TotalUniqueObjects int `json:"total_unique_objects"`
	// UniqueCountsByLabel is the number of live objects per label at the end
	// of the video
	UniqueCountsByLabel map[string]int `json:"unique_counts_by_label"`
	// RawDetectionCounts is the per label sum of detections across all
	// sampled frames ignoring identity
	RawDetectionCounts map[string]int `json:"raw_detection_counts"`
	// ReductionPercentage is how much tracking reduced the raw count
	ReductionPercentage float64       `json:"reduction_percentage"`
	TrackerConfig       TrackerConfig `json:"tracker_config"`
	// TotalRegisteredObjects is the number of object ids issued during the
	// session including those evicted before the end
	TotalRegisteredObjects int `json:"total_registered_objects"`
	// RegisteredCountsByLabel is the per label count of all ids issued
	RegisteredCountsByLabel map[string]int `json:"registered_counts_by_label"`
}

// Report is the aggregate result of processing one video
type Report struct {
	Model           string         `json:"model"`
	TotalFrames     int            `json:"total_frames"`
	ProcessedFrames int            `json:"processed_frames"`
	FPSSample       int            `json:"fps_sample"`
	Results         []FrameResult  `json:"results"`
	CountsByLabel   map[string]int `json:"counts_by_label"`
	TrackingInfo    *TrackingInfo  `json:"tracking_info,omitempty"`
}

// ReductionPercentage returns the percentage by which the unique count is
// lower than the raw detection count, zero when there were no detections
func ReductionPercentage(rawTotal, uniqueTotal int) float64 {

	if rawTotal == 0 {
		return 0
	}

	return float64(rawTotal-uniqueTotal) / float64(rawTotal) * 100
}
