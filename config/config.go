package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/swdee/go-vidcount/session"
	"github.com/swdee/go-vidcount/tracker"
)

// ErrInvalidConfig is returned when a configuration value is out of range
var ErrInvalidConfig = errors.New("invalid configuration")

// Config contains the settings of the counting service
type Config struct {
	// ConfThreshold is the minimum detection confidence
	ConfThreshold float64
	// NMSThreshold is the IoU used for non maximum suppression
	NMSThreshold float64
	// ModelFile is the path to the YOLOv8 ONNX model
	ModelFile string
	// ModelURL is downloaded to ModelFile when the file is missing
	ModelURL string
	// ModelRepo is a Hugging Face repo the model is downloaded from when the
	// file is missing and no ModelURL is set
	ModelRepo string
	// ModelRevision is the Hugging Face repo revision
	ModelRevision string
	// ModelToken is sent as bearer token on model downloads, only read from
	// the environment
	ModelToken string
	// LabelsFile is an optional class labels file, COCO labels when empty
	LabelsFile string
	// ModelName is the model identifier reported in results
	ModelName string
	// InputSize is the model input tensor size
	InputSize int
	// SampleRate is the number of video frames evaluated per second
	SampleRate int
	// MaxFrames is the maximum number of video frames evaluated
	MaxFrames int
	// MaxDisappeared is the number of unmatched frames before a tracked
	// object is dropped
	MaxDisappeared int
	// MaxDistance is the centroid association distance in pixels
	MaxDistance float64
	// YieldEvery is the number of frames processed between scheduler yields
	YieldEvery int
	// PoolSize is the number of detectors loaded for concurrent requests
	PoolSize int
	// Port the HTTP server listens on
	Port int
	// DBPath is the sqlite database storing reports, empty disables storage
	DBPath string
	// LogLevel is one of debug, info, warn or error
	LogLevel string
}

// Default returns the Config with default values
func Default() Config {
	return Config{
		ConfThreshold:  0.25,
		NMSThreshold:   0.45,
		ModelFile:      "yolov8n.onnx",
		ModelName:      "yolov8n",
		ModelRevision:  "main",
		InputSize:      640,
		SampleRate:     session.DefaultSampleRate,
		MaxFrames:      session.DefaultMaxFrames,
		MaxDisappeared: tracker.DefaultMaxDisappeared,
		MaxDistance:    tracker.DefaultMaxDistance,
		YieldEvery:     session.DefaultYieldEvery,
		PoolSize:       1,
		Port:           8000,
		DBPath:         "vidcount.db",
		LogLevel:       "info",
	}
}

// AddFlags adds flags for the config to the flag set, using the current
// values as defaults
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.Float64Var(&c.ConfThreshold, "conf-threshold", c.ConfThreshold, "Minimum detection confidence")
	fs.Float64Var(&c.NMSThreshold, "nms-threshold", c.NMSThreshold, "Non maximum suppression IoU threshold")
	fs.StringVar(&c.ModelFile, "model", c.ModelFile, "YOLOv8 ONNX model file")
	fs.StringVar(&c.ModelURL, "model-url", c.ModelURL, "URL the model is downloaded from when the model file is missing")
	fs.StringVar(&c.ModelRepo, "model-repo", c.ModelRepo, "Hugging Face repo the model is downloaded from when no model URL is set")
	fs.StringVar(&c.ModelRevision, "model-revision", c.ModelRevision, "Hugging Face repo revision")
	fs.StringVar(&c.LabelsFile, "labels", c.LabelsFile, "Class labels file, one label per line (default COCO)")
	fs.StringVar(&c.ModelName, "model-name", c.ModelName, "Model name reported in results")
	fs.IntVar(&c.InputSize, "input-size", c.InputSize, "Model input size in pixels")
	fs.IntVar(&c.SampleRate, "fps-sample", c.SampleRate, "Video frames evaluated per second")
	fs.IntVar(&c.MaxFrames, "max-frames", c.MaxFrames, "Maximum number of video frames evaluated")
	fs.IntVar(&c.MaxDisappeared, "max-disappeared", c.MaxDisappeared, "Frames an object may go unseen before it is dropped")
	fs.Float64Var(&c.MaxDistance, "max-distance", c.MaxDistance, "Maximum centroid distance in pixels to associate an object")
	fs.IntVar(&c.YieldEvery, "yield-every", c.YieldEvery, "Frames processed between scheduler yields")
	fs.IntVar(&c.PoolSize, "pool-size", c.PoolSize, "Number of detectors for concurrent requests")
	fs.IntVar(&c.Port, "port", c.Port, "HTTP server port")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database for reports, empty to disable")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
}

// LoadEnv loads the given .env files, skipping those that do not exist, and
// then applies the settings found in the environment.  Variables already set
// in the environment take precedence over the files.
func (c *Config) LoadEnv(files ...string) error {

	for _, file := range files {

		if _, err := os.Stat(file); err != nil {
			continue
		}

		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}
	}

	return c.ApplyEnv(os.LookupEnv)
}

// ApplyEnv overlays values returned by lookup onto the config
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {

	e := envReader{lookup: lookup}

	e.floatVar("CONF_THRESHOLD", &c.ConfThreshold)
	e.floatVar("NMS_THRESHOLD", &c.NMSThreshold)
	e.stringVar("MODEL_FILE", &c.ModelFile)
	e.stringVar("MODEL_URL", &c.ModelURL)
	e.stringVar("MODEL_REPO_ID", &c.ModelRepo)
	e.stringVar("MODEL_REVISION", &c.ModelRevision)
	e.stringVar("HUGGING_FACE_HUB_TOKEN", &c.ModelToken)
	e.stringVar("LABELS_FILE", &c.LabelsFile)
	e.stringVar("MODEL_NAME", &c.ModelName)
	e.intVar("INPUT_SIZE", &c.InputSize)
	e.intVar("VIDEO_FPS_SAMPLE", &c.SampleRate)
	e.intVar("VIDEO_MAX_FRAMES", &c.MaxFrames)
	e.intVar("TRACKER_MAX_DISAPPEARED", &c.MaxDisappeared)
	e.floatVar("TRACKER_MAX_DISTANCE", &c.MaxDistance)
	e.intVar("YIELD_EVERY", &c.YieldEvery)
	e.intVar("POOL_SIZE", &c.PoolSize)
	e.intVar("PORT", &c.Port)
	e.stringVar("DB_PATH", &c.DBPath)
	e.stringVar("LOG_LEVEL", &c.LogLevel)

	return e.err
}

// Validate checks all values are within range
func (c *Config) Validate() error {

	switch {
	case c.ConfThreshold < 0 || c.ConfThreshold > 1:
		return fmt.Errorf("%w: confidence threshold %v not in [0,1]", ErrInvalidConfig, c.ConfThreshold)
	case c.NMSThreshold <= 0 || c.NMSThreshold > 1:
		return fmt.Errorf("%w: nms threshold %v not in (0,1]", ErrInvalidConfig, c.NMSThreshold)
	case c.ModelFile == "":
		return fmt.Errorf("%w: model file not set", ErrInvalidConfig)
	case c.InputSize <= 0:
		return fmt.Errorf("%w: input size %d must be positive", ErrInvalidConfig, c.InputSize)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: fps sample %d must be positive", ErrInvalidConfig, c.SampleRate)
	case c.MaxFrames <= 0:
		return fmt.Errorf("%w: max frames %d must be positive", ErrInvalidConfig, c.MaxFrames)
	case c.MaxDisappeared < 0:
		return fmt.Errorf("%w: max disappeared %d must not be negative", ErrInvalidConfig, c.MaxDisappeared)
	case c.MaxDistance <= 0:
		return fmt.Errorf("%w: max distance %v must be positive", ErrInvalidConfig, c.MaxDistance)
	case c.YieldEvery <= 0:
		return fmt.Errorf("%w: yield every %d must be positive", ErrInvalidConfig, c.YieldEvery)
	case c.PoolSize <= 0:
		return fmt.Errorf("%w: pool size %d must be positive", ErrInvalidConfig, c.PoolSize)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}

	return nil
}

// ModelURLs returns the configured model download locations, the model URL
// taking precedence over the Hugging Face repo
func (c *Config) ModelURLs() []string {

	switch {
	case c.ModelURL != "":
		return []string{c.ModelURL}
	case c.ModelRepo != "":
		rev := c.ModelRevision

		if rev == "" {
			rev = "main"
		}

		return []string{fmt.Sprintf("https://huggingface.co/%s/resolve/%s/%s",
			c.ModelRepo, rev, filepath.Base(c.ModelFile))}
	}

	return nil
}

// SessionOptions returns the session options described by the config
func (c *Config) SessionOptions() session.Options {

	opts := session.DefaultOptions()
	opts.Model = c.ModelName
	opts.SampleRate = c.SampleRate
	opts.MaxFrames = c.MaxFrames
	opts.MaxDisappeared = c.MaxDisappeared
	opts.MaxDistance = c.MaxDistance
	opts.YieldEvery = c.YieldEvery

	return opts
}

// envReader parses environment variables keeping the first error
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) stringVar(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *envReader) intVar(name string, dst *int) {

	v, ok := e.lookup(name)

	if !ok || e.err != nil {
		return
	}

	n, err := strconv.Atoi(v)

	if err != nil {
		e.err = fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, name, v)
		return
	}

	*dst = n
}

func (e *envReader) floatVar(name string, dst *float64) {

	v, ok := e.lookup(name)

	if !ok || e.err != nil {
		return
	}

	f, err := strconv.ParseFloat(v, 64)

	if err != nil {
		e.err = fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, name, v)
		return
	}

	*dst = f
}
