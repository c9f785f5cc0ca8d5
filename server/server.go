package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/swdee/go-vidcount/logging"
	"github.com/swdee/go-vidcount/metrics"
	"github.com/swdee/go-vidcount/session"
	"github.com/swdee/go-vidcount/store"
	"github.com/swdee/go-vidcount/tracker"
)

// maxUploadSize is the largest request body accepted for uploads
const maxUploadSize = 512 << 20

// Backend runs detection for the HTTP handlers
type Backend interface {
	// Model returns the identifier of the model in use
	Model() string
	// DetectImage detects objects in an encoded image
	DetectImage(ctx context.Context, buf []byte) ([]tracker.Detection, error)
	// ProcessVideo counts the unique objects of a video file or stream URL
	ProcessVideo(ctx context.Context, source string) (*session.Report, error)
}

// ReportStore persists video reports
type ReportStore interface {
	Save(ctx context.Context, source string, rep *session.Report) (store.Record, error)
	Get(ctx context.Context, id string) (store.Record, error)
	List(ctx context.Context, limit int) ([]store.Record, error)
}

// Server is the HTTP API of the counting service
type Server struct {
	backend  Backend
	reports  ReportStore
	counters *metrics.Counters
	log      *slog.Logger
	started  time.Time
	// tempDir is where uploaded videos are spooled, os.TempDir when empty
	tempDir string
}

// Option configures a Server
type Option func(*Server)

// WithReports enables storing and serving video reports
func WithReports(rs ReportStore) Option {
	return func(s *Server) {
		s.reports = rs
	}
}

// WithCounters exposes the counters on the health endpoint
func WithCounters(c *metrics.Counters) Option {
	return func(s *Server) {
		s.counters = c
	}
}

// WithLogger sets the request logger
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithTempDir sets the directory uploaded videos are spooled to
func WithTempDir(dir string) Option {
	return func(s *Server) {
		s.tempDir = dir
	}
}

// New returns a Server using backend for detection
func New(backend Backend, opts ...Option) *Server {

	s := &Server{
		backend: backend,
		log:     logging.Discard(),
		started: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /detect/image", s.handleDetectImage)
	mux.HandleFunc("POST /detect/video", s.handleDetectVideo)
	mux.HandleFunc("GET /reports", s.handleListReports)
	mux.HandleFunc("GET /reports/{id}", s.handleGetReport)
	mux.HandleFunc("GET /reports/{id}/chart", s.handleReportChart)

	return s.withCORS(s.withLogging(mux))
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging logs every request with its outcome
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.log.Info("Request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

// withCORS allows browser frontends on any origin to call the API
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes v as the JSON response body
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to write response", logging.Err(err))
	}
}

// writeJSONError writes an error response in the form {"detail": msg}
func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"detail": msg})
}
