package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/swdee/go-vidcount/logging"
	"github.com/swdee/go-vidcount/store"
	"github.com/swdee/go-vidcount/tracker"
)

// streamSchemes are the URL prefixes accepted for source_url
var streamSchemes = []string{"http://", "https://", "rtsp://", "rtmp://"}

// healthResponse is the body of GET /health
type healthResponse struct {
	Status    string  `json:"status"`
	Model     string  `json:"model"`
	Backend   string  `json:"backend"`
	UptimeSec float64 `json:"uptime_sec"`
	Metrics   any     `json:"metrics,omitempty"`
}

// imageResponse is the body of POST /detect/image
type imageResponse struct {
	Model      string              `json:"model"`
	Detections []tracker.Detection `json:"detections"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {

	resp := healthResponse{
		Status:    "ok",
		Model:     s.backend.Model(),
		Backend:   "yolo",
		UptimeSec: time.Since(s.started).Seconds(),
	}

	if s.counters != nil {
		resp.Metrics = s.counters.Snapshot()
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDetectImage(w http.ResponseWriter, r *http.Request) {

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, _, err := r.FormFile("file")

	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("missing image upload: %v", err))
		return
	}

	defer file.Close()

	buf, err := io.ReadAll(file)

	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("reading upload: %v", err))
		return
	}

	dets, err := s.backend.DetectImage(r.Context(), buf)

	if err != nil {
		s.log.Warn("Image detection failed", logging.Err(err))
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if dets == nil {
		dets = make([]tracker.Detection, 0)
	}

	s.writeJSON(w, http.StatusOK, imageResponse{
		Model:      s.backend.Model(),
		Detections: dets,
	})
}

func (s *Server) handleDetectVideo(w http.ResponseWriter, r *http.Request) {

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	source := r.URL.Query().Get("source_url")
	name := source

	file, hdr, err := r.FormFile("file")

	switch {
	case err == nil:
		// an uploaded file is preferred over source_url
		defer file.Close()

		path, err := s.spool(file, hdr.Filename)

		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Video processing error: %v", err))
			return
		}

		defer os.Remove(path)

		source = path
		name = hdr.Filename

	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Video processing error: %v", err))
		return

	case source == "":
		s.writeJSONError(w, http.StatusBadRequest, "Provide a video file or source_url")
		return

	case !validStreamURL(source):
		s.writeJSONError(w, http.StatusBadRequest,
			"Video processing error: Invalid URL format. Must start with http://, https://, rtsp://, or rtmp://")
		return
	}

	rep, err := s.backend.ProcessVideo(r.Context(), source)

	if err != nil {
		s.log.Warn("Video processing failed", slog.String("source", name), logging.Err(err))
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Video processing error: %v", err))
		return
	}

	if s.reports != nil {
		rec, err := s.reports.Save(r.Context(), name, rep)

		if err != nil {
			s.log.Error("Failed to save report", slog.String("source", name), logging.Err(err))
			s.writeJSONError(w, http.StatusInternalServerError, "failed to save report")
			return
		}

		w.Header().Set("X-Report-Id", rec.ID)
	}

	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {

	if !s.reportsEnabled(w) {
		return
	}

	limit := 50

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)

		if err != nil || n <= 0 || n > 1000 {
			s.writeJSONError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}

		limit = n
	}

	recs, err := s.reports.List(r.Context(), limit)

	if err != nil {
		s.log.Error("Failed to list reports", logging.Err(err))
		s.writeJSONError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {

	rec, ok := s.lookupReport(w, r)

	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, rec)
}

// lookupReport fetches the report named by the id path value, writing the
// error response when it can not be returned
func (s *Server) lookupReport(w http.ResponseWriter, r *http.Request) (store.Record, bool) {

	if !s.reportsEnabled(w) {
		return store.Record{}, false
	}

	rec, err := s.reports.Get(r.Context(), r.PathValue("id"))

	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeJSONError(w, http.StatusNotFound, "report not found")
		return store.Record{}, false

	case err != nil:
		s.log.Error("Failed to get report", logging.Err(err))
		s.writeJSONError(w, http.StatusInternalServerError, "failed to get report")
		return store.Record{}, false
	}

	return rec, true
}

// reportsEnabled writes a not found response when no report store is set
func (s *Server) reportsEnabled(w http.ResponseWriter) bool {

	if s.reports == nil {
		s.writeJSONError(w, http.StatusNotFound, "report storage is disabled")
		return false
	}

	return true
}

// spool writes an uploaded video to a temporary file returning its path
func (s *Server) spool(src io.Reader, filename string) (string, error) {

	ext := strings.ToLower(filepath.Ext(filename))

	if ext == "" {
		ext = ".mp4"
	}

	f, err := os.CreateTemp(s.tempDir, "upload-*"+ext)

	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing upload: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing upload: %w", err)
	}

	return f.Name(), nil
}

// validStreamURL checks source starts with a supported scheme
func validStreamURL(source string) bool {

	for _, scheme := range streamSchemes {
		if strings.HasPrefix(source, scheme) {
			return true
		}
	}

	return false
}
