package vidcount

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// ErrModelUnavailable is returned when the model file is missing and could
// not be downloaded
var ErrModelUnavailable = errors.New("model unavailable")

// DefaultModelURLs are the public release locations of the YOLOv8 nano ONNX
// model tried by the download command when no source is configured
var DefaultModelURLs = []string{
	"https://github.com/ultralytics/assets/releases/download/v8.0.0/yolov8n.onnx",
	"https://github.com/ultralytics/yolov8/releases/download/v8.0.0/yolov8n.onnx",
	"https://github.com/ultralytics/yolov8/releases/latest/download/yolov8n.onnx",
}

// ModelSource describes where a missing model file is downloaded from
type ModelSource struct {
	// URLs are tried in order until one download succeeds
	URLs []string
	// Token is sent as a bearer token when set
	Token string
	// MinSize is the smallest file size in bytes accepted as a model, files
	// must at least not be empty
	MinSize int64
	// Client is the HTTP client used, http.DefaultClient when nil
	Client *http.Client
}

// HuggingFaceURL returns the download URL of a file in a Hugging Face repo
func HuggingFaceURL(repo, revision, file string) string {

	if revision == "" {
		revision = "main"
	}

	return fmt.Sprintf("https://huggingface.co/%s/resolve/%s/%s", repo, revision, file)
}

// EnsureModel makes sure the model file at path exists, downloading it from
// src when it is missing or smaller than src.MinSize.  Downloads are written
// to a temporary file in the same directory and renamed into place, so a
// failed download never leaves a partial model behind.  It reports whether a
// download took place.
func EnsureModel(ctx context.Context, path string, src ModelSource) (bool, error) {

	minSize := src.MinSize

	if minSize < 1 {
		minSize = 1
	}

	if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Size() >= minSize {
		return false, nil
	}

	if len(src.URLs) == 0 {
		return false, fmt.Errorf("%w: %s not found and no download URL configured", ErrModelUnavailable, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("error creating model directory: %w", err)
	}

	client := src.Client

	if client == nil {
		client = http.DefaultClient
	}

	var errs []error

	for _, url := range src.URLs {

		err := download(ctx, client, url, src.Token, path, minSize)

		if err == nil {
			return true, nil
		}

		errs = append(errs, err)

		// no point trying other sources once the caller gave up
		if ctx.Err() != nil {
			break
		}
	}

	return false, fmt.Errorf("%w: %s: %w", ErrModelUnavailable, path, errors.Join(errs...))
}

// download fetches url into path through a temporary file
func download(ctx context.Context, client *http.Client, url, token, path string, minSize int64) error {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	if err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}

	req.Header.Set("User-Agent", "vidcount-model-downloader")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)

	if err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.part")

	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}

	// removing after a successful rename fails harmlessly
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)

	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}

	if n < minSize {
		return fmt.Errorf("%s: downloaded %d bytes, expected at least %d", url, n, minSize)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error moving model into place: %w", err)
	}

	return nil
}
