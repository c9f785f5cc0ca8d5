package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mdobak/go-xerrors"
)

// ParseLevel converts a level name such as "debug" or "INFO" into a slog
// level
func ParseLevel(name string) (slog.Level, error) {

	var level slog.Level

	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}

	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", name, err)
	}

	return level, nil
}

// New returns a text logger writing to w at the named level
func New(level string, w io.Writer) (*slog.Logger, error) {

	lvl, err := ParseLevel(level)

	if err != nil {
		return nil, err
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: replaceAttr,
	})

	return slog.New(h), nil
}

// Err returns a log attribute for err carrying the stack trace of the caller
func Err(err error) slog.Attr {
	return slog.Any("error", xerrors.New(err))
}

// replaceAttr renders errors with their stack trace when one is attached
func replaceAttr(_ []string, a slog.Attr) slog.Attr {

	if a.Value.Kind() != slog.KindAny {
		return a
	}

	err, ok := a.Value.Any().(error)

	if !ok {
		return a
	}

	for _, f := range xerrors.StackTrace(err).Frames() {

		// the first frame outside of Err is the caller that logged the error
		if strings.HasSuffix(f.Function, "logging.Err") {
			continue
		}

		return slog.Group(a.Key,
			slog.String("msg", err.Error()),
			slog.String("at", fmt.Sprintf("%s:%d", f.File, f.Line)),
		)
	}

	return slog.String(a.Key, err.Error())
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
