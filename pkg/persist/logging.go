package persist

import (
	"context"
	"log/slog"
	"time"
)

// FlushEvent describes one attribute written (or rejected) during Flush.
type FlushEvent struct {
	Ref        Ref
	Verb       string
	SnapshotID string
	ETag       string
	Codec      string
	// Paths lists what changed since the last stored revision. Creates
	// leave it empty.
	Paths    []string
	Bytes    int
	Duration time.Duration
	Err      error
}

// FlushLogger records flush events.
type FlushLogger interface {
	LogFlush(FlushEvent)
}

// FlushLoggerFunc adapts a function to FlushLogger.
type FlushLoggerFunc func(FlushEvent)

// LogFlush implements FlushLogger.
func (f FlushLoggerFunc) LogFlush(event FlushEvent) {
	if f != nil {
		f(event)
	}
}

type noopFlushLogger struct{}

func (noopFlushLogger) LogFlush(FlushEvent) {}

// SlogLogger writes flush events to logger at info level, or error level when
// the write failed.
func SlogLogger(logger *slog.Logger) FlushLogger {
	if logger == nil {
		return noopFlushLogger{}
	}
	return FlushLoggerFunc(func(event FlushEvent) {
		level := slog.LevelInfo
		attrs := []slog.Attr{
			slog.String("ref", event.Ref.String()),
			slog.String("verb", event.Verb),
			slog.String("codec", event.Codec),
			slog.Int("bytes", event.Bytes),
			slog.Duration("duration", event.Duration),
		}
		if event.SnapshotID != "" {
			attrs = append(attrs, slog.String("snapshot_id", event.SnapshotID))
		}
		if len(event.Paths) > 0 {
			attrs = append(attrs, slog.Any("paths", event.Paths))
		}
		if event.Err != nil {
			level = slog.LevelError
			attrs = append(attrs, slog.String("error", event.Err.Error()))
		}
		logger.LogAttrs(context.Background(), level, "attribute flushed", attrs...)
	})
}
