// Package progress provides sinks for chunk progress reports.
package progress

import (
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Sink receives progress reports. Implementations must not block for long.
type Sink interface {
	Report(current, total int, message string)
}

// Func adapts a function to a Sink.
type Func func(current, total int, message string)

// Report calls f.
func (f Func) Report(current, total int, message string) {
	f(current, total, message)
}

// Nop discards reports.
var Nop Sink = Func(func(int, int, string) {})

// LogSink writes each report as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(current, total int, message string) {
	s.logger.Info("progress",
		"current_chunk", current,
		"total_chunks", total,
		"message", message,
	)
}

// BarSink renders progress as a terminal bar.
type BarSink struct {
	mu    sync.Mutex
	w     io.Writer
	bar   *progressbar.ProgressBar
	total int
}

// NewBarSink creates a BarSink writing to w.
func NewBarSink(w io.Writer) *BarSink {
	return &BarSink{w: w}
}

func (s *BarSink) Report(current, total int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if total <= 0 {
		total = 1
	}
	if s.bar == nil || s.total != total {
		s.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(s.w),
			progressbar.OptionSetDescription(message),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetRenderBlankState(true),
		)
		s.total = total
	}
	s.bar.Describe(message)
	if current > total {
		current = total
	}
	_ = s.bar.Set(current)
}

// Finish completes the bar, if one was started.
func (s *BarSink) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		_ = s.bar.Finish()
	}
}

// Multi fans a report out to every sink.
type Multi []Sink

func (m Multi) Report(current, total int, message string) {
	for _, s := range m {
		if s != nil {
			s.Report(current, total, message)
		}
	}
}

// Safe serializes calls to the wrapped sink and contains panics so a
// misbehaving sink cannot abort a run.
type Safe struct {
	mu     sync.Mutex
	sink   Sink
	logger *slog.Logger
}

// NewSafe wraps sink. A nil sink reports nothing.
func NewSafe(sink Sink, logger *slog.Logger) *Safe {
	if sink == nil {
		sink = Nop
	}
	return &Safe{sink: sink, logger: logger}
}

func (s *Safe) Report(current, total int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("progress sink panicked", "panic", r, "message", message)
		}
	}()
	s.sink.Report(current, total, message)
}
