package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// logLine is one formatted record for the TUI log pane
type logLine struct {
	Level slog.Level
	Text  string
}

// logSink is a slog.Handler that formats records into single lines and hands
// them to the TUI through a buffered channel. When the channel is full the
// oldest line is dropped so the newest keep flowing.
type logSink struct {
	level  slog.Leveler
	prefix string
	attrs  []slog.Attr
	lines  chan logLine
}

func newLogSink(level slog.Leveler, capacity int) *logSink {
	if capacity <= 0 {
		capacity = 256
	}
	return &logSink{level: level, lines: make(chan logLine, capacity)}
}

func (h *logSink) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.level != nil {
		threshold = h.level.Level()
	}
	return level >= threshold
}

func (h *logSink) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	h.push(logLine{Level: r.Level, Text: b.String()})
	return nil
}

func (h *logSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	// attrs keep the group they were added under
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *logSink) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// push delivers a line; drop oldest if full to keep latest flowing
func (h *logSink) push(line logLine) {
	select {
	case h.lines <- line:
	default:
		select {
		case <-h.lines:
		default:
		}
		select {
		case h.lines <- line:
		default:
		}
	}
}

// drain returns every pending line without blocking
func (h *logSink) drain() []logLine {
	var out []logLine
	for {
		select {
		case l := <-h.lines:
			out = append(out, l)
		default:
			return out
		}
	}
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix+a.Key+".", ga)
		}
		return
	}
	val := a.Value.String()
	if val == "" {
		return
	}
	if strings.ContainsAny(val, " \t") {
		val = fmt.Sprintf("%q", val)
	}
	fmt.Fprintf(b, " %s%s=%s", prefix, a.Key, val)
}
