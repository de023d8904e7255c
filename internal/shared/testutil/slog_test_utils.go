package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogRecord is one captured log line with its attributes flattened. Group
// names prefix keys with a dot, so "http" + "status" becomes "http.status".
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

type logBuffer struct {
	mu      sync.Mutex
	records []LogRecord
}

// LogCapture is a slog.Handler that keeps every record in memory. Loggers
// derived with With or WithGroup write into the same buffer, so a test can
// hand a logger to a component that tags itself and still read its output.
type LogCapture struct {
	buf    *logBuffer
	attrs  []slog.Attr
	prefix string
	t      testing.TB
}

// NewTestLogger returns a logger that captures at every level, and the
// capture to inspect. Records are echoed to t.Log for failing tests.
func NewTestLogger(t testing.TB) (*slog.Logger, *LogCapture) {
	c := &LogCapture{buf: &logBuffer{}, t: t}
	return slog.New(c), c
}

func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(c.attrs)+r.NumAttrs())
	for _, a := range c.attrs {
		flatten(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, c.prefix, a)
		return true
	})

	c.buf.mu.Lock()
	c.buf.records = append(c.buf.records, LogRecord{Level: r.Level, Message: r.Message, Attrs: attrs})
	c.buf.mu.Unlock()

	if c.t != nil {
		c.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *c
	next.attrs = make([]slog.Attr, 0, len(c.attrs)+len(attrs))
	next.attrs = append(next.attrs, c.attrs...)
	for _, a := range attrs {
		if c.prefix != "" {
			a.Key = c.prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (c *LogCapture) WithGroup(name string) slog.Handler {
	if name == "" {
		return c
	}
	next := *c
	next.prefix = c.prefix + name + "."
	return &next
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(dst, p, ga)
		}
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// Records returns a copy of everything captured so far.
func (c *LogCapture) Records() []LogRecord {
	c.buf.mu.Lock()
	defer c.buf.mu.Unlock()
	return append([]LogRecord(nil), c.buf.records...)
}

// Messages returns the messages logged at level, in order.
func (c *LogCapture) Messages(level slog.Level) []string {
	var out []string
	for _, r := range c.Records() {
		if r.Level == level {
			out = append(out, r.Message)
		}
	}
	return out
}

// Find returns the first record whose message contains msg.
func (c *LogCapture) Find(msg string) (LogRecord, bool) {
	for _, r := range c.Records() {
		if strings.Contains(r.Message, msg) {
			return r, true
		}
	}
	return LogRecord{}, false
}

// AssertLogContains fails t unless a record at level contains message.
func AssertLogContains(t testing.TB, c *LogCapture, level slog.Level, message string) {
	t.Helper()
	msgs := c.Messages(level)
	for _, m := range msgs {
		if strings.Contains(m, message) {
			return
		}
	}
	t.Errorf("no %s log containing %q; captured: %q", level, message, msgs)
}

// AssertLogAttr fails t unless some record carries key=value.
func AssertLogAttr(t testing.TB, c *LogCapture, key string, value any) {
	t.Helper()
	for _, r := range c.Records() {
		if v, ok := r.Attrs[key]; ok && v == value {
			return
		}
	}
	t.Errorf("no log attribute %s=%v", key, value)
	for _, r := range c.Records() {
		t.Logf("  %s: %v", r.Message, r.Attrs)
	}
}
