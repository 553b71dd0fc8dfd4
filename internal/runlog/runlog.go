// Package runlog keeps the user-facing, append-only record of a workflow.
package runlog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Level of a log entry.
type Level string

const (
	Info    Level = "info"
	Warn    Level = "warn"
	Error   Level = "error"
	Success Level = "success"
)

// ParseLevel maps remote level strings onto Level; unknown values become Info.
func ParseLevel(s string) Level {
	switch Level(s) {
	case Warn, Error, Success:
		return Level(s)
	}
	return Info
}

// Entry is one log line.
type Entry struct {
	Timestamp string `json:"timestamp"` // RFC 3339
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
}

// Log is an append-only sequence of entries, safe for concurrent use.
// Every append is mirrored to slog.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func New() *Log { return &Log{now: time.Now} }

// Add appends an entry.
func (l *Log) Add(level Level, msg string, details any) {
	e := Entry{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Details:   details,
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	attrs := []any{"source", "pipeline"}
	if details != nil {
		attrs = append(attrs, "details", details)
	}
	slog.Log(context.Background(), slogLevel(level), msg, attrs...)
}

func (l *Log) Info(msg string)    { l.Add(Info, msg, nil) }
func (l *Log) Warn(msg string)    { l.Add(Warn, msg, nil) }
func (l *Log) Error(msg string)   { l.Add(Error, msg, nil) }
func (l *Log) Success(msg string) { l.Add(Success, msg, nil) }

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Entries returns a copy of the current entries.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func slogLevel(l Level) slog.Level {
	switch l {
	case Warn:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	}
	return slog.LevelInfo
}
