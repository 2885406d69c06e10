// Package tracelog provides the backend's optional diagnostic trace
// log: off by default, and when enabled, a rotating file that records
// one timestamped line per traced backend event (the backend opening
// its store, PackRefs completing). It is not meant for application
// logging — callers get
// ordinary errors back from every call — only for the kind of forensic
// trail useful when diagnosing a stuck lock or an unexpected conflict
// after the fact.
package tracelog

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes timestamped trace lines to a rotating file. The zero
// value is a valid, disabled Logger: every method is then a no-op.
type Logger struct {
	mu  sync.Mutex
	out io.WriteCloser
}

// Config controls rotation behavior, mirroring lumberjack's knobs.
type Config struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New returns an enabled Logger rotating through cfg.Path. Zero-valued
// fields fall back to lumberjack's own defaults (for MaxSizeMB, a
// 100MB rotation size).
func New(cfg Config) *Logger {
	return &Logger{
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
	}
}

// Tracef writes one formatted, timestamped line. On a nil or disabled
// Logger this is a no-op, so call sites never need a nil check.
func (l *Logger) Tracef(format string, args ...any) {
	if l == nil || l.out == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	fmt.Fprintf(l.out, "%s "+format+"\n", append([]any{ts}, args...)...)
}

// Close flushes and closes the underlying rotating file.
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	return l.out.Close()
}
