package review

import (
	"io"
	"log"
	"sync"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	logMu       sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the ops, diag and trace streams together.
// A nil writer disables its stream.
func SetLogWriters(w LogWriters) {
	logMu.Lock()
	defer logMu.Unlock()
	opsLogger = newLogger(w.Ops)
	diagLogger = newLogger(w.Diag)
	traceLogger = newLogger(w.Trace)
}

func newLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "[review] ", log.LstdFlags|log.Lmicroseconds)
}

func logf(l *log.Logger, format string, args []interface{}) {
	if l != nil {
		l.Printf(format, args...)
	}
}

// Opsf logs to the ops stream: failures a user should see, lifecycle events.
func Opsf(format string, args ...interface{}) {
	logMu.RLock()
	l := opsLogger
	logMu.RUnlock()
	logf(l, format, args)
}

// Diagf logs to the diag stream: skipped rows, dropped ids, fallbacks taken.
func Diagf(format string, args ...interface{}) {
	logMu.RLock()
	l := diagLogger
	logMu.RUnlock()
	logf(l, format, args)
}

// Tracef logs to the trace stream: per-frame and per-formatter telemetry.
func Tracef(format string, args ...interface{}) {
	logMu.RLock()
	l := traceLogger
	logMu.RUnlock()
	logf(l, format, args)
}
