/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package shadowlog is the simulator's structured logging sink: a thin
// wrapper over github.com/sirupsen/logrus in the idiom of the teacher's
// logger package (logger/logger.go, logger/entry.go, logger/fields.go),
// specialized to the fields spec.md §1 says the (out-of-scope) logging
// subsystem accepts: level, timestamp, host name, thread id, message.
package shadowlog

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	hclog "github.com/hashicorp/go-hclog"
	colorable "github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	jww "github.com/spf13/jwalterweatherman"
)

// Fields are structured key/value pairs attached to one log record,
// mirroring the teacher's logger.Fields map-with-copy-on-write idiom.
type Fields map[string]interface{}

func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Add returns a new Fields with key=val set, leaving the receiver untouched.
func (f Fields) Add(key string, val interface{}) Fields {
	out := f.clone()
	out[key] = val
	return out
}

// Logger is the simulator-wide log sink. One instance is shared by every
// host; per-host/per-thread context is carried via Fields, not via
// per-host logger instances, so the global level filter and output hooks
// stay centralized the way spec.md §5 describes the log sink as a single
// shared resource (per-thread local queues flushed to a helper thread).
type Logger struct {
	mu    sync.RWMutex
	base  *logrus.Logger
	level Level
}

// New builds a Logger writing to w (os.Stdout if nil) at the given level.
// When colorize is true and w supports ANSI, output is colorized via
// fatih/color + mattn/go-colorable, matching logger/hookstdout's console
// hook.
func New(level Level, w io.Writer, colorize bool) *Logger {
	if w == nil {
		w = os.Stdout
	}
	if colorize {
		if f, ok := w.(*os.File); ok {
			w = colorable.NewColorable(f)
		}
		color.NoColor = false
	}

	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(level.logrus())
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &Logger{base: base, level: level}
}

// SetLevel adjusts the global filter level at runtime (--log-level, or a
// config reload).
func (l *Logger) SetLevel(lv Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = lv
	l.base.SetLevel(lv.logrus())
}

// Level returns the currently configured global filter level.
func (l *Logger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// Entry is a single log record builder bound to a host/thread context.
type Entry struct {
	l      *Logger
	fields Fields
}

// With returns an Entry pre-populated with host/thread/simulation-time
// fields, the way a worker stamps every record it emits.
func (l *Logger) With(fields Fields) *Entry {
	return &Entry{l: l, fields: fields}
}

func (e *Entry) entry() *logrus.Entry {
	return e.l.base.WithFields(logrus.Fields(e.fields))
}

func (e *Entry) Debugf(format string, args ...interface{}) { e.entry().Debugf(format, args...) }
func (e *Entry) Infof(format string, args ...interface{})  { e.entry().Infof(format, args...) }
func (e *Entry) Warnf(format string, args ...interface{})  { e.entry().Warnf(format, args...) }

// Errorf logs at error level. Per spec.md §7, an error-level record from
// guest plugin-abort paths triggers process termination by the caller
// after the record is flushed; Errorf itself never aborts, it only logs.
func (e *Entry) Errorf(format string, args ...interface{}) { e.entry().Errorf(format, args...) }

// HCLogAdapter returns a hashicorp/go-hclog.Logger named name whose level
// follows the Logger's current level, in the shape of the teacher's
// logger/hclog.go bridge. Its output is io.Discard: records written
// through it are dropped, not forwarded to the Entry's logrus output.
func (e *Entry) HCLogAdapter(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclogLevel(e.l.Level()),
		Output: io.Discard, // records written here are dropped
	})
}

func hclogLevel(l Level) hclog.Level {
	switch l {
	case PanicLevel, FatalLevel, ErrorLevel:
		return hclog.Error
	case WarnLevel:
		return hclog.Warn
	case InfoLevel:
		return hclog.Info
	default:
		return hclog.Debug
	}
}

// NotepadAdapter returns a github.com/spf13/jwalterweatherman Notepad for
// the older notepad-style logging convention, in the shape of
// logger/spf13.go's SetSPF13Level bridge. Both of its outputs are
// io.Discard, so nothing written through it reaches the Entry.
func (e *Entry) NotepadAdapter() *jww.Notepad {
	n := jww.NewNotepad(jww.LevelError, jww.LevelInfo, io.Discard, io.Discard, "", 0)
	return n
}
