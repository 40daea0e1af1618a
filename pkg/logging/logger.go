// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var _ Logger = (*DefaultLogger)(nil)

// LoggerOptions configures a DefaultLogger.
type LoggerOptions struct {
	Level LogLevel
	// Format selects the built-in formatter. Ignored if Formatter is set.
	Format    LogFormat
	Formatter Formatter
	// Output defaults to os.Stderr.
	Output io.Writer
	// TimeFormat and ShowLevel configure the built-in formatters.
	TimeFormat string
	ShowLevel  bool
}

// sink is shared by a logger and every logger derived from it, so that
// entries from concurrent claim verifications never interleave mid-line.
type sink struct {
	mu        sync.Mutex
	level     LogLevel
	formatter Formatter
	out       io.Writer
}

// DefaultLogger writes formatted entries to an io.Writer.
type DefaultLogger struct {
	sink   *sink
	fields map[string]interface{}
}

// NewLogger returns a text logger writing to stderr, at debug level when
// verbose and info level otherwise.
func NewLogger(verbose bool) *DefaultLogger {
	level := LevelInfo
	if verbose {
		level = LevelDebug
	}
	return NewLoggerWithOptions(LoggerOptions{Level: level})
}

// NewLoggerWithOptions creates a DefaultLogger from opts.
func NewLoggerWithOptions(opts LoggerOptions) *DefaultLogger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	formatter := opts.Formatter
	if formatter == nil {
		if opts.Format == FormatJSON {
			formatter = &JSONFormatter{TimeFormat: opts.TimeFormat}
		} else {
			formatter = &TextFormatter{TimeFormat: opts.TimeFormat, ShowLevel: opts.ShowLevel}
		}
	}
	return &DefaultLogger{sink: &sink{level: opts.Level, formatter: formatter, out: out}}
}

// WithFields returns a logger that adds fields to every entry. The
// receiver is not modified; level changes on either affect both.
func (l *DefaultLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &DefaultLogger{sink: l.sink, fields: merged}
}

func (l *DefaultLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

func (l *DefaultLogger) GetLevel() LogLevel {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.level
}

func (l *DefaultLogger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.out = w
}

// Silent returns true if the logger suppresses debug output.
func (l *DefaultLogger) Silent() bool {
	return !l.IsLevelEnabled(LevelDebug)
}

// IsLevelEnabled returns true if the given level would produce output.
func (l *DefaultLogger) IsLevelEnabled(level LogLevel) bool {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return level >= l.sink.level && level < LevelSilent
}

func (l *DefaultLogger) log(level LogLevel, msg string) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level {
		return
	}
	data, err := s.formatter.Format(LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Fields:    l.fields,
	})
	if err != nil {
		fmt.Fprintf(s.out, "logging error: %v\n", err)
		return
	}
	_, _ = s.out.Write(data)
}

func (l *DefaultLogger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugln(msg string) { l.log(LevelDebug, msg) }

func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Infoln(msg string) { l.log(LevelInfo, msg) }

func (l *DefaultLogger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Warnln(msg string) { l.log(LevelWarn, msg) }

func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Errorln(msg string) { l.log(LevelError, msg) }
