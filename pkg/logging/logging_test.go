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
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name       string
		verbose    bool
		wantSilent bool
		wantLevel  LogLevel
	}{
		{"verbose", true, false, LevelDebug},
		{"default", false, true, LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLogger(tt.verbose)
			if l.Silent() != tt.wantSilent {
				t.Errorf("Silent() = %v, want %v", l.Silent(), tt.wantSilent)
			}
			if l.GetLevel() != tt.wantLevel {
				t.Errorf("GetLevel() = %v, want %v", l.GetLevel(), tt.wantLevel)
			}
			if l.sink.out != os.Stderr {
				t.Error("NewLogger() should write to os.Stderr")
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  []string
	}{
		{LevelDebug, []string{"d1", "d2", "i1", "i2", "w1", "w2", "e1", "e2"}},
		{LevelInfo, []string{"i1", "i2", "w1", "w2", "e1", "e2"}},
		{LevelWarn, []string{"w1", "w2", "e1", "e2"}},
		{LevelError, []string{"e1", "e2"}},
		{LevelSilent, nil},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLoggerWithOptions(LoggerOptions{Level: tt.level, Output: &buf})
			l.Debug("d%d", 1)
			l.Debugln("d2")
			l.Info("i%d", 1)
			l.Infoln("i2")
			l.Warn("w%d", 1)
			l.Warnln("w2")
			l.Error("e%d", 1)
			l.Errorln("e2")

			got := strings.Fields(buf.String())
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("output = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLnMethodsDoNotFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(LoggerOptions{Level: LevelDebug, Output: &buf})
	l.Infoln("100%s complete")
	if got := buf.String(); got != "100%s complete\n" {
		t.Errorf("Infoln() wrote %q", got)
	}
}

func TestTextFormatter(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		f    *TextFormatter
		e    LogEntry
		want string
	}{
		{
			name: "plain",
			f:    &TextFormatter{},
			e:    LogEntry{Timestamp: ts, Level: LevelInfo, Message: "verified"},
			want: "verified\n",
		},
		{
			name: "level and time",
			f:    &TextFormatter{ShowLevel: true, TimeFormat: "15:04"},
			e:    LogEntry{Timestamp: ts, Level: LevelWarn, Message: "no anchors"},
			want: "12:30 [WARN] no anchors\n",
		},
		{
			name: "sorted fields",
			f:    &TextFormatter{},
			e: LogEntry{Level: LevelDebug, Message: "claim verified", Fields: map[string]interface{}{
				"verdict": "Trusted", "claim": "urn:uuid:1", "depth": 2,
			}},
			want: "claim verified claim=urn:uuid:1 depth=2 verdict=Trusted\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.f.Format(tt.e)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(LoggerOptions{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	l.WithField("asset", "photo.jpg").Info("verdict %s", "Trusted")

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v: %q", err, buf.String())
	}
	if got["level"] != "info" || got["message"] != "verdict Trusted" {
		t.Errorf("entry = %v", got)
	}
	fields, _ := got["fields"].(map[string]interface{})
	if fields["asset"] != "photo.jpg" {
		t.Errorf("fields = %v", got["fields"])
	}
	if _, err := time.Parse(time.RFC3339, got["timestamp"].(string)); err != nil {
		t.Errorf("timestamp: %v", err)
	}
}

func TestJSONFormatUnencodableField(t *testing.T) {
	out, err := (&JSONFormatter{}).Format(LogEntry{
		Level:   LevelError,
		Message: "boom",
		Fields:  map[string]interface{}{"ch": make(chan int)},
	})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("fallback is not JSON: %q", out)
	}
	if got["message"] != "boom" {
		t.Errorf("message = %v", got["message"])
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithOptions(LoggerOptions{Level: LevelInfo, Output: &buf})
	child := parent.WithFields(map[string]interface{}{"session": 1})
	grandchild := child.WithField("claim", "a")

	parent.Infoln("p")
	child.Infoln("c")
	grandchild.Infoln("g")

	want := "p\nc session=1\ng claim=a session=1\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestDerivedLoggersShareLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithOptions(LoggerOptions{Level: LevelInfo, Output: &buf})
	child := parent.WithField("k", "v")
	parent.SetLevel(LevelError)
	child.Infoln("hidden")
	if buf.Len() != 0 {
		t.Errorf("child logged after parent raised level: %q", buf.String())
	}
	if child.GetLevel() != LevelError {
		t.Errorf("child.GetLevel() = %v", child.GetLevel())
	}
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(LoggerOptions{Level: LevelInfo, Output: &buf})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			child := l.WithField("worker", i)
			for j := 0; j < 50; j++ {
				child.Infoln("message")
			}
		}(i)
	}
	wg.Wait()
	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		if !strings.HasPrefix(line, "message worker=") {
			t.Fatalf("interleaved line %q", line)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": LevelDebug, "TRACE": LevelDebug, " info ": LevelInfo,
		"warning": LevelWarn, "error": LevelError, "off": LevelSilent,
		"quiet": LevelSilent, "bogus": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if LogLevel(42).String() != "unknown" {
		t.Errorf("LogLevel(42).String() = %q", LogLevel(42).String())
	}
}

func TestParseLogFormat(t *testing.T) {
	if ParseLogFormat("JSON") != FormatJSON || ParseLogFormat("text") != FormatText || ParseLogFormat("xml") != FormatText {
		t.Error("ParseLogFormat() mismatch")
	}
	if FormatJSON.String() != "json" || FormatText.String() != "text" {
		t.Error("LogFormat.String() mismatch")
	}
}

func TestEnsureLoggerAndDiscard(t *testing.T) {
	custom := NewLogger(true)
	if EnsureLogger(custom) != Logger(custom) {
		t.Error("EnsureLogger() replaced a configured logger")
	}
	if EnsureLogger(nil) == nil {
		t.Error("EnsureLogger(nil) returned nil")
	}
	d := Discard()
	if d.GetLevel() != LevelSilent || !d.Silent() {
		t.Errorf("Discard() level = %v", d.GetLevel())
	}
	if d.(*DefaultLogger).IsLevelEnabled(LevelError) {
		t.Error("Discard() enables error output")
	}
}
