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

package tracing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recordedSpan struct {
	Name  string
	Attrs map[string]interface{}
	Err   string
	Ended bool
}

type recordingTracer struct {
	mu    sync.Mutex
	spans []*recordedSpan
}

type recordingSpan struct {
	t *recordingTracer
	s *recordedSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &recordedSpan{Name: name, Attrs: map[string]interface{}{}}
	t.spans = append(t.spans, s)
	return ctx, &recordingSpan{t: t, s: s}
}

func (s *recordingSpan) SetAttribute(key string, value interface{}) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.s.Attrs[key] = value
}

func (s *recordingSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.s.Err = err.Error()
}

func (s *recordingSpan) End() {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.s.Ended = true
}

func withTracer(t *testing.T, tr Tracer) {
	t.Helper()
	SetTracer(tr)
	t.Cleanup(func() { SetTracer(nil) })
}

func TestRunWithoutTracer(t *testing.T) {
	if Enabled() {
		t.Fatal("Enabled() = true with the default tracer")
	}
	called := false
	err := Run(context.Background(), "Verify", nil, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("Run() = %v, called = %v", err, called)
	}
}

func TestRunRecordsSpan(t *testing.T) {
	rec := &recordingTracer{}
	withTracer(t, rec)
	if !Enabled() {
		t.Fatal("Enabled() = false after SetTracer")
	}

	errBoom := errors.New("boom")
	_ = Run(context.Background(), "Verify", map[string]interface{}{"asset.name": "photo.jpg"}, func(context.Context) error {
		return nil
	})
	err := Run(context.Background(), "ResolveIngredients", map[string]interface{}{"claim.id": "urn:uuid:1"}, func(context.Context) error {
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Errorf("Run() error = %v, want %v", err, errBoom)
	}

	want := []*recordedSpan{
		{Name: "Verify", Attrs: map[string]interface{}{"asset.name": "photo.jpg"}, Ended: true},
		{Name: "ResolveIngredients", Attrs: map[string]interface{}{"claim.id": "urn:uuid:1"}, Err: "boom", Ended: true},
	}
	if diff := cmp.Diff(want, rec.spans); diff != "" {
		t.Errorf("spans mismatch (-want +got):\n%s", diff)
	}
}

func TestSetTracerNilRestoresNoop(t *testing.T) {
	withTracer(t, &recordingTracer{})
	SetTracer(nil)
	if _, ok := GetTracer().(NoopTracer); !ok {
		t.Errorf("GetTracer() = %T, want NoopTracer", GetTracer())
	}
	ctx := context.Background()
	got, span := Start(ctx, "CheckRevocation")
	if got != ctx {
		t.Error("no-op Start() replaced the context")
	}
	span.SetAttribute("k", "v")
	span.RecordError(errors.New("ignored"))
	span.End()
}
