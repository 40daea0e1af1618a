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

// Package tracing wraps span creation for the verification pipeline. The
// default build uses a no-op tracer. Built with the "otel" tag, InitFromEnv
// installs an OpenTelemetry tracer that exports over OTLP/HTTP, configured
// by the standard OTEL_* environment variables.
//
// The engine opens a "Verify" span per asset, a "ResolveIngredients" span
// per provenance graph, a "VerifyClaim" span per claim and a
// "CheckRevocation" span per OCSP round trip.
package tracing

import "context"

// Span is a single timed operation in a trace.
type Span interface {
	SetAttribute(key string, value interface{})
	// RecordError marks the span as failed. A nil error is ignored.
	RecordError(err error)
	End()
}

// Tracer creates spans for named operations.
type Tracer interface {
	// Start starts a span. The returned context carries it to children.
	Start(ctx context.Context, name string) (context.Context, Span)
}

var globalTracer Tracer = NoopTracer{}

// SetTracer replaces the global tracer. nil restores the no-op tracer.
func SetTracer(t Tracer) {
	if t == nil {
		globalTracer = NoopTracer{}
		return
	}
	globalTracer = t
}

func GetTracer() Tracer {
	return globalTracer
}

// Start starts a span on the global tracer.
func Start(ctx context.Context, name string) (context.Context, Span) {
	return globalTracer.Start(ctx, name)
}

// Enabled reports whether a non-noop tracer is installed.
func Enabled() bool {
	_, noop := globalTracer.(NoopTracer)
	return !noop
}

// Run calls fn inside a span named name carrying attrs. The error fn
// returns is recorded on the span and passed through.
func Run(ctx context.Context, name string, attrs map[string]interface{}, fn func(context.Context) error) error {
	if !Enabled() {
		return fn(ctx)
	}
	ctx, span := globalTracer.Start(ctx, name)
	defer span.End()
	for k, v := range attrs {
		span.SetAttribute(k, v)
	}
	err := fn(ctx)
	span.RecordError(err)
	return err
}
