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

package options

import (
	"testing"

	"github.com/sigstore/content-credentials/pkg/logging"
	"github.com/sigstore/content-credentials/pkg/tracing"
)

type exportingTracer struct{ tracing.NoopTracer }

func TestNewObservability(t *testing.T) {
	t.Cleanup(func() { tracing.SetTracer(nil) })
	ro := &RootOptions{LogLevel: "debug", LogFormat: "json"}

	obs := ro.NewObservability()
	if obs.Tracing {
		t.Error("Tracing = true with the no-op tracer installed")
	}
	if obs.Logger.GetLevel() != logging.LevelDebug {
		t.Errorf("GetLevel() = %v, want debug", obs.Logger.GetLevel())
	}

	tracing.SetTracer(exportingTracer{})
	if !ro.NewObservability().Tracing {
		t.Error("Tracing = false with an exporting tracer installed")
	}
}
