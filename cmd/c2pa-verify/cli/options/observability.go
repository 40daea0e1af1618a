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
	"github.com/sigstore/content-credentials/pkg/logging"
	"github.com/sigstore/content-credentials/pkg/tracing"
)

// Observability is what a c2pa-verify command reports through: the stderr
// logger configured by --log-level and --log-format, and whether
// verification spans are being exported.
type Observability struct {
	Logger  logging.Logger
	Tracing bool
}

// NewObservability builds the logger handed to the engine. When main has
// installed an exporting tracer the logger records it at debug level.
func (o *RootOptions) NewObservability() Observability {
	obs := Observability{
		Logger:  o.NewLogger(),
		Tracing: tracing.Enabled(),
	}
	if obs.Tracing {
		obs.Logger.Debugln("exporting verification spans")
	}
	return obs
}
