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

package provenance

import (
	"fmt"
	"strings"

	"github.com/sigstore/content-credentials/pkg/manifest"
)

// RecorderFormat selects how FormatRecorder renders the claim recorder.
type RecorderFormat int

const (
	// RecorderName renders the program name only.
	RecorderName RecorderFormat = iota
	// RecorderNameAndVersion renders "name version".
	RecorderNameAndVersion
	// RecorderVersion renders the version only.
	RecorderVersion
)

// String returns the string representation of a recorder format.
func (f RecorderFormat) String() string {
	switch f {
	case RecorderName:
		return "name"
	case RecorderNameAndVersion:
		return "name-version"
	case RecorderVersion:
		return "version"
	default:
		return "unknown"
	}
}

// ParseRecorderFormat parses a string into a RecorderFormat.
func ParseRecorderFormat(s string) (RecorderFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name":
		return RecorderName, nil
	case "name-version", "nameandversion", "name+version":
		return RecorderNameAndVersion, nil
	case "version":
		return RecorderVersion, nil
	default:
		return RecorderName, fmt.Errorf("unknown recorder format %q (want name, name-version or version)", s)
	}
}

// Recorder is the software that recorded a claim.
type Recorder struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// recorderOf prefers claim_generator_info; otherwise it reads the first
// "Product/Version" token of claim_generator. Underscores in the product
// name stand for spaces.
func recorderOf(c *manifest.Claim) Recorder {
	if info := c.GeneratorInfo(); len(info) > 0 && info[0].Name != "" {
		return Recorder{Name: strings.ReplaceAll(info[0].Name, "_", " "), Version: info[0].Version}
	}
	fields := strings.Fields(c.Generator())
	if len(fields) == 0 {
		return Recorder{}
	}
	name, version, _ := strings.Cut(fields[0], "/")
	return Recorder{Name: strings.ReplaceAll(name, "_", " "), Version: version}
}

// Format renders r. Missing parts render as empty strings.
func (r Recorder) Format(f RecorderFormat) string {
	switch f {
	case RecorderVersion:
		return r.Version
	case RecorderNameAndVersion:
		return strings.TrimSpace(r.Name + " " + r.Version)
	default:
		return r.Name
	}
}
