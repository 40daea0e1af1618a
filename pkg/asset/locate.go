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

package asset

import (
	"github.com/sigstore/content-credentials/pkg/verify"
)

// Source tells where a manifest store was found.
type Source int

const (
	SourceEmbedded Source = iota
	SourceSidecar
)

func (s Source) String() string {
	if s == SourceSidecar {
		return "sidecar"
	}
	return "embedded"
}

// Range is a half-open byte range [Start, Start+Length) of the asset.
type Range struct {
	Start  int64
	Length int64
}

// End returns the first offset after the range.
func (r Range) End() int64 { return r.Start + r.Length }

// Contains reports whether other lies entirely within r. Lengths that
// would overflow End are never contained.
func (r Range) Contains(other Range) bool {
	if other.Start < r.Start || other.Length < 0 {
		return false
	}
	offset := other.Start - r.Start
	return offset <= r.Length && other.Length <= r.Length-offset
}

// Location is a located manifest store.
type Location struct {
	// Store holds the raw JUMBF manifest store.
	Store []byte
	// Source tells whether the store was embedded or a sidecar.
	Source Source
	// Container names the carrier format, e.g. "jpeg" or "sidecar".
	Container string
	// Ranges lists the asset bytes occupied by the embedded store,
	// including container framing. Empty for sidecars.
	Ranges []Range
}

// Covers reports whether r lies within the bytes occupied by the store.
// Adjacent ranges are merged, so a run of consecutive segments counts as
// one region.
func (l *Location) Covers(r Range) bool {
	for _, m := range mergeRanges(l.Ranges) {
		if m.Contains(r) {
			return true
		}
	}
	return false
}

func mergeRanges(in []Range) []Range {
	var out []Range
	for _, r := range in {
		if n := len(out); n > 0 && out[n-1].End() == r.Start {
			out[n-1].Length += r.Length
			continue
		}
		out = append(out, r)
	}
	return out
}

// extractor pulls an embedded store from one container format. It returns
// nil, nil when the container has no provenance marker.
type extractor func(data []byte) (*Location, error)

var extractors = map[string]extractor{
	MIMEJPEG: extractJPEG,
	MIMEPNG:  extractPNG,
	MIMEMP4:  extractBMFF,
	MIMEHEIC: extractBMFF,
	MIMEAVIF: extractBMFF,
	MIMEC2PA: extractRaw,
}

// Locate finds the manifest store of a. The embedded store is tried first,
// then the sidecar. It returns verify.ErrNotFound when neither exists, and
// a Malformed error when a provenance marker is present but its payload is
// truncated or inconsistent.
func Locate(a *Asset) (*Location, error) {
	extract, ok := extractors[a.mime]
	if !ok {
		extract = extractors[Sniff(a.data)]
	}
	if extract != nil {
		loc, err := extract(a.data)
		if err != nil {
			return nil, err
		}
		if loc != nil {
			return loc, nil
		}
	}
	if a.HasSidecar() {
		return &Location{
			Store:     a.Sidecar(),
			Source:    SourceSidecar,
			Container: "sidecar",
		}, nil
	}
	return nil, verify.ErrNotFound
}

func extractRaw(data []byte) (*Location, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return &Location{
		Store:     append([]byte(nil), data...),
		Source:    SourceEmbedded,
		Container: "c2pa",
		Ranges:    []Range{{Start: 0, Length: int64(len(data))}},
	}, nil
}
