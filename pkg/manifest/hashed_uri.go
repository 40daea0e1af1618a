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

package manifest

import (
	"fmt"
	"strings"
)

const uriPrefix = "self#jumbf="

// Well-known box labels inside a manifest.
const (
	LabelStore      = "c2pa"
	LabelAssertions = "c2pa.assertions"
	LabelClaim      = "c2pa.claim"
	LabelSignature  = "c2pa.signature"
)

// HashedURI references a box by JUMBF URI together with its digest.
type HashedURI struct {
	URL  string `cbor:"url" json:"url"`
	Alg  string `cbor:"alg,omitempty" json:"alg,omitempty"`
	Hash []byte `cbor:"hash" json:"hash"`
}

// JUMBFURI is a parsed "self#jumbf=" reference.
type JUMBFURI struct {
	// Manifest is the manifest label of an absolute URI, or "" for URIs
	// relative to the referencing manifest.
	Manifest string
	// Path lists the box labels below the manifest.
	Path []string
}

// ParseURI parses a JUMBF URI. Relative URIs look like
// "self#jumbf=c2pa.assertions/c2pa.hash.data"; absolute ones like
// "self#jumbf=/c2pa/urn:uuid:.../c2pa.assertions/c2pa.hash.data".
func ParseURI(raw string) (JUMBFURI, error) {
	rest, ok := strings.CutPrefix(raw, uriPrefix)
	if !ok {
		return JUMBFURI{}, fmt.Errorf("unsupported URI %q", raw)
	}
	if strings.HasPrefix(rest, "/") {
		parts := strings.Split(strings.TrimPrefix(rest, "/"), "/")
		if len(parts) < 2 || parts[0] != LabelStore || parts[1] == "" {
			return JUMBFURI{}, fmt.Errorf("absolute URI %q does not name a manifest", raw)
		}
		return JUMBFURI{Manifest: parts[1], Path: nonEmpty(parts[2:])}, nil
	}
	path := nonEmpty(strings.Split(rest, "/"))
	if len(path) == 0 {
		return JUMBFURI{}, fmt.Errorf("empty URI %q", raw)
	}
	return JUMBFURI{Path: path}, nil
}

// AssertionLabel returns the assertion label addressed by u, if u points
// into an assertion store.
func (u JUMBFURI) AssertionLabel() (string, bool) {
	if len(u.Path) == 2 && u.Path[0] == LabelAssertions {
		return u.Path[1], true
	}
	return "", false
}

// InManifest reports whether u addresses a box inside the manifest with
// the given label.
func (u JUMBFURI) InManifest(label string) bool {
	return u.Manifest == "" || u.Manifest == label
}

// AssertionURI builds the relative URI of an assertion.
func AssertionURI(label string) string {
	return uriPrefix + LabelAssertions + "/" + label
}

// ManifestURI builds the absolute URI of a manifest.
func ManifestURI(label string) string {
	return uriPrefix + "/" + LabelStore + "/" + label
}

func nonEmpty(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
