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

// Package manifest decodes Content Credentials manifest stores into typed
// claims, assertions and signatures.
//
// Decode performs the structural pass over the store. Claims decode lazily
// and at most once per manifest, so a corrupt manifest only fails the
// claims that touch it.
package manifest

import (
	"fmt"
	"sync"

	"github.com/sigstore/content-credentials/pkg/jumbf"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// Store is a decoded manifest store.
type Store struct {
	manifests []*Manifest
	byLabel   map[string]*Manifest
}

// Manifest is one manifest of a store. Its claim decodes on first use.
type Manifest struct {
	label  string
	update bool
	box    *jumbf.Box

	once  sync.Once
	claim *Claim
	err   error
}

// Decode parses raw manifest store bytes. Structural violations return a
// DecodeError; claim contents are not inspected until requested.
func Decode(raw []byte) (*Store, error) {
	root, err := jumbf.Parse(append([]byte(nil), raw...))
	if err != nil {
		return nil, verify.Decodef(LabelStore, err, "invalid JUMBF")
	}
	if !root.IsSuperBox() || root.Description.Type != jumbf.UUIDStore {
		return nil, verify.Decodef(LabelStore, nil, "root box is not a c2pa manifest store")
	}

	s := &Store{byLabel: make(map[string]*Manifest)}
	for _, child := range root.Children {
		if !child.IsSuperBox() {
			continue
		}
		typ := child.Description.Type
		if typ != jumbf.UUIDManifest && typ != jumbf.UUIDUpdate {
			continue
		}
		label := child.Label()
		if label == "" {
			return nil, verify.Decodef(LabelStore, nil, "manifest %d has no label", len(s.manifests))
		}
		if _, dup := s.byLabel[label]; dup {
			return nil, verify.Decodef(label, nil, "duplicate manifest label")
		}
		m := &Manifest{label: label, update: typ == jumbf.UUIDUpdate, box: child}
		s.manifests = append(s.manifests, m)
		s.byLabel[label] = m
	}
	if len(s.manifests) == 0 {
		return nil, verify.Decodef(LabelStore, nil, "store contains no manifests")
	}
	return s, nil
}

// Active returns the active manifest, the last one in the store.
func (s *Store) Active() *Manifest {
	return s.manifests[len(s.manifests)-1]
}

// Manifest returns the manifest with the given label.
func (s *Store) Manifest(label string) (*Manifest, bool) {
	m, ok := s.byLabel[label]
	return m, ok
}

// Manifests returns all manifests in store order.
func (s *Store) Manifests() []*Manifest {
	return append([]*Manifest(nil), s.manifests...)
}

// Claim decodes the claim of the manifest with the given label.
func (s *Store) Claim(label string) (*Claim, error) {
	m, ok := s.byLabel[label]
	if !ok {
		return nil, verify.NewVerificationErrorWithPath(verify.ErrTypeNotFound, label, "no such manifest", nil)
	}
	return m.Claim()
}

// Label returns the manifest label.
func (m *Manifest) Label() string { return m.label }

// IsUpdate reports whether this is an update manifest.
func (m *Manifest) IsUpdate() bool { return m.update }

// Bytes returns the complete manifest superbox, the bytes an ingredient
// reference digests.
func (m *Manifest) Bytes() []byte { return append([]byte(nil), m.box.Raw...) }

// Claim decodes the manifest's claim on first call and returns the same
// result afterwards. It is safe for concurrent use.
func (m *Manifest) Claim() (*Claim, error) {
	m.once.Do(func() {
		c, err := decodeClaim(m.label, m.box)
		if err != nil {
			m.err = decodeError(m.label, err)
			return
		}
		m.claim = c
	})
	return m.claim, m.err
}

func (m *Manifest) String() string {
	return fmt.Sprintf("manifest(%s)", m.label)
}
