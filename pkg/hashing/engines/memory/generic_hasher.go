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

// Package memory provides in-memory hash engines. Importing it registers
// the SHA-2 engines used by manifests.
package memory

import (
	"hash"

	"github.com/sigstore/content-credentials/pkg/hashing/digests"
	hashengines "github.com/sigstore/content-credentials/pkg/hashing/engines"
)

var _ hashengines.StreamingHashEngine = (*GenericHashEngine)(nil)

// HashFactoryFunc is a function that creates a new hash.Hash instance.
type HashFactoryFunc func() hash.Hash

// GenericHashEngine wraps any hash.Hash as a StreamingHashEngine.
type GenericHashEngine struct {
	name    string
	factory HashFactoryFunc
	h       hash.Hash
}

// NewGenericHashEngine creates an engine named name. initialData, when
// non-empty, is hashed immediately.
func NewGenericHashEngine(name string, factory HashFactoryFunc, initialData []byte) *GenericHashEngine {
	e := &GenericHashEngine{
		name:    name,
		factory: factory,
		h:       factory(),
	}
	e.Update(initialData)
	return e
}

// Update appends additional bytes to the data to be hashed.
func (e *GenericHashEngine) Update(data []byte) {
	if len(data) > 0 {
		// hash.Hash.Write never returns an error
		_, _ = e.h.Write(data)
	}
}

// Write implements io.Writer so the engine can be the target of io.Copy.
func (e *GenericHashEngine) Write(p []byte) (int, error) {
	e.Update(p)
	return len(p), nil
}

// Reset clears the hash state and optionally seeds it with initial data.
func (e *GenericHashEngine) Reset(data []byte) {
	e.h = e.factory()
	e.Update(data)
}

// Compute finalizes the hash and returns a digests.Digest.
func (e *GenericHashEngine) Compute() (digests.Digest, error) {
	return digests.NewDigest(e.name, e.h.Sum(nil)), nil
}

// DigestName returns the manifest identifier of the algorithm.
func (e *GenericHashEngine) DigestName() string {
	return e.name
}

// DigestSize returns the size, in bytes, of digests produced by this engine.
func (e *GenericHashEngine) DigestSize() int {
	return e.h.Size()
}
