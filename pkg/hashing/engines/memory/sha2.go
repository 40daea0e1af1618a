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

package memory

import (
	"crypto/sha256"
	"crypto/sha512"

	hashengines "github.com/sigstore/content-credentials/pkg/hashing/engines"
)

// Algorithm identifiers as they appear in manifests.
const (
	SHA256 = "sha256"
	SHA384 = "sha384"
	SHA512 = "sha512"
)

// NewSHA256Engine returns a SHA-256 engine seeded with initialData.
func NewSHA256Engine(initialData []byte) *GenericHashEngine {
	return NewGenericHashEngine(SHA256, sha256.New, initialData)
}

// NewSHA384Engine returns a SHA-384 engine seeded with initialData.
func NewSHA384Engine(initialData []byte) *GenericHashEngine {
	return NewGenericHashEngine(SHA384, sha512.New384, initialData)
}

// NewSHA512Engine returns a SHA-512 engine seeded with initialData.
func NewSHA512Engine(initialData []byte) *GenericHashEngine {
	return NewGenericHashEngine(SHA512, sha512.New, initialData)
}

func init() {
	hashengines.MustRegister(SHA256, func() (hashengines.StreamingHashEngine, error) {
		return NewSHA256Engine(nil), nil
	})
	hashengines.MustRegister(SHA384, func() (hashengines.StreamingHashEngine, error) {
		return NewSHA384Engine(nil), nil
	})
	hashengines.MustRegister(SHA512, func() (hashengines.StreamingHashEngine, error) {
		return NewSHA512Engine(nil), nil
	})
}
