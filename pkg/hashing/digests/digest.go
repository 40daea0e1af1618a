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

// Package digests provides an immutable digest value: an algorithm name
// and the computed hash bytes.
package digests

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Digest represents a computed cryptographic hash digest.
//
// Fields are unexported and every accessor copies, so a Digest can be
// shared between goroutines.
type Digest struct {
	algorithm string
	value     []byte
}

// NewDigest creates a new Digest. The value slice is copied.
func NewDigest(algorithm string, value []byte) Digest {
	return Digest{
		algorithm: algorithm,
		value:     append([]byte(nil), value...),
	}
}

// Algorithm returns the name of the hash algorithm, e.g. "sha256".
func (d Digest) Algorithm() string {
	return d.algorithm
}

// Value returns a copy of the raw digest bytes.
func (d Digest) Value() []byte {
	return append([]byte(nil), d.value...)
}

// Hex returns the lowercase hexadecimal encoding of the digest value.
func (d Digest) Hex() string {
	return hex.EncodeToString(d.value)
}

// Size returns the length in bytes of the digest value.
func (d Digest) Size() int {
	return len(d.value)
}

// String returns "algorithm:hexvalue".
func (d Digest) String() string {
	return fmt.Sprintf("%s:%s", d.algorithm, d.Hex())
}

// Equal reports whether both digests use the same algorithm and value.
func (d Digest) Equal(other Digest) bool {
	return d.algorithm == other.algorithm && d.Matches(other.value)
}

// Matches compares the digest value against declared bytes in constant
// time. Declared hashes come from untrusted manifests.
func (d Digest) Matches(declared []byte) bool {
	return len(d.value) == len(declared) && subtle.ConstantTimeCompare(d.value, declared) == 1
}
