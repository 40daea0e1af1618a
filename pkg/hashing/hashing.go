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

// Package hashing computes the digests that bind manifests to assets and
// assertions: whole-buffer digests and digests over a byte source with
// declared exclusion ranges skipped.
package hashing

import (
	"fmt"
	"io"

	"github.com/sigstore/content-credentials/pkg/hashing/digests"
	hashengines "github.com/sigstore/content-credentials/pkg/hashing/engines"
	_ "github.com/sigstore/content-credentials/pkg/hashing/engines/memory" // registers sha256/384/512
)

// DefaultAlgorithm is used when neither the reference nor the claim names
// an algorithm.
const DefaultAlgorithm = "sha256"

// Exclusion is a byte range left out of a hard-binding digest.
type Exclusion struct {
	Start  int64
	Length int64
}

// Sum hashes data with the named algorithm.
func Sum(algorithm string, data []byte) (digests.Digest, error) {
	engine, err := hashengines.Create(orDefault(algorithm))
	if err != nil {
		return digests.Digest{}, err
	}
	engine.Update(data)
	return engine.Compute()
}

// SumExcluding hashes size bytes of r with the exclusion ranges skipped.
// Exclusions must be sorted, non-overlapping and inside [0, size).
func SumExcluding(algorithm string, r io.ReaderAt, size int64, exclusions []Exclusion) (digests.Digest, error) {
	if err := ValidateExclusions(exclusions, size); err != nil {
		return digests.Digest{}, err
	}
	engine, err := hashengines.Create(orDefault(algorithm))
	if err != nil {
		return digests.Digest{}, err
	}

	w := engineWriter{engine}
	var pos int64
	for _, ex := range exclusions {
		if _, err := io.Copy(w, io.NewSectionReader(r, pos, ex.Start-pos)); err != nil {
			return digests.Digest{}, fmt.Errorf("hashing [%d, %d): %w", pos, ex.Start, err)
		}
		pos = ex.Start + ex.Length
	}
	if _, err := io.Copy(w, io.NewSectionReader(r, pos, size-pos)); err != nil {
		return digests.Digest{}, fmt.Errorf("hashing [%d, %d): %w", pos, size, err)
	}
	return engine.Compute()
}

// ValidateExclusions checks that exclusions are sorted, disjoint and lie
// inside a source of the given size.
func ValidateExclusions(exclusions []Exclusion, size int64) error {
	var prevEnd int64
	for i, ex := range exclusions {
		switch {
		case ex.Start < 0 || ex.Length < 0:
			return fmt.Errorf("exclusion %d has negative bounds", i)
		case ex.Start < prevEnd:
			return fmt.Errorf("exclusion %d starts at %d, before the end of the previous range (%d)", i, ex.Start, prevEnd)
		case ex.Start > size || ex.Length > size-ex.Start:
			return fmt.Errorf("exclusion %d [start %d, length %d] runs past the end of the asset (%d)", i, ex.Start, ex.Length, size)
		}
		prevEnd = ex.Start + ex.Length
	}
	return nil
}

func orDefault(algorithm string) string {
	if algorithm == "" {
		return DefaultAlgorithm
	}
	return algorithm
}

type engineWriter struct {
	e hashengines.StreamingHashEngine
}

func (w engineWriter) Write(p []byte) (int, error) {
	w.e.Update(p)
	return len(p), nil
}
