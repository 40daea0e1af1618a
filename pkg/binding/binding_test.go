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

package binding

import (
	"math"
	"testing"

	"github.com/sigstore/content-credentials/internal/fixture"
	"github.com/sigstore/content-credentials/pkg/asset"
	"github.com/sigstore/content-credentials/pkg/manifest"
	"github.com/sigstore/content-credentials/pkg/verify"
)

func activeClaim(t *testing.T, store []byte) *manifest.Claim {
	t.Helper()
	s, err := manifest.Decode(store)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	c, err := s.Active().Claim()
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	return c
}

func verifyAsset(t *testing.T, data []byte, mime string, opts ...asset.Option) Result {
	t.Helper()
	a := asset.New(data, mime, opts...)
	loc, err := asset.Locate(a)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	return Verify(activeClaim(t, loc.Store), loc, a)
}

func hasCode(diags []verify.Diagnostic, code string) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestHardBindingVerified(t *testing.T) {
	b := fixture.NewBuilder(t, fixture.NewPKI(t))
	m := fixture.Manifest{Title: "photo", Actions: []string{"c2pa.created"}}

	jpeg, _ := b.SignedJPEG(m)
	png, _ := b.SignedPNG(m)
	mp4, _ := b.SignedMP4(m)
	tests := []struct {
		name string
		data []byte
		mime string
	}{
		{"jpeg", jpeg, asset.MIMEJPEG},
		{"png", png, asset.MIMEPNG},
		{"mp4", mp4, asset.MIMEMP4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := verifyAsset(t, tt.data, tt.mime)
			if res.Status != Verified {
				t.Fatalf("Status = %v, diagnostics %v", res.Status, res.Diagnostics)
			}
			if res.Verdict() != verify.Trusted {
				t.Errorf("Verdict() = %v", res.Verdict())
			}
			if !hasCode(res.Diagnostics, verify.CodeAssertionDataHashMatch) {
				t.Errorf("missing %s in %v", verify.CodeAssertionDataHashMatch, res.Diagnostics)
			}
		})
	}
}

func TestHardBindingTampered(t *testing.T) {
	b := fixture.NewBuilder(t, fixture.NewPKI(t))
	data, _ := b.SignedJPEG(fixture.Manifest{})

	// Every byte outside the APP11 segments is covered by the binding.
	for _, off := range []int{len(data) - 10, len(data) - 5, len(data) - 1} {
		altered := append([]byte(nil), data...)
		altered[off] ^= 0x01
		a := asset.New(altered, asset.MIMEJPEG)
		loc, err := asset.Locate(a)
		if err != nil {
			t.Fatalf("offset %d: Locate() error = %v", off, err)
		}
		res := Verify(activeClaim(t, loc.Store), loc, a)
		if res.Status != Tampered || !hasCode(res.Diagnostics, verify.CodeAssertionDataHashMismatch) {
			t.Errorf("offset %d: Status = %v, diagnostics %v", off, res.Status, res.Diagnostics)
		}
	}
}

func TestHardBindingMissing(t *testing.T) {
	b := fixture.NewBuilder(t, fixture.NewPKI(t))
	data := fixture.EmbedJPEG(fixture.MinimalJPEG(), b.Store(fixture.Manifest{}), 0)

	res := verifyAsset(t, data, asset.MIMEJPEG)
	if res.Status != Incomplete || !hasCode(res.Diagnostics, verify.CodeHardBindingsMissing) {
		t.Errorf("Status = %v, diagnostics %v", res.Status, res.Diagnostics)
	}
}

func TestHardBindingExclusionOutsideStore(t *testing.T) {
	b := fixture.NewBuilder(t, fixture.NewPKI(t))
	// The PNG layout excludes bytes a JPEG carrier does not occupy.
	_, store := b.SignedPNG(fixture.Manifest{})
	data := fixture.EmbedJPEG(fixture.MinimalJPEG(), store, 0)

	res := verifyAsset(t, data, asset.MIMEJPEG)
	if res.Status != Tampered || !hasCode(res.Diagnostics, verify.CodeAssertionDataHashMalformed) {
		t.Errorf("Status = %v, diagnostics %v", res.Status, res.Diagnostics)
	}
}

func TestHardBindingExclusionOverflow(t *testing.T) {
	b := fixture.NewBuilder(t, fixture.NewPKI(t))
	store := b.Store(fixture.Manifest{Extra: map[string]interface{}{
		"c2pa.hash.data": map[string]interface{}{
			"exclusions": []interface{}{map[string]interface{}{"start": 1, "length": int64(math.MaxInt64)}},
			"alg":        "sha256",
			"hash":       make([]byte, 32),
		},
	}})

	res := verifyAsset(t, store, asset.MIMEC2PA)
	if res.Status != Tampered || !hasCode(res.Diagnostics, verify.CodeAssertionDataHashMalformed) {
		t.Errorf("Status = %v, diagnostics %v", res.Status, res.Diagnostics)
	}
}

func TestSidecarRejectsExclusions(t *testing.T) {
	b := fixture.NewBuilder(t, fixture.NewPKI(t))
	_, store := b.SignedJPEG(fixture.Manifest{})

	res := verifyAsset(t, fixture.MinimalJPEG(), asset.MIMEJPEG, asset.WithSidecar(store))
	if res.Status != Tampered || !hasCode(res.Diagnostics, verify.CodeAssertionDataHashMalformed) {
		t.Errorf("Status = %v, diagnostics %v", res.Status, res.Diagnostics)
	}
}

func TestAssertionReferences(t *testing.T) {
	b := fixture.NewBuilder(t, fixture.NewPKI(t))
	tests := []struct {
		name   string
		m      fixture.Manifest
		status Status
		code   string
	}{
		{
			name:   "all match",
			m:      fixture.Manifest{Actions: []string{"c2pa.created"}, ClaimThumbnail: true},
			status: Verified,
			code:   verify.CodeAssertionHashedURIMatch,
		},
		{
			name:   "digest mismatch",
			m:      fixture.Manifest{Actions: []string{"c2pa.created"}, ClaimThumbnail: true, Mismatch: []string{manifest.LabelActions}},
			status: Tampered,
			code:   verify.CodeAssertionHashedURIMismatch,
		},
		{
			name:   "assertion missing",
			m:      fixture.Manifest{Actions: []string{"c2pa.created"}, ClaimThumbnail: true, Omit: []string{manifest.LabelActions}},
			status: Incomplete,
			code:   verify.CodeAssertionMissing,
		},
		{
			name:   "no claim thumbnail",
			m:      fixture.Manifest{Actions: []string{"c2pa.created"}},
			status: Incomplete,
			code:   verify.CodeClaimThumbnailMissing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Verify(activeClaim(t, b.Store(tt.m)), nil, nil)
			if res.Status != tt.status {
				t.Errorf("Status = %v, want %v; diagnostics %v", res.Status, tt.status, res.Diagnostics)
			}
			if !hasCode(res.Diagnostics, tt.code) {
				t.Errorf("missing %s in %v", tt.code, res.Diagnostics)
			}
		})
	}
}

func TestIngredientThumbnails(t *testing.T) {
	b := fixture.NewBuilder(t, fixture.NewPKI(t))
	tests := []struct {
		name   string
		ing    fixture.Ingredient
		omit   []string
		status Status
		code   string
	}{
		{
			name:   "match",
			ing:    fixture.Ingredient{Title: "a.jpg", Thumbnail: true},
			status: Verified,
		},
		{
			name:   "mismatch",
			ing:    fixture.Ingredient{Title: "a.jpg", Thumbnail: true, MismatchThumbnail: true},
			status: Tampered,
			code:   verify.CodeIngredientThumbnailMismatch,
		},
		{
			name:   "missing",
			ing:    fixture.Ingredient{Title: "a.jpg", Thumbnail: true},
			omit:   []string{"c2pa.thumbnail.ingredient.jpeg"},
			status: Incomplete,
			code:   verify.CodeIngredientThumbnailMissing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeClaim(t, b.Store(fixture.Manifest{
				ClaimThumbnail: true,
				Ingredients:    []fixture.Ingredient{tt.ing},
				Omit:           tt.omit,
			}))
			res := Verify(c, nil, nil)
			if res.Status != tt.status {
				t.Errorf("Status = %v, want %v; diagnostics %v", res.Status, tt.status, res.Diagnostics)
			}
			if tt.code != "" && !hasCode(res.Diagnostics, tt.code) {
				t.Errorf("missing %s in %v", tt.code, res.Diagnostics)
			}
		})
	}
}
