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

// Package binding checks that a claim's assertions and its asset still
// match the digests the claim recorded.
package binding

import (
	"fmt"

	"github.com/sigstore/content-credentials/pkg/asset"
	"github.com/sigstore/content-credentials/pkg/hashing"
	"github.com/sigstore/content-credentials/pkg/manifest"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// Status is the outcome of binding verification.
type Status int

const (
	Verified Status = iota
	Incomplete
	Tampered
)

func (s Status) String() string {
	switch s {
	case Verified:
		return "Verified"
	case Incomplete:
		return "Incomplete"
	case Tampered:
		return "Tampered"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result carries the binding status and the findings behind it.
type Result struct {
	Status      Status
	Diagnostics []verify.Diagnostic
}

// Verdict maps the status onto the verdict order.
func (r Result) Verdict() verify.Verdict {
	switch r.Status {
	case Tampered:
		return verify.Tampered
	case Incomplete:
		return verify.Incomplete
	default:
		return verify.Trusted
	}
}

// Verify checks the bindings of c. When a is non-nil the claim is the
// asset's active claim: its hard binding is required and recomputed over
// a, skipping the exclusions, which must lie inside loc. When a is nil the
// claim is verified as an ingredient and its claim thumbnail is the
// required binding instead.
func Verify(c *manifest.Claim, loc *asset.Location, a *asset.Asset) Result {
	v := &verifier{claim: c}
	v.assertionRefs()
	if a != nil {
		v.hardBindings(loc, a)
	} else {
		v.claimThumbnail()
	}
	v.ingredientThumbnails()

	res := Result{Status: Verified, Diagnostics: v.diags}
	switch verify.WorstOf(v.diags) {
	case verify.Tampered:
		res.Status = Tampered
	case verify.Trusted:
	default:
		res.Status = Incomplete
	}
	return res
}

type verifier struct {
	claim *manifest.Claim
	diags []verify.Diagnostic
}

func (v *verifier) add(code, subject string, verdict verify.Verdict, format string, args ...interface{}) {
	v.diags = append(v.diags, verify.Diagnostic{
		Code:    code,
		Subject: subject,
		Message: fmt.Sprintf(format, args...),
		Verdict: verdict,
	})
}

func (v *verifier) alg(ref string) string {
	switch {
	case ref != "":
		return ref
	case v.claim.Alg() != "":
		return v.claim.Alg()
	default:
		return hashing.DefaultAlgorithm
	}
}

// checkRef compares a hashed URI against the resolved assertion and
// reports whether it matched.
func (v *verifier) checkRef(ref manifest.HashedURI, a manifest.Assertion, mismatchCode string) bool {
	alg := v.alg(ref.Alg)
	d, err := hashing.Sum(alg, a.Bytes())
	if err != nil {
		v.add(verify.CodeAlgorithmUnsupported, ref.URL, verify.Incomplete, "cannot hash with %q: %v", alg, err)
		return false
	}
	if !d.Matches(ref.Hash) {
		v.add(mismatchCode, ref.URL, verify.Tampered, "%s digest %s does not match the recorded digest", alg, d.Hex())
		return false
	}
	return true
}

func (v *verifier) assertionRefs() {
	for _, ref := range v.claim.AssertionRefs() {
		a, ok := v.claim.ResolveURI(ref.URL)
		if !ok {
			v.add(verify.CodeAssertionMissing, ref.URL, verify.Incomplete, "assertion not found in manifest")
			continue
		}
		if v.checkRef(ref, a, verify.CodeAssertionHashedURIMismatch) {
			v.add(verify.CodeAssertionHashedURIMatch, ref.URL, verify.Trusted, "hashed URI matched")
		}
	}
}

func (v *verifier) hardBindings(loc *asset.Location, a *asset.Asset) {
	hashes := v.claim.DataHashes()
	if len(hashes) == 0 {
		v.add(verify.CodeHardBindingsMissing, v.claim.ID(), verify.Incomplete, "claim has no hard binding")
		return
	}
	for _, dh := range hashes {
		v.dataHash(dh, loc, a)
	}
}

func (v *verifier) dataHash(dh *manifest.DataHash, loc *asset.Location, a *asset.Asset) {
	subject := manifest.LabelDataHash
	exclusions := make([]hashing.Exclusion, 0, len(dh.Exclusions))
	for _, ex := range dh.Exclusions {
		exclusions = append(exclusions, hashing.Exclusion{Start: ex.Start, Length: ex.Length})
	}
	if err := hashing.ValidateExclusions(exclusions, a.Size()); err != nil {
		v.add(verify.CodeAssertionDataHashMalformed, subject, verify.Tampered, "%v", err)
		return
	}

	embedded := loc != nil && loc.Source == asset.SourceEmbedded
	for _, ex := range exclusions {
		if ex.Length == 0 {
			continue
		}
		if !embedded {
			v.add(verify.CodeAssertionDataHashMalformed, subject, verify.Tampered,
				"exclusion [%d, %d) but the manifest store is not embedded", ex.Start, ex.Start+ex.Length)
			return
		}
		if !loc.Covers(asset.Range{Start: ex.Start, Length: ex.Length}) {
			v.add(verify.CodeAssertionDataHashMalformed, subject, verify.Tampered,
				"exclusion [%d, %d) lies outside the embedded manifest store", ex.Start, ex.Start+ex.Length)
			return
		}
	}

	alg := v.alg(dh.Alg)
	d, err := hashing.SumExcluding(alg, a, a.Size(), exclusions)
	if err != nil {
		v.add(verify.CodeAlgorithmUnsupported, subject, verify.Incomplete, "cannot hash asset with %q: %v", alg, err)
		return
	}
	if !d.Matches(dh.Hash) {
		v.add(verify.CodeAssertionDataHashMismatch, subject, verify.Tampered,
			"asset %s digest %s does not match the hard binding", alg, d.Hex())
		return
	}
	v.add(verify.CodeAssertionDataHashMatch, subject, verify.Trusted, "asset digest matched")
}

func (v *verifier) claimThumbnail() {
	if _, ok := v.claim.ClaimThumbnail(); !ok {
		v.add(verify.CodeClaimThumbnailMissing, v.claim.ID(), verify.Incomplete, "ingredient claim has no claim thumbnail")
	}
}

func (v *verifier) ingredientThumbnails() {
	for _, ing := range v.claim.Ingredients() {
		ref := ing.Ingredient.Thumbnail
		if ref == nil {
			continue
		}
		a, ok := v.claim.ResolveURI(ref.URL)
		if !ok {
			v.add(verify.CodeIngredientThumbnailMissing, ing.Label, verify.Incomplete, "thumbnail %s not found", ref.URL)
			continue
		}
		v.checkRef(*ref, a, verify.CodeIngredientThumbnailMismatch)
	}
}
