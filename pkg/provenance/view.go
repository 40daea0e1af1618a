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
	"time"

	"github.com/sigstore/content-credentials/pkg/graph"
	"github.com/sigstore/content-credentials/pkg/manifest"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// ClaimView is a read-only view of one verified claim.
type ClaimView struct {
	g     *graph.Graph
	node  *graph.Node
	claim *manifest.Claim
}

func newClaimView(g *graph.Graph, n *graph.Node) *ClaimView {
	return &ClaimView{g: g, node: n, claim: n.Claim}
}

// SignatureInfo describes who signed a claim and when.
type SignatureInfo struct {
	Issuer string `json:"issuer"`
	// Date is nil when the signature carries no signing time.
	Date      *time.Time `json:"date,omitempty"`
	Algorithm string     `json:"alg,omitempty"`
}

// SocialAccount is an author identity with a profile URL.
type SocialAccount struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (v *ClaimView) ID() string         { return v.node.ID }
func (v *ClaimView) Title() string      { return v.claim.Title() }
func (v *ClaimView) Format() string     { return v.claim.Format() }
func (v *ClaimView) InstanceID() string { return v.claim.InstanceID() }

// Verdict is the claim's own verdict, excluding its ingredients.
func (v *ClaimView) Verdict() verify.Verdict { return v.node.Verdict }

// Diagnostics returns the claim's own findings.
func (v *ClaimView) Diagnostics() []verify.Diagnostic {
	return append([]verify.Diagnostic(nil), v.node.Diagnostics...)
}

// Signature returns the claim signature details.
func (v *ClaimView) Signature() SignatureInfo {
	sig := v.claim.Signature()
	info := SignatureInfo{Issuer: sig.Issuer(), Algorithm: sig.Algorithm().String()}
	if at, ok := sig.SignedAt(); ok {
		utc := at.UTC()
		info.Date = &utc
	}
	return info
}

// Recorder returns the software that recorded the claim.
func (v *ClaimView) Recorder() Recorder { return recorderOf(v.claim) }

// FormatRecorder renders the recorder in the given format.
func (v *ClaimView) FormatRecorder(f RecorderFormat) string {
	return v.Recorder().Format(f)
}

// Producer returns the name of the first person author without a
// profile URL.
func (v *ClaimView) Producer() (string, bool) {
	for _, a := range v.authors() {
		if a.ID == "" && (a.Type == "" || a.Type == "Person") && a.Name != "" {
			return a.Name, true
		}
	}
	return "", false
}

// SocialAccounts returns the authors that carry a profile URL.
func (v *ClaimView) SocialAccounts() []SocialAccount {
	out := []SocialAccount{}
	for _, a := range v.authors() {
		if a.ID != "" {
			out = append(out, SocialAccount{Name: a.Name, URL: a.ID})
		}
	}
	return out
}

func (v *ClaimView) authors() []manifest.Author {
	for _, a := range v.claim.FindAssertions(manifest.LabelCreativeWork) {
		if cw, ok := a.Data.(*manifest.CreativeWork); ok {
			return cw.Authors
		}
	}
	return nil
}

// ActionCount returns the number of recorded actions. ok is false when
// the claim has no actions assertion, which is distinct from an empty one.
func (v *ClaimView) ActionCount() (n int, ok bool) {
	for _, label := range []string{manifest.LabelActions, manifest.LabelActionsV2} {
		for _, a := range v.claim.FindAssertions(label) {
			if acts, isActions := a.Data.(*manifest.Actions); isActions {
				return len(acts.Actions), true
			}
		}
	}
	return 0, false
}

// IsBeta reports whether the claim was recorded by beta software.
func (v *ClaimView) IsBeta() bool {
	return len(v.claim.FindAssertions(manifest.LabelBeta)) > 0
}

// Assertions returns the claim's assertions in claim order.
func (v *ClaimView) Assertions() []manifest.Assertion {
	return v.claim.Assertions()
}

// FindAssertion returns the assertion with the exact label, or else the
// first instance whose base label matches.
func (v *ClaimView) FindAssertion(label string) (manifest.Assertion, bool) {
	if a, ok := v.claim.Assertion(label); ok {
		return a, true
	}
	if found := v.claim.FindAssertions(label); len(found) > 0 {
		return found[0], true
	}
	return manifest.Assertion{}, false
}

// Ingredients returns the claim's ingredients in claim order.
func (v *ClaimView) Ingredients() []IngredientView {
	refs := v.claim.Ingredients()
	edges := v.g.Edges(v.node.ID)
	out := make([]IngredientView, 0, len(edges))
	for _, e := range edges {
		child, _ := v.g.Node(e.Child)
		iv := IngredientView{
			ID:           e.Child,
			Label:        e.Label,
			Relationship: e.Relationship,
			Title:        child.Title,
			Verdict:      verify.Worst(child.Verdict, e.Verdict()),
		}
		if e.Index < len(refs) && refs[e.Index].Ingredient.Title != "" {
			iv.Title = refs[e.Index].Ingredient.Title
		}
		iv.Diagnostics = append(iv.Diagnostics, e.Diagnostics...)
		iv.Diagnostics = append(iv.Diagnostics, child.Diagnostics...)
		if !child.Missing() {
			iv.claim = newClaimView(v.g, child)
		}
		out = append(out, iv)
	}
	return out
}

// IngredientView is one ingredient of a claim.
type IngredientView struct {
	// ID is the ingredient's claim id, or a placeholder id when its
	// manifest could not be resolved.
	ID           string
	Title        string
	Label        string
	Relationship string
	// Verdict covers the ingredient claim and the reference to it.
	Verdict     verify.Verdict
	Diagnostics []verify.Diagnostic

	claim *ClaimView
}

// Claim returns the ingredient's claim, if it was resolved.
func (i IngredientView) Claim() (*ClaimView, bool) {
	return i.claim, i.claim != nil
}
