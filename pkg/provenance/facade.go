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

	"github.com/sigstore/content-credentials/pkg/asset"
	"github.com/sigstore/content-credentials/pkg/graph"
	"github.com/sigstore/content-credentials/pkg/manifest"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// Facade is the read-only result of verifying one asset. Every query
// fails with verify.ErrDisposed once the owning session is closed.
type Facade struct {
	session    *Session
	asset      *asset.Asset
	location   *asset.Location
	graph      *graph.Graph
	verifiedAt time.Time

	// storeErr is set when a manifest store was found but could not be
	// located or decoded.
	storeErr error
}

func (f *Facade) check() error {
	if f.session.disposed() {
		return verify.ErrDisposed
	}
	return nil
}

func (f *Facade) verdict() verify.Verdict {
	switch {
	case f.graph != nil:
		return f.graph.OverallVerdict()
	case f.storeErr != nil:
		return verify.Incomplete
	default:
		return verify.Unsigned
	}
}

// OverallVerdict is the worst verdict over the active claim, its bindings
// and all resolved ingredients. It is verify.Unsigned when the asset has
// no manifest and verify.Incomplete when its manifest cannot be decoded.
func (f *Facade) OverallVerdict() (verify.Verdict, error) {
	if err := f.check(); err != nil {
		return verify.Unsigned, err
	}
	return f.verdict(), nil
}

// Diagnostics returns every finding: store problems, then each claim in
// graph order followed by its ingredient references.
func (f *Facade) Diagnostics() ([]verify.Diagnostic, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	var out []verify.Diagnostic
	if f.storeErr != nil {
		out = append(out, verify.Diagnostic{
			Code:    verify.CodeClaimMalformed,
			Subject: f.asset.Name(),
			Message: f.storeErr.Error(),
			Verdict: verify.Incomplete,
		})
	}
	if f.graph == nil {
		return out, nil
	}
	for _, n := range f.graph.Nodes() {
		out = append(out, n.Diagnostics...)
		for _, e := range f.graph.Edges(n.ID) {
			out = append(out, e.Diagnostics...)
		}
	}
	return out, nil
}

// ActiveClaim returns the asset's active claim. It fails with
// verify.ErrNotFound for unsigned assets and with the decode error when
// the manifest store or the active claim could not be decoded.
func (f *Facade) ActiveClaim() (*ClaimView, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	switch {
	case f.storeErr != nil:
		return nil, f.storeErr
	case f.graph == nil:
		return nil, verify.ErrNotFound
	}
	root := f.graph.Root()
	if root.Missing() {
		msg := "active claim could not be decoded"
		if len(root.Diagnostics) > 0 {
			msg = root.Diagnostics[0].Message
		}
		return nil, verify.Decodef(root.ID, nil, "%s", msg)
	}
	return newClaimView(f.graph, root), nil
}

// FindAssertion looks up an assertion of the active claim by label. A
// label without an instance suffix matches the first instance.
func (f *Facade) FindAssertion(label string) (manifest.Assertion, error) {
	c, err := f.ActiveClaim()
	if err != nil {
		return manifest.Assertion{}, err
	}
	a, ok := c.FindAssertion(label)
	if !ok {
		return manifest.Assertion{}, verify.NewVerificationErrorWithPath(verify.ErrTypeNotFound, label, "no such assertion in the active claim", nil)
	}
	return a, nil
}

// Ingredients returns the active claim's ingredients in claim order.
func (f *Facade) Ingredients() ([]IngredientView, error) {
	c, err := f.ActiveClaim()
	if err != nil {
		return nil, err
	}
	return c.Ingredients(), nil
}

// FormatRecorder renders the recorder of the active claim.
func (f *Facade) FormatRecorder(format RecorderFormat) (string, error) {
	c, err := f.ActiveClaim()
	if err != nil {
		return "", err
	}
	return c.FormatRecorder(format), nil
}

// Snapshot serializes the active claim.
func (f *Facade) Snapshot() (*ClaimSnapshot, error) {
	c, err := f.ActiveClaim()
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

// Graph returns the resolved ingredient graph. It fails with
// verify.ErrNotFound when no claim was resolved.
func (f *Facade) Graph() (*graph.Graph, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	if f.graph == nil {
		return nil, verify.ErrNotFound
	}
	return f.graph, nil
}

// Location returns where the manifest store was found, or nil for
// unsigned assets.
func (f *Facade) Location() (*asset.Location, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return f.location, nil
}
