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

package graph

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sigstore/content-credentials/internal/fixture"
	"github.com/sigstore/content-credentials/pkg/trust"
	"github.com/sigstore/content-credentials/pkg/verify"
)

func TestComputeDiff_EqualGraphs(t *testing.T) {
	pki := fixture.NewPKI(t)
	l := labels(2)
	raw := fixture.NewBuilder(t, pki).Store(node(l[1]), node(l[0], l[1]))
	r := newResolver(t, pki, Options{})

	a, err := resolveStore(t, r, raw)
	if err != nil {
		t.Fatal(err)
	}
	b, err := resolveStore(t, r, raw)
	if err != nil {
		t.Fatal(err)
	}
	if diff := ComputeDiff(a, b); !diff.IsEmpty() {
		t.Errorf("expected empty diff, got added=%v removed=%v changed=%v", diff.Added, diff.Removed, diff.Changed)
	}
}

func TestComputeDiff_AddedAndRemoved(t *testing.T) {
	pki := fixture.NewPKI(t)
	l := labels(4)
	b := fixture.NewBuilder(t, pki)
	r := newResolver(t, pki, Options{})

	actual, err := resolveStore(t, r, b.Store(node(l[2]), node(l[1], l[2]), node(l[0], l[1])))
	if err != nil {
		t.Fatal(err)
	}
	expected, err := resolveStore(t, r, b.Store(node(l[3]), node(l[1], l[3]), node(l[0], l[1])))
	if err != nil {
		t.Fatal(err)
	}

	diff := ComputeDiff(actual, expected)
	if d := cmp.Diff([]string{l[2]}, diff.Added); d != "" {
		t.Errorf("Added mismatch (-want +got):\n%s", d)
	}
	if d := cmp.Diff([]string{l[3]}, diff.Removed); d != "" {
		t.Errorf("Removed mismatch (-want +got):\n%s", d)
	}
	if len(diff.Changed) != 0 {
		t.Errorf("Changed = %v, want none", diff.Changed)
	}
}

func TestComputeDiff_VerdictChanges(t *testing.T) {
	pki := fixture.NewPKI(t)
	l := labels(2)
	raw := fixture.NewBuilder(t, pki).Store(node(l[1]), node(l[0], l[1]))

	trusted, err := resolveStore(t, newResolver(t, pki, Options{}), raw)
	if err != nil {
		t.Fatal(err)
	}
	foreign := trust.NewValidator(trust.ValidatorConfig{Anchors: trust.NewAnchors(fixture.NewPKI(t).Root)})
	untrusted, err := resolveStore(t, newResolver(t, pki, Options{Validator: foreign}), raw)
	if err != nil {
		t.Fatal(err)
	}

	diff := ComputeDiff(untrusted, trusted)
	want := []VerdictChange{
		{ID: l[0], Expected: verify.Trusted, Actual: verify.UntrustedIssuer},
		{ID: l[1], Expected: verify.Trusted, Actual: verify.UntrustedIssuer},
	}
	sort.Slice(want, func(i, j int) bool { return want[i].ID < want[j].ID })
	if d := cmp.Diff(want, diff.Changed); d != "" {
		t.Errorf("Changed mismatch (-want +got):\n%s", d)
	}
}
