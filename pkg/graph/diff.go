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

	"github.com/sigstore/content-credentials/pkg/verify"
)

// Diff describes how the provenance of two assets differs.
type Diff struct {
	// Added lists claim ids present in actual but not in expected.
	Added []string

	// Removed lists claim ids present in expected but not in actual.
	Removed []string

	// Changed lists claims present in both graphs with different verdicts.
	Changed []VerdictChange
}

// VerdictChange is a claim whose verdict differs between two graphs.
type VerdictChange struct {
	ID       string
	Expected verify.Verdict
	Actual   verify.Verdict
}

// IsEmpty returns true if there are no differences.
func (d *Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// ComputeDiff compares the nodes of two graphs, for example an asset and an
// earlier rendition of it. All slices are sorted by claim id.
func ComputeDiff(actual, expected *Graph) *Diff {
	diff := &Diff{
		Added:   []string{},
		Removed: []string{},
		Changed: []VerdictChange{},
	}

	for id := range actual.nodes {
		if _, ok := expected.nodes[id]; !ok {
			diff.Added = append(diff.Added, id)
		}
	}
	sort.Strings(diff.Added)

	var common []string
	for id := range expected.nodes {
		if _, ok := actual.nodes[id]; !ok {
			diff.Removed = append(diff.Removed, id)
			continue
		}
		common = append(common, id)
	}
	sort.Strings(diff.Removed)
	sort.Strings(common)

	for _, id := range common {
		a, e := actual.nodes[id].Verdict, expected.nodes[id].Verdict
		if a != e {
			diff.Changed = append(diff.Changed, VerdictChange{ID: id, Expected: e, Actual: a})
		}
	}
	return diff
}
