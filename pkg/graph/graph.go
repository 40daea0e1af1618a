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

// Package graph resolves the ingredient references of a claim into a
// directed acyclic graph of verified claims.
//
// The graph is an arena: nodes are keyed by claim id and connected by an
// explicit edge list, so a claim reachable along several paths appears
// once and no node owns another.
package graph

import (
	"sort"

	"github.com/sigstore/content-credentials/pkg/manifest"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// Source tells where a node's manifest came from.
type Source int

const (
	// SourceAsset is the active manifest of the asset under verification
	// or of an asset returned by a Lookup.
	SourceAsset Source = iota
	// SourceStore is another manifest of the same store.
	SourceStore
	// SourceNone marks a node whose manifest could not be obtained.
	SourceNone
)

func (s Source) String() string {
	switch s {
	case SourceAsset:
		return "asset"
	case SourceStore:
		return "store"
	default:
		return "none"
	}
}

// Node is one claim of the graph, or a placeholder for an ingredient whose
// claim could not be resolved.
type Node struct {
	// ID is the claim id (manifest label). Placeholders use the
	// ingredient's instance id or "<parent>#ingredient[<i>]".
	ID string
	// Claim is nil for placeholders.
	Claim  *manifest.Claim
	Source Source
	// Title is the claim title, or the ingredient title for placeholders.
	Title string
	// Verdict is the claim's own verdict, not including its ingredients.
	Verdict     verify.Verdict
	Diagnostics []verify.Diagnostic

	edges []Edge
}

// Missing reports whether n is a placeholder for an unresolved claim.
func (n *Node) Missing() bool { return n.Claim == nil }

// Edge records that Child is the Index-th ingredient of Parent.
type Edge struct {
	Parent       string
	Child        string
	Index        int
	Label        string
	Relationship string
	// Diagnostics about the reference itself, such as a manifest digest
	// that does not match the ingredient's manifest.
	Diagnostics []verify.Diagnostic
}

// Verdict is the worst verdict of the edge's diagnostics.
func (e Edge) Verdict() verify.Verdict {
	return verify.WorstOf(e.Diagnostics)
}

// Graph is a resolved ingredient graph. It is immutable.
type Graph struct {
	root  string
	nodes map[string]*Node
	edges []Edge
}

func newGraph(root string, nodes map[string]*Node) *Graph {
	g := &Graph{root: root, nodes: nodes}
	for _, n := range nodes {
		g.edges = append(g.edges, n.edges...)
	}
	sort.Slice(g.edges, func(i, j int) bool {
		if g.edges[i].Parent != g.edges[j].Parent {
			return g.edges[i].Parent < g.edges[j].Parent
		}
		return g.edges[i].Index < g.edges[j].Index
	})
	return g
}

// Root returns the node of the claim the graph was resolved from.
func (g *Graph) Root() *Node {
	return g.nodes[g.root]
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns all nodes breadth first from the root, children in
// ingredient order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	seen := map[string]bool{g.root: true}
	queue := []string{g.root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, g.nodes[id])
		for _, e := range g.Edges(id) {
			if !seen[e.Child] {
				seen[e.Child] = true
				queue = append(queue, e.Child)
			}
		}
	}
	return out
}

// Edges returns the ingredient edges of the node with the given id, in
// ingredient order.
func (g *Graph) Edges(parent string) []Edge {
	i := sort.Search(len(g.edges), func(i int) bool { return g.edges[i].Parent >= parent })
	var out []Edge
	for ; i < len(g.edges) && g.edges[i].Parent == parent; i++ {
		out = append(out, g.edges[i])
	}
	return out
}

// AllEdges returns every edge, ordered by parent id then ingredient index.
func (g *Graph) AllEdges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Ingredients returns the direct ingredient nodes of the node with the
// given id, in ingredient order.
func (g *Graph) Ingredients(parent string) []*Node {
	edges := g.Edges(parent)
	out := make([]*Node, 0, len(edges))
	for _, e := range edges {
		out = append(out, g.nodes[e.Child])
	}
	return out
}

// OverallVerdict is the worst verdict over all nodes and edges.
func (g *Graph) OverallVerdict() verify.Verdict {
	worst := verify.Trusted
	for _, n := range g.nodes {
		worst = verify.Worst(worst, n.Verdict)
	}
	for _, e := range g.edges {
		worst = verify.Worst(worst, e.Verdict())
	}
	return worst
}
