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
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sigstore/content-credentials/pkg/asset"
	"github.com/sigstore/content-credentials/pkg/binding"
	"github.com/sigstore/content-credentials/pkg/hashing"
	"github.com/sigstore/content-credentials/pkg/logging"
	"github.com/sigstore/content-credentials/pkg/manifest"
	"github.com/sigstore/content-credentials/pkg/tracing"
	"github.com/sigstore/content-credentials/pkg/trust"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// DefaultConcurrency bounds concurrent claim verifications when
// Options.Concurrency is not set.
const DefaultConcurrency = 4

// Lookup finds the asset an ingredient was made from, for ingredients whose
// manifest is not in the referencing store. It returns an error matching
// verify.ErrNotFound when it has no such asset.
type Lookup interface {
	Lookup(ctx context.Context, ing *manifest.Ingredient) (*asset.Asset, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, ing *manifest.Ingredient) (*asset.Asset, error)

// Lookup calls f.
func (f LookupFunc) Lookup(ctx context.Context, ing *manifest.Ingredient) (*asset.Asset, error) {
	return f(ctx, ing)
}

// ClaimValidator checks a claim signature and its certificate chain.
// *trust.Validator implements it.
type ClaimValidator interface {
	Validate(ctx context.Context, sig *manifest.Signature, claimBytes []byte, at time.Time) (trust.Result, error)
}

// Options configures a Resolver.
type Options struct {
	// Validator is required.
	Validator ClaimValidator
	// Lookup resolves ingredients outside the store. Nil disables it.
	Lookup Lookup
	// Concurrency bounds concurrent claim verifications per Resolve call.
	// Zero means DefaultConcurrency.
	Concurrency int
	// Clock supplies the validation time for claims without a signing
	// time. Defaults to time.Now.
	Clock  func() time.Time
	Logger logging.Logger
}

// Resolver builds ingredient graphs. It is safe for concurrent use; each
// Resolve call owns its own arena.
type Resolver struct {
	validator   ClaimValidator
	lookup      Lookup
	concurrency int
	clock       func() time.Time
	logger      logging.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Validator == nil {
		return nil, verify.NewVerificationError(verify.ErrTypeConfiguration, "resolver requires a claim validator", nil)
	}
	if opts.Concurrency < 0 {
		return nil, verify.NewVerificationError(verify.ErrTypeConfiguration,
			fmt.Sprintf("concurrency must not be negative, got %d", opts.Concurrency), nil)
	}
	r := &Resolver{
		validator:   opts.Validator,
		lookup:      opts.Lookup,
		concurrency: opts.Concurrency,
		clock:       opts.Clock,
		logger:      logging.EnsureLogger(opts.Logger),
	}
	if r.concurrency == 0 {
		r.concurrency = DefaultConcurrency
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	return r, nil
}

// Subject is the asset whose active claim roots the graph.
type Subject struct {
	Store *manifest.Store
	// Asset and Location are used to check the root claim's hard binding.
	Asset    *asset.Asset
	Location *asset.Location
}

// Resolve verifies the subject's active claim and then, recursively, every
// ingredient claim it can reach. Per-claim failures become node verdicts.
// Resolve fails only with a CyclicReference error when an ingredient refers
// back to a claim on its own path, or a Cancelled error when ctx is done;
// it never returns a partial graph.
func (r *Resolver) Resolve(ctx context.Context, subj Subject) (*Graph, error) {
	if subj.Store == nil {
		return nil, verify.NewVerificationError(verify.ErrTypeConfiguration, "subject has no manifest store", nil)
	}

	var g *Graph
	err := tracing.Run(ctx, "ResolveIngredients", map[string]interface{}{
		"claim.id": subj.Store.Active().Label(),
	}, func(ctx context.Context) error {
		res := &resolution{
			r:    r,
			sem:  semaphore.NewWeighted(int64(r.concurrency)),
			done: make(map[string]*Node),
		}
		root := origin{
			store:    subj.Store,
			manifest: subj.Store.Active(),
			asset:    subj.Asset,
			loc:      subj.Location,
			source:   SourceAsset,
		}
		n, err := res.resolve(ctx, root, nil)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			return classify(err)
		}
		g = newGraph(n.ID, res.done)
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.WithFields(map[string]interface{}{
		"claim":   g.root,
		"nodes":   g.Len(),
		"verdict": g.OverallVerdict().String(),
	}).Debugln("ingredient graph resolved")
	return g, nil
}

func classify(err error) error {
	if verify.IsType(err, verify.ErrTypeCyclicReference) || verify.IsType(err, verify.ErrTypeCancelled) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return verify.NewVerificationError(verify.ErrTypeCancelled, "ingredient resolution cancelled", err)
	}
	return err
}

// origin is where a claim is read from.
type origin struct {
	store    *manifest.Store
	manifest *manifest.Manifest
	// asset is set when the manifest is the active manifest of an asset,
	// whose hard binding is then checked.
	asset  *asset.Asset
	loc    *asset.Location
	source Source
}

// resolution is the state of one Resolve call.
type resolution struct {
	r   *Resolver
	sem *semaphore.Weighted

	mu sync.Mutex
	// done holds nodes whose whole subtree is resolved.
	done map[string]*Node
}

func (res *resolution) completed(id string) *Node {
	res.mu.Lock()
	defer res.mu.Unlock()
	return res.done[id]
}

// store records n unless another branch completed the same claim first, and
// returns the recorded node.
func (res *resolution) store(n *Node) *Node {
	res.mu.Lock()
	defer res.mu.Unlock()
	if prev, ok := res.done[n.ID]; ok {
		return prev
	}
	res.done[n.ID] = n
	return n
}

func (res *resolution) resolve(ctx context.Context, o origin, path []string) (*Node, error) {
	id := o.manifest.Label()
	if n := res.completed(id); n != nil {
		return n, nil
	}

	node, err := res.verifyNode(ctx, o)
	if err != nil {
		return nil, err
	}
	if node.Claim == nil {
		return res.store(node), nil
	}

	path = append(slices.Clip(path), id)
	ings := node.Claim.Ingredients()
	edges := make([]Edge, len(ings))
	g, gctx := errgroup.WithContext(ctx)
	for i, ing := range ings {
		g.Go(func() error {
			e, err := res.resolveIngredient(gctx, o, node.Claim, ing, path)
			if err != nil {
				return err
			}
			edges[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	node.edges = edges
	return res.store(node), nil
}

// verifyNode decodes and verifies one claim. Only this step holds a
// semaphore slot, so parents never block their own ingredients.
func (res *resolution) verifyNode(ctx context.Context, o origin) (*Node, error) {
	if err := res.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer res.sem.Release(1)

	ctx, span := tracing.Start(ctx, "VerifyClaim")
	defer span.End()
	id := o.manifest.Label()
	span.SetAttribute("claim.id", id)
	span.SetAttribute("claim.source", o.source.String())

	node := &Node{ID: id, Source: o.source}
	claim, err := o.manifest.Claim()
	if err != nil {
		node.Verdict = verify.Incomplete
		node.Diagnostics = []verify.Diagnostic{{
			Code:    verify.CodeClaimMalformed,
			Subject: id,
			Message: err.Error(),
			Verdict: verify.Incomplete,
		}}
		span.SetAttribute("verdict", node.Verdict.String())
		return node, nil
	}
	node.Claim = claim
	node.Title = claim.Title()

	at := res.r.clock()
	if signed, ok := claim.SignedAt(); ok {
		at = signed
	}
	tr, err := res.r.validator.Validate(ctx, claim.Signature(), claim.Bytes(), at)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	b := binding.Verify(claim, o.loc, o.asset)

	node.Diagnostics = make([]verify.Diagnostic, 0, len(tr.Diagnostics)+len(b.Diagnostics))
	node.Diagnostics = append(node.Diagnostics, tr.Diagnostics...)
	node.Diagnostics = append(node.Diagnostics, b.Diagnostics...)
	node.Verdict = verify.WorstOf(node.Diagnostics)
	span.SetAttribute("verdict", node.Verdict.String())

	res.r.logger.WithFields(map[string]interface{}{
		"claim":   id,
		"verdict": node.Verdict.String(),
	}).Debugln("claim verified")
	return node, nil
}

func (res *resolution) resolveIngredient(ctx context.Context, parent origin, claim *manifest.Claim, ing manifest.IngredientRef, path []string) (Edge, error) {
	edge := Edge{
		Parent:       claim.ID(),
		Index:        ing.Index,
		Label:        ing.Label,
		Relationship: ing.Ingredient.Relationship,
	}
	child, diags, err := res.locate(ctx, parent, claim, ing)
	if err != nil {
		return Edge{}, err
	}
	if child == nil {
		n := res.store(placeholder(claim.ID(), ing, diags))
		edge.Child = n.ID
		return edge, nil
	}
	edge.Diagnostics = diags

	label := child.manifest.Label()
	if slices.Contains(path, label) {
		return Edge{}, verify.NewVerificationErrorWithPath(verify.ErrTypeCyclicReference,
			strings.Join(path, " -> ")+" -> "+label,
			fmt.Sprintf("ingredient %s refers back to claim %s", ing.Label, label), nil)
	}
	n, err := res.resolve(ctx, *child, path)
	if err != nil {
		return Edge{}, err
	}
	edge.Child = n.ID
	return edge, nil
}

// locate finds the manifest of an ingredient. When it returns a nil origin
// the diagnostics explain why and belong on a placeholder node; otherwise
// they concern the reference and belong on the edge. The error is non-nil
// only when ctx is done.
func (res *resolution) locate(ctx context.Context, parent origin, claim *manifest.Claim, ing manifest.IngredientRef) (*origin, []verify.Diagnostic, error) {
	ref := ing.Ingredient.ManifestRef()
	var target string
	if ref != nil {
		u, err := manifest.ParseURI(ref.URL)
		if err != nil || u.Manifest == "" || len(u.Path) != 0 {
			return nil, []verify.Diagnostic{malformed(ing.Label, "ingredient manifest reference %q is not a manifest URI", ref.URL)}, nil
		}
		target = u.Manifest
		if m, ok := parent.store.Manifest(target); ok {
			return &origin{store: parent.store, manifest: m, source: SourceStore}, checkManifestRef(*ref, m, claim.Alg(), ing.Label), nil
		}
	}

	if res.r.lookup == nil {
		return nil, []verify.Diagnostic{missing(ing.Label, "ingredient manifest is not available")}, nil
	}
	a, err := res.r.lookup.Lookup(ctx, ing.Ingredient)
	switch {
	case ctx.Err() != nil:
		return nil, nil, ctx.Err()
	case errors.Is(err, verify.ErrNotFound):
		return nil, []verify.Diagnostic{missing(ing.Label, "ingredient asset not found")}, nil
	case err != nil:
		return nil, []verify.Diagnostic{missing(ing.Label, "ingredient lookup failed: %v", err)}, nil
	}

	loc, err := asset.Locate(a)
	switch {
	case errors.Is(err, verify.ErrNotFound):
		return nil, []verify.Diagnostic{missing(ing.Label, "ingredient asset %s carries no manifest store", a.Name())}, nil
	case err != nil:
		return nil, []verify.Diagnostic{malformed(ing.Label, "%v", err)}, nil
	}
	store, err := manifest.Decode(loc.Store)
	if err != nil {
		return nil, []verify.Diagnostic{malformed(ing.Label, "%v", err)}, nil
	}

	o := &origin{store: store, manifest: store.Active(), asset: a, loc: loc, source: SourceAsset}
	if target != "" && target != o.manifest.Label() {
		m, ok := store.Manifest(target)
		if !ok {
			return nil, []verify.Diagnostic{missing(ing.Label, "ingredient asset %s has no manifest %s", a.Name(), target)}, nil
		}
		// Only the active manifest is bound to the asset bytes.
		o = &origin{store: store, manifest: m, source: SourceStore}
	}
	var diags []verify.Diagnostic
	if ref != nil {
		diags = checkManifestRef(*ref, o.manifest, claim.Alg(), ing.Label)
	}
	return o, diags, nil
}

func checkManifestRef(ref manifest.HashedURI, m *manifest.Manifest, claimAlg, subject string) []verify.Diagnostic {
	alg := ref.Alg
	if alg == "" {
		alg = claimAlg
	}
	d, err := hashing.Sum(alg, m.Bytes())
	if err != nil {
		return []verify.Diagnostic{{
			Code:    verify.CodeAlgorithmUnsupported,
			Subject: subject,
			Message: fmt.Sprintf("cannot hash ingredient manifest: %v", err),
			Verdict: verify.Incomplete,
		}}
	}
	if !d.Matches(ref.Hash) {
		return []verify.Diagnostic{{
			Code:    verify.CodeIngredientManifestMismatch,
			Subject: subject,
			Message: fmt.Sprintf("manifest %s digest %s does not match the ingredient reference", m.Label(), d.Hex()),
			Verdict: verify.Tampered,
		}}
	}
	return nil
}

func placeholder(parent string, ing manifest.IngredientRef, diags []verify.Diagnostic) *Node {
	id := ing.Ingredient.InstanceID
	if id == "" {
		id = fmt.Sprintf("%s#ingredient[%d]", parent, ing.Index)
	}
	return &Node{
		ID:          id,
		Source:      SourceNone,
		Title:       ing.Ingredient.Title,
		Verdict:     verify.WorstOf(diags),
		Diagnostics: diags,
	}
}

func missing(subject, format string, args ...interface{}) verify.Diagnostic {
	return verify.Diagnostic{
		Code:    verify.CodeIngredientManifestMissing,
		Subject: subject,
		Message: fmt.Sprintf(format, args...),
		Verdict: verify.Incomplete,
	}
}

func malformed(subject, format string, args ...interface{}) verify.Diagnostic {
	return verify.Diagnostic{
		Code:    verify.CodeIngredientMalformed,
		Subject: subject,
		Message: fmt.Sprintf(format, args...),
		Verdict: verify.Incomplete,
	}
}
