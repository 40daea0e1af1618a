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

// Package provenance is the entry point of the verification engine. An
// Engine holds immutable configuration; a Session verifies assets and hands
// out read-only Facades over the results.
//
// Usage:
//
//	engine, err := provenance.NewEngine(provenance.Options{Anchors: anchors})
//	if err != nil {
//	    return err
//	}
//	session := engine.NewSession()
//	defer session.Close()
//
//	facade, err := session.Verify(ctx, a)
//	if err != nil {
//	    return err // cyclic provenance, cancellation or a closed session
//	}
//	fmt.Println(facade.OverallVerdict())
package provenance

import (
	"context"
	"time"

	"github.com/sigstore/content-credentials/pkg/graph"
	"github.com/sigstore/content-credentials/pkg/logging"
	"github.com/sigstore/content-credentials/pkg/trust"
)

// Options configures an Engine.
type Options struct {
	// Anchors is the trust set shared by every session. Nil or empty
	// trusts no signer.
	Anchors *trust.Anchors
	// Revocation checks signing certificates. Nil skips the check.
	Revocation trust.RevocationChecker
	// Lookup resolves ingredients whose manifests are not embedded in
	// the asset under verification.
	Lookup graph.Lookup
	// Concurrency bounds concurrent claim verifications per asset.
	// Zero means graph.DefaultConcurrency.
	Concurrency int
	// Clock supplies the validation time for claims without a signing
	// time. Defaults to time.Now.
	Clock  func() time.Time
	Logger logging.Logger
}

// Engine verifies assets. It is immutable and safe for concurrent use.
type Engine struct {
	resolver *graph.Resolver
	clock    func() time.Time
	logger   logging.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts Options) (*Engine, error) {
	logger := logging.EnsureLogger(opts.Logger)
	anchors := opts.Anchors
	if anchors == nil {
		anchors = trust.NewAnchors()
	}
	if anchors.Empty() {
		logger.Warnln("no trust anchors configured; every signer will be reported as untrusted")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	validator := trust.NewValidator(trust.ValidatorConfig{
		Anchors:    anchors,
		Revocation: opts.Revocation,
		Logger:     logger,
	})
	resolver, err := graph.NewResolver(graph.Options{
		Validator:   validator,
		Lookup:      opts.Lookup,
		Concurrency: opts.Concurrency,
		Clock:       clock,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return &Engine{resolver: resolver, clock: clock, logger: logger}, nil
}

// NewSession starts a session. Its results stay queryable until Close.
func (e *Engine) NewSession() *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{engine: e, ctx: ctx, cancel: cancel}
}
