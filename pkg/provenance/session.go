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
	"context"
	"errors"
	"sync"

	"github.com/sigstore/content-credentials/pkg/asset"
	"github.com/sigstore/content-credentials/pkg/graph"
	"github.com/sigstore/content-credentials/pkg/manifest"
	"github.com/sigstore/content-credentials/pkg/tracing"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// Session owns the structures decoded while verifying assets. It has a
// single cancellation token: Cancel aborts every verification in flight.
// Facades produced by a session fail with verify.ErrDisposed once the
// session is closed.
type Session struct {
	engine *Engine
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// Cancel aborts in-flight and future verifications of the session.
// Facades already produced stay queryable.
func (s *Session) Cancel() {
	s.cancel()
}

// Close cancels the session and disposes of its facades. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancel()
	return nil
}

func (s *Session) disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Verify locates, decodes and verifies the provenance of a. Assets without
// a manifest and assets whose manifest cannot be decoded still produce a
// Facade with a verdict. The error is non-nil only for cyclic ingredient
// references, cancellation of ctx or the session, and closed sessions.
func (s *Session) Verify(ctx context.Context, a *asset.Asset) (*Facade, error) {
	if s.disposed() {
		return nil, verify.ErrDisposed
	}
	ctx, stop := s.join(ctx)
	defer stop()

	var f *Facade
	err := tracing.Run(ctx, "Verify", map[string]interface{}{
		"asset.name": a.Name(),
		"asset.mime": a.MIME(),
	}, func(ctx context.Context) error {
		var err error
		f, err = s.verify(ctx, a)
		return err
	})
	if err != nil {
		if ctx.Err() != nil && !verify.IsType(err, verify.ErrTypeCyclicReference) && !verify.IsType(err, verify.ErrTypeCancelled) {
			err = verify.NewVerificationError(verify.ErrTypeCancelled, "verification cancelled", err)
		}
		return nil, err
	}

	s.engine.logger.WithFields(map[string]interface{}{
		"asset":   a.Name(),
		"verdict": f.verdict().String(),
	}).Debug("verified %s", displayName(a))
	return f, nil
}

func (s *Session) verify(ctx context.Context, a *asset.Asset) (*Facade, error) {
	f := &Facade{session: s, asset: a, verifiedAt: s.engine.clock()}

	loc, err := asset.Locate(a)
	switch {
	case errors.Is(err, verify.ErrNotFound):
		s.engine.logger.WithField("asset", a.Name()).Debugln("no manifest store found")
		return f, nil
	case err != nil:
		f.storeErr = err
		return f, nil
	}
	f.location = loc

	store, err := manifest.Decode(loc.Store)
	if err != nil {
		f.storeErr = err
		return f, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, verify.NewVerificationError(verify.ErrTypeCancelled, "verification cancelled", err)
	}

	g, err := s.engine.resolver.Resolve(ctx, graph.Subject{Store: store, Asset: a, Location: loc})
	if err != nil {
		return nil, err
	}
	f.graph = g
	return f, nil
}

// join derives a context that is done when either ctx or the session is.
func (s *Session) join(ctx context.Context) (context.Context, func()) {
	joined, cancel := context.WithCancel(s.ctx)
	if ctx.Err() != nil {
		// AfterFunc runs asynchronously; an already-done ctx must be
		// visible before Verify returns.
		cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	return joined, func() {
		stop()
		cancel()
	}
}

func displayName(a *asset.Asset) string {
	if a.Name() != "" {
		return a.Name()
	}
	return "asset (" + a.MIME() + ")"
}
