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

package trust

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/sigstore/content-credentials/internal/fixture"
	"github.com/sigstore/content-credentials/pkg/verify"
)

func ocspResponder(t *testing.T, pki *fixture.PKI, status int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(ocspHandler(pki, status, hits))
}

func ocspHandler(pki *fixture.PKI, status int, hits *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req, err := ocsp.ParseRequest(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		now := time.Now()
		tmpl := ocsp.Response{
			Status:       status,
			SerialNumber: req.SerialNumber,
			ThisUpdate:   now.Add(-time.Minute),
			NextUpdate:   now.Add(time.Hour),
		}
		if status == ocsp.Revoked {
			tmpl.RevokedAt = now.Add(-time.Hour)
			tmpl.RevocationReason = ocsp.KeyCompromise
		}
		resp, err := ocsp.CreateResponse(pki.Intermediate, pki.Intermediate, tmpl, pki.IntermediateKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(resp)
	})
}

func TestOCSPChecker(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   RevocationStatus
	}{
		{"good", ocsp.Good, RevocationGood},
		{"revoked", ocsp.Revoked, RevocationRevoked},
		{"unknown", ocsp.Unknown, RevocationUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pki := fixture.NewPKI(t)
			var hits atomic.Int32
			srv := ocspResponder(t, pki, tt.status, &hits)
			defer srv.Close()

			checker := NewOCSPChecker(OCSPConfig{URL: srv.URL})
			got, err := checker.Check(context.Background(), pki.Leaf, pki.Intermediate)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
			if hits.Load() != 1 {
				t.Errorf("responder hit %d times, want 1", hits.Load())
			}
		})
	}
}

func TestOCSPCheckerUsesCertificateResponder(t *testing.T) {
	var hits atomic.Int32
	// The responder needs the PKI to sign, and the PKI needs the responder
	// URL, so route through a handler that is filled in afterwards.
	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	pki := fixture.NewPKI(t, fixture.WithOCSPServer(srv.URL))
	handler = ocspHandler(pki, ocsp.Good, &hits)

	got, err := NewOCSPChecker(OCSPConfig{}).Check(context.Background(), pki.Leaf, pki.Intermediate)
	if err != nil || got != RevocationGood {
		t.Errorf("Check() = %v, %v; want good", got, err)
	}
	if hits.Load() != 1 {
		t.Errorf("responder hit %d times, want 1", hits.Load())
	}
}

func TestOCSPCheckerTimeoutRetriesThenUnknown(t *testing.T) {
	pki := fixture.NewPKI(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	checker := NewOCSPChecker(OCSPConfig{URL: srv.URL, Timeout: 50 * time.Millisecond, Retries: 1})
	got, err := checker.Check(context.Background(), pki.Leaf, pki.Intermediate)
	if err != nil {
		t.Fatalf("Check() error = %v, want none after timeouts", err)
	}
	if got != RevocationUnknown {
		t.Errorf("Check() = %v, want unknown", got)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("responder hit %d times, want 2 (one retry)", n)
	}
}

func TestOCSPCheckerServerError(t *testing.T) {
	pki := fixture.NewPKI(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	got, err := NewOCSPChecker(OCSPConfig{URL: srv.URL, Retries: -1}).Check(context.Background(), pki.Leaf, pki.Intermediate)
	if err != nil || got != RevocationUnknown {
		t.Errorf("Check() = %v, %v; want unknown", got, err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("responder hit %d times, want 1 with retries disabled", n)
	}
}

func TestOCSPCheckerNoResponder(t *testing.T) {
	pki := fixture.NewPKI(t)
	got, err := NewOCSPChecker(OCSPConfig{}).Check(context.Background(), pki.Leaf, pki.Intermediate)
	if err != nil || got != RevocationUnknown {
		t.Errorf("Check() = %v, %v; want unknown", got, err)
	}
}

func TestOCSPCheckerCancelled(t *testing.T) {
	pki := fixture.NewPKI(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := NewOCSPChecker(OCSPConfig{URL: srv.URL, Timeout: 5 * time.Second}).Check(ctx, pki.Leaf, pki.Intermediate)
	if !errors.Is(err, verify.ErrCancelled) {
		t.Errorf("Check() error = %v, want ErrCancelled", err)
	}
}
