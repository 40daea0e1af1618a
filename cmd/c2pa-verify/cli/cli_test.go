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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sigstore/content-credentials/internal/fixture"
	"github.com/sigstore/content-credentials/pkg/verify"
)

type env struct {
	dir     string
	anchors string
	pki     *fixture.PKI
	builder *fixture.Builder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	pki := fixture.NewPKI(t)
	e := &env{dir: t.TempDir(), pki: pki, builder: fixture.NewBuilder(t, pki)}
	e.anchors = e.write(t, "anchors.pem", pki.RootPEM())
	return e
}

func (e *env) write(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := New()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "silent"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVerifyTable(t *testing.T) {
	e := newEnv(t)
	data, _ := e.builder.SignedJPEG(fixture.Manifest{
		Title:   "photo.jpg",
		Actions: []string{"c2pa.created"},
		Authors: []fixture.Author{{Name: "Jane Doe"}},
	})
	path := e.write(t, "photo.jpg", data)

	out, err := execute(t, "verify", path, "--trust-anchor", e.anchors)
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	for _, want := range []string{"Trusted", "photo.jpg", "Fixture Signing Co", "Jane Doe", "Fixture App 1.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestVerifyUntrustedExitCode(t *testing.T) {
	e := newEnv(t)
	data, _ := e.builder.SignedJPEG(fixture.Manifest{})
	path := e.write(t, "photo.jpg", data)

	_, err := execute(t, "verify", path)
	var ve *VerdictError
	if !errors.As(err, &ve) {
		t.Fatalf("verify error = %v, want *VerdictError", err)
	}
	if ve.Verdict != verify.UntrustedIssuer || ve.ExitCode() != ExitUntrusted {
		t.Errorf("verdict = %v, exit = %d", ve.Verdict, ve.ExitCode())
	}
}

func TestVerifyUnsignedAsset(t *testing.T) {
	e := newEnv(t)
	path := e.write(t, "plain.jpg", fixture.MinimalJPEG())

	out, err := execute(t, "verify", path, "--trust-anchor", e.anchors)
	var ve *VerdictError
	if !errors.As(err, &ve) || ve.Verdict != verify.Unsigned {
		t.Fatalf("verify error = %v, want Unsigned verdict", err)
	}
	if !strings.Contains(out, "Content credentials:") {
		t.Errorf("output = %s", out)
	}
}

func TestVerifyJSON(t *testing.T) {
	e := newEnv(t)
	child := fixture.NewLabel()
	data, _ := e.builder.SignedJPEG(
		fixture.Manifest{Label: child, Title: "child.jpg", ClaimThumbnail: true},
		fixture.Manifest{Title: "photo.jpg", Ingredients: []fixture.Ingredient{{Title: "child.jpg", Manifest: child}}},
	)
	path := e.write(t, "photo.jpg", data)

	out, err := execute(t, "verify", path, "--trust-anchor", e.anchors, "--format", "json")
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	var r struct {
		Asset       string          `json:"asset"`
		Verdict     verify.Verdict  `json:"verdict"`
		Store       string          `json:"store"`
		ActiveClaim json.RawMessage `json:"activeClaim"`
		Claims      []struct {
			ID string `json:"id"`
		} `json:"claims"`
	}
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if r.Asset != "photo.jpg" || r.Verdict != verify.Trusted || r.Store != "jpeg" {
		t.Errorf("report = %+v", r)
	}
	if len(r.ActiveClaim) == 0 {
		t.Error("report lacks the active claim")
	}
	if len(r.Claims) != 1 || r.Claims[0].ID != child {
		t.Errorf("claims = %+v, want %s", r.Claims, child)
	}
}

func TestVerifySummary(t *testing.T) {
	e := newEnv(t)
	data, _ := e.builder.SignedJPEG(fixture.Manifest{})
	path := e.write(t, "photo.jpg", data)

	out, err := execute(t, "verify", path, "--trust-anchor", e.anchors, "--format", "summary", "--verifier-id", "https://verifier.example.com")
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	for _, want := range []string{`"verificationResult":"PASSED"`, `"predicate_type":"https://slsa.dev/verification_summary/v1"`, "https://verifier.example.com"} {
		if !strings.Contains(strings.ReplaceAll(out, " ", ""), want) {
			t.Errorf("summary lacks %s:\n%s", want, out)
		}
	}
}

func TestVerifySidecarFlag(t *testing.T) {
	e := newEnv(t)
	b := fixture.NewBuilder(t, e.pki)
	store := b.Store(fixture.Manifest{Title: "remote.jpg", ClaimThumbnail: true})
	asset := e.write(t, "photo.jpg", fixture.MinimalJPEG())
	sidecar := e.write(t, "manifest.c2pa", store)

	out, err := execute(t, "verify", asset, "--trust-anchor", e.anchors, "--sidecar", sidecar)
	var ve *VerdictError
	if !errors.As(err, &ve) {
		t.Fatalf("verify error = %v, want a verdict error for a store without hard binding\n%s", err, out)
	}
	if !strings.Contains(out, "remote.jpg") {
		t.Errorf("sidecar claim not reported:\n%s", out)
	}
}

func TestVerifyFlagErrors(t *testing.T) {
	e := newEnv(t)
	path := e.write(t, "photo.jpg", fixture.MinimalJPEG())

	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"verify", path, "--format", "yaml"}},
		{"missing anchors", []string{"verify", path, "--trust-anchor", filepath.Join(e.dir, "absent.pem")}},
		{"ingredient dir is a file", []string{"verify", path, "--ingredient-dir", path}},
		{"negative concurrency", []string{"verify", path, "--concurrency", "-1"}},
		{"missing asset", []string{"verify", filepath.Join(e.dir, "absent.jpg")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			var ve *VerdictError
			if err == nil || errors.As(err, &ve) {
				t.Errorf("error = %v, want a usage or configuration error", err)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	e := newEnv(t)
	data, _ := e.builder.SignedJPEG(fixture.Manifest{Title: "a.jpg"})
	a := e.write(t, "a.jpg", data)
	b := e.write(t, "b.jpg", data)

	out, err := execute(t, "compare", a, b, "--trust-anchor", e.anchors)
	if err != nil || !strings.Contains(out, "match") {
		t.Fatalf("compare identical: %v\n%s", err, out)
	}

	other, _ := e.builder.SignedJPEG(fixture.Manifest{Title: "c.jpg"})
	c := e.write(t, "c.jpg", other)
	out, err = execute(t, "compare", a, c, "--trust-anchor", e.anchors)
	var de *DiffError
	if !errors.As(err, &de) {
		t.Fatalf("compare error = %v, want *DiffError", err)
	}
	if len(de.Diff.Added) != 1 || len(de.Diff.Removed) != 1 {
		t.Errorf("diff = %+v", de.Diff)
	}
	if !strings.Contains(out, "added") || !strings.Contains(out, "removed") {
		t.Errorf("output = %s", out)
	}
}
