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
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/veraison/go-cose"

	"github.com/sigstore/content-credentials/internal/fixture"
	"github.com/sigstore/content-credentials/pkg/verify"
)

func TestParseAnchors(t *testing.T) {
	pki := fixture.NewPKI(t)

	pemSet, err := ParseAnchors(append(pki.RootPEM(), pki.RootPEM()...))
	if err != nil {
		t.Fatalf("ParseAnchors(PEM) error = %v", err)
	}
	if got := len(pemSet.Roots()); got != 2 {
		t.Errorf("len(Roots()) = %d, want 2", got)
	}

	derSet, err := ParseAnchors(pki.Root.Raw)
	if err != nil {
		t.Fatalf("ParseAnchors(DER) error = %v", err)
	}
	if derSet.Empty() {
		t.Error("DER anchor set is empty")
	}

	if _, err := ParseAnchors([]byte("not a certificate")); err == nil {
		t.Error("ParseAnchors(garbage) succeeded")
	}
}

func TestNewAnchorsSplitsIntermediates(t *testing.T) {
	pki := fixture.NewPKI(t)
	a := NewAnchors(pki.Intermediate)
	if !a.Empty() {
		t.Error("an intermediate alone must not count as a root")
	}
	merged := a.Merge(NewAnchors(pki.Root), nil)
	if merged.Empty() || len(merged.Roots()) != 1 {
		t.Errorf("Merge() roots = %d", len(merged.Roots()))
	}
	if !a.Empty() {
		t.Error("Merge() modified its receiver")
	}
	if fp := merged.Fingerprints(); len(fp) != 1 || len(fp[0]) != 64 {
		t.Errorf("Fingerprints() = %v", fp)
	}
}

func TestLoadAnchors(t *testing.T) {
	pki := fixture.NewPKI(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "root.pem")
	if err := os.WriteFile(path, pki.RootPEM(), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := LoadAnchors(path)
	if err != nil {
		t.Fatalf("LoadAnchors() error = %v", err)
	}
	if len(a.Roots()) != 1 || !a.Roots()[0].Equal(pki.Root) {
		t.Error("root not loaded")
	}

	if _, err := LoadAnchors(filepath.Join(dir, "missing.pem")); !verify.IsType(err, verify.ErrTypeIO) {
		t.Errorf("LoadAnchors(missing) error = %v, want IO error", err)
	}
}

func TestLoadTrustedRoot(t *testing.T) {
	pki := fixture.NewPKI(t)
	doc := fmt.Sprintf(`{
  "mediaType": "application/vnd.dev.sigstore.trustedroot+json;version=0.1",
  "certificateAuthorities": [{
    "subject": {"organization": "Fixture Trust", "commonName": "Fixture Intermediate CA"},
    "uri": "https://ca.example.com",
    "certChain": {"certificates": [{"rawBytes": %q}, {"rawBytes": %q}]},
    "validFor": {"start": "2020-01-01T00:00:00Z"}
  }]
}`, base64.StdEncoding.EncodeToString(pki.Intermediate.Raw), base64.StdEncoding.EncodeToString(pki.Root.Raw))
	path := filepath.Join(t.TempDir(), "trusted_root.json")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := LoadTrustedRoot(path)
	if err != nil {
		t.Fatalf("LoadTrustedRoot() error = %v", err)
	}
	if len(a.Roots()) != 1 || !a.Roots()[0].Equal(pki.Root) {
		t.Errorf("Roots() = %d certificates", len(a.Roots()))
	}

	if _, err := LoadTrustedRoot(filepath.Join(t.TempDir(), "absent.json")); !verify.IsType(err, verify.ErrTypeConfiguration) {
		t.Errorf("LoadTrustedRoot(absent) error = %v, want configuration error", err)
	}
}

func TestCOSEVerifierAlgorithms(t *testing.T) {
	ec256, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	ec384, _ := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	rsaKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	_, edKey, _ := ed25519.GenerateKey(rand.Reader)

	tests := []struct {
		alg  cose.Algorithm
		priv crypto.Signer
	}{
		{cose.AlgorithmES256, ec256},
		{cose.AlgorithmES384, ec384},
		{cose.AlgorithmPS256, rsaKey},
		{cose.AlgorithmEdDSA, edKey},
	}
	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			signer, err := cose.NewSigner(tt.alg, tt.priv)
			if err != nil {
				t.Fatal(err)
			}
			msg := cose.NewSign1Message()
			msg.Headers.Protected.SetAlgorithm(tt.alg)
			msg.Payload = []byte("claim bytes")
			if err := msg.Sign(rand.Reader, nil, signer); err != nil {
				t.Fatal(err)
			}

			v, err := NewCOSEVerifier(tt.alg, tt.priv.Public())
			if err != nil {
				t.Fatalf("NewCOSEVerifier() error = %v", err)
			}
			if err := msg.Verify(nil, v); err != nil {
				t.Errorf("Verify() error = %v", err)
			}
			msg.Payload = []byte("other bytes")
			if err := msg.Verify(nil, v); err == nil {
				t.Error("Verify() accepted a different payload")
			}
		})
	}
}

func TestCOSEVerifierRejectsMismatchedKeys(t *testing.T) {
	ec256, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	rsaKey, _ := rsa.GenerateKey(rand.Reader, 2048)

	if _, err := NewCOSEVerifier(cose.AlgorithmES384, &ec256.PublicKey); err == nil {
		t.Error("ES384 accepted a P-256 key")
	}
	if _, err := NewCOSEVerifier(cose.AlgorithmES256, &rsaKey.PublicKey); err == nil {
		t.Error("ES256 accepted an RSA key")
	}
	if _, err := NewCOSEVerifier(cose.Algorithm(-999), &ec256.PublicKey); err == nil {
		t.Error("unknown algorithm accepted")
	}
}
