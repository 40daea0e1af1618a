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
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/sigstore/sigstore-go/pkg/root"
	"github.com/sigstore/sigstore/pkg/cryptoutils"

	"github.com/sigstore/content-credentials/pkg/verify"
)

// Anchors is an immutable set of trusted root certificates plus the
// intermediates that came with them. It is safe to share between
// concurrent verifications.
type Anchors struct {
	roots         []*x509.Certificate
	intermediates []*x509.Certificate
}

// NewAnchors builds an anchor set. Self-signed certificates become roots;
// any other certificate is kept as an intermediate.
func NewAnchors(certs ...*x509.Certificate) *Anchors {
	a := &Anchors{}
	for _, c := range certs {
		a.add(c)
	}
	return a
}

func (a *Anchors) add(c *x509.Certificate) {
	if isSelfSigned(c) {
		a.roots = append(a.roots, c)
		return
	}
	a.intermediates = append(a.intermediates, c)
}

func isSelfSigned(c *x509.Certificate) bool {
	return bytes.Equal(c.RawSubject, c.RawIssuer) && c.CheckSignatureFrom(c) == nil
}

// ParseAnchors parses PEM certificates, falling back to a single DER
// certificate.
func ParseAnchors(data []byte) (*Anchors, error) {
	certs, err := parseCertificates(data)
	if err != nil {
		return nil, err
	}
	return NewAnchors(certs...), nil
}

// LoadAnchors reads and merges certificate files.
func LoadAnchors(paths ...string) (*Anchors, error) {
	a := &Anchors{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, verify.NewVerificationErrorWithPath(verify.ErrTypeIO, path, "failed to read trust anchor file", err)
		}
		certs, err := parseCertificates(data)
		if err != nil {
			return nil, verify.NewVerificationErrorWithPath(verify.ErrTypeConfiguration, path, "failed to parse trust anchors", err)
		}
		for _, c := range certs {
			a.add(c)
		}
	}
	return a, nil
}

// LoadTrustedRoot reads the certificate authorities of a Sigstore
// trusted_root.json.
func LoadTrustedRoot(path string) (*Anchors, error) {
	tr, err := root.NewTrustedRootFromPath(path)
	if err != nil {
		return nil, verify.NewVerificationErrorWithPath(verify.ErrTypeConfiguration, path, "failed to load trusted root", err)
	}
	return FromTrustedMaterial(tr), nil
}

// FromTrustedMaterial collects the Fulcio-style certificate authorities of
// a Sigstore trusted material set.
func FromTrustedMaterial(tm root.TrustedMaterial) *Anchors {
	a := &Anchors{}
	for _, ca := range tm.FulcioCertificateAuthorities() {
		fca, ok := ca.(*root.FulcioCertificateAuthority)
		if !ok {
			continue
		}
		if fca.Root != nil {
			a.roots = append(a.roots, fca.Root)
		}
		a.intermediates = append(a.intermediates, fca.Intermediates...)
	}
	return a
}

// Merge returns a new set holding the certificates of a and others.
func (a *Anchors) Merge(others ...*Anchors) *Anchors {
	out := &Anchors{
		roots:         append([]*x509.Certificate(nil), a.roots...),
		intermediates: append([]*x509.Certificate(nil), a.intermediates...),
	}
	for _, o := range others {
		if o == nil {
			continue
		}
		out.roots = append(out.roots, o.roots...)
		out.intermediates = append(out.intermediates, o.intermediates...)
	}
	return out
}

// Empty reports whether no root is configured.
func (a *Anchors) Empty() bool {
	return a == nil || len(a.roots) == 0
}

// Roots returns the root certificates.
func (a *Anchors) Roots() []*x509.Certificate {
	if a == nil {
		return nil
	}
	return append([]*x509.Certificate(nil), a.roots...)
}

// Fingerprints returns the SHA-256 fingerprints of the roots in hex.
func (a *Anchors) Fingerprints() []string {
	var out []string
	for _, c := range a.Roots() {
		sum := sha256.Sum256(c.Raw)
		out = append(out, fmt.Sprintf("%X", sum))
	}
	return out
}

// pools returns fresh pools so that callers can add chain intermediates
// without touching the shared set.
func (a *Anchors) pools() (roots, intermediates *x509.CertPool) {
	roots, intermediates = x509.NewCertPool(), x509.NewCertPool()
	if a == nil {
		return roots, intermediates
	}
	for _, c := range a.roots {
		roots.AddCert(c)
	}
	for _, c := range a.intermediates {
		intermediates.AddCert(c)
	}
	return roots, intermediates
}

func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	if certs, err := cryptoutils.UnmarshalCertificatesFromPEM(data); err == nil && len(certs) > 0 {
		return certs, nil
	}
	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate (tried both PEM and DER formats): %w", err)
	}
	return []*x509.Certificate{cert}, nil
}
