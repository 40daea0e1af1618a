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

// Package fixture builds signed manifest stores, certificate hierarchies
// and carrier files for tests.
package fixture

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync/atomic"
	"testing"
	"time"
)

// PKI is a root, intermediate and leaf certificate hierarchy.
type PKI struct {
	Root            *x509.Certificate
	RootKey         *ecdsa.PrivateKey
	Intermediate    *x509.Certificate
	IntermediateKey *ecdsa.PrivateKey
	Leaf            *x509.Certificate
	LeafKey         *ecdsa.PrivateKey
}

type pkiConfig struct {
	org       string
	notBefore time.Time
	notAfter  time.Time
	ocspURL   string
	keyUsage  x509.KeyUsage
}

// PKIOption customizes the leaf certificate.
type PKIOption func(*pkiConfig)

// WithLeafValidity sets the leaf validity window.
func WithLeafValidity(notBefore, notAfter time.Time) PKIOption {
	return func(c *pkiConfig) {
		c.notBefore, c.notAfter = notBefore, notAfter
	}
}

// WithOCSPServer sets the leaf's OCSP responder URL.
func WithOCSPServer(url string) PKIOption {
	return func(c *pkiConfig) { c.ocspURL = url }
}

// WithOrganization sets the leaf subject organization.
func WithOrganization(org string) PKIOption {
	return func(c *pkiConfig) { c.org = org }
}

// WithLeafKeyUsage overrides the leaf key usage.
func WithLeafKeyUsage(ku x509.KeyUsage) PKIOption {
	return func(c *pkiConfig) { c.keyUsage = ku }
}

// NewPKI generates a fresh ECDSA P-256 hierarchy.
func NewPKI(t testing.TB, opts ...PKIOption) *PKI {
	t.Helper()
	now := time.Now()
	cfg := pkiConfig{
		org:       "Fixture Signing Co",
		notBefore: now.Add(-time.Hour),
		notAfter:  now.Add(24 * time.Hour),
		keyUsage:  x509.KeyUsageDigitalSignature,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &PKI{}
	p.RootKey = newKey(t)
	p.Root = issue(t, &x509.Certificate{
		Subject:               pkix.Name{CommonName: "Fixture Root CA", Organization: []string{"Fixture Trust"}},
		NotBefore:             now.Add(-24 * time.Hour),
		NotAfter:              now.Add(10 * 365 * 24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}, nil, p.RootKey, nil)

	p.IntermediateKey = newKey(t)
	p.Intermediate = issue(t, &x509.Certificate{
		Subject:               pkix.Name{CommonName: "Fixture Intermediate CA", Organization: []string{"Fixture Trust"}},
		NotBefore:             now.Add(-24 * time.Hour),
		NotAfter:              now.Add(5 * 365 * 24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		MaxPathLenZero:        true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}, p.Root, p.IntermediateKey, p.RootKey)

	p.LeafKey = newKey(t)
	leaf := &x509.Certificate{
		Subject:     pkix.Name{CommonName: "Fixture Signer", Organization: []string{cfg.org}},
		NotBefore:   cfg.notBefore,
		NotAfter:    cfg.notAfter,
		KeyUsage:    cfg.keyUsage,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageEmailProtection},
	}
	if cfg.ocspURL != "" {
		leaf.OCSPServer = []string{cfg.ocspURL}
	}
	p.Leaf = issue(t, leaf, p.Intermediate, p.LeafKey, p.IntermediateKey)
	return p
}

// RootPEM returns the root certificate in PEM form.
func (p *PKI) RootPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: p.Root.Raw})
}

// ChainDER returns the x5chain: leaf then intermediate.
func (p *PKI) ChainDER() [][]byte {
	return [][]byte{p.Leaf.Raw, p.Intermediate.Raw}
}

var serial atomic.Int64

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return k
}

// issue signs tmpl with parentKey; a nil parent self-signs.
func issue(t testing.TB, tmpl, parent *x509.Certificate, key, parentKey *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()
	tmpl.SerialNumber = big.NewInt(time.Now().UnixNano() + serial.Add(1))
	if parent == nil {
		parent, parentKey = tmpl, key
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, parentKey)
	if err != nil {
		t.Fatalf("creating certificate %q: %v", tmpl.Subject.CommonName, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsing certificate: %v", err)
	}
	return cert
}
