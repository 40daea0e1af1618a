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

package manifest

import (
	"crypto/x509"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// COSE header labels read from claim signatures.
const (
	HeaderLabelX5Chain   int64 = 33
	HeaderLabelCWTClaims int64 = 15
	cwtClaimIssuedAt     int64 = 6
)

var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Signature is the COSE_Sign1 claim signature with its x5chain.
type Signature struct {
	alg      cose.Algorithm
	chain    []*x509.Certificate
	signedAt time.Time
	msg      cose.Sign1Message
}

func parseSignature(data []byte) (*Signature, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(data); err != nil {
		return nil, fmt.Errorf("COSE_Sign1: %w", err)
	}
	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		return nil, fmt.Errorf("protected algorithm: %w", err)
	}

	raw, ok := headerValue(msg.Headers.Protected, HeaderLabelX5Chain)
	if !ok {
		raw, ok = headerValue(msg.Headers.Unprotected, HeaderLabelX5Chain)
	}
	if !ok {
		return nil, errors.New("missing x5chain header")
	}
	chain, err := parseX5Chain(raw)
	if err != nil {
		return nil, err
	}

	sig := &Signature{alg: alg, chain: chain, msg: msg}
	if claims, ok := headerValue(msg.Headers.Protected, HeaderLabelCWTClaims); ok {
		if m, ok := claims.(map[interface{}]interface{}); ok {
			if iat, ok := headerValue(m, cwtClaimIssuedAt); ok {
				if ts, ok := toInt64(iat); ok {
					sig.signedAt = time.Unix(ts, 0).UTC()
				}
			}
		}
	}
	return sig, nil
}

// headerValue looks up an integer label regardless of how the CBOR decoder
// typed the key.
func headerValue[M ~map[interface{}]interface{}](h M, label int64) (interface{}, bool) {
	for _, k := range []interface{}{label, uint64(label), int(label)} {
		if v, ok := h[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		if n > 1<<62 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func parseX5Chain(raw interface{}) ([]*x509.Certificate, error) {
	var ders [][]byte
	switch v := raw.(type) {
	case []byte:
		ders = [][]byte{v}
	case []interface{}:
		for i, item := range v {
			b, ok := item.([]byte)
			if !ok {
				return nil, fmt.Errorf("x5chain entry %d is %T, want bytes", i, item)
			}
			ders = append(ders, b)
		}
	default:
		return nil, fmt.Errorf("x5chain is %T, want bytes or array", raw)
	}
	if len(ders) == 0 {
		return nil, errors.New("empty x5chain")
	}
	chain := make([]*x509.Certificate, 0, len(ders))
	for i, der := range ders {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("x5chain certificate %d: %w", i, err)
		}
		chain = append(chain, cert)
	}
	return chain, nil
}

// Algorithm returns the COSE algorithm from the protected header.
func (s *Signature) Algorithm() cose.Algorithm {
	return s.alg
}

// Chain returns the certificate chain, leaf first.
func (s *Signature) Chain() []*x509.Certificate {
	return append([]*x509.Certificate(nil), s.chain...)
}

// Leaf returns the signing certificate.
func (s *Signature) Leaf() *x509.Certificate {
	return s.chain[0]
}

// Issuer names the signer: the leaf subject organization, falling back to
// its common name.
func (s *Signature) Issuer() string {
	subj := s.Leaf().Subject
	if len(subj.Organization) > 0 && subj.Organization[0] != "" {
		return subj.Organization[0]
	}
	return subj.CommonName
}

// SignedAt returns the signing time from the CWT claims header.
func (s *Signature) SignedAt() (time.Time, bool) {
	return s.signedAt, !s.signedAt.IsZero()
}

// Verify checks the signature over payload, the detached claim bytes.
func (s *Signature) Verify(payload []byte, verifier cose.Verifier) error {
	msg := s.msg
	msg.Payload = payload
	return msg.Verify(nil, verifier)
}
