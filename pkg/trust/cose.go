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
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"math/big"

	sigstoresig "github.com/sigstore/sigstore/pkg/signature"
	"github.com/veraison/go-cose"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// coseVerifier adapts a sigstore signature verifier to go-cose. COSE
// carries ECDSA signatures as fixed-width r||s, which is re-encoded as
// ASN.1 before verification.
type coseVerifier struct {
	alg      cose.Algorithm
	verifier sigstoresig.Verifier
	ecdsaKey *ecdsa.PublicKey
}

var _ cose.Verifier = (*coseVerifier)(nil)

// NewCOSEVerifier creates a COSE verifier for alg backed by pub.
// Supports ES256/384/512, PS256/384/512 and EdDSA.
func NewCOSEVerifier(alg cose.Algorithm, pub crypto.PublicKey) (cose.Verifier, error) {
	switch alg {
	case cose.AlgorithmES256, cose.AlgorithmES384, cose.AlgorithmES512:
		k, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("algorithm %v requires an ECDSA key, got %T", alg, pub)
		}
		curve, hashFunc := ecdsaParams(alg)
		if k.Curve != curve {
			return nil, fmt.Errorf("algorithm %v requires curve %s, got %s", alg, curve.Params().Name, k.Curve.Params().Name)
		}
		v, err := sigstoresig.LoadECDSAVerifier(k, hashFunc)
		if err != nil {
			return nil, err
		}
		return &coseVerifier{alg: alg, verifier: v, ecdsaKey: k}, nil
	case cose.AlgorithmPS256, cose.AlgorithmPS384, cose.AlgorithmPS512:
		k, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("algorithm %v requires an RSA key, got %T", alg, pub)
		}
		v, err := sigstoresig.LoadRSAPSSVerifier(k, pssHash(alg), &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
		if err != nil {
			return nil, err
		}
		return &coseVerifier{alg: alg, verifier: v}, nil
	case cose.AlgorithmEdDSA:
		k, ok := pub.(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("algorithm %v requires an Ed25519 key, got %T", alg, pub)
		}
		v, err := sigstoresig.LoadED25519Verifier(k)
		if err != nil {
			return nil, err
		}
		return &coseVerifier{alg: alg, verifier: v}, nil
	default:
		return nil, fmt.Errorf("unsupported COSE algorithm: %v", alg)
	}
}

func ecdsaParams(alg cose.Algorithm) (elliptic.Curve, crypto.Hash) {
	switch alg {
	case cose.AlgorithmES384:
		return elliptic.P384(), crypto.SHA384
	case cose.AlgorithmES512:
		return elliptic.P521(), crypto.SHA512
	default:
		return elliptic.P256(), crypto.SHA256
	}
}

func pssHash(alg cose.Algorithm) crypto.Hash {
	switch alg {
	case cose.AlgorithmPS384:
		return crypto.SHA384
	case cose.AlgorithmPS512:
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

func (v *coseVerifier) Algorithm() cose.Algorithm {
	return v.alg
}

// Verify checks signature over content, the COSE Sig_structure.
func (v *coseVerifier) Verify(content, signature []byte) error {
	if v.ecdsaKey != nil {
		der, err := ecdsaRawToDER(signature, v.ecdsaKey)
		if err != nil {
			return err
		}
		signature = der
	}
	return v.verifier.VerifySignature(bytes.NewReader(signature), bytes.NewReader(content))
}

func ecdsaRawToDER(raw []byte, pub *ecdsa.PublicKey) ([]byte, error) {
	n := (pub.Curve.Params().BitSize + 7) / 8
	if len(raw) != 2*n {
		return nil, fmt.Errorf("ECDSA signature is %d bytes, want %d", len(raw), 2*n)
	}
	r := new(big.Int).SetBytes(raw[:n])
	s := new(big.Int).SetBytes(raw[n:])

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	return b.Bytes()
}
