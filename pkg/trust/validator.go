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

// Package trust validates claim signatures and their certificate chains
// against a configured set of trust anchors.
package trust

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/sigstore/content-credentials/pkg/logging"
	"github.com/sigstore/content-credentials/pkg/manifest"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// CodeSigningCredentialNotRevoked reports a good OCSP answer.
const CodeSigningCredentialNotRevoked = "signingCredential.ocsp.notRevoked"

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	// Anchors is the trust set. An empty set trusts nothing.
	Anchors *Anchors
	// Revocation is consulted after a chain verifies. Nil skips the check.
	Revocation RevocationChecker
	Logger     logging.Logger
}

// Validator checks signatures and chains. It holds no mutable state and
// is safe for concurrent use.
type Validator struct {
	anchors    *Anchors
	revocation RevocationChecker
	logger     logging.Logger
}

// NewValidator creates a Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{
		anchors:    cfg.Anchors,
		revocation: cfg.Revocation,
		logger:     logging.EnsureLogger(cfg.Logger),
	}
}

// Result is the trust verdict of one signature.
type Result struct {
	Verdict     verify.Verdict
	Diagnostics []verify.Diagnostic
	// Chain is the verified chain, leaf first, ending at an anchor. It is
	// empty when the chain did not verify.
	Chain []*x509.Certificate
}

// Validate checks sig over claimBytes, then the x5chain at time at, then
// revocation. The returned error is non-nil only when ctx is done during
// the revocation check.
func (v *Validator) Validate(ctx context.Context, sig *manifest.Signature, claimBytes []byte, at time.Time) (Result, error) {
	var res Result
	add := func(code string, verdict verify.Verdict, format string, args ...interface{}) {
		res.Diagnostics = append(res.Diagnostics, verify.Diagnostic{
			Code:    code,
			Subject: sig.Issuer(),
			Message: fmt.Sprintf(format, args...),
			Verdict: verdict,
		})
	}

	leaf := sig.Leaf()
	verifier, err := NewCOSEVerifier(sig.Algorithm(), leaf.PublicKey)
	switch {
	case err != nil:
		add(verify.CodeAlgorithmUnsupported, verify.InvalidSignature, "%v", err)
	case sig.Verify(claimBytes, verifier) != nil:
		add(verify.CodeClaimSignatureMismatch, verify.InvalidSignature, "claim signature does not verify with the signing certificate")
	default:
		add(verify.CodeClaimSignatureValidated, verify.Trusted, "claim signature valid")
	}

	chain, code, err := v.verifyChain(sig.Chain(), at)
	if err != nil {
		add(code, verify.UntrustedIssuer, "%v", err)
		res.Verdict = verify.WorstOf(res.Diagnostics)
		return res, nil
	}
	res.Chain = chain
	add(verify.CodeSigningCredentialTrusted, verify.Trusted, "chain verified to %s", chain[len(chain)-1].Subject.CommonName)

	if v.revocation != nil && len(chain) > 1 {
		status, err := v.revocation.Check(ctx, leaf, chain[1])
		if err != nil {
			return Result{}, err
		}
		switch status {
		case RevocationRevoked:
			add(verify.CodeSigningCredentialRevoked, verify.Revoked, "signing certificate is revoked")
		case RevocationUnknown:
			add(verify.CodeSigningCredentialOCSPUnkn, verify.RevocationUnknown, "revocation status could not be determined")
		default:
			add(CodeSigningCredentialNotRevoked, verify.Trusted, "signing certificate is not revoked")
		}
	}
	res.Verdict = verify.WorstOf(res.Diagnostics)
	return res, nil
}

func (v *Validator) verifyChain(certs []*x509.Certificate, at time.Time) ([]*x509.Certificate, string, error) {
	if v.anchors.Empty() {
		return nil, verify.CodeSigningCredentialUntrusted, errors.New("no trust anchors configured")
	}
	roots, intermediates := v.anchors.pools()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}

	leaf := certs[0]
	chains, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		v.logger.Debug("chain for %q rejected: %v", leaf.Subject.CommonName, err)
		return nil, chainErrorCode(err), fmt.Errorf("certificate chain verification failed: %w", err)
	}
	if len(chains) == 0 {
		return nil, verify.CodeSigningCredentialUntrusted, errors.New("no valid certificate chains found")
	}
	if err := validateSigningUsage(leaf); err != nil {
		return nil, verify.CodeSigningCredentialInvalid, err
	}
	return chains[0], "", nil
}

func chainErrorCode(err error) string {
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) && invalid.Reason == x509.Expired {
		return verify.CodeSigningCredentialExpired
	}
	var unknown x509.UnknownAuthorityError
	if errors.As(err, &unknown) {
		return verify.CodeSigningCredentialUntrusted
	}
	return verify.CodeSigningCredentialInvalid
}

// validateSigningUsage checks if the certificate can be used for signing.
func validateSigningUsage(cert *x509.Certificate) error {
	if cert.KeyUsage&x509.KeyUsageDigitalSignature != 0 {
		return nil
	}
	for _, usage := range cert.ExtKeyUsage {
		if usage == x509.ExtKeyUsageCodeSigning {
			return nil
		}
	}
	return errors.New("signing certificate cannot be used for signing (missing DigitalSignature KeyUsage or CodeSigning ExtKeyUsage)")
}
