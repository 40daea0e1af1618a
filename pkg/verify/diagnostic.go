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

package verify

import "fmt"

// Validation status codes reported in diagnostics. Codes that exist in the
// C2PA specification use its spelling.
const (
	CodeClaimSignatureValidated = "claimSignature.validated"
	CodeClaimSignatureMismatch  = "claimSignature.mismatch"
	CodeClaimMissing            = "claim.missing"
	CodeClaimMalformed          = "claim.malformed"
	CodeHardBindingsMissing     = "claim.hardBindings.missing"
	CodeClaimThumbnailMissing   = "claim.thumbnail.missing"

	CodeSigningCredentialTrusted   = "signingCredential.trusted"
	CodeSigningCredentialUntrusted = "signingCredential.untrusted"
	CodeSigningCredentialInvalid   = "signingCredential.invalid"
	CodeSigningCredentialExpired   = "signingCredential.expired"
	CodeSigningCredentialRevoked   = "signingCredential.ocsp.revoked"
	CodeSigningCredentialOCSPUnkn  = "signingCredential.ocsp.unknown"

	CodeAssertionHashedURIMatch    = "assertion.hashedURI.match"
	CodeAssertionHashedURIMismatch = "assertion.hashedURI.mismatch"
	CodeAssertionMissing           = "assertion.missing"
	CodeAssertionDataHashMatch     = "assertion.dataHash.match"
	CodeAssertionDataHashMismatch  = "assertion.dataHash.mismatch"
	CodeAssertionDataHashMalformed = "assertion.dataHash.malformed"
	CodeAlgorithmUnsupported       = "algorithm.unsupported"

	CodeIngredientManifestMissing   = "ingredient.manifest.missing"
	CodeIngredientManifestMismatch  = "ingredient.manifest.mismatch"
	CodeIngredientThumbnailMissing  = "ingredient.thumbnail.missing"
	CodeIngredientThumbnailMismatch = "ingredient.thumbnail.mismatch"
	CodeIngredientMalformed         = "ingredient.malformed"
)

// Diagnostic is one finding recorded while verifying a claim.
type Diagnostic struct {
	// Code is a validation status code.
	Code string `json:"code"`
	// Subject names the claim, assertion or URI the finding is about.
	Subject string `json:"subject,omitempty"`
	// Message is a human-readable explanation.
	Message string `json:"message,omitempty"`
	// Verdict is the verdict this finding contributes. Informational
	// findings carry Trusted.
	Verdict Verdict `json:"verdict"`
}

func (d Diagnostic) String() string {
	if d.Subject == "" {
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", d.Code, d.Subject, d.Message)
}

// Failure reports whether the diagnostic degrades the claim.
func (d Diagnostic) Failure() bool {
	return d.Verdict > Trusted
}

// WorstOf reduces a diagnostic list to its worst verdict, or Trusted when
// the list carries no failure.
func WorstOf(diags []Diagnostic) Verdict {
	worst := Trusted
	for _, d := range diags {
		if d.Verdict > worst {
			worst = d.Verdict
		}
	}
	return worst
}
