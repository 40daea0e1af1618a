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
	"fmt"
	"strings"
	"time"

	intoto "github.com/in-toto/attestation/go/v1"
	"google.golang.org/protobuf/encoding/protojson"
	structpb "google.golang.org/protobuf/types/known/structpb"

	"github.com/sigstore/content-credentials/pkg/hashing"
	"github.com/sigstore/content-credentials/pkg/verify"
)

const (
	// StatementType is the in-toto Statement v1 type.
	StatementType = "https://in-toto.io/Statement/v1"
	// VSAPredicateType is the SLSA verification summary predicate type.
	VSAPredicateType = "https://slsa.dev/verification_summary/v1"
	// DefaultVerifierID identifies this engine in verification summaries.
	DefaultVerifierID = "https://github.com/sigstore/content-credentials"
	// PolicyURI names the verification policy the summary reports on.
	PolicyURI = "https://c2pa.org/specifications/specifications/2.1/specs/C2PA_Specification.html#_validation"
)

// SummaryOptions configures VerificationSummary.
type SummaryOptions struct {
	// VerifierID defaults to DefaultVerifierID.
	VerifierID string
	// ResourceURI names the asset; defaults to its name.
	ResourceURI string
}

// VerificationSummary describes the verification as an in-toto statement
// with a SLSA verification summary predicate. The subject is the sha256
// digest of the asset bytes. The result is PASSED when the overall verdict
// is trusted, including a trusted verdict with unknown revocation status.
func (f *Facade) VerificationSummary(opts SummaryOptions) (*intoto.Statement, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	digest, err := hashing.SumExcluding(hashing.DefaultAlgorithm, f.asset, f.asset.Size(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to hash asset: %w", err)
	}

	verifier := opts.VerifierID
	if verifier == "" {
		verifier = DefaultVerifierID
	}
	resource := opts.ResourceURI
	if resource == "" {
		resource = f.asset.Name()
	}

	verdict := f.verdict()
	result := "FAILED"
	if verdict.Category() == "Trusted" {
		result = "PASSED"
	}

	inputs := []interface{}{}
	if f.graph != nil {
		for _, n := range f.graph.Nodes() {
			if n.Missing() {
				continue
			}
			d, err := hashing.Sum(hashing.DefaultAlgorithm, n.Claim.Bytes())
			if err != nil {
				return nil, fmt.Errorf("failed to hash claim %s: %w", n.ID, err)
			}
			inputs = append(inputs, map[string]interface{}{
				"uri":    n.ID,
				"digest": map[string]interface{}{hashing.DefaultAlgorithm: d.Hex()},
			})
		}
	}

	predicate := map[string]interface{}{
		"verifier":           map[string]interface{}{"id": verifier},
		"timeVerified":       f.verifiedAt.UTC().Format(time.RFC3339),
		"resourceUri":        resource,
		"policy":             map[string]interface{}{"uri": PolicyURI},
		"inputAttestations":  inputs,
		"verificationResult": result,
		"verifiedLevels":     []interface{}{"C2PA_" + strings.ToUpper(verdict.Category())},
	}
	predicateStruct, err := structpb.NewStruct(predicate)
	if err != nil {
		return nil, fmt.Errorf("failed to build predicate struct: %w", err)
	}

	return &intoto.Statement{
		Type: StatementType,
		Subject: []*intoto.ResourceDescriptor{{
			Name:   resource,
			Digest: map[string]string{hashing.DefaultAlgorithm: digest.Hex()},
		}},
		PredicateType: VSAPredicateType,
		Predicate:     predicateStruct,
	}, nil
}

// MarshalSummary encodes a verification summary as JSON.
func MarshalSummary(st *intoto.Statement) ([]byte, error) {
	opts := protojson.MarshalOptions{
		UseProtoNames:   true,
		EmitUnpopulated: false,
	}
	return opts.Marshal(st)
}

// UnmarshalSummary decodes a verification summary.
func UnmarshalSummary(data []byte) (*intoto.Statement, error) {
	st := &intoto.Statement{}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, verify.Decodef("summary", err, "invalid verification summary")
	}
	return st, nil
}
