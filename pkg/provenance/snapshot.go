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
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"

	"github.com/sigstore/content-credentials/pkg/manifest"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// ClaimSnapshot is the serializable form of a verified claim, the shape a
// presentation layer consumes.
type ClaimSnapshot struct {
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	Format     string `json:"format,omitempty"`
	InstanceID string `json:"instanceId,omitempty"`
	// Recorder is the recorder rendered as name and version.
	Recorder       string          `json:"recorder"`
	Generator      Recorder        `json:"generator"`
	IsBeta         bool            `json:"isBeta"`
	Producer       string          `json:"producer,omitempty"`
	SocialAccounts []SocialAccount `json:"socialAccounts"`
	// Assertions maps each assertion label to its generic payload.
	Assertions  map[string]interface{} `json:"assertions"`
	Signature   SignatureInfo          `json:"signature"`
	Verdict     verify.Verdict         `json:"verdict"`
	Diagnostics []verify.Diagnostic    `json:"diagnostics,omitempty"`
	Ingredients []IngredientSnapshot   `json:"ingredients"`
}

// IngredientSnapshot is the serializable form of an ingredient.
type IngredientSnapshot struct {
	ID           string         `json:"id"`
	Title        string         `json:"title,omitempty"`
	Relationship string         `json:"relationship,omitempty"`
	Verdict      verify.Verdict `json:"verdict"`
	Resolved     bool           `json:"resolved"`
}

// Snapshot serializes the claim.
func (v *ClaimView) Snapshot() *ClaimSnapshot {
	rec := v.Recorder()
	s := &ClaimSnapshot{
		ID:             v.ID(),
		Title:          v.Title(),
		Format:         v.Format(),
		InstanceID:     v.InstanceID(),
		Recorder:       rec.Format(RecorderNameAndVersion),
		Generator:      rec,
		IsBeta:         v.IsBeta(),
		SocialAccounts: v.SocialAccounts(),
		Assertions:     make(map[string]interface{}),
		Signature:      v.Signature(),
		Verdict:        v.Verdict(),
		Diagnostics:    v.Diagnostics(),
		Ingredients:    []IngredientSnapshot{},
	}
	s.Producer, _ = v.Producer()
	for _, a := range v.Assertions() {
		s.Assertions[a.Label] = a.Value()
	}
	for _, ing := range v.Ingredients() {
		_, resolved := ing.Claim()
		s.Ingredients = append(s.Ingredients, IngredientSnapshot{
			ID:           ing.ID,
			Title:        ing.Title,
			Relationship: ing.Relationship,
			Verdict:      ing.Verdict,
			Resolved:     resolved,
		})
	}
	return s
}

// MarshalCanonical encodes the snapshot as RFC 8785 canonical JSON, so
// equal snapshots always encode to equal bytes.
func (s *ClaimSnapshot) MarshalCanonical() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize snapshot: %w", err)
	}
	return out, nil
}

// UnmarshalSnapshot decodes a snapshot produced by json.Marshal or
// MarshalCanonical.
func UnmarshalSnapshot(data []byte) (*ClaimSnapshot, error) {
	var s ClaimSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, verify.Decodef("snapshot", err, "invalid claim snapshot")
	}
	if s.ID == "" {
		return nil, verify.Decodef("snapshot", nil, "claim snapshot has no id")
	}
	return &s, nil
}

// FormatRecorder renders the recorded generator.
func (s *ClaimSnapshot) FormatRecorder(f RecorderFormat) string {
	return s.Generator.Format(f)
}

// ActionCount reports the number of actions. ok is false when the claim
// had no actions assertion.
func (s *ClaimSnapshot) ActionCount() (n int, ok bool) {
	for _, base := range []string{manifest.LabelActions, manifest.LabelActionsV2} {
		for _, label := range s.instancesOf(base) {
			m, isMap := s.Assertions[label].(map[string]interface{})
			if !isMap {
				continue
			}
			list, _ := m["actions"].([]interface{})
			return len(list), true
		}
	}
	return 0, false
}

// instancesOf returns the assertion labels whose base label is base,
// ordered by instance number.
func (s *ClaimSnapshot) instancesOf(base string) []string {
	var labels []string
	for label := range s.Assertions {
		if b, _ := manifest.SplitLabel(label); b == base {
			labels = append(labels, label)
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		_, a := manifest.SplitLabel(labels[i])
		_, b := manifest.SplitLabel(labels[j])
		if a != b {
			return a < b
		}
		return labels[i] < labels[j]
	})
	return labels
}
