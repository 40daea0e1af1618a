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
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/sigstore/content-credentials/pkg/jumbf"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// GeneratorInfo names the software that recorded a claim.
type GeneratorInfo struct {
	Name    string `cbor:"name" json:"name"`
	Version string `cbor:"version,omitempty" json:"version,omitempty"`
}

type claimMap struct {
	Generator          string          `cbor:"claim_generator,omitempty"`
	GeneratorInfo      []GeneratorInfo `cbor:"claim_generator_info,omitempty"`
	Signature          string          `cbor:"signature"`
	Assertions         []HashedURI     `cbor:"assertions,omitempty"`
	CreatedAssertions  []HashedURI     `cbor:"created_assertions,omitempty"`
	GatheredAssertions []HashedURI     `cbor:"gathered_assertions,omitempty"`
	Format             string          `cbor:"dc:format,omitempty"`
	Title              string          `cbor:"dc:title,omitempty"`
	InstanceID         string          `cbor:"instanceID"`
	Alg                string          `cbor:"alg,omitempty"`
}

// IngredientRef is an ingredient assertion of a claim, in claim order.
type IngredientRef struct {
	// Index is the position among the claim's ingredients.
	Index int
	// Label is the ingredient assertion label.
	Label string
	// Ingredient is the decoded assertion.
	Ingredient *Ingredient
}

// Claim is a decoded, immutable claim. Accessors return copies.
type Claim struct {
	id            string
	instanceID    string
	title         string
	format        string
	generator     string
	generatorInfo []GeneratorInfo
	alg           string
	raw           []byte

	refs       []HashedURI
	assertions []Assertion
	byLabel    map[string]Assertion
	missing    []HashedURI
	signature  *Signature
}

// ID returns the manifest label, unique within a store.
func (c *Claim) ID() string { return c.id }

// InstanceID returns the claim's xmp instance id.
func (c *Claim) InstanceID() string { return c.instanceID }

// Title returns dc:title.
func (c *Claim) Title() string { return c.title }

// Format returns dc:format.
func (c *Claim) Format() string { return c.format }

// Generator returns the claim_generator string.
func (c *Claim) Generator() string { return c.generator }

// GeneratorInfo returns claim_generator_info entries.
func (c *Claim) GeneratorInfo() []GeneratorInfo {
	return append([]GeneratorInfo(nil), c.generatorInfo...)
}

// Alg returns the claim's default hash algorithm.
func (c *Claim) Alg() string { return c.alg }

// Bytes returns the canonical claim bytes covered by the signature.
func (c *Claim) Bytes() []byte { return append([]byte(nil), c.raw...) }

// Signature returns the claim signature.
func (c *Claim) Signature() *Signature { return c.signature }

// SignedAt returns the signing time, when the signature carries one.
func (c *Claim) SignedAt() (time.Time, bool) { return c.signature.SignedAt() }

// AssertionRefs returns the hashed URIs listed by the claim, in order.
func (c *Claim) AssertionRefs() []HashedURI {
	return append([]HashedURI(nil), c.refs...)
}

// Assertions returns the resolved assertions in claim order.
func (c *Claim) Assertions() []Assertion {
	return append([]Assertion(nil), c.assertions...)
}

// MissingAssertions returns references that did not resolve to an
// assertion in the manifest.
func (c *Claim) MissingAssertions() []HashedURI {
	return append([]HashedURI(nil), c.missing...)
}

// Assertion returns the assertion with the exact label.
func (c *Claim) Assertion(label string) (Assertion, bool) {
	a, ok := c.byLabel[label]
	return a, ok
}

// FindAssertions returns assertions whose label, with the instance suffix
// stripped, equals label. Passing a full "__N" label matches exactly.
func (c *Claim) FindAssertions(label string) []Assertion {
	var out []Assertion
	for _, a := range c.assertions {
		if a.Label == label || a.BaseLabel() == label {
			out = append(out, a)
		}
	}
	return out
}

// ResolveURI returns the assertion a hashed URI in this claim points at.
func (c *Claim) ResolveURI(uri string) (Assertion, bool) {
	u, err := ParseURI(uri)
	if err != nil || !u.InManifest(c.id) {
		return Assertion{}, false
	}
	label, ok := u.AssertionLabel()
	if !ok {
		return Assertion{}, false
	}
	return c.Assertion(label)
}

// Ingredients returns the claim's ingredient assertions in order.
func (c *Claim) Ingredients() []IngredientRef {
	var out []IngredientRef
	for _, a := range c.assertions {
		if ing, ok := a.Data.(*Ingredient); ok {
			out = append(out, IngredientRef{Index: len(out), Label: a.Label, Ingredient: ing})
		}
	}
	return out
}

// DataHashes returns the hard binding assertions.
func (c *Claim) DataHashes() []*DataHash {
	var out []*DataHash
	for _, a := range c.assertions {
		if dh, ok := a.Data.(*DataHash); ok {
			out = append(out, dh)
		}
	}
	return out
}

// ClaimThumbnail returns the claim thumbnail assertion, if present.
func (c *Claim) ClaimThumbnail() (Assertion, bool) {
	for _, a := range c.assertions {
		if th, ok := a.Data.(*Thumbnail); ok && th.Kind == ClaimThumbnail {
			return a, true
		}
	}
	return Assertion{}, false
}

// decodeClaim builds a claim from its manifest superbox. It is
// all-or-nothing: any error leaves no claim behind.
func decodeClaim(label string, box *jumbf.Box) (*Claim, error) {
	claimBox, ok := box.Child(LabelClaim)
	if !ok {
		return nil, errors.New("missing claim box")
	}
	claimContent, ok := claimBox.Content(jumbf.TypeCBOR)
	if !ok {
		return nil, errors.New("claim box has no CBOR content")
	}
	sigBox, ok := box.Child(LabelSignature)
	if !ok {
		return nil, errors.New("missing signature box")
	}
	sigContent, ok := sigBox.Content(jumbf.TypeCBOR)
	if !ok {
		return nil, errors.New("signature box has no CBOR content")
	}

	var present map[string]cbor.RawMessage
	if err := decMode.Unmarshal(claimContent.Payload, &present); err != nil {
		return nil, fmt.Errorf("claim CBOR: %w", err)
	}
	for _, field := range []string{"signature", "instanceID"} {
		if _, ok := present[field]; !ok {
			return nil, fmt.Errorf("claim is missing required field %q", field)
		}
	}
	_, hasGen := present["claim_generator"]
	_, hasGenInfo := present["claim_generator_info"]
	if !hasGen && !hasGenInfo {
		return nil, errors.New("claim is missing claim_generator")
	}
	_, hasAssertions := present["assertions"]
	_, hasCreated := present["created_assertions"]
	if !hasAssertions && !hasCreated {
		return nil, errors.New("claim is missing assertions")
	}

	var cm claimMap
	if err := decMode.Unmarshal(claimContent.Payload, &cm); err != nil {
		return nil, fmt.Errorf("claim CBOR: %w", err)
	}
	if err := checkSignatureRef(cm.Signature, label); err != nil {
		return nil, err
	}

	sig, err := parseSignature(sigContent.Payload)
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}

	c := &Claim{
		id:            label,
		instanceID:    cm.InstanceID,
		title:         cm.Title,
		format:        cm.Format,
		generator:     cm.Generator,
		generatorInfo: cm.GeneratorInfo,
		alg:           cm.Alg,
		raw:           append([]byte(nil), claimContent.Payload...),
		byLabel:       make(map[string]Assertion),
		signature:     sig,
	}
	c.refs = cm.Assertions
	if len(c.refs) == 0 {
		c.refs = append(append([]HashedURI(nil), cm.CreatedAssertions...), cm.GatheredAssertions...)
	}

	store, err := assertionStore(box)
	if err != nil {
		return nil, err
	}
	for _, ref := range c.refs {
		u, err := ParseURI(ref.URL)
		if err != nil {
			return nil, fmt.Errorf("assertion reference: %w", err)
		}
		al, ok := u.AssertionLabel()
		if !ok || !u.InManifest(label) {
			return nil, fmt.Errorf("assertion reference %q does not point into this manifest", ref.URL)
		}
		abox, ok := store[al]
		if !ok {
			c.missing = append(c.missing, ref)
			continue
		}
		if _, dup := c.byLabel[al]; dup {
			return nil, fmt.Errorf("assertion %q referenced twice", al)
		}
		a, err := decodeAssertion(abox)
		if err != nil {
			return nil, err
		}
		c.assertions = append(c.assertions, a)
		c.byLabel[al] = a
	}
	return c, nil
}

func checkSignatureRef(ref, label string) error {
	u, err := ParseURI(ref)
	if err != nil {
		return fmt.Errorf("signature reference: %w", err)
	}
	if !u.InManifest(label) || len(u.Path) != 1 || u.Path[0] != LabelSignature {
		return fmt.Errorf("signature reference %q does not point at this manifest's signature", ref)
	}
	return nil
}

func assertionStore(box *jumbf.Box) (map[string]*jumbf.Box, error) {
	out := make(map[string]*jumbf.Box)
	as, ok := box.Child(LabelAssertions)
	if !ok {
		return out, nil
	}
	for _, child := range as.Children {
		if !child.IsSuperBox() {
			continue
		}
		l := child.Label()
		if _, dup := out[l]; dup {
			return nil, fmt.Errorf("duplicate assertion label %q", l)
		}
		out[l] = child
	}
	return out, nil
}

// decodeError wraps a claim decode failure.
func decodeError(label string, err error) error {
	var ve *verify.VerificationError
	if errors.As(err, &ve) {
		return err
	}
	return verify.Decodef(label, err, "claim decode failed")
}
