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

package fixture

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/veraison/go-cose"

	"github.com/sigstore/content-credentials/pkg/jumbf"
)

// Manifest describes one manifest to build. Zero values give a minimal
// signed manifest with no actions and no thumbnail.
type Manifest struct {
	// Label defaults to a random urn:uuid label.
	Label      string
	Title      string
	Format     string
	InstanceID string
	// Generator defaults to "Fixture_App/1.0 c2pa-go/0.1".
	Generator string
	// GeneratorInfo is emitted as claim_generator_info when Name is set.
	GeneratorInfo GeneratorInfo

	// Actions emits a c2pa.actions assertion when non-nil. An empty,
	// non-nil slice emits an empty action list.
	Actions []string
	// Authors emits a CreativeWork assertion when non-empty.
	Authors        []Author
	ClaimThumbnail bool
	Beta           bool
	Ingredients    []Ingredient
	// Extra assertions are CBOR encoded under their labels.
	Extra map[string]interface{}

	// Omit lists assertion labels that the claim references but the
	// assertion store leaves out.
	Omit []string
	// Mismatch lists assertion labels whose reference hash is corrupted.
	Mismatch []string
	// TamperClaim edits the claim after signing.
	TamperClaim bool
	// SignedAt is recorded in the CWT iat header when set.
	SignedAt time.Time
	// Signer overrides the builder's PKI.
	Signer *PKI
}

// GeneratorInfo is a claim_generator_info entry.
type GeneratorInfo struct {
	Name    string
	Version string
}

// Author is a schema.org author.
type Author struct {
	Type string
	Name string
	ID   string
}

// Ingredient describes an ingredient assertion.
type Ingredient struct {
	Title        string
	InstanceID   string
	Relationship string
	// Manifest labels the ingredient's manifest in the same store. When
	// the manifest is built later in the store the reference hash is zero.
	Manifest string
	// Thumbnail adds an ingredient thumbnail assertion.
	Thumbnail bool
	// MismatchThumbnail corrupts the thumbnail reference hash.
	MismatchThumbnail bool
	// MismatchManifest corrupts the manifest reference hash.
	MismatchManifest bool
}

// DataHash is the hard binding written into the active manifest.
type DataHash struct {
	Start, Length int64
	Hash          []byte
}

// Builder signs manifest stores with a PKI.
type Builder struct {
	t   testing.TB
	pki *PKI
}

// NewBuilder returns a builder signing with pki.
func NewBuilder(t testing.TB, pki *PKI) *Builder {
	return &Builder{t: t, pki: pki}
}

// PKI returns the builder's default signer.
func (b *Builder) PKI() *PKI { return b.pki }

// NewLabel returns a fresh manifest label.
func NewLabel() string {
	return "urn:uuid:" + uuid.NewString()
}

// Store builds a store from manifests; the last one is active. No hard
// binding is written.
func (b *Builder) Store(manifests ...Manifest) []byte {
	return b.store(withLabels(manifests), nil)
}

func withLabels(manifests []Manifest) []Manifest {
	out := append([]Manifest(nil), manifests...)
	for i := range out {
		if out[i].Label == "" {
			out[i].Label = NewLabel()
		}
	}
	return out
}

func (b *Builder) store(manifests []Manifest, dh *DataHash) []byte {
	b.t.Helper()
	built := make(map[string][]byte)
	var boxes [][]byte
	for i, m := range manifests {
		var binding *DataHash
		if i == len(manifests)-1 {
			binding = dh
		}
		box := b.manifest(m, built, binding)
		built[m.Label] = box
		boxes = append(boxes, box)
	}
	return jumbf.EncodeSuperBox(jumbf.Labeled(jumbf.UUIDStore, "c2pa"), boxes...)
}

type assertionBox struct {
	label string
	box   []byte
}

type hashedURI struct {
	URL  string `cbor:"url"`
	Alg  string `cbor:"alg"`
	Hash []byte `cbor:"hash"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func (b *Builder) manifest(m Manifest, built map[string][]byte, dh *DataHash) []byte {
	b.t.Helper()
	var boxes []assertionBox
	add := func(label string, box []byte) {
		boxes = append(boxes, assertionBox{label: label, box: box})
	}

	for i, ing := range m.Ingredients {
		fields := map[string]interface{}{
			"dc:title":     ing.Title,
			"dc:format":    "image/jpeg",
			"instanceID":   ing.InstanceID,
			"relationship": orDefault(ing.Relationship, "componentOf"),
		}
		if ing.Manifest != "" {
			sum := make([]byte, sha256.Size)
			if raw, ok := built[ing.Manifest]; ok {
				s := sha256.Sum256(raw)
				sum = s[:]
			}
			if ing.MismatchManifest {
				sum = flip(sum)
			}
			fields["c2pa_manifest"] = hashedURI{URL: "self#jumbf=/c2pa/" + ing.Manifest, Alg: "sha256", Hash: sum}
		}
		if ing.Thumbnail {
			label := "c2pa.thumbnail.ingredient.jpeg" + suffix(i)
			box := EmbeddedFile(label, "image/jpeg", MinimalJPEG())
			add(label, box)
			sum := sha256.Sum256(box)
			h := sum[:]
			if ing.MismatchThumbnail {
				h = flip(h)
			}
			fields["thumbnail"] = hashedURI{URL: assertionURI(label), Alg: "sha256", Hash: h}
		}
		add("c2pa.ingredient"+suffix(i), CBORAssertion(b.t, "c2pa.ingredient"+suffix(i), fields))
	}

	if m.Actions != nil {
		actions := make([]interface{}, 0, len(m.Actions))
		for _, a := range m.Actions {
			actions = append(actions, map[string]interface{}{"action": a, "softwareAgent": "Fixture App 1.0"})
		}
		add("c2pa.actions", CBORAssertion(b.t, "c2pa.actions", map[string]interface{}{"actions": actions}))
	}
	if len(m.Authors) > 0 {
		authors := make([]map[string]string, 0, len(m.Authors))
		for _, a := range m.Authors {
			entry := map[string]string{"@type": orDefault(a.Type, "Person"), "name": a.Name}
			if a.ID != "" {
				entry["@id"] = a.ID
			}
			authors = append(authors, entry)
		}
		add("stds.schema-org.CreativeWork", JSONAssertion(b.t, "stds.schema-org.CreativeWork", map[string]interface{}{
			"@context": "https://schema.org",
			"@type":    "CreativeWork",
			"author":   authors,
		}))
	}
	if m.Beta {
		add("adobe.beta", CBORAssertion(b.t, "adobe.beta", map[string]interface{}{"version": "0.1.0"}))
	}
	if m.ClaimThumbnail {
		add("c2pa.thumbnail.claim.jpeg", EmbeddedFile("c2pa.thumbnail.claim.jpeg", "image/jpeg", MinimalJPEG()))
	}
	for label, v := range m.Extra {
		add(label, CBORAssertion(b.t, label, v))
	}
	if dh != nil {
		hash := dh.Hash
		if hash == nil {
			hash = make([]byte, sha256.Size)
		}
		add("c2pa.hash.data", CBORAssertion(b.t, "c2pa.hash.data", map[string]interface{}{
			"exclusions": []interface{}{map[string]interface{}{"start": dh.Start, "length": dh.Length}},
			"name":       "jumbf manifest",
			"alg":        "sha256",
			"hash":       hash,
			"pad":        []byte{},
		}))
	}

	refs := make([]hashedURI, 0, len(boxes))
	var stored [][]byte
	for _, a := range boxes {
		sum := sha256.Sum256(a.box)
		h := sum[:]
		if contains(m.Mismatch, a.label) {
			h = flip(h)
		}
		refs = append(refs, hashedURI{URL: assertionURI(a.label), Alg: "sha256", Hash: h})
		if !contains(m.Omit, a.label) {
			stored = append(stored, a.box)
		}
	}

	claim := map[string]interface{}{
		"claim_generator": orDefault(m.Generator, "Fixture_App/1.0 c2pa-go/0.1"),
		"signature":       "self#jumbf=c2pa.signature",
		"assertions":      refs,
		"dc:format":       orDefault(m.Format, "image/jpeg"),
		"dc:title":        m.Title,
		"instanceID":      orDefault(m.InstanceID, "xmp:iid:"+m.Label),
		"alg":             "sha256",
	}
	if m.GeneratorInfo.Name != "" {
		claim["claim_generator_info"] = []interface{}{map[string]interface{}{
			"name":    m.GeneratorInfo.Name,
			"version": m.GeneratorInfo.Version,
		}}
	}
	claimBytes := mustEncode(b.t, claim)

	signer := m.Signer
	if signer == nil {
		signer = b.pki
	}
	sig := Sign(b.t, signer, claimBytes, m.SignedAt)
	if m.TamperClaim {
		claim["dc:title"] = m.Title + " (edited)"
		claimBytes = mustEncode(b.t, claim)
	}

	return jumbf.EncodeSuperBox(jumbf.Labeled(jumbf.UUIDManifest, m.Label),
		jumbf.EncodeSuperBox(jumbf.Labeled(jumbf.UUIDAssertions, "c2pa.assertions"), stored...),
		jumbf.EncodeSuperBox(jumbf.Labeled(jumbf.UUIDClaim, "c2pa.claim"), jumbf.EncodeBox(jumbf.TypeCBOR, claimBytes)),
		jumbf.EncodeSuperBox(jumbf.Labeled(jumbf.UUIDSignature, "c2pa.signature"), jumbf.EncodeBox(jumbf.TypeCBOR, sig)),
	)
}

// Sign produces a tagged COSE_Sign1 over payload with a detached payload,
// the pki's x5chain and an optional CWT iat claim.
func Sign(t testing.TB, pki *PKI, payload []byte, signedAt time.Time) []byte {
	t.Helper()
	signer, err := cose.NewSigner(cose.AlgorithmES256, pki.LeafKey)
	if err != nil {
		t.Fatalf("creating COSE signer: %v", err)
	}
	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	chain := make([]interface{}, 0, 2)
	for _, der := range pki.ChainDER() {
		chain = append(chain, der)
	}
	msg.Headers.Protected[int64(33)] = chain
	if !signedAt.IsZero() {
		msg.Headers.Protected[int64(15)] = map[interface{}]interface{}{int64(6): signedAt.Unix()}
	}
	msg.Payload = payload
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		t.Fatalf("signing claim: %v", err)
	}
	msg.Payload = nil
	out, err := msg.MarshalCBOR()
	if err != nil {
		t.Fatalf("encoding COSE_Sign1: %v", err)
	}
	return out
}

// CBORAssertion encodes v as a CBOR assertion superbox.
func CBORAssertion(t testing.TB, label string, v interface{}) []byte {
	return jumbf.EncodeSuperBox(jumbf.Labeled(jumbf.UUIDCBOR, label), jumbf.EncodeBox(jumbf.TypeCBOR, mustEncode(t, v)))
}

// JSONAssertion encodes v as a JSON assertion superbox.
func JSONAssertion(t testing.TB, label string, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("encoding %s: %v", label, err)
	}
	return jumbf.EncodeSuperBox(jumbf.Labeled(jumbf.UUIDJSON, label), jumbf.EncodeBox(jumbf.TypeJSON, data))
}

// EmbeddedFile builds an embedded-file assertion superbox.
func EmbeddedFile(label, mediaType string, data []byte) []byte {
	desc := append([]byte{0}, mediaType...)
	desc = append(desc, 0)
	return jumbf.EncodeSuperBox(jumbf.Labeled(jumbf.UUIDEmbeddedFile, label),
		jumbf.EncodeBox(jumbf.TypeFileDesc, desc),
		jumbf.EncodeBox(jumbf.TypeBinaryData, data),
	)
}

func mustEncode(t testing.TB, v interface{}) []byte {
	t.Helper()
	data, err := encMode.Marshal(v)
	if err != nil {
		t.Fatalf("encoding CBOR: %v", err)
	}
	return data
}

func assertionURI(label string) string {
	return "self#jumbf=c2pa.assertions/" + label
}

func suffix(i int) string {
	if i == 0 {
		return ""
	}
	return fmt.Sprintf("__%d", i)
}

func flip(b []byte) []byte {
	out := append([]byte(nil), b...)
	out[0] ^= 0xFF
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
