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
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sigstore/content-credentials/pkg/jumbf"
)

// Known assertion labels.
const (
	LabelActions         = "c2pa.actions"
	LabelActionsV2       = "c2pa.actions.v2"
	LabelDataHash        = "c2pa.hash.data"
	LabelIngredient      = "c2pa.ingredient"
	LabelIngredientV2    = "c2pa.ingredient.v2"
	LabelIngredientV3    = "c2pa.ingredient.v3"
	LabelCreativeWork    = "stds.schema-org.CreativeWork"
	LabelClaimThumbnail  = "c2pa.thumbnail.claim"
	LabelIngredientThumb = "c2pa.thumbnail.ingredient"
	LabelBeta            = "adobe.beta"
)

// Assertion is a labeled piece of evidence within a claim. It is
// content-addressed by the digest of its JUMBF superbox.
type Assertion struct {
	// Label is the full label, including any "__N" instance suffix.
	Label string
	// Data is the typed payload.
	Data AssertionData

	raw   []byte
	value interface{}
}

// BaseLabel returns the label without its instance suffix.
func (a Assertion) BaseLabel() string {
	base, _ := SplitLabel(a.Label)
	return base
}

// Bytes returns a copy of the assertion superbox, the bytes its hashed
// URI digests.
func (a Assertion) Bytes() []byte {
	return append([]byte(nil), a.raw...)
}

// Value returns the payload as generic JSON-compatible data: maps, slices
// and scalars. It is nil for payloads that have no generic form.
func (a Assertion) Value() interface{} {
	return a.value
}

// SplitLabel separates a label from its "__N" instance suffix. The
// instance is 0 when absent.
func SplitLabel(label string) (string, int) {
	i := strings.LastIndex(label, "__")
	if i < 0 {
		return label, 0
	}
	n, err := strconv.Atoi(label[i+2:])
	if err != nil || n < 0 {
		return label, 0
	}
	return label[:i], n
}

// AssertionData is the closed set of typed assertion payloads: *Actions,
// *DataHash, *Ingredient, *Thumbnail, *CreativeWork and *Opaque.
type AssertionData interface {
	assertionData()
}

// Action is one entry of an actions assertion.
type Action struct {
	Action            string                 `cbor:"action" json:"action"`
	When              string                 `cbor:"when,omitempty" json:"when,omitempty"`
	SoftwareAgent     interface{}            `cbor:"softwareAgent,omitempty" json:"softwareAgent,omitempty"`
	DigitalSourceType string                 `cbor:"digitalSourceType,omitempty" json:"digitalSourceType,omitempty"`
	Reason            string                 `cbor:"reason,omitempty" json:"reason,omitempty"`
	Parameters        map[string]interface{} `cbor:"parameters,omitempty" json:"parameters,omitempty"`
}

// Actions is the c2pa.actions assertion. An empty list is distinct from an
// absent assertion.
type Actions struct {
	Actions []Action `cbor:"actions"`
}

// Exclusion is a byte range left out of a data hash.
type Exclusion struct {
	Start  int64 `cbor:"start"`
	Length int64 `cbor:"length"`
}

// DataHash is the c2pa.hash.data hard binding.
type DataHash struct {
	Exclusions []Exclusion `cbor:"exclusions,omitempty"`
	Name       string      `cbor:"name,omitempty"`
	Alg        string      `cbor:"alg,omitempty"`
	Hash       []byte      `cbor:"hash"`
	Pad        []byte      `cbor:"pad,omitempty"`
}

// Ingredient describes a prior asset that contributed to this one.
type Ingredient struct {
	Title          string     `cbor:"dc:title,omitempty"`
	Format         string     `cbor:"dc:format,omitempty"`
	InstanceID     string     `cbor:"instanceID,omitempty"`
	DocumentID     string     `cbor:"documentID,omitempty"`
	Relationship   string     `cbor:"relationship,omitempty"`
	Manifest       *HashedURI `cbor:"c2pa_manifest,omitempty"`
	ActiveManifest *HashedURI `cbor:"active_manifest,omitempty"`
	Thumbnail      *HashedURI `cbor:"thumbnail,omitempty"`
}

// ManifestRef returns the reference to the ingredient's manifest, if any.
func (i *Ingredient) ManifestRef() *HashedURI {
	if i.ActiveManifest != nil {
		return i.ActiveManifest
	}
	return i.Manifest
}

// ThumbnailKind distinguishes claim thumbnails from ingredient thumbnails.
type ThumbnailKind int

const (
	ClaimThumbnail ThumbnailKind = iota
	IngredientThumbnail
)

// Thumbnail carries an embedded image. The engine never renders it.
type Thumbnail struct {
	Kind        ThumbnailKind
	ContentType string
	Data        []byte
}

// Author is a schema.org author entry.
type Author struct {
	Type string `json:"@type,omitempty"`
	Name string `json:"name,omitempty"`
	ID   string `json:"@id,omitempty"`
}

// CreativeWork is the schema.org CreativeWork assertion.
type CreativeWork struct {
	Type    string
	URL     string
	Authors []Author
}

// Opaque preserves an assertion with an unrecognized label.
type Opaque struct {
	BoxType string
	Raw     []byte
}

func (*Actions) assertionData()      {}
func (*DataHash) assertionData()     {}
func (*Ingredient) assertionData()   {}
func (*Thumbnail) assertionData()    {}
func (*CreativeWork) assertionData() {}
func (*Opaque) assertionData()       {}

// decodeAssertion decodes an assertion superbox. Errors in assertions
// with known labels fail the claim; unknown labels never fail.
func decodeAssertion(box *jumbf.Box) (Assertion, error) {
	a := Assertion{Label: box.Label(), raw: box.Raw}
	base, _ := SplitLabel(a.Label)

	if box.Description.Type == jumbf.UUIDEmbeddedFile {
		return decodeEmbeddedFile(a, base, box)
	}
	if len(box.Children) == 0 {
		return a, fmt.Errorf("assertion %q has no content box", a.Label)
	}
	content := box.Children[0]
	a.value = genericValue(content)

	var err error
	switch {
	case base == LabelActions || base == LabelActionsV2:
		v := &Actions{}
		err = unmarshalContent(content, v)
		if err == nil && v.Actions == nil {
			v.Actions = []Action{}
		}
		a.Data = v
	case base == LabelDataHash:
		v := &DataHash{}
		if err = unmarshalContent(content, v); err == nil && len(v.Hash) == 0 {
			err = fmt.Errorf("missing hash")
		}
		a.Data = v
	case base == LabelIngredient || base == LabelIngredientV2 || base == LabelIngredientV3:
		v := &Ingredient{}
		err = unmarshalContent(content, v)
		a.Data = v
	case base == LabelCreativeWork:
		a.Data, err = decodeCreativeWork(content)
	case isThumbnailLabel(base):
		th := &Thumbnail{Kind: thumbnailKind(base), ContentType: thumbnailType(base), Data: append([]byte(nil), content.Payload...)}
		a.Data = th
		a.value = map[string]interface{}{"contentType": th.ContentType, "size": len(th.Data)}
	default:
		a.Data = &Opaque{BoxType: content.Type, Raw: append([]byte(nil), content.Payload...)}
	}
	if err != nil {
		return a, fmt.Errorf("assertion %q: %w", a.Label, err)
	}
	return a, nil
}

func decodeEmbeddedFile(a Assertion, base string, box *jumbf.Box) (Assertion, error) {
	var contentType string
	if desc, ok := box.Content(jumbf.TypeFileDesc); ok && len(desc.Payload) > 1 {
		// toggles byte, then a null-terminated media type
		mt := desc.Payload[1:]
		if i := bytes.IndexByte(mt, 0); i >= 0 {
			mt = mt[:i]
		}
		contentType = string(mt)
	}
	data, ok := box.Content(jumbf.TypeBinaryData)
	if !ok {
		if isThumbnailLabel(base) {
			return a, fmt.Errorf("assertion %q: embedded file without data box", a.Label)
		}
		a.Data = &Opaque{BoxType: jumbf.TypeFileDesc}
		return a, nil
	}
	if contentType == "" {
		contentType = thumbnailType(base)
	}
	a.value = map[string]interface{}{"contentType": contentType, "size": len(data.Payload)}
	if isThumbnailLabel(base) {
		a.Data = &Thumbnail{Kind: thumbnailKind(base), ContentType: contentType, Data: append([]byte(nil), data.Payload...)}
	} else {
		a.Data = &Opaque{BoxType: jumbf.TypeBinaryData, Raw: append([]byte(nil), data.Payload...)}
	}
	return a, nil
}

func isThumbnailLabel(base string) bool {
	return base == LabelClaimThumbnail || strings.HasPrefix(base, LabelClaimThumbnail+".") ||
		strings.HasPrefix(base, LabelIngredientThumb)
}

func thumbnailKind(base string) ThumbnailKind {
	if strings.HasPrefix(base, LabelIngredientThumb) {
		return IngredientThumbnail
	}
	return ClaimThumbnail
}

// thumbnailType derives a media type from a label suffix such as ".jpeg".
func thumbnailType(base string) string {
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return ""
	}
	switch ext := base[i+1:]; ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png", "webp", "gif", "avif", "heic":
		return "image/" + ext
	default:
		return ""
	}
}

func unmarshalContent(content *jumbf.Box, v interface{}) error {
	switch content.Type {
	case jumbf.TypeCBOR:
		return decMode.Unmarshal(content.Payload, v)
	case jumbf.TypeJSON:
		return json.Unmarshal(content.Payload, v)
	default:
		return fmt.Errorf("unexpected content box %q", content.Type)
	}
}

func genericValue(content *jumbf.Box) interface{} {
	var v interface{}
	switch content.Type {
	case jumbf.TypeCBOR:
		if decMode.Unmarshal(content.Payload, &v) != nil {
			return nil
		}
	case jumbf.TypeJSON:
		if json.Unmarshal(content.Payload, &v) != nil {
			return nil
		}
	}
	return v
}

type creativeWorkJSON struct {
	Type   string          `json:"@type"`
	URL    string          `json:"url"`
	Author json.RawMessage `json:"author"`
}

func decodeCreativeWork(content *jumbf.Box) (*CreativeWork, error) {
	if content.Type != jumbf.TypeJSON {
		return nil, fmt.Errorf("creative work must be JSON, got %q", content.Type)
	}
	var raw creativeWorkJSON
	if err := json.Unmarshal(content.Payload, &raw); err != nil {
		return nil, err
	}
	cw := &CreativeWork{Type: raw.Type, URL: raw.URL}
	author := bytes.TrimSpace(raw.Author)
	switch {
	case len(author) == 0 || bytes.Equal(author, []byte("null")):
	case author[0] == '[':
		if err := json.Unmarshal(author, &cw.Authors); err != nil {
			return nil, fmt.Errorf("author: %w", err)
		}
	default:
		var a Author
		if err := json.Unmarshal(author, &a); err != nil {
			return nil, fmt.Errorf("author: %w", err)
		}
		cw.Authors = []Author{a}
	}
	return cw, nil
}
