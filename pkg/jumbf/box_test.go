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

package jumbf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func sampleStore() []byte {
	claim := EncodeSuperBox(Labeled(UUIDClaim, "c2pa.claim"), EncodeBox(TypeCBOR, []byte{0xa0}))
	actions := EncodeSuperBox(Labeled(UUIDCBOR, "c2pa.actions"), EncodeBox(TypeCBOR, []byte{0xa1, 0x61, 0x61, 0x01}))
	assertions := EncodeSuperBox(Labeled(UUIDAssertions, "c2pa.assertions"), actions)
	manifest := EncodeSuperBox(Labeled(UUIDManifest, "urn:uuid:0001"), assertions, claim)
	return EncodeSuperBox(Labeled(UUIDStore, "c2pa"), manifest)
}

func TestParseStore(t *testing.T) {
	box, err := Parse(sampleStore())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !box.IsSuperBox() || box.Label() != "c2pa" {
		t.Fatalf("root = %q/%q, want c2pa superbox", box.Type, box.Label())
	}
	if got := box.Description.FourCC(); got != "c2pa" {
		t.Errorf("FourCC() = %q, want c2pa", got)
	}
	if !box.Description.Requestable() {
		t.Error("description should be requestable")
	}

	actions, ok := box.Find("urn:uuid:0001", "c2pa.assertions", "c2pa.actions")
	if !ok {
		t.Fatal("Find() did not reach c2pa.actions")
	}
	content, ok := actions.Content(TypeCBOR)
	if !ok {
		t.Fatal("Content(cbor) missing")
	}
	if !bytes.Equal(content.Payload, []byte{0xa1, 0x61, 0x61, 0x01}) {
		t.Errorf("payload = %x", content.Payload)
	}
	if _, ok := box.Find("urn:uuid:0001", "c2pa.signature"); ok {
		t.Error("Find() should fail for absent labels")
	}
}

func TestRawCoversWholeBox(t *testing.T) {
	inner := EncodeSuperBox(Labeled(UUIDCBOR, "x"), EncodeBox(TypeCBOR, []byte{1, 2, 3}))
	outer := EncodeSuperBox(Labeled(UUIDAssertions, "outer"), inner)
	box, err := Parse(outer)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	child, _ := box.Child("x")
	if !bytes.Equal(child.Raw, inner) {
		t.Error("Raw should hold the complete child box bytes")
	}
}

func TestDescriptionOptionalFields(t *testing.T) {
	id := uint32(7)
	desc := Description{
		Type:  UUIDEmbeddedFile,
		Label: "thumb",
		ID:    &id,
		Hash:  bytes.Repeat([]byte{0xAB}, 32),
	}
	box, err := Parse(EncodeSuperBox(desc, EncodeBox(TypeBinaryData, []byte("img"))))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := box.Description
	if got.Label != "thumb" || got.ID == nil || *got.ID != 7 || !bytes.Equal(got.Hash, desc.Hash) {
		t.Errorf("description = %+v", got)
	}
	if got.Type != UUIDEmbeddedFile || got.FourCC() != "" {
		t.Errorf("type = %s fourcc %q", got.Type, got.FourCC())
	}
}

func TestExtendedLength(t *testing.T) {
	payload := []byte("xl payload")
	raw := make([]byte, 16)
	binary.BigEndian.PutUint32(raw[0:4], 1)
	copy(raw[4:8], TypeCBOR)
	binary.BigEndian.PutUint64(raw[8:16], uint64(16+len(payload)))
	raw = append(raw, payload...)

	box, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !bytes.Equal(box.Payload, payload) {
		t.Errorf("payload = %q", box.Payload)
	}
}

func TestParseErrors(t *testing.T) {
	valid := sampleStore()
	noDesc := EncodeBox(TypeSuperBox, EncodeBox(TypeCBOR, []byte{0}))
	badLabel := EncodeBox(TypeSuperBox, EncodeBox(TypeDescription, append(append(UUIDStore[:], ToggleLabel), 'c', '2')))

	tests := []struct {
		name      string
		data      []byte
		truncated bool
	}{
		{"short header", valid[:5], true},
		{"truncated payload", valid[:len(valid)-3], true},
		{"trailing bytes", append(append([]byte{}, valid...), 0), false},
		{"length below header", []byte{0, 0, 0, 4, 'c', 'b', 'o', 'r'}, false},
		{"superbox without description", noDesc, false},
		{"unterminated label", badLabel, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if tt.truncated && !errors.Is(err, ErrTruncated) {
				t.Errorf("error = %v, want ErrTruncated", err)
			}
		})
	}
}

func TestParseAll(t *testing.T) {
	seq := append(EncodeBox(TypeCBOR, []byte{1}), EncodeBox(TypeJSON, []byte("{}"))...)
	boxes, err := ParseAll(seq)
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}
	if len(boxes) != 2 || boxes[0].Type != TypeCBOR || boxes[1].Type != TypeJSON {
		t.Errorf("boxes = %+v", boxes)
	}
}
