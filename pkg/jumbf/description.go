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
	"fmt"

	"github.com/google/uuid"
)

// Description toggle bits.
const (
	ToggleRequestable = 0x01
	ToggleLabel       = 0x02
	ToggleID          = 0x04
	ToggleHash        = 0x08
	TogglePrivate     = 0x10
)

// uuidSuffix completes a four character code into a JUMBF type UUID.
var uuidSuffix = [12]byte{0x00, 0x11, 0x00, 0x10, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// Superbox type UUIDs of the Content Credentials manifest store.
var (
	UUIDStore        = TypeUUIDFor("c2pa")
	UUIDManifest     = TypeUUIDFor("c2ma")
	UUIDUpdate       = TypeUUIDFor("c2um")
	UUIDAssertions   = TypeUUIDFor("c2as")
	UUIDClaim        = TypeUUIDFor("c2cl")
	UUIDSignature    = TypeUUIDFor("c2cs")
	UUIDCBOR         = TypeUUIDFor("cbor")
	UUIDJSON         = TypeUUIDFor("json")
	UUIDEmbeddedFile = uuid.MustParse("40CB0C32-BB8A-489D-A70B-2AD6F47F4369")
)

// TypeUUIDFor builds the type UUID for a four character code.
func TypeUUIDFor(fourcc string) uuid.UUID {
	var u uuid.UUID
	copy(u[:4], fourcc)
	copy(u[4:], uuidSuffix[:])
	return u
}

// Description is the decoded payload of a "jumd" box.
type Description struct {
	Type    uuid.UUID
	Toggles byte
	Label   string
	ID      *uint32
	Hash    []byte
	Private []byte
}

// FourCC returns the four character code of a JUMBF type UUID, or "" for
// UUIDs outside the ISO namespace.
func (d *Description) FourCC() string {
	if !bytes.Equal(d.Type[4:], uuidSuffix[:]) {
		return ""
	}
	return string(d.Type[:4])
}

// Requestable reports whether the box may be addressed by label.
func (d *Description) Requestable() bool {
	return d.Toggles&ToggleRequestable != 0
}

func parseDescription(p []byte) (*Description, error) {
	if len(p) < 17 {
		return nil, fmt.Errorf("%w: description box has %d bytes", ErrTruncated, len(p))
	}
	d := &Description{Toggles: p[16]}
	copy(d.Type[:], p[:16])
	rest := p[17:]

	if d.Toggles&ToggleLabel != 0 {
		end := bytes.IndexByte(rest, 0)
		if end < 0 {
			return nil, errors.New("jumbf: description label is not null terminated")
		}
		d.Label = string(rest[:end])
		rest = rest[end+1:]
	}
	if d.Toggles&ToggleID != 0 {
		if len(rest) < 4 {
			return nil, fmt.Errorf("%w: description id", ErrTruncated)
		}
		id := binary.BigEndian.Uint32(rest[:4])
		d.ID = &id
		rest = rest[4:]
	}
	if d.Toggles&ToggleHash != 0 {
		if len(rest) < 32 {
			return nil, fmt.Errorf("%w: description hash", ErrTruncated)
		}
		d.Hash = append([]byte(nil), rest[:32]...)
		rest = rest[32:]
	}
	if d.Toggles&TogglePrivate != 0 {
		if _, _, err := parseBox(rest, maxDepth-1); err != nil {
			return nil, fmt.Errorf("jumbf: description private box: %w", err)
		}
		d.Private = append([]byte(nil), rest...)
		rest = nil
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("jumbf: %d unexpected bytes in description box", len(rest))
	}
	return d, nil
}

// Encode serializes the description payload. Toggle bits for label, id,
// hash and private fields are derived from which fields are set.
func (d Description) Encode() []byte {
	toggles := d.Toggles &^ (ToggleLabel | ToggleID | ToggleHash | TogglePrivate)
	if d.Label != "" {
		toggles |= ToggleLabel
	}
	if d.ID != nil {
		toggles |= ToggleID
	}
	if len(d.Hash) > 0 {
		toggles |= ToggleHash
	}
	if len(d.Private) > 0 {
		toggles |= TogglePrivate
	}

	var buf bytes.Buffer
	buf.Write(d.Type[:])
	buf.WriteByte(toggles)
	if d.Label != "" {
		buf.WriteString(d.Label)
		buf.WriteByte(0)
	}
	if d.ID != nil {
		_ = binary.Write(&buf, binary.BigEndian, *d.ID)
	}
	if len(d.Hash) > 0 {
		buf.Write(d.Hash)
	}
	buf.Write(d.Private)
	return buf.Bytes()
}
