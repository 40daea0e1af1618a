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

package asset

import (
	"bytes"

	"github.com/google/uuid"

	"github.com/sigstore/content-credentials/pkg/jumbf"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// BMFFUUID is the user type of the top-level "uuid" box that carries a
// manifest store in ISO base media files.
var BMFFUUID = uuid.MustParse("d8fec3d6-1b0e-483c-9297-5828877ec481")

// BMFFPurposeManifest marks the uuid box holding the manifest store.
const BMFFPurposeManifest = "manifest"

func extractBMFF(data []byte) (*Location, error) {
	for off := 0; off < len(data); {
		typ, length, hdr, err := jumbf.ReadHeader(data[off:])
		if err != nil {
			return nil, nil
		}
		remaining := uint64(len(data) - off)
		if length == 0 {
			length = remaining
		}
		isC2PA := typ == jumbf.TypeUUID && len(data) >= off+hdr+16 && bytes.Equal(data[off+hdr:off+hdr+16], BMFFUUID[:])
		// Compare against what remains so 64-bit lengths cannot wrap.
		if length > remaining {
			if isC2PA {
				return nil, verify.Malformedf("bmff: c2pa uuid box declares %d bytes past end of file", length)
			}
			return nil, nil
		}
		// ReadHeader guarantees length >= hdr, so off always advances.
		end := off + int(length)
		if isC2PA {
			if length < uint64(hdr+16) {
				return nil, verify.Malformedf("bmff: c2pa uuid box shorter than its header")
			}
			loc, err := parseBMFFPayload(data[off+hdr+16 : end])
			if err != nil {
				return nil, err
			}
			if loc != nil {
				loc.Ranges = []Range{{Start: int64(off), Length: int64(length)}}
				return loc, nil
			}
		}
		off = end
	}
	return nil, nil
}

// parseBMFFPayload decodes version/flags, the purpose string and the aux
// offset that precede the store. Boxes with another purpose are skipped.
func parseBMFFPayload(p []byte) (*Location, error) {
	if len(p) < 4 {
		return nil, verify.Malformedf("bmff: c2pa uuid box too short")
	}
	p = p[4:]
	nul := bytes.IndexByte(p, 0)
	if nul < 0 {
		return nil, verify.Malformedf("bmff: unterminated purpose string")
	}
	purpose := string(p[:nul])
	p = p[nul+1:]
	if purpose != BMFFPurposeManifest {
		return nil, nil
	}
	if len(p) < 8 {
		return nil, verify.Malformedf("bmff: missing aux offset")
	}
	store := p[8:]
	if len(store) == 0 {
		return nil, verify.Malformedf("bmff: empty manifest store")
	}
	return &Location{
		Store:     append([]byte(nil), store...),
		Source:    SourceEmbedded,
		Container: "bmff",
	}, nil
}
