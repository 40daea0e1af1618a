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
	"encoding/binary"
	"hash/crc32"

	"github.com/sigstore/content-credentials/pkg/verify"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// PNGChunkType is the chunk that carries a manifest store in PNG files.
const PNGChunkType = "caBX"

func extractPNG(data []byte) (*Location, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, verify.Malformedf("png: missing signature")
	}
	for off := len(pngSignature); off < len(data); {
		if off+8 > len(data) {
			return nil, nil
		}
		length := int64(binary.BigEndian.Uint32(data[off : off+4]))
		typ := string(data[off+4 : off+8])
		end := int64(off) + 12 + length
		if end > int64(len(data)) {
			if typ == PNGChunkType {
				return nil, verify.Malformedf("png: %s chunk declares %d bytes past end of file", typ, length)
			}
			return nil, nil
		}

		if typ == PNGChunkType {
			body := data[off+8 : off+8+int(length)]
			want := binary.BigEndian.Uint32(data[end-4 : end])
			if got := crc32.ChecksumIEEE(data[off+4 : off+8+int(length)]); got != want {
				return nil, verify.Malformedf("png: %s chunk CRC %08x, want %08x", typ, got, want)
			}
			return &Location{
				Store:     append([]byte(nil), body...),
				Source:    SourceEmbedded,
				Container: "png",
				Ranges:    []Range{{Start: int64(off), Length: end - int64(off)}},
			}, nil
		}
		if typ == "IEND" {
			return nil, nil
		}
		off = int(end)
	}
	return nil, nil
}
