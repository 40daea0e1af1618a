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
	"crypto/sha256"
	"encoding/binary"
	"hash/crc32"
)

// DefaultJPEGChunk is the largest store slice carried by one APP11 packet.
const DefaultJPEGChunk = 65000

// Offsets at which the carriers insert a store.
const (
	JPEGInsertOffset = 2
	PNGInsertOffset  = 33
)

var bmffUUID = []byte{
	0xd8, 0xfe, 0xc3, 0xd6, 0x1b, 0x0e, 0x48, 0x3c,
	0x92, 0x97, 0x58, 0x28, 0x87, 0x7e, 0xc4, 0x81,
}

// MinimalJPEG returns a small baseline JPEG stream.
func MinimalJPEG() []byte {
	out := []byte{0xFF, 0xD8}
	out = append(out, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00)
	out = append(out, 0xFF, 0xDA, 0x00, 0x08, 0x01, 0x01, 0x00, 0x00, 0x3F, 0x00)
	out = append(out, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC)
	return append(out, 0xFF, 0xD9)
}

// MinimalPNG returns a 1x1 PNG. Its IHDR chunk ends at PNGInsertOffset.
func MinimalPNG() []byte {
	out := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	out = append(out, pngChunk("IHDR", []byte{0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0})...)
	out = append(out, pngChunk("IDAT", []byte{0x78, 0x9C, 0x63, 0xF8, 0xCF, 0xC0, 0x00, 0x00, 0x03, 0x01, 0x01, 0x00})...)
	return append(out, pngChunk("IEND", nil)...)
}

// MinimalMP4 returns an ftyp box followed by a small mdat box.
func MinimalMP4() []byte {
	out := bmffBox("ftyp", []byte{'i', 's', 'o', 'm', 0, 0, 2, 0, 'i', 's', 'o', 'm', 'm', 'p', '4', '1'})
	return append(out, bmffBox("mdat", []byte{1, 2, 3, 4, 5, 6, 7, 8})...)
}

// JPEGSegments splits store into APP11 JPEG-XT segments of at most chunk
// store bytes each.
func JPEGSegments(store []byte, chunk int) []byte {
	if chunk <= 0 {
		chunk = DefaultJPEGChunk
	}
	var out []byte
	for seq, off := uint32(1), 0; off < len(store); seq++ {
		end := min(off+chunk, len(store))
		payload := []byte{'J', 'P', 0x00, 0x01}
		payload = binary.BigEndian.AppendUint32(payload, seq)
		if seq > 1 {
			payload = append(payload, store[:8]...)
		}
		payload = append(payload, store[off:end]...)
		out = append(out, 0xFF, 0xEB)
		out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
		out = append(out, payload...)
		off = end
	}
	return out
}

// EmbedJPEG inserts store into base right after the SOI marker.
func EmbedJPEG(base, store []byte, chunk int) []byte {
	return insert(base, JPEGInsertOffset, JPEGSegments(store, chunk))
}

// PNGStoreChunk wraps store in a caBX chunk.
func PNGStoreChunk(store []byte) []byte {
	return pngChunk("caBX", store)
}

// EmbedPNG inserts store as a caBX chunk after IHDR.
func EmbedPNG(base, store []byte) []byte {
	return insert(base, PNGInsertOffset, PNGStoreChunk(store))
}

// BMFFStoreBox wraps store in a c2pa uuid box.
func BMFFStoreBox(store []byte) []byte {
	payload := append([]byte(nil), bmffUUID...)
	payload = append(payload, 0, 0, 0, 0)
	payload = append(payload, "manifest\x00"...)
	payload = append(payload, make([]byte, 8)...)
	payload = append(payload, store...)
	return bmffBox("uuid", payload)
}

// EmbedBMFF inserts store after the leading ftyp box.
func EmbedBMFF(base, store []byte) []byte {
	return insert(base, ftypEnd(base), BMFFStoreBox(store))
}

// SignedJPEG builds a JPEG carrying a store whose active manifest has a
// hard binding over everything but the APP11 segments.
func (b *Builder) SignedJPEG(manifests ...Manifest) (asset, store []byte) {
	base := MinimalJPEG()
	return b.signed(base, JPEGInsertOffset, func(s []byte) []byte { return JPEGSegments(s, DefaultJPEGChunk) }, manifests)
}

// SignedPNG is SignedJPEG for PNG.
func (b *Builder) SignedPNG(manifests ...Manifest) (asset, store []byte) {
	return b.signed(MinimalPNG(), PNGInsertOffset, PNGStoreChunk, manifests)
}

// SignedMP4 is SignedJPEG for BMFF.
func (b *Builder) SignedMP4(manifests ...Manifest) (asset, store []byte) {
	base := MinimalMP4()
	return b.signed(base, ftypEnd(base), BMFFStoreBox, manifests)
}

// signed iterates until the exclusion length it declares matches the
// framed store it ends up in. The excluded bytes are exactly the inserted
// ones, so the expected digest is the digest of base.
func (b *Builder) signed(base []byte, at int, frame func([]byte) []byte, manifests []Manifest) ([]byte, []byte) {
	b.t.Helper()
	ms := withLabels(manifests)
	sum := sha256.Sum256(base)
	var length int64
	for range 8 {
		store := b.store(ms, &DataHash{Start: int64(at), Length: length, Hash: sum[:]})
		framed := frame(store)
		if int64(len(framed)) == length {
			return insert(base, at, framed), store
		}
		length = int64(len(framed))
	}
	b.t.Fatalf("hard binding exclusion did not converge")
	return nil, nil
}

func insert(base []byte, at int, data []byte) []byte {
	out := make([]byte, 0, len(base)+len(data))
	out = append(out, base[:at]...)
	out = append(out, data...)
	return append(out, base[at:]...)
}

func pngChunk(typ string, data []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(data)))
	out = append(out, typ...)
	out = append(out, data...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out[4:]))
}

func bmffBox(typ string, payload []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(payload)+8))
	out = append(out, typ...)
	return append(out, payload...)
}

func ftypEnd(base []byte) int {
	return int(binary.BigEndian.Uint32(base[:4]))
}
