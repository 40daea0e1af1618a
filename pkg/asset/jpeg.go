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
	"encoding/binary"
	"sort"

	"github.com/sigstore/content-credentials/pkg/jumbf"
	"github.com/sigstore/content-credentials/pkg/verify"
)

var jpegSOI = []byte{0xFF, 0xD8}

const (
	markerAPP11 = 0xEB
	markerSOS   = 0xDA
	markerEOI   = 0xD9

	// APP11 payload: "JP" common identifier, box instance (En) and packet
	// sequence number (Z) precede the box data.
	jpegXTHeader = 8
	// Continuation packets repeat the LBox/TBox header of the box.
	jpegBoxHeader = 8
)

type jpegPacket struct {
	seq     uint32
	data    []byte
	segment Range
}

// extractJPEG reassembles the JPEG-XT APP11 packets that carry a "c2pa"
// JUMBF superbox.
func extractJPEG(data []byte) (*Location, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, verify.Malformedf("jpeg: missing start of image marker")
	}

	var (
		instance *uint16
		packets  []jpegPacket
		declared uint64
	)
	for off := 2; off+1 < len(data); {
		if data[off] != 0xFF {
			return nil, verify.Malformedf("jpeg: expected marker at offset %d", off)
		}
		marker := data[off+1]
		switch {
		case marker == 0xFF:
			off++
			continue
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			off += 2
			continue
		case marker == markerSOS || marker == markerEOI:
			off = len(data)
			continue
		}
		if off+4 > len(data) {
			if marker == markerAPP11 {
				return nil, verify.Malformedf("jpeg: truncated APP11 length at offset %d", off)
			}
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
		end := off + 2 + segLen
		if segLen < 2 || end > len(data) {
			if marker == markerAPP11 {
				return nil, verify.Malformedf("jpeg: APP11 segment at offset %d declares %d bytes past end of file", off, segLen)
			}
			break
		}

		if marker == markerAPP11 {
			payload := data[off+4 : end]
			if p, en, ok, err := parseJPEGXTPacket(payload, instance); err != nil {
				return nil, err
			} else if ok {
				if instance == nil {
					instance = &en
					declared = p.declared
				}
				packets = append(packets, jpegPacket{
					seq:     p.seq,
					data:    p.data,
					segment: Range{Start: int64(off), Length: int64(end - off)},
				})
			}
		}
		off = end
	}

	if len(packets) == 0 {
		return nil, nil
	}
	return assembleJPEG(packets, declared)
}

type xtPacket struct {
	seq      uint32
	declared uint64
	data     []byte
}

// parseJPEGXTPacket decodes one APP11 payload. ok is false for APP11
// segments that are not part of the c2pa box instance.
func parseJPEGXTPacket(payload []byte, instance *uint16) (xtPacket, uint16, bool, error) {
	if len(payload) < jpegXTHeader || payload[0] != 'J' || payload[1] != 'P' {
		return xtPacket{}, 0, false, nil
	}
	en := binary.BigEndian.Uint16(payload[2:4])
	seq := binary.BigEndian.Uint32(payload[4:8])
	body := payload[jpegXTHeader:]

	if instance != nil {
		if en != *instance {
			return xtPacket{}, 0, false, nil
		}
		if seq == 1 {
			return xtPacket{}, 0, false, verify.Malformedf("jpeg: duplicate first packet for box instance %d", en)
		}
		if len(body) < jpegBoxHeader {
			return xtPacket{}, 0, false, verify.Malformedf("jpeg: continuation packet %d too short", seq)
		}
		return xtPacket{seq: seq, data: body[jpegBoxHeader:]}, en, true, nil
	}

	if !isC2PAStoreHeader(body) {
		return xtPacket{}, 0, false, nil
	}
	if seq != 1 {
		return xtPacket{}, 0, false, verify.Malformedf("jpeg: c2pa box starts with packet %d", seq)
	}
	_, declared, _, err := jumbf.ReadHeader(body)
	if err != nil {
		return xtPacket{}, 0, false, verify.NewVerificationError(verify.ErrTypeMalformed, "jpeg: invalid c2pa box header", err)
	}
	return xtPacket{seq: seq, declared: declared, data: body}, en, true, nil
}

// isC2PAStoreHeader reports whether b starts a "jumb" superbox whose
// description type is the c2pa manifest store.
func isC2PAStoreHeader(b []byte) bool {
	const descTypeOffset = 16 // superbox header + description header
	if len(b) < descTypeOffset+4 || string(b[4:8]) != jumbf.TypeSuperBox || string(b[12:16]) != jumbf.TypeDescription {
		return false
	}
	return string(b[descTypeOffset:descTypeOffset+4]) == "c2pa"
}

func assembleJPEG(packets []jpegPacket, declared uint64) (*Location, error) {
	sort.SliceStable(packets, func(i, j int) bool { return packets[i].seq < packets[j].seq })

	var store []byte
	ranges := make([]Range, 0, len(packets))
	for i, p := range packets {
		if p.seq != uint32(i+1) {
			return nil, verify.Malformedf("jpeg: missing APP11 packet %d", i+1)
		}
		store = append(store, p.data...)
		ranges = append(ranges, p.segment)
	}
	if declared != 0 && declared != uint64(len(store)) {
		return nil, verify.Malformedf("jpeg: c2pa box declares %d bytes, segments carry %d", declared, len(store))
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	return &Location{
		Store:     store,
		Source:    SourceEmbedded,
		Container: "jpeg",
		Ranges:    ranges,
	}, nil
}
