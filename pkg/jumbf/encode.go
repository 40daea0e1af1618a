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
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// EncodeBox serializes a box. Payloads too large for a 32-bit LBox use the
// XLBox form.
func EncodeBox(boxType string, payload []byte) []byte {
	total := uint64(len(payload)) + headerSize
	if total > math.MaxUint32 {
		out := make([]byte, extendedHeaderSize, extendedHeaderSize+len(payload))
		binary.BigEndian.PutUint32(out[0:4], 1)
		copy(out[4:8], boxType)
		binary.BigEndian.PutUint64(out[8:16], uint64(len(payload))+extendedHeaderSize)
		return append(out, payload...)
	}
	out := make([]byte, headerSize, int(total))
	binary.BigEndian.PutUint32(out[0:4], uint32(total))
	copy(out[4:8], boxType)
	return append(out, payload...)
}

// EncodeSuperBox serializes a superbox from its description and already
// encoded children.
func EncodeSuperBox(desc Description, children ...[]byte) []byte {
	payload := EncodeBox(TypeDescription, desc.Encode())
	for _, c := range children {
		payload = append(payload, c...)
	}
	return EncodeBox(TypeSuperBox, payload)
}

// Labeled is shorthand for a requestable, labeled description.
func Labeled(typ uuid.UUID, label string) Description {
	return Description{Type: typ, Toggles: ToggleRequestable, Label: label}
}
