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

// Package jumbf reads and writes ISO/IEC 19566-5 JUMBF boxes, the
// container format of Content Credentials manifest stores.
//
// A box is an LBox/TBox header (with an optional XLBox extended length)
// followed by its payload. A superbox ("jumb") starts with a description
// box ("jumd") that carries its type UUID and label, followed by content
// boxes or nested superboxes.
package jumbf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Box types used by Content Credentials.
const (
	TypeSuperBox    = "jumb"
	TypeDescription = "jumd"
	TypeCBOR        = "cbor"
	TypeJSON        = "json"
	TypeFileDesc    = "bfdb"
	TypeBinaryData  = "bidb"
	TypeUUID        = "uuid"
)

const (
	headerSize         = 8
	extendedHeaderSize = 16
)

// ErrTruncated is returned when a box header or payload runs past the end
// of the available data.
var ErrTruncated = errors.New("jumbf: truncated box")

// Box is a decoded JUMBF box. Superboxes carry their description and
// children; other boxes carry their payload only.
type Box struct {
	// Type is the four character box type.
	Type string
	// Raw holds the complete box, header included.
	Raw []byte
	// Payload holds the bytes after the header.
	Payload []byte

	// Description is set for superboxes.
	Description *Description
	// Children holds the boxes following the description of a superbox.
	Children []*Box
}

// IsSuperBox reports whether b is a "jumb" superbox.
func (b *Box) IsSuperBox() bool {
	return b.Type == TypeSuperBox && b.Description != nil
}

// Label returns the description label of a superbox, or "".
func (b *Box) Label() string {
	if b.Description == nil {
		return ""
	}
	return b.Description.Label
}

// Child returns the first child superbox with the given label.
func (b *Box) Child(label string) (*Box, bool) {
	for _, c := range b.Children {
		if c.IsSuperBox() && c.Label() == label {
			return c, true
		}
	}
	return nil, false
}

// Content returns the first child box of the given type.
func (b *Box) Content(boxType string) (*Box, bool) {
	for _, c := range b.Children {
		if c.Type == boxType {
			return c, true
		}
	}
	return nil, false
}

// Find walks a path of superbox labels below b.
func (b *Box) Find(path ...string) (*Box, bool) {
	cur := b
	for _, label := range path {
		next, ok := cur.Child(label)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Parse decodes a single box that must span data exactly.
func Parse(data []byte) (*Box, error) {
	box, n, err := parseBox(data, 0)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("jumbf: %d trailing bytes after %q box", len(data)-n, box.Type)
	}
	return box, nil
}

// ParseAll decodes a sequence of sibling boxes spanning data exactly.
func ParseAll(data []byte) ([]*Box, error) {
	return parseSequence(data, 0)
}

// maxDepth bounds superbox nesting so hostile input cannot exhaust the stack.
const maxDepth = 32

func parseSequence(data []byte, depth int) ([]*Box, error) {
	var boxes []*Box
	for off := 0; off < len(data); {
		box, n, err := parseBox(data[off:], depth)
		if err != nil {
			return nil, fmt.Errorf("box at offset %d: %w", off, err)
		}
		boxes = append(boxes, box)
		off += n
	}
	return boxes, nil
}

// ReadHeader decodes a box header and returns the box type, the declared
// total length and the header length. A declared length of zero means the
// box extends to the end of its container.
func ReadHeader(data []byte) (boxType string, length uint64, hdr int, err error) {
	if len(data) < headerSize {
		return "", 0, 0, ErrTruncated
	}
	length = uint64(binary.BigEndian.Uint32(data[0:4]))
	boxType = string(data[4:8])
	hdr = headerSize
	switch {
	case length == 1:
		if len(data) < extendedHeaderSize {
			return "", 0, 0, ErrTruncated
		}
		length = binary.BigEndian.Uint64(data[8:16])
		hdr = extendedHeaderSize
		if length < extendedHeaderSize {
			return "", 0, 0, fmt.Errorf("jumbf: invalid extended length %d for %q", length, boxType)
		}
	case length == 0:
	case length < headerSize:
		return "", 0, 0, fmt.Errorf("jumbf: invalid length %d for %q", length, boxType)
	}
	return boxType, length, hdr, nil
}

func parseBox(data []byte, depth int) (*Box, int, error) {
	boxType, length, hdr, err := ReadHeader(data)
	if err != nil {
		return nil, 0, err
	}
	if length == 0 {
		length = uint64(len(data))
	}
	if length > uint64(len(data)) {
		return nil, 0, fmt.Errorf("%w: %q declares %d bytes, %d available", ErrTruncated, boxType, length, len(data))
	}
	n := int(length)
	box := &Box{
		Type:    boxType,
		Raw:     data[:n],
		Payload: data[hdr:n],
	}
	if boxType != TypeSuperBox {
		return box, n, nil
	}

	if depth >= maxDepth {
		return nil, 0, fmt.Errorf("jumbf: superbox nesting deeper than %d", maxDepth)
	}
	children, err := parseSequence(box.Payload, depth+1)
	if err != nil {
		return nil, 0, err
	}
	if len(children) == 0 || children[0].Type != TypeDescription {
		return nil, 0, errors.New("jumbf: superbox does not start with a description box")
	}
	desc, err := parseDescription(children[0].Payload)
	if err != nil {
		return nil, 0, err
	}
	box.Description = desc
	box.Children = children[1:]
	return box, n, nil
}
