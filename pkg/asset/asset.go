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

// Package asset loads media assets and locates the Content Credentials
// manifest store embedded in them or stored beside them as a sidecar.
package asset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sigstore/content-credentials/pkg/verify"
)

// Media types understood by Locate.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEMP4  = "video/mp4"
	MIMEHEIC = "image/heic"
	MIMEAVIF = "image/avif"
	MIMEC2PA = "application/c2pa"
)

// SidecarExt is the file extension of detached manifest stores.
const SidecarExt = ".c2pa"

// Asset is an immutable byte source with a declared media type and an
// optional sidecar manifest store.
type Asset struct {
	name    string
	mime    string
	data    []byte
	sidecar []byte
}

// Option configures an Asset.
type Option func(*Asset)

// WithSidecar attaches detached manifest store bytes.
func WithSidecar(data []byte) Option {
	return func(a *Asset) {
		a.sidecar = append([]byte(nil), data...)
	}
}

// WithName records a display name, usually the file name.
func WithName(name string) Option {
	return func(a *Asset) {
		a.name = name
	}
}

// New creates an asset from data. The bytes are copied. An empty mime is
// replaced by the type sniffed from the content.
func New(data []byte, mime string, opts ...Option) *Asset {
	a := &Asset{
		mime: strings.ToLower(strings.TrimSpace(mime)),
		data: append([]byte(nil), data...),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.mime == "" {
		a.mime = Sniff(a.data)
	}
	return a
}

// LoadFile reads an asset from disk. A sidecar named after the asset with
// the .c2pa extension is attached when present.
func LoadFile(path string) (*Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, verify.NewVerificationErrorWithPath(verify.ErrTypeIO, path, "failed to read asset", err)
	}
	opts := []Option{WithName(filepath.Base(path))}

	sidecarPath := strings.TrimSuffix(path, filepath.Ext(path)) + SidecarExt
	if sidecarPath != path {
		sidecar, err := os.ReadFile(sidecarPath)
		switch {
		case err == nil:
			opts = append(opts, WithSidecar(sidecar))
		case !errors.Is(err, fs.ErrNotExist):
			return nil, verify.NewVerificationErrorWithPath(verify.ErrTypeIO, sidecarPath, "failed to read sidecar", err)
		}
	}
	return New(data, MIMEFromExt(filepath.Ext(path)), opts...), nil
}

// Name returns the display name, if any.
func (a *Asset) Name() string { return a.name }

// MIME returns the declared or sniffed media type.
func (a *Asset) MIME() string { return a.mime }

// Size returns the asset length in bytes.
func (a *Asset) Size() int64 { return int64(len(a.data)) }

// Reader returns a reader over the asset bytes.
func (a *Asset) Reader() *bytes.Reader { return bytes.NewReader(a.data) }

// ReadAt implements io.ReaderAt.
func (a *Asset) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("asset: negative offset %d", off)
	}
	if off >= int64(len(a.data)) {
		return 0, io.EOF
	}
	n := copy(p, a.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// HasSidecar reports whether sidecar bytes were attached.
func (a *Asset) HasSidecar() bool { return len(a.sidecar) > 0 }

// Sidecar returns a copy of the sidecar bytes.
func (a *Asset) Sidecar() []byte { return append([]byte(nil), a.sidecar...) }

// MIMEFromExt maps a file extension to a media type, or "" when unknown.
func MIMEFromExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return MIMEJPEG
	case "png":
		return MIMEPNG
	case "mp4", "m4v", "m4a", "mov":
		return MIMEMP4
	case "heic", "heif":
		return MIMEHEIC
	case "avif":
		return MIMEAVIF
	case "c2pa":
		return MIMEC2PA
	default:
		return ""
	}
}

// Sniff detects the media type from magic bytes, or returns
// "application/octet-stream".
func Sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, jpegSOI):
		return MIMEJPEG
	case bytes.HasPrefix(data, pngSignature):
		return MIMEPNG
	case len(data) >= 12 && string(data[4:8]) == "ftyp":
		switch string(data[8:12]) {
		case "heic", "heix", "mif1":
			return MIMEHEIC
		case "avif":
			return MIMEAVIF
		default:
			return MIMEMP4
		}
	case len(data) >= 8 && string(data[4:8]) == "jumb":
		return MIMEC2PA
	default:
		return "application/octet-stream"
	}
}
