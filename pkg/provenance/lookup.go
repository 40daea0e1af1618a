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

package provenance

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sigstore/content-credentials/pkg/asset"
	"github.com/sigstore/content-credentials/pkg/graph"
	"github.com/sigstore/content-credentials/pkg/manifest"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// DirectoryLookup resolves ingredients to files in dir named after the
// ingredient title. Titles that are not plain file names never match.
func DirectoryLookup(dir string) graph.Lookup {
	return graph.LookupFunc(func(ctx context.Context, ing *manifest.Ingredient) (*asset.Asset, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := ing.Title
		if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
			return nil, verify.ErrNotFound
		}
		path := filepath.Join(dir, name)
		a, err := asset.LoadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, verify.ErrNotFound
		}
		return a, err
	})
}

// ValidateDirectory checks that dir exists and is a directory.
func ValidateDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return verify.NewVerificationErrorWithPath(verify.ErrTypeConfiguration, dir, "ingredient directory is not accessible", err)
	}
	if !info.IsDir() {
		return verify.NewVerificationErrorWithPath(verify.ErrTypeConfiguration, dir, "ingredient path is not a directory", nil)
	}
	return nil
}
