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

package options

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigstore/content-credentials/pkg/asset"
	"github.com/sigstore/content-credentials/pkg/logging"
	"github.com/sigstore/content-credentials/pkg/provenance"
	"github.com/sigstore/content-credentials/pkg/trust"
)

// Report formats.
const (
	FormatTable   = "table"
	FormatJSON    = "json"
	FormatSummary = "summary"
)

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{FormatTable, FormatJSON, FormatSummary}

// TrustFlags select the signer trust set.
type TrustFlags struct {
	TrustAnchors []string // --trust-anchor
	TrustedRoot  string   // --trusted-root
}

func (o *TrustFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&o.TrustAnchors, "trust-anchor", nil,
		"PEM or DER file of trusted root and intermediate certificates (repeatable)")
	_ = cmd.MarkFlagFilename("trust-anchor", "pem", "crt", "cer", "der")
	cmd.Flags().StringVar(&o.TrustedRoot, "trusted-root", "",
		"Sigstore trusted_root.json whose certificate authorities are trusted")
	_ = cmd.MarkFlagFilename("trusted-root", "json")
}

// Anchors loads and merges every configured trust source.
func (o *TrustFlags) Anchors() (*trust.Anchors, error) {
	anchors, err := trust.LoadAnchors(o.TrustAnchors...)
	if err != nil {
		return nil, err
	}
	if o.TrustedRoot != "" {
		tr, err := trust.LoadTrustedRoot(o.TrustedRoot)
		if err != nil {
			return nil, err
		}
		anchors = anchors.Merge(tr)
	}
	return anchors, nil
}

// RevocationFlags configure OCSP checking.
type RevocationFlags struct {
	CheckRevocation bool          // --check-revocation
	OCSPURL         string        // --ocsp-url
	Timeout         time.Duration // --revocation-timeout
	Retries         int           // --revocation-retries
}

func (o *RevocationFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.CheckRevocation, "check-revocation", false,
		"query OCSP responders named in signing certificates")
	cmd.Flags().StringVar(&o.OCSPURL, "ocsp-url", "",
		"OCSP responder to query instead of the one in the certificate; implies --check-revocation")
	cmd.Flags().DurationVar(&o.Timeout, "revocation-timeout", trust.DefaultOCSPTimeout,
		"timeout of each OCSP attempt")
	cmd.Flags().IntVar(&o.Retries, "revocation-retries", trust.DefaultOCSPRetries,
		"OCSP attempts after the first; negative disables retries")
}

// Checker returns the configured revocation checker, or nil when
// revocation checking is off.
func (o *RevocationFlags) Checker(logger logging.Logger) trust.RevocationChecker {
	if !o.CheckRevocation && o.OCSPURL == "" {
		return nil
	}
	return trust.NewOCSPChecker(trust.OCSPConfig{
		URL:     o.OCSPURL,
		Timeout: o.Timeout,
		Retries: o.Retries,
		Logger:  logger,
	})
}

// EngineFlags are shared by every command that verifies assets.
type EngineFlags struct {
	TrustFlags
	RevocationFlags
	Concurrency   int    // --concurrency
	IngredientDir string // --ingredient-dir
}

func (o *EngineFlags) AddFlags(cmd *cobra.Command) {
	o.TrustFlags.AddFlags(cmd)
	o.RevocationFlags.AddFlags(cmd)
	cmd.Flags().IntVar(&o.Concurrency, "concurrency", 0,
		"maximum claims verified at once per asset (0 uses the engine default)")
	cmd.Flags().StringVar(&o.IngredientDir, "ingredient-dir", "",
		"directory searched for ingredient files by title when their manifests are not embedded")
	_ = cmd.MarkFlagDirname("ingredient-dir")
}

// EngineOptions turns the flags into engine configuration.
func (o *EngineFlags) EngineOptions(logger logging.Logger) (provenance.Options, error) {
	if o.Concurrency < 0 {
		return provenance.Options{}, fmt.Errorf("--concurrency must not be negative, got %d", o.Concurrency)
	}
	anchors, err := o.Anchors()
	if err != nil {
		return provenance.Options{}, err
	}
	opts := provenance.Options{
		Anchors:     anchors,
		Revocation:  o.Checker(logger),
		Concurrency: o.Concurrency,
		Logger:      logger,
	}
	if o.IngredientDir != "" {
		if err := provenance.ValidateDirectory(o.IngredientDir); err != nil {
			return provenance.Options{}, err
		}
		opts.Lookup = provenance.DirectoryLookup(o.IngredientDir)
	}
	return opts, nil
}

// VerifyOptions are the flags of the verify command.
type VerifyOptions struct {
	EngineFlags
	SidecarPath string // --sidecar
	Format      string // --format
	VerifierID  string // --verifier-id
}

var _ Interface = (*VerifyOptions)(nil)

func (o *VerifyOptions) AddFlags(cmd *cobra.Command) {
	o.EngineFlags.AddFlags(cmd)
	cmd.Flags().StringVar(&o.SidecarPath, "sidecar", "",
		"manifest store file to use instead of the one embedded in the asset")
	_ = cmd.MarkFlagFilename("sidecar", "c2pa")
	cmd.Flags().StringVarP(&o.Format, "format", "f", FormatTable,
		"report format (table, json, summary)")
	cmd.Flags().StringVar(&o.VerifierID, "verifier-id", provenance.DefaultVerifierID,
		"verifier id recorded in summary reports")
}

// Validate checks flag combinations that cobra cannot.
func (o *VerifyOptions) Validate() error {
	for _, f := range ValidFormats {
		if o.Format == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported --format %q, want one of %v", o.Format, ValidFormats)
}

// LoadAsset reads the asset at path, attaching the --sidecar store when
// given and the neighbouring .c2pa file otherwise.
func (o *VerifyOptions) LoadAsset(path string) (*asset.Asset, error) {
	if o.SidecarPath == "" {
		return asset.LoadFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading asset %s: %w", path, err)
	}
	sidecar, err := os.ReadFile(o.SidecarPath)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar %s: %w", o.SidecarPath, err)
	}
	return asset.New(data, asset.MIMEFromExt(filepath.Ext(path)),
		asset.WithName(filepath.Base(path)),
		asset.WithSidecar(sidecar),
	), nil
}

// CompareOptions are the flags of the compare command.
type CompareOptions struct {
	EngineFlags
}

var _ Interface = (*CompareOptions)(nil)

func (o *CompareOptions) AddFlags(cmd *cobra.Command) {
	o.EngineFlags.AddFlags(cmd)
}
