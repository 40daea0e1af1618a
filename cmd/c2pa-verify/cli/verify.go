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

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigstore/content-credentials/cmd/c2pa-verify/cli/options"
	"github.com/sigstore/content-credentials/pkg/provenance"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// ExitUntrusted is the exit status when verification completes but the
// asset's provenance is not trusted.
const ExitUntrusted = 2

// VerdictError reports a completed verification whose verdict is not
// trusted.
type VerdictError struct {
	Asset   string
	Verdict verify.Verdict
}

func (e *VerdictError) Error() string {
	return fmt.Sprintf("%s: provenance is %s", e.Asset, e.Verdict)
}

// ExitCode implements the ExitCoder interface of main.
func (e *VerdictError) ExitCode() int { return ExitUntrusted }

func newEngine(o *options.EngineFlags) (*provenance.Engine, error) {
	logger := ro.NewObservability().Logger
	opts, err := o.EngineOptions(logger)
	if err != nil {
		return nil, err
	}
	return provenance.NewEngine(opts)
}

func runVerify(ctx context.Context, cmd *cobra.Command, o *options.VerifyOptions, path string) error {
	if err := o.Validate(); err != nil {
		return err
	}
	engine, err := newEngine(&o.EngineFlags)
	if err != nil {
		return err
	}
	a, err := o.LoadAsset(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, ro.Timeout)
	defer cancel()
	session := engine.NewSession()
	defer session.Close()

	f, err := session.Verify(ctx, a)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch o.Format {
	case options.FormatJSON:
		err = writeJSON(w, a.Name(), f)
	case options.FormatSummary:
		err = writeSummary(w, f, provenance.SummaryOptions{VerifierID: o.VerifierID, ResourceURI: path})
	default:
		err = writeTable(w, a.Name(), f)
	}
	if err != nil {
		return err
	}

	v, err := f.OverallVerdict()
	if err != nil {
		return err
	}
	if v.Category() != verify.Trusted.Category() {
		return &VerdictError{Asset: a.Name(), Verdict: v}
	}
	return nil
}

// Verify creates the verify command.
func Verify() *cobra.Command {
	o := &options.VerifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify [OPTIONS] ASSET",
		Short: "Verify the content credentials of an asset.",
		Long: `Verify the content credentials of an asset.

Locates the manifest store embedded in ASSET (JPEG, PNG or ISO BMFF), or the
store given with --sidecar, and verifies every claim in its provenance graph:
the claim signature and signing certificate against the configured trust
anchors, the hashes binding assertions to the claim, the hard binding to the
asset bytes and the manifests of ingredients.

The exit status is 0 when the overall verdict is trusted, 2 when it is not,
and 1 when verification could not run.`,
		Example: `  c2pa-verify verify photo.jpg --trust-anchor anchors.pem
  c2pa-verify verify photo.jpg --sidecar photo.c2pa --format json
  c2pa-verify verify clip.mp4 --trusted-root trusted_root.json --check-revocation`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), cmd, o, args[0])
		},
	}

	o.AddFlags(cmd)
	return cmd
}
