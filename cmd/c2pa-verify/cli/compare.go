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
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sigstore/content-credentials/cmd/c2pa-verify/cli/options"
	"github.com/sigstore/content-credentials/pkg/asset"
	"github.com/sigstore/content-credentials/pkg/graph"
)

// DiffError reports that two provenance graphs differ.
type DiffError struct {
	Diff *graph.Diff
}

func (e *DiffError) Error() string {
	return fmt.Sprintf("provenance differs: %d added, %d removed, %d changed",
		len(e.Diff.Added), len(e.Diff.Removed), len(e.Diff.Changed))
}

func (e *DiffError) ExitCode() int { return ExitUntrusted }

func runCompare(ctx context.Context, cmd *cobra.Command, o *options.CompareOptions, actualPath, expectedPath string) error {
	engine, err := newEngine(&o.EngineFlags)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, ro.Timeout)
	defer cancel()
	session := engine.NewSession()
	defer session.Close()

	graphOf := func(path string) (*graph.Graph, error) {
		a, err := asset.LoadFile(path)
		if err != nil {
			return nil, err
		}
		f, err := session.Verify(ctx, a)
		if err != nil {
			return nil, err
		}
		return f.Graph()
	}
	actual, err := graphOf(actualPath)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", actualPath, err)
	}
	expected, err := graphOf(expectedPath)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", expectedPath, err)
	}

	d := graph.ComputeDiff(actual, expected)
	if err := writeDiff(cmd.OutOrStdout(), d); err != nil {
		return err
	}
	if !d.IsEmpty() {
		return &DiffError{Diff: d}
	}
	return nil
}

func writeDiff(w io.Writer, d *graph.Diff) error {
	if d.IsEmpty() {
		_, err := fmt.Fprintln(w, "provenance graphs match")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANGE\tCLAIM\tEXPECTED\tACTUAL")
	for _, id := range d.Added {
		fmt.Fprintf(tw, "added\t%s\t-\t\n", id)
	}
	for _, id := range d.Removed {
		fmt.Fprintf(tw, "removed\t%s\t\t-\n", id)
	}
	for _, c := range d.Changed {
		fmt.Fprintf(tw, "verdict\t%s\t%s\t%s\n", c.ID, c.Expected, c.Actual)
	}
	return tw.Flush()
}

// Compare creates the compare command.
func Compare() *cobra.Command {
	o := &options.CompareOptions{}

	cmd := &cobra.Command{
		Use:   "compare [OPTIONS] ASSET EXPECTED",
		Short: "Compare the provenance graphs of two assets.",
		Long: `Compare the provenance graphs of two assets.

Verifies ASSET and EXPECTED with the same trust configuration and lists the
claims present in only one of them and the claims whose verdict differs. The
exit status is 0 when the graphs match and 2 when they differ.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.Context(), cmd, o, args[0], args[1])
		},
	}

	o.AddFlags(cmd)
	return cmd
}
