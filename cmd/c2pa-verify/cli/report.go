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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/sigstore/content-credentials/pkg/provenance"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// report is the JSON form of a verification.
type report struct {
	Asset       string                      `json:"asset"`
	Verdict     verify.Verdict              `json:"verdict"`
	Category    string                      `json:"category"`
	Store       string                      `json:"store,omitempty"`
	ActiveClaim json.RawMessage             `json:"activeClaim,omitempty"`
	Claims      []*provenance.ClaimSnapshot `json:"claims,omitempty"`
	Diagnostics []verify.Diagnostic         `json:"diagnostics"`
}

func buildReport(name string, f *provenance.Facade) (*report, error) {
	v, err := f.OverallVerdict()
	if err != nil {
		return nil, err
	}
	diags, err := f.Diagnostics()
	if err != nil {
		return nil, err
	}
	r := &report{Asset: name, Verdict: v, Category: v.Category(), Diagnostics: failures(diags)}
	if loc, err := f.Location(); err == nil && loc != nil {
		r.Store = loc.Container
	}

	active, err := f.ActiveClaim()
	switch {
	case errors.Is(err, verify.ErrNotFound), verify.IsType(err, verify.ErrTypeDecode):
		return r, nil
	case err != nil:
		return nil, err
	}
	r.ActiveClaim, err = active.Snapshot().MarshalCanonical()
	if err != nil {
		return nil, err
	}
	r.Claims = ingredientSnapshots(active, map[string]bool{active.ID(): true})
	return r, nil
}

// ingredientSnapshots walks the resolved ingredients depth first, listing
// each claim once.
func ingredientSnapshots(c *provenance.ClaimView, seen map[string]bool) []*provenance.ClaimSnapshot {
	var out []*provenance.ClaimSnapshot
	for _, ing := range c.Ingredients() {
		child, ok := ing.Claim()
		if !ok || seen[child.ID()] {
			continue
		}
		seen[child.ID()] = true
		out = append(out, child.Snapshot())
		out = append(out, ingredientSnapshots(child, seen)...)
	}
	return out
}

func failures(diags []verify.Diagnostic) []verify.Diagnostic {
	out := []verify.Diagnostic{}
	for _, d := range diags {
		if d.Failure() {
			out = append(out, d)
		}
	}
	return out
}

func writeJSON(w io.Writer, name string, f *provenance.Facade) error {
	r, err := buildReport(name, f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func writeSummary(w io.Writer, f *provenance.Facade, opts provenance.SummaryOptions) error {
	st, err := f.VerificationSummary(opts)
	if err != nil {
		return err
	}
	out, err := provenance.MarshalSummary(st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}

func writeTable(w io.Writer, name string, f *provenance.Facade) error {
	v, err := f.OverallVerdict()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Asset:\t%s\n", name)
	fmt.Fprintf(tw, "Verdict:\t%s (%s)\n", v, v.Category())

	active, err := f.ActiveClaim()
	switch {
	case errors.Is(err, verify.ErrNotFound):
		fmt.Fprintln(tw, "Content credentials:\tnone")
	case err != nil && verify.IsType(err, verify.ErrTypeDecode):
		fmt.Fprintf(tw, "Content credentials:\tunreadable (%v)\n", err)
	case err != nil:
		return err
	default:
		writeClaim(tw, active)
	}

	diags, err := f.Diagnostics()
	if err != nil {
		return err
	}
	if fails := failures(diags); len(fails) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "CODE\tSUBJECT\tVERDICT\tMESSAGE")
		for _, d := range fails {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Code, d.Subject, d.Verdict, d.Message)
		}
	}
	return tw.Flush()
}

func writeClaim(tw io.Writer, c *provenance.ClaimView) {
	sig := c.Signature()
	signedAt := "unknown"
	if sig.Date != nil {
		signedAt = sig.Date.Format(time.RFC3339)
	}
	actions := "unknown"
	if n, ok := c.ActionCount(); ok {
		actions = strconv.Itoa(n)
	}

	fmt.Fprintf(tw, "Claim:\t%s\n", c.ID())
	fmt.Fprintf(tw, "Title:\t%s\n", c.Title())
	fmt.Fprintf(tw, "Recorder:\t%s\n", c.FormatRecorder(provenance.RecorderNameAndVersion))
	fmt.Fprintf(tw, "Signed by:\t%s\n", orUnknown(sig.Issuer))
	fmt.Fprintf(tw, "Signed at:\t%s\n", signedAt)
	if producer, ok := c.Producer(); ok {
		fmt.Fprintf(tw, "Produced by:\t%s\n", producer)
	}
	for _, s := range c.SocialAccounts() {
		fmt.Fprintf(tw, "Social:\t%s %s\n", s.Name, s.URL)
	}
	fmt.Fprintf(tw, "Actions:\t%s\n", actions)
	if c.IsBeta() {
		fmt.Fprintln(tw, "Beta:\tyes")
	}

	ings := c.Ingredients()
	fmt.Fprintf(tw, "Ingredients:\t%d\n", len(ings))
	if len(ings) == 0 {
		return
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "INGREDIENT\tRELATIONSHIP\tVERDICT\tCLAIM")
	for _, ing := range ings {
		claim := "unresolved"
		if _, ok := ing.Claim(); ok {
			claim = ing.ID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", orUnknown(ing.Title), ing.Relationship, ing.Verdict, claim)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
