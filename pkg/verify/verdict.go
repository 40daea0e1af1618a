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

// Package verify defines the verdicts, diagnostics and errors shared by
// every stage of Content Credentials verification.
package verify

import (
	"fmt"
	"strings"
)

// Verdict is the categorical outcome of verifying a claim.
//
// Verdicts form a total order from best to worst, so aggregating a graph
// is a max reduction. Unsigned sits below every other verdict and is only
// produced for assets that carry no manifest at all.
type Verdict int

const (
	Unsigned Verdict = iota
	Trusted
	RevocationUnknown
	Incomplete
	UntrustedIssuer
	Revoked
	InvalidSignature
	Tampered
)

var verdictNames = map[Verdict]string{
	Unsigned:          "Unsigned",
	Trusted:           "Trusted",
	RevocationUnknown: "RevocationUnknown",
	Incomplete:        "Incomplete",
	UntrustedIssuer:   "UntrustedIssuer",
	Revoked:           "Revoked",
	InvalidSignature:  "InvalidSignature",
	Tampered:          "Tampered",
}

func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// ParseVerdict parses the String form of a verdict, case-insensitively.
func ParseVerdict(s string) (Verdict, error) {
	for v, name := range verdictNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return v, nil
		}
	}
	return Unsigned, fmt.Errorf("unknown verdict %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (v Verdict) MarshalText() ([]byte, error) {
	if _, ok := verdictNames[v]; !ok {
		return nil, fmt.Errorf("unknown verdict %d", int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(text []byte) error {
	parsed, err := ParseVerdict(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// WorseThan reports whether v ranks strictly worse than other.
func (v Verdict) WorseThan(other Verdict) bool {
	return v > other
}

// Category collapses a verdict into the coarse Trusted, Untrusted,
// Tampered, Incomplete or Unsigned classes shown to end users.
// RevocationUnknown downgrades trust without failing it and stays Trusted.
func (v Verdict) Category() string {
	switch v {
	case Trusted, RevocationUnknown:
		return "Trusted"
	case UntrustedIssuer, Revoked, InvalidSignature:
		return "Untrusted"
	case Tampered:
		return "Tampered"
	case Incomplete:
		return "Incomplete"
	default:
		return "Unsigned"
	}
}

// Worst returns the worst of the given verdicts, or Unsigned if none.
func Worst(verdicts ...Verdict) Verdict {
	worst := Unsigned
	for _, v := range verdicts {
		if v > worst {
			worst = v
		}
	}
	return worst
}
