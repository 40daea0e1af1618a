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
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/sigstore/content-credentials/internal/fixture"
	"github.com/sigstore/content-credentials/pkg/asset"
	"github.com/sigstore/content-credentials/pkg/verify"
)

func snapshotAsset(t *testing.T) (*fixture.PKI, []byte) {
	t.Helper()
	pki := fixture.NewPKI(t)
	data, _ := fixture.NewBuilder(t, pki).SignedJPEG(fixture.Manifest{
		Title:         "photo.jpg",
		Actions:       []string{"c2pa.created"},
		Beta:          true,
		GeneratorInfo: fixture.GeneratorInfo{Name: "Photo Editor", Version: "24.2"},
		Authors: []fixture.Author{
			{Name: "Jane Doe"},
			{Name: "janedoe", ID: "https://social.example.com/@janedoe"},
		},
		Extra: map[string]interface{}{"com.example.rating": map[string]interface{}{"stars": 5, "tags": []string{"b", "a"}}},
	})
	return pki, data
}

func TestSnapshotCanonicalIsDeterministic(t *testing.T) {
	pki, data := snapshotAsset(t)

	var encodings [][]byte
	for i := 0; i < 3; i++ {
		f := verifyBytes(t, newSession(t, pki, Options{}), data)
		snap, err := f.Snapshot()
		if err != nil {
			t.Fatal(err)
		}
		out, err := snap.MarshalCanonical()
		if err != nil {
			t.Fatalf("MarshalCanonical() error = %v", err)
		}
		encodings = append(encodings, out)
	}
	for i := 1; i < len(encodings); i++ {
		if !bytes.Equal(encodings[0], encodings[i]) {
			t.Errorf("encoding %d differs:\n%s\n%s", i, encodings[0], encodings[i])
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	pki, data := snapshotAsset(t)
	f := verifyBytes(t, newSession(t, pki, Options{}), data)
	snap, err := f.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	raw, err := snap.MarshalCanonical()
	if err != nil {
		t.Fatal(err)
	}

	got, err := UnmarshalSnapshot(raw)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot() error = %v", err)
	}
	if got.ID != snap.ID || got.Title != "photo.jpg" || got.Verdict != verify.Trusted {
		t.Errorf("identity fields = %q %q %v", got.ID, got.Title, got.Verdict)
	}
	if got.Recorder != "Photo Editor 24.2" || got.FormatRecorder(RecorderVersion) != "24.2" {
		t.Errorf("recorder = %q / %q", got.Recorder, got.FormatRecorder(RecorderVersion))
	}
	if got.Producer != "Jane Doe" || !got.IsBeta || len(got.SocialAccounts) != 1 {
		t.Errorf("producer=%q beta=%v social=%v", got.Producer, got.IsBeta, got.SocialAccounts)
	}
	if n, ok := got.ActionCount(); !ok || n != 1 {
		t.Errorf("ActionCount() = %d, %v", n, ok)
	}
	if _, ok := got.Assertions["com.example.rating"]; !ok {
		t.Error("custom assertion missing from snapshot")
	}

	again, err := got.MarshalCanonical()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, again) {
		t.Errorf("canonical form changed across a round trip:\n%s\n%s", raw, again)
	}
}

func TestUnmarshalSnapshotErrors(t *testing.T) {
	for _, in := range []string{`not json`, `{}`, `{"id": "x", "verdict": "Sideways"}`} {
		if _, err := UnmarshalSnapshot([]byte(in)); !verify.IsType(err, verify.ErrTypeDecode) {
			t.Errorf("UnmarshalSnapshot(%s) error = %v, want decode error", in, err)
		}
	}
}

func TestVerificationSummary(t *testing.T) {
	pki, data := snapshotAsset(t)
	f := verifyBytes(t, newSession(t, pki, Options{}), data, asset.WithName("photo.jpg"))

	st, err := f.VerificationSummary(SummaryOptions{})
	if err != nil {
		t.Fatalf("VerificationSummary() error = %v", err)
	}
	sum := sha256.Sum256(data)
	if len(st.GetSubject()) != 1 || st.GetSubject()[0].GetDigest()["sha256"] != hex.EncodeToString(sum[:]) {
		t.Errorf("subject = %v", st.GetSubject())
	}
	if st.GetSubject()[0].GetName() != "photo.jpg" {
		t.Errorf("subject name = %q", st.GetSubject()[0].GetName())
	}
	if st.GetPredicateType() != VSAPredicateType || st.GetType() != StatementType {
		t.Errorf("types = %q, %q", st.GetType(), st.GetPredicateType())
	}
	fields := st.GetPredicate().GetFields()
	if got := fields["verificationResult"].GetStringValue(); got != "PASSED" {
		t.Errorf("verificationResult = %q, want PASSED", got)
	}
	if got := fields["verifier"].GetStructValue().GetFields()["id"].GetStringValue(); got != DefaultVerifierID {
		t.Errorf("verifier.id = %q", got)
	}
	if got := len(fields["inputAttestations"].GetListValue().GetValues()); got != 1 {
		t.Errorf("len(inputAttestations) = %d, want 1", got)
	}

	raw, err := MarshalSummary(st)
	if err != nil {
		t.Fatalf("MarshalSummary() error = %v", err)
	}
	back, err := UnmarshalSummary(raw)
	if err != nil {
		t.Fatalf("UnmarshalSummary() error = %v", err)
	}
	if back.GetPredicate().GetFields()["resourceUri"].GetStringValue() != "photo.jpg" {
		t.Errorf("round trip lost resourceUri: %s", raw)
	}
}

func TestVerificationSummaryFailed(t *testing.T) {
	pki := fixture.NewPKI(t)
	f := verifyBytes(t, newSession(t, pki, Options{}), fixture.MinimalJPEG())
	st, err := f.VerificationSummary(SummaryOptions{VerifierID: "https://verifier.example.com", ResourceURI: "file:///tmp/a.jpg"})
	if err != nil {
		t.Fatal(err)
	}
	fields := st.GetPredicate().GetFields()
	if got := fields["verificationResult"].GetStringValue(); got != "FAILED" {
		t.Errorf("verificationResult = %q, want FAILED for an unsigned asset", got)
	}
	if got := fields["verifier"].GetStructValue().GetFields()["id"].GetStringValue(); got != "https://verifier.example.com" {
		t.Errorf("verifier.id = %q", got)
	}
}

func TestDirectoryLookup(t *testing.T) {
	pki := fixture.NewPKI(t)
	b := fixture.NewBuilder(t, pki)
	parentLabel := fixture.NewLabel()
	parent, _ := b.SignedJPEG(fixture.Manifest{Label: parentLabel, Title: "parent.jpg"})

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "parent.jpg"), parent, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ValidateDirectory(dir); err != nil {
		t.Fatalf("ValidateDirectory() error = %v", err)
	}

	data, _ := b.SignedJPEG(fixture.Manifest{
		Title: "derived.jpg",
		Ingredients: []fixture.Ingredient{
			{Title: "parent.jpg"},
			{Title: "../parent.jpg"},
			{Title: "absent.jpg"},
		},
	})
	s := newSession(t, pki, Options{Lookup: DirectoryLookup(dir)})
	f, err := s.Verify(context.Background(), asset.New(data, asset.MIMEJPEG))
	if err != nil {
		t.Fatal(err)
	}
	ings, err := f.Ingredients()
	if err != nil {
		t.Fatal(err)
	}
	if len(ings) != 3 {
		t.Fatalf("len(Ingredients()) = %d, want 3", len(ings))
	}
	if c, ok := ings[0].Claim(); !ok || c.ID() != parentLabel || ings[0].Verdict != verify.Trusted {
		t.Errorf("ingredient 0 = %+v", ings[0])
	}
	for _, ing := range ings[1:] {
		if _, ok := ing.Claim(); ok || ing.Verdict != verify.Incomplete {
			t.Errorf("ingredient %q resolved = %v, verdict %v", ing.Title, ok, ing.Verdict)
		}
	}
}

func TestValidateDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{file, filepath.Join(t.TempDir(), "absent")} {
		if err := ValidateDirectory(dir); !verify.IsType(err, verify.ErrTypeConfiguration) {
			t.Errorf("ValidateDirectory(%s) error = %v", dir, err)
		}
	}
}
