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

package trust

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/sigstore/content-credentials/pkg/logging"
	"github.com/sigstore/content-credentials/pkg/tracing"
	"github.com/sigstore/content-credentials/pkg/verify"
)

// RevocationStatus is the answer of a revocation source.
type RevocationStatus int

const (
	RevocationGood RevocationStatus = iota
	RevocationRevoked
	RevocationUnknown
)

func (s RevocationStatus) String() string {
	switch s {
	case RevocationGood:
		return "good"
	case RevocationRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// RevocationChecker consults a revocation source for cert, issued by
// issuer. Unreachable or inconclusive sources yield RevocationUnknown; an
// error is returned only when ctx is done.
type RevocationChecker interface {
	Check(ctx context.Context, cert, issuer *x509.Certificate) (RevocationStatus, error)
}

// Defaults for OCSPConfig.
const (
	DefaultOCSPTimeout = 5 * time.Second
	DefaultOCSPRetries = 1
	maxOCSPResponse    = 1 << 20
)

// OCSPConfig configures OCSP revocation checking.
type OCSPConfig struct {
	// URL overrides the responder named in the certificate.
	URL string
	// Timeout bounds each attempt. Zero means DefaultOCSPTimeout.
	Timeout time.Duration
	// Retries is the number of attempts after the first. Negative means
	// none; zero means DefaultOCSPRetries.
	Retries int
	// Client defaults to a client without its own timeout.
	Client *http.Client
	Logger logging.Logger
}

// OCSPChecker is a RevocationChecker that queries an OCSP responder.
type OCSPChecker struct {
	url     string
	timeout time.Duration
	retries int
	client  *http.Client
	logger  logging.Logger
}

var _ RevocationChecker = (*OCSPChecker)(nil)

// NewOCSPChecker applies defaults to cfg.
func NewOCSPChecker(cfg OCSPConfig) *OCSPChecker {
	c := &OCSPChecker{
		url:     cfg.URL,
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		client:  cfg.Client,
		logger:  logging.EnsureLogger(cfg.Logger),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultOCSPTimeout
	}
	switch {
	case c.retries == 0:
		c.retries = DefaultOCSPRetries
	case c.retries < 0:
		c.retries = 0
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	return c
}

// Check implements RevocationChecker.
func (c *OCSPChecker) Check(ctx context.Context, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	ctx, span := tracing.Start(ctx, "CheckRevocation")
	defer span.End()

	url := c.url
	if url == "" && len(cert.OCSPServer) > 0 {
		url = cert.OCSPServer[0]
	}
	if url == "" {
		c.logger.Debug("no OCSP responder for %s", cert.Subject.CommonName)
		return RevocationUnknown, nil
	}
	span.SetAttribute("ocsp.url", url)

	req, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		c.logger.Warn("building OCSP request: %v", err)
		return RevocationUnknown, nil
	}

	attempts := 1 + c.retries
	for i := 0; i < attempts; i++ {
		status, err := c.query(ctx, url, req, cert, issuer)
		if err == nil {
			span.SetAttribute("ocsp.status", status.String())
			return status, nil
		}
		if ctx.Err() != nil {
			return RevocationUnknown, verify.NewVerificationError(verify.ErrTypeCancelled, "revocation check cancelled", ctx.Err())
		}
		c.logger.WithFields(map[string]interface{}{
			"url":     url,
			"attempt": i + 1,
		}).Warn("OCSP query failed: %v", err)
	}
	span.SetAttribute("ocsp.status", RevocationUnknown.String())
	return RevocationUnknown, nil
}

func (c *OCSPChecker) query(ctx context.Context, url string, body []byte, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return RevocationUnknown, err
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.client.Do(req)
	if err != nil {
		return RevocationUnknown, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RevocationUnknown, fmt.Errorf("OCSP responder returned %s", resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxOCSPResponse))
	if err != nil {
		return RevocationUnknown, err
	}
	parsed, err := ocsp.ParseResponseForCert(raw, cert, issuer)
	if err != nil {
		return RevocationUnknown, fmt.Errorf("parsing OCSP response: %w", err)
	}
	switch parsed.Status {
	case ocsp.Good:
		return RevocationGood, nil
	case ocsp.Revoked:
		return RevocationRevoked, nil
	default:
		// A definitive "unknown" answer is not retried.
		return RevocationUnknown, nil
	}
}
