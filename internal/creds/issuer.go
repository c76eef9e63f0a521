// Package creds fetches short-lived connection credentials from the
// credential issuance collaborator.
package creds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Grant is a short-lived access credential. Seed is an opaque secret;
// ExpiresAt is the absolute must-refresh-by time in Unix milliseconds.
type Grant struct {
	Seed      string `json:"seed"`
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
	TTLMs     int64  `json:"ttlMs"`
}

// Expired reports whether the grant's expiry has passed.
func (g *Grant) Expired(now time.Time) bool {
	return now.UnixMilli() >= g.ExpiresAt
}

// Issuer is a client for the credential issuance endpoint.
type Issuer struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewIssuer creates an issuer client for the given endpoint.
func NewIssuer(endpoint string) *Issuer {
	return &Issuer{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Issue fetches a fresh grant. A missing or failing issuer is fatal to the
// caller's connect attempt; there is no degraded-auth mode.
func (i *Issuer) Issue(ctx context.Context) (*Grant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.Endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := i.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("credential issuer error %d: %s", resp.StatusCode, body)
	}

	var grant Grant
	if err := json.Unmarshal(body, &grant); err != nil {
		return nil, fmt.Errorf("credential issuer returned malformed grant: %w", err)
	}
	if grant.Seed == "" {
		return nil, fmt.Errorf("credential issuer returned empty seed")
	}
	return &grant, nil
}
