// Package drugref holds the anticoagulant reference list and an optional
// passthrough lookup against an external drug reference API.
package drugref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Anticoagulants is the blood-thinner reference list shown when a patient
// reports anticoagulant use. Includes antiplatelets; for lifting and
// transport decisions they are handled identically.
var Anticoagulants = []string{
	"Warfarin", "Aspirin", "Clopidogrel", "Ticagrelor", "Prasugrel",
	"Apixaban", "Rivaroxaban", "Dabigatran", "Edoxaban", "Heparin",
	"LMWH", "Fondaparinux",
}

// IsAnticoagulant reports whether the named drug is on the reference list.
// Matching is case-insensitive.
func IsAnticoagulant(name string) bool {
	for _, d := range Anticoagulants {
		if strings.EqualFold(d, name) {
			return true
		}
	}
	return false
}

// Entry is one drug record from the external reference.
type Entry struct {
	Name        string `json:"name"`
	Class       string `json:"class,omitempty"`
	Description string `json:"description,omitempty"`
}

// Client queries an external drug reference endpoint. Lookups are best
// effort: the checklist never blocks on the reference being reachable.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a lookup client. An empty endpoint disables lookups.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether an external endpoint is configured.
func (c *Client) Enabled() bool { return c.endpoint != "" }

// Lookup queries the reference endpoint for a drug by name.
func (c *Client) Lookup(ctx context.Context, name string) (*Entry, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("drug reference endpoint not configured")
	}
	if name == "" {
		return nil, fmt.Errorf("drug name is required")
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drug lookup failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("drug %q not found", name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("drug reference returned %d: %s", resp.StatusCode, string(body))
	}

	var entry Entry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if entry.Name == "" {
		entry.Name = name
	}
	return &entry, nil
}
