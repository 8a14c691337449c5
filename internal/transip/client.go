/*
 * Registrar client - authenticated CRUD on a zone's record collection.
 *
 * Copyright 2024 Marco Confalonieri.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package transip talks to the TransIP REST API: it lists a zone's DNS
// records and creates, updates or deletes a single targeted record, retrying
// transient conflicts. Classification of the target against the zone's
// current state lives in this package as well.
package transip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"transip-dns-cli/internal/metrics"
	"transip-dns-cli/internal/transip/model"
)

const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.transip.nl/v6"
	// DefaultTimeout is the connection timeout for API calls.
	DefaultTimeout = 30 * time.Second
	// DefaultRetries is the number of retries after a conflict response.
	DefaultRetries = 3
	// DefaultRetryDelay is the fixed delay between conflict retries.
	DefaultRetryDelay = 5 * time.Second
)

// TokenSource provides a bearer token for API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a pre-issued access token used verbatim.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// ClientOptions configures a Client. The zero value selects the production
// endpoint and the default retry policy.
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    uint64
	RetryDelay time.Duration
	Logger     logrus.FieldLogger
}

// Client performs authenticated CRUD against a remote zone's record
// collection. Conflict (409) responses are retried with a fixed delay; any
// other rejection propagates immediately.
type Client struct {
	http       *http.Client
	baseURL    string
	tokens     TokenSource
	retries    uint64
	retryDelay time.Duration
	log        logrus.FieldLogger
}

// NewClient returns a client drawing bearer tokens from the given source.
func NewClient(tokens TokenSource, opts ClientOptions) *Client {
	c := &Client{
		http:       &http.Client{Timeout: opts.Timeout},
		baseURL:    opts.BaseURL,
		tokens:     tokens,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		log:        opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		c.http.Timeout = DefaultTimeout
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c
}

// dnsEntry is the wire representation of a record. The API calls the TTL
// "expire".
type dnsEntry struct {
	Name    string `json:"name"`
	Expire  int    `json:"expire"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type dnsEntryRequest struct {
	DNSEntry dnsEntry `json:"dnsEntry"`
}

type dnsEntriesResponse struct {
	DNSEntries []dnsEntry `json:"dnsEntries"`
}

type domainsResponse struct {
	Domains []struct {
		Name string `json:"name"`
	} `json:"domains"`
}

// ListEntries returns the zone's current record set.
func (c *Client) ListEntries(ctx context.Context, zone string) ([]model.RecordEntry, error) {
	body, err := c.do(ctx, "list", http.MethodGet, "/domains/"+zone+"/dns", nil)
	if err != nil {
		return nil, err
	}
	var listing dnsEntriesResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decoding zone listing: %w", err)
	}
	entries := make([]model.RecordEntry, 0, len(listing.DNSEntries))
	for _, e := range listing.DNSEntries {
		entries = append(entries, model.RecordEntry{
			Name:    e.Name,
			Type:    e.Type,
			Content: e.Content,
			TTL:     model.TTL(e.Expire),
		})
	}
	return entries, nil
}

// Domains returns the names of the domains in the account.
func (c *Client) Domains(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, "domains", http.MethodGet, "/domains", nil)
	if err != nil {
		return nil, err
	}
	var listing domainsResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decoding domain listing: %w", err)
	}
	names := make([]string, 0, len(listing.Domains))
	for _, d := range listing.Domains {
		names = append(names, d.Name)
	}
	return names, nil
}

// CreateEntry adds a record to the zone.
func (c *Client) CreateEntry(ctx context.Context, zone string, entry model.RecordEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	_, err := c.do(ctx, "create", http.MethodPost, "/domains/"+zone+"/dns", entryRequest(entry))
	return err
}

// UpdateEntry replaces the content of an existing record.
func (c *Client) UpdateEntry(ctx context.Context, zone string, entry model.RecordEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	_, err := c.do(ctx, "update", http.MethodPatch, "/domains/"+zone+"/dns", entryRequest(entry))
	return err
}

// DeleteEntry removes a record from the zone.
func (c *Client) DeleteEntry(ctx context.Context, zone string, entry model.RecordEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	_, err := c.do(ctx, "delete", http.MethodDelete, "/domains/"+zone+"/dns", entryRequest(entry))
	return err
}

// validateEntry guards the mutating calls: the API rejects entries that are
// not fully populated, so catch that before going on the wire.
func validateEntry(entry model.RecordEntry) error {
	if entry.Name == "" || entry.Type == "" || entry.Content == "" || !entry.TTL.Configured() {
		return fmt.Errorf("record name, type, content and ttl are all required, got %+v", entry)
	}
	return nil
}

func entryRequest(entry model.RecordEntry) *dnsEntryRequest {
	return &dnsEntryRequest{DNSEntry: dnsEntry{
		Name:    entry.Name,
		Expire:  int(entry.TTL),
		Type:    entry.Type,
		Content: entry.Content,
	}}
}

// do performs one authenticated API call. A 409 response is retried up to
// the configured retry budget with a fixed delay; any other error response
// is permanent. On success the response body is returned.
func (c *Client) do(ctx context.Context, action, method, path string, body *dnsEntryRequest) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}
	url := c.baseURL + path
	m := metrics.GetOpenMetricsInstance()

	var responseBody []byte
	attempt := func() error {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("acquiring access token: %w", err))
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s %s: %w", method, url, err))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("reading response body: %w", err))
		}

		c.log.Debugf("API request returned %d (%s %s)", resp.StatusCode, method, path)
		m.ObserveRateLimits(resp.Header)

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			responseBody = data
			return nil
		}

		httpErr := newHTTPError(method, url, resp.StatusCode, data)
		if resp.StatusCode == http.StatusConflict {
			m.IncConflictRetriesTotal(action)
			return httpErr
		}
		return backoff.Permanent(error(httpErr))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), c.retries),
		ctx,
	)
	if err := backoff.Retry(attempt, policy); err != nil {
		m.IncFailedApiCallsTotal(action)
		return nil, err
	}
	m.IncSuccessfulApiCallsTotal(action)
	return responseBody, nil
}
