/*
 * Access token lifecycle - request, cache and proactive renewal.
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

// Package auth obtains short-lived TransIP access tokens. A Manager signs a
// claim payload with the account's RSA private key, exchanges it at the
// authentication endpoint and caches the returned token until 90% of its
// lifetime has elapsed. The API offers no way to invalidate a token, so
// expiry alone bounds its validity; tokens are never persisted across
// processes.
package auth

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultAuthURL is the production authentication endpoint.
	DefaultAuthURL = "https://api.transip.nl/v6/auth"
	// DefaultExpirationTime is the requested token lifetime in seconds. The
	// token only has to outlive the handful of calls made in one run.
	DefaultExpirationTime = 60
	// DefaultTimeout is the connection timeout for the token request.
	DefaultTimeout = 30 * time.Second
	// DefaultLabel identifies tokens issued by this tool in the control
	// panel.
	DefaultLabel = "transip-dns-cli"

	// renewalFraction is the part of the token lifetime after which a fresh
	// token is fetched before any authenticated call proceeds.
	renewalFraction = 0.9
)

// Options configures a Manager. Exactly one of PrivateKey and PrivateKeyFile
// must be set.
type Options struct {
	// Login is the TransIP account name.
	Login string
	// PrivateKey is the account's private key in PEM text.
	PrivateKey string
	// PrivateKeyFile is a path to the private key in PEM format.
	PrivateKeyFile string
	// ExpirationTime is the requested token lifetime in seconds.
	ExpirationTime int
	// ReadOnly requests a token that cannot change objects.
	ReadOnly bool
	// GlobalKey requests a token usable outside whitelisted addresses.
	GlobalKey bool
	// Label is a textual identifier for the token.
	Label string
	// AuthURL overrides the authentication endpoint.
	AuthURL string
	// Timeout bounds the token request.
	Timeout time.Duration
}

// Manager owns a signed authentication credential and refreshes it
// transparently before expiry. It is not safe for concurrent use; the tool
// runs a single synchronous invocation.
type Manager struct {
	login     string
	key       *rsa.PrivateKey
	ttl       int
	readOnly  bool
	globalKey bool
	label     string
	authURL   string
	http      *http.Client

	// now is the clock, replaceable in tests.
	now func() time.Time

	token    string
	issuedAt time.Time
}

// NewManager validates the options, loads and parses the private key and
// returns a Manager. No network call is made until the first Token call.
func NewManager(opts Options) (*Manager, error) {
	if (opts.PrivateKey == "") == (opts.PrivateKeyFile == "") {
		return nil, fmt.Errorf("either a private key or a private key file must be specified, but not both")
	}

	keyPEM := opts.PrivateKey
	if opts.PrivateKeyFile != "" {
		data, err := os.ReadFile(opts.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading private key file: %w", err)
		}
		keyPEM = string(data)
	}

	key, err := serializePrivateKey(keyPEM)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		login:     opts.Login,
		key:       key,
		ttl:       opts.ExpirationTime,
		readOnly:  opts.ReadOnly,
		globalKey: opts.GlobalKey,
		label:     opts.Label,
		authURL:   opts.AuthURL,
		http:      &http.Client{Timeout: opts.Timeout},
		now:       time.Now,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultExpirationTime
	}
	if m.label == "" {
		m.label = DefaultLabel
	}
	if m.authURL == "" {
		m.authURL = DefaultAuthURL
	}
	if opts.Timeout <= 0 {
		m.http.Timeout = DefaultTimeout
	}
	return m, nil
}

// Token returns a valid access token, requesting a new one when none is
// cached or when the cached one is past 90% of its lifetime.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if m.token == "" || m.nearlyExpired() {
		if err := m.requestToken(ctx); err != nil {
			return "", err
		}
	}
	return m.token, nil
}

// nearlyExpired tests whether 90% of the token lifetime has passed.
func (m *Manager) nearlyExpired() bool {
	elapsed := m.now().Sub(m.issuedAt)
	margin := time.Duration(float64(m.ttl) * renewalFraction * float64(time.Second))
	return elapsed > margin
}

// tokenRequest is the claim payload submitted to the authentication
// endpoint.
type tokenRequest struct {
	Login          string `json:"login"`
	Nonce          int64  `json:"nonce"`
	ReadOnly       bool   `json:"read_only"`
	ExpirationTime string `json:"expiration_time"`
	Label          string `json:"label"`
	GlobalKey      bool   `json:"global_key"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// requestToken builds the claim payload, signs it and exchanges it for a
// fresh token.
func (m *Manager) requestToken(ctx context.Context) error {
	now := m.now()
	payload, err := json.Marshal(tokenRequest{
		Login:          m.login,
		Nonce:          now.UnixNano(),
		ReadOnly:       m.readOnly,
		ExpirationTime: fmt.Sprintf("%d seconds", m.ttl),
		Label:          fmt.Sprintf("%s (%d)", m.label, now.Unix()),
		GlobalKey:      m.globalKey,
	})
	if err != nil {
		return fmt.Errorf("encoding token request: %w", err)
	}

	signature, err := m.sign(payload)
	if err != nil {
		return fmt.Errorf("signing token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.authURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Signature", signature)

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("requesting access token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr errorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("authentication endpoint returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("authentication endpoint returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("decoding token response: %w", err)
	}
	if tr.Token == "" {
		return fmt.Errorf("authentication endpoint returned an empty token")
	}

	m.token = tr.Token
	m.issuedAt = now
	log.Debugf("Obtained access token valid for %d seconds", m.ttl)
	return nil
}

// sign produces the base64 PKCS#1v1.5 signature over a SHA-512 digest of the
// exact payload bytes.
func (m *Manager) sign(payload []byte) (string, error) {
	digest := sha512.Sum512(payload)
	signature, err := rsa.SignPKCS1v15(rand.Reader, m.key, crypto.SHA512, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}
