/*
 * Access token lifecycle - unit tests.
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
package auth

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenServer fakes the authentication endpoint. It verifies the signature
// of every request against the given key and hands out sequentially numbered
// tokens.
func tokenServer(t *testing.T, publicKey *rsa.PublicKey) (*httptest.Server, *int) {
	t.Helper()
	issued := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		signature, err := base64.StdEncoding.DecodeString(r.Header.Get("Signature"))
		require.NoError(t, err)
		digest := sha512.Sum512(payload)
		assert.NoError(t, rsa.VerifyPKCS1v15(publicKey, crypto.SHA512, digest[:], signature),
			"payload signature does not verify")

		var claim map[string]any
		require.NoError(t, json.Unmarshal(payload, &claim))
		assert.Equal(t, "testuser", claim["login"])
		assert.Equal(t, "60 seconds", claim["expiration_time"])
		assert.NotEmpty(t, claim["nonce"])

		issued++
		fmt.Fprintf(w, `{"token": "token-%d"}`, issued)
	}))
	t.Cleanup(server.Close)
	return server, &issued
}

func newTestManager(t *testing.T, authURL string) (*Manager, *rsa.PublicKey) {
	t.Helper()
	keyPEM := testKeyPEM(t)
	m, err := NewManager(Options{
		Login:          "testuser",
		PrivateKey:     keyPEM,
		ExpirationTime: 60,
		AuthURL:        authURL,
	})
	require.NoError(t, err)

	block, _ := pem.Decode([]byte(keyPEM))
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	return m, &parsed.(*rsa.PrivateKey).PublicKey
}

// Test_Manager_Token_caching tests that the token is cached until 90% of its
// lifetime has elapsed, using a mocked clock.
func Test_Manager_Token_caching(t *testing.T) {
	m, pub := newTestManager(t, "")
	server, issued := tokenServer(t, pub)
	m.authURL = server.URL

	epoch := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := epoch
	m.now = func() time.Time { return now }

	first, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", first)

	// Within 90% of the 60s lifetime: the cached token is reused without a
	// network round trip.
	now = epoch.Add(53 * time.Second)
	cached, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, cached)
	assert.Equal(t, 1, *issued)

	// Past 90%: a fresh token is fetched.
	now = epoch.Add(55 * time.Second)
	renewed, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", renewed)
	assert.NotEqual(t, first, renewed)
	assert.Equal(t, 2, *issued)
}

// Test_Manager_Token_endpointError tests that a rejection by the
// authentication endpoint surfaces as an error.
func Test_Manager_Token_endpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": "Authentication failed"}`)
	}))
	t.Cleanup(server.Close)

	m, _ := newTestManager(t, server.URL)

	_, err := m.Token(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication failed")
}

// Test_NewManager_keySources tests the mutually exclusive key construction.
func Test_NewManager_keySources(t *testing.T) {
	keyPEM := testKeyPEM(t)

	type testCase struct {
		name        string
		key         string
		keyFile     string
		expectError bool
	}

	testCases := []testCase{
		{
			name: "key text only",
			key:  keyPEM,
		},
		{
			name:        "neither key nor file",
			expectError: true,
		},
		{
			name:        "both key and file",
			key:         keyPEM,
			keyFile:     "/somewhere/key.pem",
			expectError: true,
		},
	}

	run := func(t *testing.T, tc testCase) {
		_, err := NewManager(Options{
			Login:          "testuser",
			PrivateKey:     tc.key,
			PrivateKeyFile: tc.keyFile,
		})
		if tc.expectError {
			assert.Error(t, err)
		} else {
			assert.NoError(t, err)
		}
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			run(t, tc)
		})
	}
}
