/*
 * Configuration resolution - unit tests.
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
package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transip-dns-cli/internal/ipecho"
	"transip-dns-cli/internal/transip/model"
)

// testFlags mirrors the command-line flag set the tool registers.
func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.String("user", "", "")
	f.String("private-key", "", "")
	f.String("private-key-file", "", "")
	f.String("token", "", "")
	f.String("domainname", "", "")
	f.String("record-name", "", "")
	f.String("record-type", "", "")
	f.Int("record-ttl", 0, "")
	f.String("record-data", "", "")
	f.String("query-ipv4", "", "")
	f.String("query-ipv6", "", "")
	f.Bool("list", false, "")
	f.Bool("domains", false, "")
	f.Bool("delete", false, "")
	f.String("log", "INFO", "")
	f.String("log-format", "console", "")
	f.Duration("timeout", 30*time.Second, "")
	f.Uint64("retries", 3, "")
	f.Duration("retry-delay", 5*time.Second, "")
	require.NoError(t, f.Parse(args))
	return f
}

// Test_Resolve_precedence tests that explicit flags override environment
// variables, which override the built-in defaults.
func Test_Resolve_precedence(t *testing.T) {
	t.Setenv("TID_TOKEN", "env-token")
	t.Setenv("TID_DOMAINNAME", "env.example.com")
	t.Setenv("TID_RECORD_NAME", "www")
	t.Setenv("TID_RECORD_DATA", "192.0.2.1")
	t.Setenv("TID_RETRIES", "7")

	flags := testFlags(t, "--domainname", "flag.example.com", "--retry-delay", "1s")

	cfg, err := Resolve(flags)

	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, "flag.example.com", cfg.DomainName, "explicit flag beats environment")
	assert.Equal(t, uint64(7), cfg.Retries, "environment beats default")
	assert.Equal(t, time.Second, cfg.RetryDelay, "explicit flag beats default")
	assert.Equal(t, 30*time.Second, cfg.Timeout, "default survives")
	assert.Equal(t, "A", cfg.RecordType, "type defaults to A")
}

// Test_Resolve_validation tests the rejection of malformed combinations.
func Test_Resolve_validation(t *testing.T) {
	type testCase struct {
		name        string
		env         map[string]string
		args        []string
		expectError string
	}

	base := map[string]string{
		"TID_TOKEN":       "t",
		"TID_DOMAINNAME":  "example.com",
		"TID_RECORD_NAME": "www",
		"TID_RECORD_DATA": "192.0.2.1",
	}

	testCases := []testCase{
		{
			name: "valid baseline",
			env:  base,
		},
		{
			name: "token and login credentials",
			env:  base,
			args: []string{"--user", "someone", "--private-key-file", "/k.pem"},
			expectError: "mutually exclusive",
		},
		{
			name: "no credentials at all",
			env: map[string]string{
				"TID_DOMAINNAME":  "example.com",
				"TID_RECORD_NAME": "www",
				"TID_RECORD_DATA": "192.0.2.1",
			},
			expectError: "access token is required",
		},
		{
			name: "login without a key",
			env: map[string]string{
				"TID_USER":        "someone",
				"TID_DOMAINNAME":  "example.com",
				"TID_RECORD_NAME": "www",
				"TID_RECORD_DATA": "192.0.2.1",
			},
			expectError: "exactly one of the private key",
		},
		{
			name:        "list and delete together",
			env:         base,
			args:        []string{"--list", "--delete"},
			expectError: "mutually exclusive",
		},
		{
			name: "missing domain name",
			env: map[string]string{
				"TID_TOKEN":       "t",
				"TID_RECORD_NAME": "www",
				"TID_RECORD_DATA": "192.0.2.1",
			},
			expectError: "domain name",
		},
		{
			name: "missing record name",
			env: map[string]string{
				"TID_TOKEN":       "t",
				"TID_DOMAINNAME":  "example.com",
				"TID_RECORD_DATA": "192.0.2.1",
			},
			expectError: "record name",
		},
		{
			name:        "unknown record type",
			env:         base,
			args:        []string{"--record-type", "BOGUS"},
			expectError: "unrecognized record type",
		},
		{
			name:        "negative ttl",
			env:         base,
			args:        []string{"--record-ttl", "-1"},
			expectError: "cannot be negative",
		},
		{
			name:        "unknown log level",
			env:         base,
			args:        []string{"--log", "chatty"},
			expectError: "unrecognized log level",
		},
		{
			name:        "unknown log format",
			env:         base,
			args:        []string{"--log-format", "xml"},
			expectError: "unrecognized log format",
		},
		{
			name:        "record data and ip discovery together",
			env:         base,
			args:        []string{"--query-ipv4", "true"},
			expectError: "mutually exclusive",
		},
		{
			name: "no content source for an update",
			env: map[string]string{
				"TID_TOKEN":       "t",
				"TID_DOMAINNAME":  "example.com",
				"TID_RECORD_NAME": "www",
			},
			expectError: "record content is required",
		},
		{
			name: "delete needs no content source",
			env: map[string]string{
				"TID_TOKEN":       "t",
				"TID_DOMAINNAME":  "example.com",
				"TID_RECORD_NAME": "www",
			},
			args: []string{"--delete"},
		},
		{
			name: "listing needs neither record name nor content",
			env: map[string]string{
				"TID_TOKEN":      "t",
				"TID_DOMAINNAME": "example.com",
			},
			args: []string{"--list"},
		},
		{
			name: "domains listing needs no zone",
			env: map[string]string{
				"TID_TOKEN": "t",
			},
			args: []string{"--domains"},
		},
	}

	run := func(t *testing.T, tc testCase) {
		for k, v := range tc.env {
			t.Setenv(k, v)
		}

		_, err := Resolve(testFlags(t, tc.args...))

		if tc.expectError == "" {
			assert.NoError(t, err)
			return
		}
		require.Error(t, err)
		var usageErr *UsageError
		assert.ErrorAs(t, err, &usageErr)
		assert.Contains(t, err.Error(), tc.expectError)
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			run(t, tc)
		})
	}
}

// Test_Config_QueryURL tests the echo-service selection semantics.
func Test_Config_QueryURL(t *testing.T) {
	type testCase struct {
		name     string
		ipv4     string
		ipv6     string
		expected string
	}

	testCases := []testCase{
		{
			name: "discovery disabled",
		},
		{
			name:     "true selects the default ipv4 service",
			ipv4:     "true",
			expected: ipecho.DefaultIPv4URL,
		},
		{
			name:     "1 selects the default ipv4 service",
			ipv4:     "1",
			expected: ipecho.DefaultIPv4URL,
		},
		{
			name: "false stays disabled",
			ipv4: "false",
		},
		{
			name:     "anything else is the echo url itself",
			ipv4:     "https://echo.example.com",
			expected: "https://echo.example.com",
		},
		{
			name:     "true selects the default ipv6 service",
			ipv6:     "true",
			expected: ipecho.DefaultIPv6URL,
		},
	}

	run := func(t *testing.T, tc testCase) {
		cfg := &Config{QueryIPv4: tc.ipv4, QueryIPv6: tc.ipv6}
		assert.Equal(t, tc.expected, cfg.QueryURL())
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			run(t, tc)
		})
	}
}

// Test_Config_normalize tests record type canonicalization.
func Test_Config_normalize(t *testing.T) {
	t.Setenv("TID_TOKEN", "t")
	t.Setenv("TID_DOMAINNAME", "example.com")
	t.Setenv("TID_RECORD_NAME", "www")
	t.Setenv("TID_RECORD_DATA", "::1")

	cfg, err := Resolve(testFlags(t, "--record-type", "aaaa"))

	require.NoError(t, err)
	assert.Equal(t, "AAAA", cfg.RecordType)
}

// Test_Config_noImplicitTypeOnListing tests that a bare listing does not
// inherit the default record type as a filter.
func Test_Config_noImplicitTypeOnListing(t *testing.T) {
	t.Setenv("TID_TOKEN", "t")
	t.Setenv("TID_DOMAINNAME", "example.com")

	cfg, err := Resolve(testFlags(t, "--list"))

	require.NoError(t, err)
	assert.Empty(t, cfg.RecordType)
}

// Test_Config_RecordSpec tests the conversion into a record description.
func Test_Config_RecordSpec(t *testing.T) {
	cfg := &Config{
		DomainName: "example.com",
		RecordName: "www",
		RecordType: "A",
		RecordData: "192.0.2.1",
		RecordTTL:  300,
	}

	spec := cfg.RecordSpec()

	assert.Equal(t, model.RecordSpec{
		Zone:    "example.com",
		Name:    "www",
		Type:    "A",
		Content: "192.0.2.1",
		TTL:     300,
	}, spec)
}
