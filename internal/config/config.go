/*
 * Configuration resolution - defaults, environment and explicit arguments.
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

// Package config resolves the tool's parameters by layering three sources
// with documented precedence: explicit command-line arguments override TID_*
// environment variables, which override built-in defaults. The core packages
// only ever see a fully-resolved configuration.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"transip-dns-cli/internal/ipecho"
	"transip-dns-cli/internal/transip/model"
)

// UsageError marks a malformed or unrecognized input combination, reported
// before any network call and mapped to its own exit code.
type UsageError struct {
	msg string
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	return e.msg
}

func usageErrorf(format string, args ...any) error {
	return &UsageError{msg: fmt.Sprintf(format, args...)}
}

// Config contains the resolved parameters of one invocation.
type Config struct {
	// Credential source: either login plus exactly one private key form, or
	// a pre-issued access token.
	User           string `env:"TID_USER"`
	PrivateKey     string `env:"TID_PRIVATE_KEY"`
	PrivateKeyFile string `env:"TID_PRIVATE_KEY_FILE"`
	Token          string `env:"TID_TOKEN"`

	// Targeted record.
	DomainName string `env:"TID_DOMAINNAME"`
	RecordName string `env:"TID_RECORD_NAME"`
	RecordType string `env:"TID_RECORD_TYPE"`
	RecordTTL  int    `env:"TID_RECORD_TTL"`
	RecordData string `env:"TID_RECORD_DATA"`

	// IP discovery. "true"/"1" selects the default echo service, any other
	// non-false value is used as the echo URL itself.
	QueryIPv4 string `env:"TID_QUERY_IPV4"`
	QueryIPv6 string `env:"TID_QUERY_IPV6"`

	// Actions. Without any of these the record is created or updated.
	List    bool `env:"TID_LIST"`
	Domains bool `env:"TID_DOMAINS"`
	Delete  bool `env:"TID_DELETE"`

	// Logging.
	Log       string `env:"TID_LOG" envDefault:"INFO"`
	LogFormat string `env:"TID_LOG_FORMAT" envDefault:"console"`

	// Connection parameters.
	Timeout    time.Duration `env:"TID_TIMEOUT" envDefault:"30s"`
	Retries    uint64        `env:"TID_RETRIES" envDefault:"3"`
	RetryDelay time.Duration `env:"TID_RETRY_DELAY" envDefault:"5s"`
	TokenTTL   int           `env:"TID_TOKEN_TTL" envDefault:"60"`
	AuthURL    string        `env:"TID_AUTH_URL" envDefault:"https://api.transip.nl/v6/auth"`
	APIURL     string        `env:"TID_API_URL" envDefault:"https://api.transip.nl/v6"`
}

// Resolve layers defaults, environment variables and explicit flags into a
// validated configuration. Only flags that were actually set on the command
// line override the environment.
func Resolve(flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, usageErrorf("reading configuration from environment: %v", err)
	}
	if flags != nil {
		cfg.applyFlags(flags)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies every explicitly set flag over the environment-derived
// value.
func (c *Config) applyFlags(flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		value := f.Value.String()
		switch f.Name {
		case "user":
			c.User = value
		case "private-key":
			c.PrivateKey = value
		case "private-key-file":
			c.PrivateKeyFile = value
		case "token":
			c.Token = value
		case "domainname":
			c.DomainName = value
		case "record-name":
			c.RecordName = value
		case "record-type":
			c.RecordType = value
		case "record-ttl":
			c.RecordTTL, _ = strconv.Atoi(value)
		case "record-data":
			c.RecordData = value
		case "query-ipv4":
			c.QueryIPv4 = value
		case "query-ipv6":
			c.QueryIPv6 = value
		case "list":
			c.List = value == "true"
		case "domains":
			c.Domains = value == "true"
		case "delete":
			c.Delete = value == "true"
		case "log":
			c.Log = value
		case "log-format":
			c.LogFormat = value
		case "timeout":
			c.Timeout, _ = time.ParseDuration(value)
		case "retries":
			c.Retries, _ = strconv.ParseUint(value, 10, 64)
		case "retry-delay":
			c.RetryDelay, _ = time.ParseDuration(value)
		}
	})
}

// normalize canonicalizes the record type and applies the default type. A
// bare listing carries no implicit type filter.
func (c *Config) normalize() {
	c.RecordType = strings.ToUpper(strings.TrimSpace(c.RecordType))
	if c.RecordType == "" && !c.List && !c.Domains {
		c.RecordType = "A"
	}
}

// validate rejects malformed or mutually exclusive parameter combinations.
// All checks run before any network call.
func (c *Config) validate() error {
	if c.Token != "" && (c.User != "" || c.PrivateKey != "" || c.PrivateKeyFile != "") {
		return usageErrorf("an access token and login credentials are mutually exclusive")
	}
	if c.Token == "" {
		if c.User == "" {
			return usageErrorf("a login name (with a private key) or an access token is required")
		}
		if (c.PrivateKey == "") == (c.PrivateKeyFile == "") {
			return usageErrorf("exactly one of the private key and the private key file must be given")
		}
	}

	actions := 0
	for _, set := range []bool{c.List, c.Domains, c.Delete} {
		if set {
			actions++
		}
	}
	if actions > 1 {
		return usageErrorf("list, domains and delete are mutually exclusive")
	}

	if !c.Domains && c.DomainName == "" {
		return usageErrorf("a domain name (the targeted zone) is required")
	}
	if !c.List && !c.Domains && c.RecordName == "" {
		return usageErrorf("a record name is required")
	}
	if c.RecordType != "" && !model.ValidRecordType(c.RecordType) {
		return usageErrorf("unrecognized record type %q; supported types: %s",
			c.RecordType, strings.Join(model.RecordTypes(), ", "))
	}
	if c.RecordTTL < 0 {
		return usageErrorf("the record TTL cannot be negative")
	}

	if _, err := logrus.ParseLevel(c.Log); err != nil {
		return usageErrorf("unrecognized log level %q", c.Log)
	}
	if c.LogFormat != "console" && c.LogFormat != "fileformat" {
		return usageErrorf("unrecognized log format %q; use console or fileformat", c.LogFormat)
	}

	sources := 0
	if c.RecordData != "" {
		sources++
	}
	if queryURL(c.QueryIPv4, ipecho.DefaultIPv4URL) != "" {
		sources++
	}
	if queryURL(c.QueryIPv6, ipecho.DefaultIPv6URL) != "" {
		sources++
	}
	if sources > 1 {
		return usageErrorf("record data and IP discovery are mutually exclusive")
	}
	if sources == 0 && !c.List && !c.Domains && !c.Delete {
		return usageErrorf("record content is required: provide record data or enable IP discovery")
	}
	return nil
}

// QueryURL returns the echo service URL when IP discovery is requested, or
// an empty string.
func (c *Config) QueryURL() string {
	if u := queryURL(c.QueryIPv4, ipecho.DefaultIPv4URL); u != "" {
		return u
	}
	return queryURL(c.QueryIPv6, ipecho.DefaultIPv6URL)
}

func queryURL(value, defaultURL string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "0":
		return ""
	case "true", "1":
		return defaultURL
	default:
		return value
	}
}

// RecordSpec builds the targeted record description from the resolved
// parameters.
func (c *Config) RecordSpec() model.RecordSpec {
	return model.RecordSpec{
		Zone:    c.DomainName,
		Name:    c.RecordName,
		Type:    c.RecordType,
		Content: c.RecordData,
		TTL:     model.TTL(c.RecordTTL),
	}
}
