/*
 * Private key normalization.
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
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrKeyUnrecognized means the input may be a cryptographic key but was
	// not recognized as a usable RSA private key.
	ErrKeyUnrecognized = errors.New("unrecognized key")
	// ErrInvalidPEMFormat means the input does not even resemble a PEM file.
	ErrInvalidPEMFormat = errors.New("invalid PEM format")
)

// pemPattern tokenizes a PEM-like blob: a BEGIN marker, the body and an END
// marker, tolerating missing or malformed dash fencing. The control panel
// hands out keys for copy-pasting and leading or trailing dashes are a known
// casualty of that.
var pemPattern = regexp.MustCompile(`(?s)(BEGIN[^-\r\n]+)[-\r\n]*(.+?)[- \r\n]+(END[^-\r\n]+)`)

// serializePrivateKey parses a PEM private key. If parsing fails it runs
// exactly one repair pass over the delimiters and retries once.
func serializePrivateKey(keyPEM string) (*rsa.PrivateKey, error) {
	key, err := parsePrivateKey(keyPEM)
	if err == nil {
		return key, nil
	}

	rebuilt, rebuildErr := rebuildPEM(keyPEM)
	if rebuildErr != nil {
		return nil, rebuildErr
	}
	key, err = parsePrivateKey(rebuilt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnrecognized, err)
	}
	return key, nil
}

// parsePrivateKey decodes a PEM block and parses it as a PKCS#8 or PKCS#1
// RSA private key.
func parsePrivateKey(keyPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	// BEGIN PRIVATE KEY is PKCS#8, BEGIN RSA PRIVATE KEY is PKCS#1. Try both
	// regardless of the marker; the marker is exactly what may be mangled.
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA private key: %T", parsed)
		}
		return key, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return key, nil
}

// rebuildPEM re-assembles a PEM blob with the BEGIN and END markers fenced
// by exactly 5 dashes, as RFC 7468 requires. The body is carried over
// unchanged, so repairing a well-formed key is content-idempotent.
func rebuildPEM(keyPEM string) (string, error) {
	parts := pemPattern.FindStringSubmatch(keyPEM)
	if parts == nil {
		return "", fmt.Errorf("%w: key does not appear to be in a valid PEM format", ErrInvalidPEMFormat)
	}
	begin, body, end := parts[1], parts[2], parts[3]

	return "-----" + strings.TrimSpace(begin) + "-----\n" +
		body + "\n" +
		"-----" + strings.TrimSpace(end) + "-----\n", nil
}
