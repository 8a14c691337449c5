/*
 * IP echo - discover the caller's public address.
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

// Package ipecho resolves the caller's public IP address by querying an
// IP-echo service, for use as record content in dynamic DNS setups.
package ipecho

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

const (
	// DefaultIPv4URL is the default IPv4 echo service.
	DefaultIPv4URL = "https://ipv4.icanhazip.com"
	// DefaultIPv6URL is the default IPv6 echo service.
	DefaultIPv6URL = "https://ipv6.icanhazip.com"
)

// Resolve queries the echo service and returns the reported address. The
// response body is trimmed and must parse as an IP literal.
func Resolve(ctx context.Context, client *http.Client, echoURL string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, echoURL, nil)
	if err != nil {
		return "", fmt.Errorf("building echo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", echoURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("echo service %s returned %d", echoURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading echo response: %w", err)
	}

	address := strings.TrimSpace(string(body))
	if net.ParseIP(address) == nil {
		return "", fmt.Errorf("echo service %s returned %q, which is not an IP address", echoURL, address)
	}
	return address, nil
}
