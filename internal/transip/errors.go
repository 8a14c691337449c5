/*
 * Error taxonomy for registrar API interactions.
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

package transip

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEntryNotFound is the API's rejection of a mutation on a record that
	// does not exist.
	ErrEntryNotFound = errors.New("dns entry not found")
	// ErrEntryExists is the API's rejection of creating a record that
	// already exists.
	ErrEntryExists = errors.New("dns entry already exists")
)

// HTTPError is a non-retryable API rejection. Status and message are carried
// verbatim for operator diagnosis; Unwrap exposes the sentinel matching the
// API's error body, when one is known.
type HTTPError struct {
	StatusCode int
	Message    string
	Method     string
	URL        string

	kind error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s returned %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
}

// Unwrap exposes the error kind for errors.Is.
func (e *HTTPError) Unwrap() error {
	return e.kind
}

// newHTTPError decodes the API's {error: message} body and classifies the
// rejection.
func newHTTPError(method, url string, statusCode int, body []byte) *HTTPError {
	var apiErr struct {
		Error string `json:"error"`
	}
	// A body that is not the documented JSON error object is kept as-is.
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		message = apiErr.Error
	}

	httpErr := &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Method:     method,
		URL:        url,
	}
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "already exists"):
		httpErr.kind = ErrEntryExists
	case strings.Contains(lower, "not found"):
		httpErr.kind = ErrEntryNotFound
	}
	return httpErr
}

// DuplicateRecordsError is raised when more than one record matches the
// target. The ambiguity is unresolvable: the tool never guesses which
// duplicate to touch.
type DuplicateRecordsError struct {
	FQDN     string
	Type     string
	Contents []string
}

// Error implements the error interface.
func (e *DuplicateRecordsError) Error() string {
	return fmt.Sprintf(
		"multiple records found for '%s' ('%s'); '%s'. Not processing as this may lead to unexpected results",
		e.FQDN, e.Type, strings.Join(e.Contents, ", "),
	)
}

// MissingTTLError is raised when a record has to be created but no TTL was
// given and none could be recovered from an existing entry.
type MissingTTLError struct {
	FQDN string
}

// Error implements the error interface.
func (e *MissingTTLError) Error() string {
	return fmt.Sprintf("record %s not found. Provide a TTL to create this record", e.FQDN)
}
