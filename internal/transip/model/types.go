/*
 * API-independent types.
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

package model

import (
	"sort"
	"strings"
)

// RecordState classifies a targeted record against the zone's current
// entries. It is derived fresh on every run, never stored.
type RecordState int

const (
	// StateUnknown is the zero value; classification did not complete.
	StateUnknown RecordState = iota
	// StateNotFound means no entry in the zone matches the target.
	StateNotFound
	// StateFoundSame means the matching entry already has the requested
	// content.
	StateFoundSame
	// StateFoundDifferent means the matching entry has different content.
	StateFoundDifferent
	// StateFoundNoRequestData means an entry matches but the target carried
	// no content to compare against.
	StateFoundNoRequestData
)

// String returns a readable name for the state.
func (s RecordState) String() string {
	switch s {
	case StateNotFound:
		return "NotFound"
	case StateFoundSame:
		return "FoundSame"
	case StateFoundDifferent:
		return "FoundDifferent"
	case StateFoundNoRequestData:
		return "FoundNoRequestData"
	default:
		return "Unknown"
	}
}

// TTL is a record's time to live in seconds. Zero means "not specified";
// the registrar does not accept zero TTLs.
type TTL int

// Configured returns whether the TTL carries a value.
func (t TTL) Configured() bool {
	return t > 0
}

// RecordEntry is a concrete record as returned by the zone listing. It is an
// immutable snapshot of the server state at listing time.
type RecordEntry struct {
	Name    string
	Type    string
	Content string
	TTL     TTL
}

// RecordSpec describes the targeted record. Fields other than Zone are
// optional depending on the operation; empty strings and a zero TTL mean
// "not specified".
type RecordSpec struct {
	Zone    string
	Name    string
	Type    string
	Content string
	TTL     TTL
}

// FQDN returns the record name qualified with the zone.
func (r RecordSpec) FQDN() string {
	if r.Name == "" {
		return r.Zone
	}
	return r.Name + "." + r.Zone
}

// Entry converts the spec into a concrete entry for a mutating API call.
func (r RecordSpec) Entry() RecordEntry {
	return RecordEntry{
		Name:    r.Name,
		Type:    r.Type,
		Content: r.Content,
		TTL:     r.TTL,
	}
}

// recordTypes is the set of record types accepted by the registrar.
var recordTypes = map[string]struct{}{
	"A":     {},
	"AAAA":  {},
	"CAA":   {},
	"CNAME": {},
	"MX":    {},
	"NS":    {},
	"SRV":   {},
	"SSHFP": {},
	"TLSA":  {},
	"TXT":   {},
}

// ValidRecordType reports whether t names a supported record type. The check
// is case-insensitive.
func ValidRecordType(t string) bool {
	_, ok := recordTypes[strings.ToUpper(t)]
	return ok
}

// RecordTypes returns the supported record types in alphabetical order.
func RecordTypes() []string {
	types := make([]string, 0, len(recordTypes))
	for t := range recordTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
