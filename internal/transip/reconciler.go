/*
 * Record reconciliation - classify a target against the zone's entries.
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
	"strings"

	"transip-dns-cli/internal/transip/model"
)

// FilterEntries returns the entries matching the populated fields of the
// spec. Name, type and content match case-insensitively, TTL exactly. With
// ignoreContent the content field does not participate in the match; that is
// how a record is located when the caller wants "this name/type, whatever
// its current value".
func FilterEntries(entries []model.RecordEntry, spec model.RecordSpec, ignoreContent bool) []model.RecordEntry {
	var matched []model.RecordEntry
	for _, e := range entries {
		if spec.Name != "" && !strings.EqualFold(spec.Name, e.Name) {
			continue
		}
		if spec.Type != "" && !strings.EqualFold(spec.Type, e.Type) {
			continue
		}
		if spec.TTL.Configured() && spec.TTL != e.TTL {
			continue
		}
		if spec.Content != "" && !ignoreContent && !strings.EqualFold(spec.Content, e.Content) {
			continue
		}
		matched = append(matched, e)
	}
	return matched
}

// Classify inspects the zone's entries for the targeted record and reports
// its state. The match ignores the target's content so that a record with
// outdated content is still found.
//
// On a single match the target is completed from the live entry: a missing
// TTL is backfilled (every mutating API call requires one), and a missing
// content is backfilled and flagged as StateFoundNoRequestData, meaning the
// record exists but the caller asked for no particular value.
//
// More than one match is an unresolvable ambiguity and fails with
// DuplicateRecordsError; guessing which duplicate to touch could destroy
// records the caller never meant to change.
func Classify(target *model.RecordSpec, entries []model.RecordEntry) (model.RecordState, error) {
	matched := FilterEntries(entries, *target, true)

	if len(matched) > 1 {
		contents := make([]string, len(matched))
		for i, e := range matched {
			contents[i] = e.Content
		}
		return model.StateUnknown, &DuplicateRecordsError{
			FQDN:     target.FQDN(),
			Type:     target.Type,
			Contents: contents,
		}
	}

	if len(matched) == 0 {
		return model.StateNotFound, nil
	}

	entry := matched[0]
	if !target.TTL.Configured() {
		target.TTL = entry.TTL
	}
	if target.Content == "" {
		target.Content = entry.Content
		return model.StateFoundNoRequestData, nil
	}
	if strings.EqualFold(target.Content, entry.Content) {
		return model.StateFoundSame, nil
	}
	return model.StateFoundDifferent, nil
}
