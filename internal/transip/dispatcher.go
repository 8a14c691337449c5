/*
 * Action dispatcher - route a classified record state to API calls.
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
	"context"

	"github.com/sirupsen/logrus"

	"transip-dns-cli/internal/transip/model"
)

// Dispatcher routes a resolved record state to the client calls. The logger
// is injected rather than ambient so callers decide where reporting goes.
type Dispatcher struct {
	client *Client
	log    logrus.FieldLogger
}

// NewDispatcher returns a dispatcher around the given client.
func NewDispatcher(client *Client, logger logrus.FieldLogger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{client: client, log: logger}
}

// Ensure brings the targeted record to the requested state: created when
// absent, updated when its content differs, untouched when already correct.
// The target may be completed (TTL, content) from the live entry during
// classification.
func (d *Dispatcher) Ensure(ctx context.Context, target *model.RecordSpec) error {
	state, err := d.classify(ctx, target)
	if err != nil {
		return err
	}

	switch state {
	case model.StateFoundSame, model.StateFoundNoRequestData:
		d.log.Infof("DNS record '%s' ('%s') has requested data: '%s'. No change needed",
			target.FQDN(), target.Type, target.Content)
		return nil

	case model.StateFoundDifferent:
		if err := d.client.UpdateEntry(ctx, target.Zone, target.Entry()); err != nil {
			return err
		}
		d.log.Infof("Update DNS record completed; '%s' ('%s'): '%s'",
			target.FQDN(), target.Type, target.Content)
		return nil

	default: // StateNotFound
		if !target.TTL.Configured() {
			// Creation requires a TTL and nothing existed to backfill from.
			return &MissingTTLError{FQDN: target.FQDN()}
		}
		if err := d.client.CreateEntry(ctx, target.Zone, target.Entry()); err != nil {
			return err
		}
		d.log.Infof("DNS record '%s' ('%s') '%s' created",
			target.FQDN(), target.Type, target.Content)
		return nil
	}
}

// Delete removes the targeted record. A record that is already absent is an
// idempotent no-op, not an error.
func (d *Dispatcher) Delete(ctx context.Context, target *model.RecordSpec) error {
	state, err := d.classify(ctx, target)
	if err != nil {
		return err
	}

	if state == model.StateNotFound {
		d.log.Infof("Record %s not present. No deletion executed.", target.FQDN())
		return nil
	}

	d.log.Debugf("Attempting to delete record %s", target.FQDN())
	if err := d.client.DeleteEntry(ctx, target.Zone, target.Entry()); err != nil {
		return err
	}
	d.log.Infof("DNS record '%s' ('%s') '%s' deleted",
		target.FQDN(), target.Type, target.Content)
	return nil
}

// ListZone returns the zone's records, narrowed by whatever fields the spec
// populates. Content participates in the match here, unlike classification.
func (d *Dispatcher) ListZone(ctx context.Context, spec model.RecordSpec) ([]model.RecordEntry, error) {
	entries, err := d.client.ListEntries(ctx, spec.Zone)
	if err != nil {
		return nil, err
	}
	if spec.Name == "" && spec.Type == "" && spec.Content == "" && !spec.TTL.Configured() {
		return entries, nil
	}
	d.log.Infof("Filtering domain listing on name=%q type=%q content=%q ttl=%d",
		spec.Name, spec.Type, spec.Content, spec.TTL)
	return FilterEntries(entries, spec, false), nil
}

// Domains returns the account's domain names.
func (d *Dispatcher) Domains(ctx context.Context) ([]string, error) {
	return d.client.Domains(ctx)
}

// classify fetches the zone and classifies the target against it. The
// record state is computed fresh on every call, never cached.
func (d *Dispatcher) classify(ctx context.Context, target *model.RecordSpec) (model.RecordState, error) {
	entries, err := d.client.ListEntries(ctx, target.Zone)
	if err != nil {
		return model.StateUnknown, err
	}
	state, err := Classify(target, entries)
	if err != nil {
		return model.StateUnknown, err
	}
	if state == model.StateNotFound {
		d.log.Infof("Record '%s', type '%s' not found", target.FQDN(), target.Type)
	}
	return state, nil
}
