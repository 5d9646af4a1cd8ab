// Package remote defines the contract this application expects of any
// backing record store: a keyed record service organized into zones, with
// incremental change pulls, batched writes with partial-failure reporting
// and a recoverable/non-recoverable error taxonomy.
package remote

import (
	"context"
)

type Client interface {
	// AccountAvailable reports whether the remote account can accept calls
	// right now. A nil error means available.
	AccountAvailable(ctx context.Context) error

	// CreateAccount provisions the remote account and returns its
	// remote-assigned external ID.
	CreateAccount(ctx context.Context, username string) (string, error)

	// FetchChanges pulls records changed since the given token. An empty
	// token requests a full, non-incremental fetch.
	FetchChanges(ctx context.Context, zone Zone, sinceToken string) (*ChangeSet, error)

	// PushRecords writes a batch of records and reports per-record outcomes.
	PushRecords(ctx context.Context, zone Zone, records []Record) ([]PushResult, error)

	// DeleteRecord removes one record. A missing record yields an Error with
	// CodeNotFound; callers treat that as success.
	DeleteRecord(ctx context.Context, zone Zone, id string) error

	// Subscribe registers for change notifications on a zone. Inbound
	// notifications only say "something changed"; the caller follows up with
	// FetchChanges.
	Subscribe(ctx context.Context, zone Zone) error
}
