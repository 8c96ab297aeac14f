// Package store holds per-account credentials and engagement snapshots.
package store

import (
	"context"

	"flockrank/internal/model"
)

// Store is the account state backend. All operations are safe for
// concurrent use; reads may run concurrently with a single writer per
// account. Implementations must preserve insertion order in Snapshot so
// leaderboard tie order stays reproducible.
type Store interface {
	// SetCredential overwrites the account's credential.
	SetCredential(ctx context.Context, cred model.Credential) error
	// Credential returns the account's credential; ok is false when the
	// account has never connected.
	Credential(ctx context.Context, accountID string) (model.Credential, bool, error)

	// UpsertFollower inserts or updates a follower keyed by ExternalID.
	// Mutable profile fields are overwritten; an existing Excluded flag and
	// AddedAt are preserved.
	UpsertFollower(ctx context.Context, accountID string, f model.Follower) error
	// UpsertAction inserts or updates an action keyed by its deterministic
	// ID, last write wins.
	UpsertAction(ctx context.Context, accountID string, a model.EngagementAction) error
	// SetExcluded toggles the local-only exclusion flag for a follower.
	// Returns false when the follower does not exist.
	SetExcluded(ctx context.Context, accountID, followerID string, excluded bool) (bool, error)

	// Snapshot returns a read-only copy of the account's state. Actions
	// whose follower is not present in the snapshot are dropped.
	Snapshot(ctx context.Context, accountID string) (model.Snapshot, error)
	// Clear removes all state for the account, credentials included.
	Clear(ctx context.Context, accountID string) error
}
