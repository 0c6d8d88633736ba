// Package sync implements the offline-first task synchronization engine.
//
// The engine keeps a local cache as the sole source of truth for reads,
// applies user mutations to it optimistically, propagates each mutation to
// the remote store in its own fire-and-forget background goroutine, and
// merges the remote change feed's snapshots back into the cache. Remote
// failures never reach the caller: a failed create leaves the record
// unsynced, a failed update or delete leaves the stores diverged until the
// next snapshot catches the cache up.
package sync

import (
	"context"

	"taskmaster/internal/model"
)

// Credentials supplies the owner identity and bearer token for one logical
// session. It is passed explicitly into every engine call; the engine holds
// no ambient user state.
type Credentials interface {
	// OwnerID returns the authenticated owner identity, or "" when nobody
	// is signed in.
	OwnerID() string

	// BearerToken returns a token for remote calls. Acquisition may itself
	// perform network I/O.
	BearerToken(ctx context.Context) (string, error)
}

// LocalStore is the keyed, observable task cache the engine reads and
// writes. Implementations must serialize conflicting writes to the same id
// and deliver each committed state to observers exactly once, in commit
// order.
type LocalStore interface {
	Upsert(ctx context.Context, t model.Task) error
	UpsertAll(ctx context.Context, tasks []model.Task) error

	// ReplaceID atomically removes oldID and stores t, so observers never
	// see the temporary and server records side by side.
	ReplaceID(ctx context.Context, oldID string, t model.Task) error

	Delete(ctx context.Context, id string) error

	// ObserveOwner emits the current owner-filtered state followed by every
	// committed state after it, ordered by creation time descending. The
	// channel closes when ctx ends.
	ObserveOwner(ctx context.Context, ownerID string) <-chan []model.Task
}

// RemoteStore is the authoritative server the engine propagates mutations
// to. Every call carries the bearer token; the server derives and enforces
// ownership from it.
type RemoteStore interface {
	// Create stores a new task; the server assigns identity, owner and
	// creation timestamp and returns the full record.
	Create(ctx context.Context, token, title string, description, dueDate *string) (model.Task, error)

	// UpdateStatus replaces only the done flag.
	UpdateStatus(ctx context.Context, token, id string, isDone bool) error

	// UpdateDetails replaces title, description and due date together. Nil
	// pointers clear the stored value.
	UpdateDetails(ctx context.Context, token, id, title string, description, dueDate *string) error

	Delete(ctx context.Context, token, id string) error

	// Subscribe opens the change feed for the token's owner. Every element
	// is the full current set of that owner's remote tasks. The channel
	// closes when ctx ends or the feed drops.
	Subscribe(ctx context.Context, token string) (<-chan []model.Task, error)
}
