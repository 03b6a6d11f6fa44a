package store

import (
	"context"
	"errors"
	"time"
)

// Replay key states shared by every backend.
const (
	statePending   = "pending"
	stateCommitted = "committed"
)

const (
	DefaultLease     = 5 * time.Minute
	DefaultRetention = 24 * time.Hour
)

// ErrReservationLost is returned by Commit when another owner holds the
// key, i.e. this owner's lease expired and the key was reserved again.
var ErrReservationLost = errors.New("replay reservation held by another owner")

// ReplayStore enforces at-most-once processing of a delivery key.
//
// Reserve must be atomic across every caller sharing the store: exactly one
// concurrent caller gets true for a free key, and that caller's owner token
// is recorded with the reservation. Commit makes the owner's reservation
// permanent (until retention expires); Release frees it so the sender can
// retry. Both are no-ops against a reservation held by a different owner,
// so a caller whose lease expired can never free or commit someone else's
// live key.
type ReplayStore interface {
	Reserve(ctx context.Context, key, owner string) (bool, error)
	Commit(ctx context.Context, key, owner string) error
	Release(ctx context.Context, key, owner string) error
}

// ReplayOptions tune how long keys live in a store.
type ReplayOptions struct {
	// Lease bounds how long a pending reservation blocks redelivery if the
	// owner never commits or releases it.
	Lease time.Duration
	// Retention is how long a committed key rejects duplicates.
	Retention time.Duration
}

func (o ReplayOptions) lease() time.Duration {
	if o.Lease > 0 {
		return o.Lease
	}
	return DefaultLease
}

func (o ReplayOptions) retention() time.Duration {
	if o.Retention > 0 {
		return o.Retention
	}
	return DefaultRetention
}

// ReplayKey namespaces a delivery id or nonce by provider.
func ReplayKey(provider, id string) string {
	return provider + ":" + id
}
