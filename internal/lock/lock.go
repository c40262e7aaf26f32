// Package lock serializes balance mutations per account.
//
// Every Locker acquires multiple accounts in ascending id order and releases
// them in reverse, so two operations touching the same pair of accounts can
// never wait on each other in a cycle.
package lock

import (
	"context"
	"slices"
)

// Release frees every lock taken by one Acquire call. Calling it more than
// once is a no-op.
type Release func()

type Locker interface {
	// Acquire blocks until all ids are held or ctx is done. On error no lock
	// is held.
	Acquire(ctx context.Context, ids ...int64) (Release, error)
}

// Canonical returns ids sorted ascending without duplicates.
func Canonical(ids []int64) []int64 {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	return slices.Compact(ordered)
}
