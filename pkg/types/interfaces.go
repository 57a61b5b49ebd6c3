package types

import (
	"context"
	"time"
)

// Tier is the uniform contract every cache level implements. The memory tier
// is synchronous and infallible; remote tiers translate transport problems
// into errors, which the engine treats as degraded rather than fatal.
type Tier interface {
	// ID returns the tier's identity in the hierarchy.
	ID() TierID

	// Configured reports whether the tier has a backing implementation.
	// An unconfigured tier behaves as a clean miss/no-op.
	Configured() bool

	// Get returns the cached value for key within (partition, category).
	// A missing or expired entry is (nil, false, nil); an error means the
	// tier itself failed.
	Get(ctx context.Context, partition string, category Category, key string) (any, bool, error)

	// Put stores the entry. Implementations own the entry after the call.
	Put(ctx context.Context, entry *Entry) error

	// Remove deletes key from (partition, category) and reports whether
	// anything was removed.
	Remove(ctx context.Context, partition string, category Category, key string) (bool, error)
}

// Clock abstracts the time source so expiry can be tested without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }
