/*
Package types defines the shared data model for the personacache engine.

Every cached record belongs to exactly one partition (an independent
personality/tenant) and one category (the purpose of the data within that
partition). Both dimensions are closed sets: Category and TierID are typed
constants validated at the engine boundary, so free-form strings can never
create unbounded new stores.

The package also carries the contracts that decouple the engine's layers:

  - Tier: the uniform get/put/remove contract each cache level implements.
  - Clock: the injectable time source used for created/expiry/access stamps.

Entry is the record stored by every tier. Its value is opaque to the engine
and immutable after write; only the access-tracking envelope (AccessCount,
LastAccessedAt) mutates, and only under the owning store's lock. SizeBytes is
an estimate used for reporting, never for eviction decisions.
*/
package types
