// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the concrete record-store and cache implementations.
package port

import "context"

// Collection names used by the record store.
const (
	ExpensesCollection              = "expenses"
	IncomeCollection                = "income"
	BalanceOverridesCollection      = "balance-overrides"
	DirectorLoanOverridesCollection = "director-loan-overrides"
	UsersCollection                 = "users"
	SessionsCollection              = "sessions"
)

// KV is the per-collection record store contract. Get returns (nil, nil) when
// the key is absent. Operations are atomic per key; there are no cross-record
// transactions. GetAll returns values in a stable key order so aggregate
// computations are deterministic for a given snapshot.
type KV interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Set(ctx context.Context, collection, key string, value []byte) error
	Remove(ctx context.Context, collection, key string) error
	GetAll(ctx context.Context, collection string) ([][]byte, error)

	// Subscribe returns a channel that receives a signal after each write to
	// the collection, and a cancel func that releases the subscription. The
	// signal carries no payload: consumers re-run their query.
	Subscribe(collection string) (<-chan struct{}, func())
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
