// Package records layers typed, JSON-encoded collections over the raw
// key-value record store. Each collection is constructed once at startup and
// injected into the services that own it — nothing here is a process-wide
// singleton.
package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/port"
)

// Collection is a typed view of one KV collection.
type Collection[T any] struct {
	kv   port.KV
	name string
}

// NewCollection wraps the named collection of kv.
func NewCollection[T any](kv port.KV, name string) *Collection[T] {
	return &Collection[T]{kv: kv, name: name}
}

// Name returns the underlying collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Get returns the decoded record, or nil if the key is absent.
func (c *Collection[T]) Get(ctx context.Context, key string) (*T, error) {
	raw, err := c.kv.Get(ctx, c.name, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s record %s: %w", c.name, key, err)
	}
	return &v, nil
}

// Put encodes and stores the record under key.
func (c *Collection[T]) Put(ctx context.Context, key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s record %s: %w", c.name, key, err)
	}
	return c.kv.Set(ctx, c.name, key, raw)
}

// Remove deletes the record under key. Absent keys are not an error.
func (c *Collection[T]) Remove(ctx context.Context, key string) error {
	return c.kv.Remove(ctx, c.name, key)
}

// All returns every record in the collection, decoded, in the store's stable
// scan order.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	raws, err := c.kv.GetAll(ctx, c.name)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", c.name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Watch subscribes to change notifications for the collection.
func (c *Collection[T]) Watch() (<-chan struct{}, func()) {
	return c.kv.Subscribe(c.name)
}

// Collections bundles every typed collection the bookkeeper persists.
type Collections struct {
	Expenses              *Collection[domain.Expense]
	Income                *Collection[domain.Income]
	BalanceOverrides      *Collection[domain.BalanceOverride]
	DirectorLoanOverrides *Collection[domain.DirectorLoanOverride]
	Users                 *Collection[domain.User]
	Sessions              *Collection[domain.Session]
}

// New builds the full collection set over one KV backend.
func New(kv port.KV) *Collections {
	return &Collections{
		Expenses:              NewCollection[domain.Expense](kv, port.ExpensesCollection),
		Income:                NewCollection[domain.Income](kv, port.IncomeCollection),
		BalanceOverrides:      NewCollection[domain.BalanceOverride](kv, port.BalanceOverridesCollection),
		DirectorLoanOverrides: NewCollection[domain.DirectorLoanOverride](kv, port.DirectorLoanOverridesCollection),
		Users:                 NewCollection[domain.User](kv, port.UsersCollection),
		Sessions:              NewCollection[domain.Session](kv, port.SessionsCollection),
	}
}
