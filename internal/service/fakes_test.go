package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/records"
)

// --- Fake record store ---

// fakeKV is an in-memory record store for service tests. GetAll returns
// values in key order, matching the real backends.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]map[string][]byte
	getErr  error
	setErr  error
	writes  int
	subs    map[string][]chan struct{}
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		data: make(map[string]map[string][]byte),
		subs: make(map[string][]chan struct{}),
	}
}

func (f *fakeKV) Get(_ context.Context, collection, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.data[collection][key], nil
}

func (f *fakeKV) Set(_ context.Context, collection, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	if f.data[collection] == nil {
		f.data[collection] = make(map[string][]byte)
	}
	f.data[collection][key] = value
	f.writes++
	for _, ch := range f.subs[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *fakeKV) Remove(_ context.Context, collection, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data[collection], key)
	for _, ch := range f.subs[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *fakeKV) GetAll(_ context.Context, collection string) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	keys := make([]string, 0, len(f.data[collection]))
	for k := range f.data[collection] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, f.data[collection][k])
	}
	return out, nil
}

func (f *fakeKV) Subscribe(collection string) (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{}, 1)
	f.subs[collection] = append(f.subs[collection], ch)
	return ch, func() {}
}

// --- Test sessions ---

func adminSession() *domain.Session {
	return &domain.Session{
		ID:        "sess-admin",
		UserID:    "user-admin",
		Username:  "admin",
		IsAdmin:   true,
		CreatedAt: time.Now(),
	}
}

func memberSession(userID, username string) *domain.Session {
	return &domain.Session{
		ID:        "sess-" + userID,
		UserID:    userID,
		Username:  username,
		IsAdmin:   false,
		CreatedAt: time.Now(),
	}
}

func newCollections() (*records.Collections, *fakeKV) {
	kv := newFakeKV()
	return records.New(kv), kv
}
