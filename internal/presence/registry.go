// Package presence tracks which users currently hold an open realtime
// connection. The registry is advisory (online badge) and never used for
// authorization or delivery guarantees: a half-open connection that never
// fires a close leaks its entry until the process or key expires.
package presence

import (
	"context"
	"sort"

	"github.com/c-pro/geche"
)

// Entry maps a user to its live connection. At most one entry per user:
// a duplicate register is a no-op (first-writer-wins), so a reconnect racing
// the old connection's teardown keeps the stale entry until that teardown.
type Entry struct {
	UserID string `json:"userId"`
	ConnID string `json:"connectionId"`
}

// Registry is owned by the gateway's lifecycle and injected at construction.
type Registry interface {
	// Register inserts an entry unless one already exists for userID.
	Register(ctx context.Context, userID, connID string) error
	// Unregister removes all entries with the given connection id.
	Unregister(ctx context.Context, connID string) error
	// List returns the current full set, sorted by user id.
	List(ctx context.Context) ([]Entry, error)
}

// MemoryRegistry is the process-local implementation. State does not survive
// a restart and diverges between instances; use the Redis registry for
// multi-instance deployments.
type MemoryRegistry struct {
	entries *geche.Locker[string, Entry]
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: geche.NewLocker[string, Entry](geche.NewMapCache[string, Entry]()),
	}
}

func (r *MemoryRegistry) Register(_ context.Context, userID, connID string) error {
	tx := r.entries.Lock()
	defer tx.Unlock()
	if _, err := tx.Get(userID); err == nil {
		return nil
	}
	tx.Set(userID, Entry{UserID: userID, ConnID: connID})
	return nil
}

func (r *MemoryRegistry) Unregister(_ context.Context, connID string) error {
	tx := r.entries.Lock()
	defer tx.Unlock()
	for userID, e := range tx.Snapshot() {
		if e.ConnID == connID {
			_ = tx.Del(userID)
		}
	}
	return nil
}

func (r *MemoryRegistry) List(_ context.Context) ([]Entry, error) {
	tx := r.entries.RLock()
	defer tx.Unlock()
	return sortEntries(tx.Snapshot()), nil
}

func sortEntries(m map[string]Entry) []Entry {
	entries := make([]Entry, 0, len(m))
	for _, e := range m {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UserID < entries[j].UserID
	})
	return entries
}
