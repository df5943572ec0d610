package memory

import (
	"context"
	"sync"
)

type UserDirectory struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewUserDirectory(ids ...string) *UserDirectory {
	d := &UserDirectory{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		d.ids[id] = struct{}{}
	}
	return d
}

func (d *UserDirectory) Add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[id] = struct{}{}
}

func (d *UserDirectory) Exists(ctx context.Context, ownerID string) (bool, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.ids[ownerID]
	return ok, nil
}
