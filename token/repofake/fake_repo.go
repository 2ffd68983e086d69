package repofake

import (
	"sync"

	"github.com/jrsteele09/go-medassist-client/token"
)

var _ token.Repo = (*FakeRepo)(nil)

type FakeRepo struct {
	items map[string]string
	lock  sync.RWMutex

	// FailWith, when set, is returned by every operation.
	FailWith error
}

func NewFakeRepo() *FakeRepo {
	return &FakeRepo{items: make(map[string]string)}
}

func (r *FakeRepo) Get(key string) (string, bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.FailWith != nil {
		return "", false, r.FailWith
	}
	v, ok := r.items[key]
	return v, ok, nil
}

func (r *FakeRepo) Set(key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.items[key] = value
	return nil
}

func (r *FakeRepo) Delete(keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	for _, k := range keys {
		delete(r.items, k)
	}
	return nil
}

// Len is the number of stored keys.
func (r *FakeRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.items)
}
