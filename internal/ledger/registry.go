// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"strconv"

	cmap "github.com/orcaman/concurrent-map"
	"go.uber.org/atomic"

	"github.com/dotandev/preflight/internal/errors"
)

// Handle is an opaque reference to a registered Storage.
type Handle uint64

func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// Registry hands out handles for storages owned by the caller. It is safe
// for concurrent use.
type Registry struct {
	storages cmap.ConcurrentMap
	next     *atomic.Uint64
}

func NewRegistry() *Registry {
	return &Registry{
		storages: cmap.New(),
		next:     atomic.NewUint64(0),
	}
}

// Register returns a fresh, never reused, non-zero handle for s.
func (r *Registry) Register(s Storage) Handle {
	h := Handle(r.next.Inc())
	r.storages.Set(h.String(), s)
	return h
}

func (r *Registry) Resolve(h Handle) (Storage, error) {
	v, ok := r.storages.Get(h.String())
	if !ok {
		return nil, errors.WrapUnknownHandle(uint64(h))
	}
	return v.(Storage), nil
}

// Release forgets the handle. The storage itself is not closed.
func (r *Registry) Release(h Handle) {
	r.storages.Remove(h.String())
}

func (r *Registry) Len() int {
	return r.storages.Count()
}
