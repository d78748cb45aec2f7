// Package keylock serializes work on the same key without a global lock.
package keylock

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultStripes = 32

// Striped spreads keys across a fixed set of mutexes. Two keys may share a
// stripe; the same key always maps to the same stripe.
type Striped struct {
	stripes []sync.Mutex
}

func New(stripes int) *Striped {
	if stripes <= 0 {
		stripes = defaultStripes
	}
	return &Striped{stripes: make([]sync.Mutex, stripes)}
}

// Lock acquires the stripe for key and returns its release func.
func (s *Striped) Lock(key []byte) (unlock func()) {
	m := &s.stripes[s.index(key)]
	m.Lock()
	return m.Unlock
}

func (s *Striped) index(key []byte) int {
	return int(xxhash.Sum64(key) % uint64(len(s.stripes)))
}
