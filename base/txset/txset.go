// Package txset provides a bounded concurrent set of transaction hashes.
//
// The auction manager records every transaction it submits so the event
// handler can tell the keeper's own actions apart from external ones. The
// set evicts in insertion order once full, which keeps memory bounded in a
// long-lived keeper.
package txset

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const DefaultCapacity = 4096

type Set struct {
	mu       sync.RWMutex
	capacity int
	order    []common.Hash
	members  map[common.Hash]struct{}
}

func New(capacity int) *Set {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Set{
		capacity: capacity,
		members:  make(map[common.Hash]struct{}, capacity),
	}
}

func (s *Set) Add(h common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[h]; ok {
		return
	}
	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.members, oldest)
	}
	s.order = append(s.order, h)
	s.members[h] = struct{}{}
}

func (s *Set) Contains(h common.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[h]
	return ok
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
