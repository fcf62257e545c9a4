package systems

import (
	"sync"

	"github.com/pthm-cable/accrete/store"
)

const claimShards = 64 // power of two

// ClaimSet records which particles have been consumed by a merge this tick.
//
// Claim is an atomic insert-if-absent: for any id, exactly one caller ever
// observes true until Reset. The set is sharded by id so workers claiming
// different particles rarely contend.
type ClaimSet struct {
	shards [claimShards]claimShard
}

type claimShard struct {
	mu  sync.Mutex
	ids map[store.ID]struct{}
}

// NewClaimSet creates an empty claim set.
func NewClaimSet() *ClaimSet {
	c := &ClaimSet{}
	for i := range c.shards {
		c.shards[i].ids = make(map[store.ID]struct{})
	}
	return c
}

func (c *ClaimSet) shard(id store.ID) *claimShard {
	return &c.shards[uint64(id)&(claimShards-1)]
}

// Claim inserts id and reports whether this call inserted it.
// False means another caller claimed it first.
func (c *ClaimSet) Claim(id store.ID) bool {
	s := c.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Claimed reports whether id has been claimed.
func (c *ClaimSet) Claimed(id store.ID) bool {
	s := c.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of claimed ids.
func (c *ClaimSet) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += len(s.ids)
		s.mu.Unlock()
	}
	return n
}

// Reset forgets every claim. Must not run concurrently with Claim.
func (c *ClaimSet) Reset() {
	for i := range c.shards {
		clear(c.shards[i].ids)
	}
}
