package store

import (
	"sort"
	"sync"
)

// OpKind is the type of a deferred structural change.
// The numeric order is also the drain order for ops sharing an order key.
type OpKind uint8

const (
	OpOverwrite OpKind = iota
	OpCreate
	OpDestroy
)

func (k OpKind) String() string {
	switch k {
	case OpOverwrite:
		return "overwrite"
	case OpCreate:
		return "create"
	case OpDestroy:
		return "destroy"
	}
	return "unknown"
}

// Op is one deferred structural change.
//
// Create uses every attribute of Particle except the id. Overwrite replaces
// all attributes of Particle.ID. Destroy only reads Particle.ID.
type Op struct {
	Kind     OpKind
	Order    ID // drain ordering key chosen by the producer
	Particle Particle
}

// DrainResult summarizes what a drain applied.
type DrainResult struct {
	Created     []ID
	Overwritten int
	Destroyed   int
	Skipped     int // overwrites or destroys aimed at ids that no longer exist
}

// Log batches structural changes produced during a parallel pass.
// Appends are safe from any goroutine; Drain must run after the pass has
// finished and applies everything single-threaded.
type Log struct {
	mu  sync.Mutex
	ops []Op
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{ops: make([]Op, 0, 64)}
}

// Create records the creation of a particle.
func (l *Log) Create(order ID, p Particle) {
	l.append(Op{Kind: OpCreate, Order: order, Particle: p})
}

// Overwrite records a full attribute overwrite of p.ID.
func (l *Log) Overwrite(order ID, p Particle) {
	l.append(Op{Kind: OpOverwrite, Order: order, Particle: p})
}

// Destroy records the destruction of id.
func (l *Log) Destroy(order ID, id ID) {
	l.append(Op{Kind: OpDestroy, Order: order, Particle: Particle{ID: id}})
}

func (l *Log) append(op Op) {
	l.mu.Lock()
	l.ops = append(l.ops, op)
	l.mu.Unlock()
}

// Len returns the number of pending ops.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ops)
}

// Pending returns a sorted copy of the pending ops without applying them.
func (l *Log) Pending() []Op {
	l.mu.Lock()
	defer l.mu.Unlock()
	ops := make([]Op, len(l.ops))
	copy(ops, l.ops)
	sortOps(ops)
	return ops
}

// Reset discards all pending ops.
func (l *Log) Reset() {
	l.mu.Lock()
	l.ops = l.ops[:0]
	l.mu.Unlock()
}

// Drain applies all pending ops to s and empties the log.
//
// Appends from concurrent workers arrive in arbitrary order, so ops are
// sorted by (Order, Kind, Particle.ID) first. This makes the ids handed out
// to created particles independent of worker scheduling.
func (l *Log) Drain(s *Store) DrainResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	sortOps(l.ops)

	var res DrainResult
	for i := range l.ops {
		op := &l.ops[i]
		switch op.Kind {
		case OpCreate:
			res.Created = append(res.Created, s.Create(op.Particle))
		case OpOverwrite:
			if s.Set(op.Particle) {
				res.Overwritten++
			} else {
				res.Skipped++
			}
		case OpDestroy:
			if s.Destroy(op.Particle.ID) {
				res.Destroyed++
			} else {
				res.Skipped++
			}
		}
	}
	l.ops = l.ops[:0]
	return res
}

func sortOps(ops []Op) {
	sort.Slice(ops, func(i, j int) bool {
		a, b := &ops[i], &ops[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Particle.ID < b.Particle.ID
	})
}
