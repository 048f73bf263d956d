package db

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

var nextObjectID atomic.Uint64

// Object is a named bounded set of strings stored in the keyspace.
// The underlying OpenHashSet has no synchronization of its own, every method
// takes the object lock.
type Object struct {
	id      uint64
	mu      sync.Mutex
	set     *OpenHashSet[string]
	rng     *rand.Rand
	created time.Time
}

// NewObject creates an empty set object with a fixed capacity.
func NewObject(capacity int, hasher Hasher[string]) (*Object, error) {
	set, err := NewOpenHashSet[string](capacity, hasher)
	if err != nil {
		return nil, err
	}
	return &Object{
		id:      nextObjectID.Add(1),
		set:     set,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		created: time.Now(),
	}, nil
}

// Add inserts the members and returns how many were added. Members that are
// already present or do not fit are skipped.
func (o *Object) Add(members ...string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	added := 0
	for _, m := range members {
		if o.set.Add(m) {
			added++
		}
	}
	return added
}

// Remove deletes the members and returns how many were present.
func (o *Object) Remove(members ...string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	removed := 0
	for _, m := range members {
		if o.set.Delete(m) {
			removed++
		}
	}
	return removed
}

func (o *Object) Contains(member string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.set.Contains(member)
}

// ContainsAll reports membership for each member in order.
func (o *Object) ContainsAll(members ...string) []bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]bool, len(members))
	for i, m := range members {
		out[i] = o.set.Contains(m)
	}
	return out
}

func (o *Object) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.set.Len()
}

func (o *Object) Cap() int {
	// capacity is immutable
	return o.set.Cap()
}

// Members returns the members in canonical sorted order.
func (o *Object) Members() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.set.Sorted()
}

func (o *Object) Hash() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.set.Hash()
}

// Random returns up to count distinct members.
func (o *Object) Random(count int) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.set.RandomElements(count, o.rng)
}

// RandomWithRepeat returns count members that may repeat.
func (o *Object) RandomWithRepeat(count int) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.set.RandomElementsWithRepeat(count, o.rng)
}

// Pop removes and returns a random member.
func (o *Object) Pop() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	picked := o.set.RandomElements(1, o.rng)
	if len(picked) == 0 {
		return "", false
	}
	o.set.Delete(picked[0])
	return picked[0], true
}

// Equal compares two objects as sets. Locks are taken in id order so two
// concurrent comparisons of the same pair cannot deadlock.
func (o *Object) Equal(other *Object) bool {
	if o == other {
		return true
	}
	if o == nil || other == nil {
		return false
	}

	first, second := o, other
	if second.id < first.id {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	return o.set.Equal(other.set)
}

// Created returns when the object was created.
func (o *Object) Created() time.Time {
	return o.created
}
