package db

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"math/rand"
	"slices"
	"strings"
)

// EmptySetHash is the combined hash of a set without elements.
const EmptySetHash = 13

var (
	ErrInvalidCapacity = errors.New("capacity must be positive")
	ErrNilHasher       = errors.New("hasher must not be nil")
)

type slot[T any] struct {
	value T
	used  bool
}

// OpenHashSet is a fixed capacity set stored in a single slot array.
// Collisions are resolved by linear probing. Deletion shifts later members of
// the cluster back into the vacated slot, so the table never holds tombstones.
//
// An OpenHashSet is not safe for concurrent use.
type OpenHashSet[T any] struct {
	slots  []slot[T]
	count  int
	hasher Hasher[T]
}

// NewOpenHashSet allocates a set with room for exactly capacity elements.
// The capacity never changes afterwards.
func NewOpenHashSet[T any](capacity int, hasher Hasher[T]) (*OpenHashSet[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if hasher == nil {
		return nil, ErrNilHasher
	}
	return &OpenHashSet[T]{
		slots:  make([]slot[T], capacity),
		hasher: hasher,
	}, nil
}

// MustNewOpenHashSet is like NewOpenHashSet but panics on invalid arguments.
func MustNewOpenHashSet[T any](capacity int, hasher Hasher[T]) *OpenHashSet[T] {
	s, err := NewOpenHashSet[T](capacity, hasher)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of elements in the set
func (s *OpenHashSet[T]) Len() int {
	return s.count
}

// Empty returns true if the set holds no elements
func (s *OpenHashSet[T]) Empty() bool {
	return s.count == 0
}

// Cap returns the fixed number of slots
func (s *OpenHashSet[T]) Cap() int {
	return len(s.slots)
}

// home returns the first slot probed for e.
func (s *OpenHashSet[T]) home(e T) int {
	h := s.hasher.Hash(e) % len(s.slots)
	if h < 0 {
		h += len(s.slots)
	}
	return h
}

func (s *OpenHashSet[T]) next(i int) int {
	i++
	if i == len(s.slots) {
		return 0
	}
	return i
}

// locate walks the probe sequence of e and returns the first slot that is
// either empty or holds an element equal to e. When every slot is occupied by
// other elements the walk wraps around and the home slot is returned, which
// only happens on a full table.
func (s *OpenHashSet[T]) locate(e T) int {
	start := s.home(e)
	i := start
	for {
		sl := &s.slots[i]
		if !sl.used || s.hasher.Equal(sl.value, e) {
			return i
		}
		i = s.next(i)
		if i == start {
			return i
		}
	}
}

// holds reports whether slot i contains an element equal to e.
func (s *OpenHashSet[T]) holds(i int, e T) bool {
	return s.slots[i].used && s.hasher.Equal(s.slots[i].value, e)
}

// Add inserts e. It returns false when e is already present or the set is
// full; the two cases are not distinguished.
func (s *OpenHashSet[T]) Add(e T) bool {
	if s.count == len(s.slots) {
		return false
	}
	i := s.locate(e)
	if s.slots[i].used {
		return false
	}
	s.slots[i] = slot[T]{value: e, used: true}
	s.count++
	return true
}

// Contains checks if e is in the set
func (s *OpenHashSet[T]) Contains(e T) bool {
	return s.holds(s.locate(e), e)
}

// Delete removes e and reports whether it was present.
//
// The vacated slot is filled by walking the rest of the cluster: any element
// whose home does not fall in the cyclic range (gap, scan] may legally sit at
// gap, so it is moved there and its old slot becomes the new gap. The walk ends
// at the first empty slot, which is where the cluster ends.
func (s *OpenHashSet[T]) Delete(e T) bool {
	gap := s.locate(e)
	if !s.holds(gap, e) {
		return false
	}

	for scan := s.next(gap); scan != gap && s.slots[scan].used; scan = s.next(scan) {
		if !inCyclicRange(s.home(s.slots[scan].value), gap, scan) {
			s.slots[gap] = s.slots[scan]
			gap = scan
		}
	}

	s.slots[gap] = slot[T]{}
	s.count--
	return true
}

// inCyclicRange reports whether h is met at or before scan when walking
// forward from gap+1, i.e. whether h lies in the cyclic interval (gap, scan].
// gap and scan are never equal.
func inCyclicRange(h, gap, scan int) bool {
	if gap < scan {
		return gap < h && h <= scan
	}
	// the scan wrapped past the end of the array
	return h <= scan || h > gap
}

// Equal reports whether both sets hold the same elements. Membership is
// checked through other's probe sequence, so slot layout does not matter.
func (s *OpenHashSet[T]) Equal(other *OpenHashSet[T]) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	if s.count != other.count {
		return false
	}
	for i := range s.slots {
		if s.slots[i].used && !other.Contains(s.slots[i].value) {
			return false
		}
	}
	return true
}

// Hash combines the element hashes in Compare order, so two equal sets hash
// the same regardless of capacity or insertion history.
func (s *OpenHashSet[T]) Hash() int {
	h := EmptySetHash
	for _, e := range s.Sorted() {
		h = h*31 + s.hasher.Hash(e)
	}
	return h
}

// Elements returns the elements in slot order.
func (s *OpenHashSet[T]) Elements() []T {
	elems := make([]T, 0, s.count)
	for i := range s.slots {
		if s.slots[i].used {
			elems = append(elems, s.slots[i].value)
		}
	}
	return elems
}

// Sorted returns the elements ordered by the hasher's Compare.
func (s *OpenHashSet[T]) Sorted() []T {
	elems := s.Elements()
	slices.SortFunc(elems, s.hasher.Compare)
	return elems
}

// All iterates over the elements in slot order. The set must not be modified
// during iteration.
func (s *OpenHashSet[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := range s.slots {
			if s.slots[i].used && !yield(s.slots[i].value) {
				return
			}
		}
	}
}

// RandomElements returns up to count distinct elements chosen uniformly
// among all elements, in random order. If the set has fewer than count
// elements, it returns all of them.
func (s *OpenHashSet[T]) RandomElements(count int, rng *rand.Rand) []T {
	if s.Empty() || count <= 0 {
		return nil
	}
	if count > s.count {
		count = s.count
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	// Floyd's sampling of ranks among the occupied slots, collected in one pass
	picked := make(map[int]struct{}, count)
	for j := s.count - count; j < s.count; j++ {
		r := rng.Intn(j + 1)
		if _, dup := picked[r]; dup {
			r = j
		}
		picked[r] = struct{}{}
	}
	ranks := slices.Sorted(maps.Keys(picked))

	elems := make([]T, 0, count)
	rank := 0
	for i := 0; i < len(s.slots) && len(elems) < count; i++ {
		if !s.slots[i].used {
			continue
		}
		if rank == ranks[len(elems)] {
			elems = append(elems, s.slots[i].value)
		}
		rank++
	}
	rng.Shuffle(len(elems), func(i, j int) {
		elems[i], elems[j] = elems[j], elems[i]
	})
	return elems
}

// RandomElementsWithRepeat returns exactly count elements, each drawn
// uniformly and independently, so an element may appear more than once.
func (s *OpenHashSet[T]) RandomElementsWithRepeat(count int, rng *rand.Rand) []T {
	if s.Empty() || count <= 0 {
		return nil
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	pool := s.Elements()
	elems := make([]T, count)
	for i := range elems {
		elems[i] = pool[rng.Intn(len(pool))]
	}
	return elems
}

// Clear removes every element, keeping the capacity.
func (s *OpenHashSet[T]) Clear() {
	clear(s.slots)
	s.count = 0
}

func (s *OpenHashSet[T]) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range s.Sorted() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprint(&b, e)
	}
	b.WriteByte('}')
	return b.String()
}
