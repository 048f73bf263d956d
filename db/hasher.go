package db

import (
	"cmp"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"golang.org/x/exp/constraints"
)

// Hasher supplies the element capabilities an OpenHashSet needs.
// Equal must be consistent with Hash. Compare must be a total order; it is
// only used to put elements in a canonical order for the combined set hash.
type Hasher[T any] interface {
	Hash(e T) int
	Equal(a, b T) bool
	Compare(a, b T) int
}

// Element is implemented by types that know how to hash, compare and order
// themselves.
type Element[T any] interface {
	Hash() int
	Equal(other T) bool
	Compare(other T) int
}

// ElementHasher delegates to the element's own methods.
type ElementHasher[T Element[T]] struct{}

func (ElementHasher[T]) Hash(e T) int       { return e.Hash() }
func (ElementHasher[T]) Equal(a, b T) bool  { return a.Equal(b) }
func (ElementHasher[T]) Compare(a, b T) int { return a.Compare(b) }

// HasherFuncs adapts three plain functions to a Hasher.
type HasherFuncs[T any] struct {
	HashFunc    func(e T) int
	EqualFunc   func(a, b T) bool
	CompareFunc func(a, b T) int
}

func (h HasherFuncs[T]) Hash(e T) int       { return h.HashFunc(e) }
func (h HasherFuncs[T]) Equal(a, b T) bool  { return h.EqualFunc(a, b) }
func (h HasherFuncs[T]) Compare(a, b T) int { return h.CompareFunc(a, b) }

// IntegerHasher hashes an integer to its own value.
type IntegerHasher[T constraints.Integer] struct{}

func (IntegerHasher[T]) Hash(e T) int       { return int(e) }
func (IntegerHasher[T]) Equal(a, b T) bool  { return a == b }
func (IntegerHasher[T]) Compare(a, b T) int { return cmp.Compare(a, b) }

// StringHasher is the classic 31 polynomial string hash with 32-bit
// wraparound, s[0]*31^(n-1) + s[1]*31^(n-2) + ... + s[n-1].
type StringHasher struct{}

func (StringHasher) Hash(s string) int {
	var h int32
	for i := 0; i < len(s); i++ {
		h = 31*h + int32(s[i])
	}
	return int(h)
}

func (StringHasher) Equal(a, b string) bool  { return a == b }
func (StringHasher) Compare(a, b string) int { return strings.Compare(a, b) }

// Murmur3Hasher hashes strings with 32-bit murmur3.
type Murmur3Hasher struct{}

func (Murmur3Hasher) Hash(s string) int       { return int(murmur3.Sum32([]byte(s))) }
func (Murmur3Hasher) Equal(a, b string) bool  { return a == b }
func (Murmur3Hasher) Compare(a, b string) int { return strings.Compare(a, b) }

// XXHasher hashes strings with xxhash64. The result may be negative.
type XXHasher struct{}

func (XXHasher) Hash(s string) int       { return int(xxhash.Sum64String(s)) }
func (XXHasher) Equal(a, b string) bool  { return a == b }
func (XXHasher) Compare(a, b string) int { return strings.Compare(a, b) }

// FormatHasher hashes the %v representation of a value with FNV-1a.
type FormatHasher[T cmp.Ordered] struct{}

func (FormatHasher[T]) Hash(e T) int {
	hasher := fnv.New32a()
	fmt.Fprint(hasher, e)
	return int(hasher.Sum32())
}

func (FormatHasher[T]) Equal(a, b T) bool  { return a == b }
func (FormatHasher[T]) Compare(a, b T) int { return cmp.Compare(a, b) }

// Names accepted by HasherByName.
const (
	HasherJava    = "java"
	HasherMurmur3 = "murmur3"
	HasherXX      = "xxhash"
	HasherFNV     = "fnv"
)

// HasherByName returns the string hasher registered under name.
func HasherByName(name string) (Hasher[string], error) {
	switch strings.ToLower(name) {
	case HasherJava, "":
		return StringHasher{}, nil
	case HasherMurmur3:
		return Murmur3Hasher{}, nil
	case HasherXX:
		return XXHasher{}, nil
	case HasherFNV:
		return FormatHasher[string]{}, nil
	default:
		return nil, fmt.Errorf("unknown hasher %q", name)
	}
}
