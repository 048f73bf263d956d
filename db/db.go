package db

import (
	"errors"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

const (
	DefaultCapacity    = 16
	DefaultMaxCapacity = 1 << 20
)

var (
	ErrKeyExists        = errors.New("key already exists")
	ErrCapacityTooLarge = errors.New("capacity exceeds the configured maximum")
	ErrInvalidLimits    = errors.New("default capacity exceeds max capacity")
)

// Options configures a RedisDb.
type Options struct {
	DefaultCapacity int            // capacity of sets created implicitly
	MaxCapacity     int            // upper bound accepted by Create
	Hasher          Hasher[string] // defaults to StringHasher
}

// RedisDb is the keyspace: a concurrent map from key to set object.
type RedisDb struct {
	id              uint64
	dict            *xsync.MapOf[string, *Object]
	hasher          Hasher[string]
	defaultCapacity int
	maxCapacity     int
	memory          memoryStat
}

func New(id uint64, opts Options) (*RedisDb, error) {
	if opts.DefaultCapacity == 0 {
		opts.DefaultCapacity = DefaultCapacity
	}
	if opts.MaxCapacity == 0 {
		opts.MaxCapacity = DefaultMaxCapacity
	}
	if opts.Hasher == nil {
		opts.Hasher = StringHasher{}
	}
	if opts.DefaultCapacity < 0 || opts.MaxCapacity < 0 {
		return nil, ErrInvalidCapacity
	}
	if opts.DefaultCapacity > opts.MaxCapacity {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidLimits, opts.DefaultCapacity, opts.MaxCapacity)
	}

	return &RedisDb{
		id:              id,
		dict:            xsync.NewMapOf[string, *Object](),
		hasher:          opts.Hasher,
		defaultCapacity: opts.DefaultCapacity,
		maxCapacity:     opts.MaxCapacity,
	}, nil
}

// GetID returns the database id
func (db *RedisDb) GetID() uint64 {
	return db.id
}

func (db *RedisDb) DefaultCapacity() int {
	return db.defaultCapacity
}

func (db *RedisDb) MaxCapacity() int {
	return db.maxCapacity
}

// Create adds a new empty set with the given capacity under key.
func (db *RedisDb) Create(key string, capacity int) (*Object, error) {
	if capacity > db.maxCapacity {
		return nil, fmt.Errorf("%w: %d > %d", ErrCapacityTooLarge, capacity, db.maxCapacity)
	}
	obj, err := NewObject(capacity, db.hasher)
	if err != nil {
		return nil, err
	}
	if _, loaded := db.dict.LoadOrStore(key, obj); loaded {
		return nil, ErrKeyExists
	}
	db.memory.alloc(obj)
	return obj, nil
}

// GetOrCreate returns the set stored at key, creating one with the default
// capacity if the key is missing.
func (db *RedisDb) GetOrCreate(key string) *Object {
	obj, _ := db.dict.LoadOrCompute(key, func() *Object {
		// the default capacity was validated in New
		obj, _ := NewObject(db.defaultCapacity, db.hasher)
		db.memory.alloc(obj)
		return obj
	})
	return obj
}

// Lookup returns the set stored at key
func (db *RedisDb) Lookup(key string) (*Object, bool) {
	return db.dict.Load(key)
}

// Delete removes the keys and returns how many existed.
func (db *RedisDb) Delete(keys ...string) int {
	deleted := 0
	for _, key := range keys {
		if obj, ok := db.dict.LoadAndDelete(key); ok {
			db.memory.free(obj)
			deleted++
		}
	}
	return deleted
}

// Exists counts the keys that exist. A key given twice is counted twice.
func (db *RedisDb) Exists(keys ...string) int {
	n := 0
	for _, key := range keys {
		if _, ok := db.dict.Load(key); ok {
			n++
		}
	}
	return n
}

// Keys returns the sorted keys matching a glob pattern. Patterns follow
// Redis KEYS rules, so '*' also matches '/'.
func (db *RedisDb) Keys(pattern string) []string {
	all := pattern == "*"
	var keys []string
	db.dict.Range(func(key string, _ *Object) bool {
		if all || globMatch(pattern, key) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys
func (db *RedisDb) Len() int {
	return db.dict.Size()
}

// Flush removes every key.
func (db *RedisDb) Flush() {
	db.dict.Range(func(key string, _ *Object) bool {
		db.Delete(key)
		return true
	})
}

// UsedMemory estimates the bytes held by the slot tables of all sets.
func (db *RedisDb) UsedMemory() int64 {
	return db.memory.load()
}
