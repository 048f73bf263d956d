package db

import (
	"sync/atomic"
	"unsafe"
)

const objectOverhead = int64(unsafe.Sizeof(Object{}) + unsafe.Sizeof(OpenHashSet[string]{}))

// memoryStat tracks the bytes held by slot tables in a keyspace. Tables are
// allocated at full capacity up front, so the figure depends on capacity
// rather than on how many members are stored.
type memoryStat struct {
	used atomic.Int64
}

func (m *memoryStat) alloc(obj *Object) {
	m.used.Add(estimateMemoryUsage(obj))
}

func (m *memoryStat) free(obj *Object) {
	m.used.Add(-estimateMemoryUsage(obj))
}

func (m *memoryStat) load() int64 {
	return m.used.Load()
}

func estimateMemoryUsage(obj *Object) int64 {
	return objectOverhead + int64(obj.Cap())*int64(unsafe.Sizeof(slot[string]{}))
}
