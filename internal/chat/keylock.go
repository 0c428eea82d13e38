package chat

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// keyLock serializes writers per key over a fixed set of mutexes. Callers
// must never hold two keys of the same keyLock at once: distinct keys may
// share a stripe.
type keyLock struct {
	stripes [lockStripes]sync.Mutex
}

func newKeyLock() *keyLock { return &keyLock{} }

func (l *keyLock) lock(key string) (unlock func()) {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
