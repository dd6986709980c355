package dbus

import "sync"

// errNotFound is returned by cache.Get when no entry (successful or
// failed) has been recorded for a key yet.
var errNotFound = &cacheMiss{}

type cacheMiss struct{}

func (*cacheMiss) Error() string { return "cache: not found" }

// cache memoizes a K->V derivation (e.g. reflect.Type->Signature, or
// reflect.Type->EncoderFunc) that may also fail. Entries are set at
// most once; re-deriving the same key concurrently is harmless, it
// just duplicates work rather than corrupting state.
type cache[K comparable, V any] struct {
	m sync.Map
}

type cacheEntry[V any] struct {
	val V
	err error
}

func (c *cache[K, V]) Get(k K) (V, error) {
	v, ok := c.m.Load(k)
	if !ok {
		var zero V
		return zero, errNotFound
	}
	e := v.(cacheEntry[V])
	return e.val, e.err
}

func (c *cache[K, V]) Set(k K, v V) {
	c.m.Store(k, cacheEntry[V]{val: v})
}

func (c *cache[K, V]) SetErr(k K, err error) {
	c.m.Store(k, cacheEntry[V]{err: err})
}
