package utils

import (
	"sync"
)

// Lazy holds a value that is computed on first use.
type Lazy[T any] struct {
	mu    sync.Mutex
	valid bool
	val   T
	calc  func() T
}

func NewLazy[T any](calc func() T) *Lazy[T] {
	return &Lazy[T]{calc: calc}
}

func (l *Lazy[T]) Get() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.valid {
		l.val = l.calc()
		l.valid = true
	}
	return l.val
}

// ObjectCache stores demand-driven objects keyed by name, such as the
// multigrid hierarchy built for a mesh. Everything is dropped together by
// Clear when the owning topology goes away. Each entry is built under its own
// lock, so a build may read other entries of the same cache.
type ObjectCache struct {
	mu      sync.Mutex
	objects map[string]*cacheEntry
}

type cacheEntry struct {
	mu  sync.Mutex
	obj any
	ok  bool
}

func NewObjectCache() *ObjectCache {
	return &ObjectCache{objects: make(map[string]*cacheEntry)}
}

func (oc *ObjectCache) entry(name string, create bool) (e *cacheEntry) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	var found bool
	if e, found = oc.objects[name]; !found && create {
		e = &cacheEntry{}
		oc.objects[name] = e
	}
	return
}

// GetOrCompute returns the cached object for name, building it with calc the
// first time. A failed calc caches nothing.
func (oc *ObjectCache) GetOrCompute(name string, calc func() (any, error)) (obj any, err error) {
	e := oc.entry(name, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ok {
		return e.obj, nil
	}
	if obj, err = calc(); err != nil {
		oc.mu.Lock()
		if oc.objects[name] == e {
			delete(oc.objects, name)
		}
		oc.mu.Unlock()
		return nil, err
	}
	e.obj, e.ok = obj, true
	return
}

func (oc *ObjectCache) Get(name string) (obj any, ok bool) {
	e := oc.entry(name, false)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.obj, e.ok
}

func (oc *ObjectCache) Remove(name string) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	delete(oc.objects, name)
}

func (oc *ObjectCache) Clear() {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.objects = make(map[string]*cacheEntry)
}
