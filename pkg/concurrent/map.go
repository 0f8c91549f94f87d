package concurrent

import (
	"iter"
	"sync"
	"sync/atomic"
)

// Map is a typed sync.Map that also tracks its length.
type Map[K comparable, V any] struct {
	length atomic.Int64
	data   sync.Map
}

func (m *Map[K, V]) Len() int64 {
	return m.length.Load()
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	value, ok := m.data.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return value.(V), true
}

func (m *Map[K, V]) Store(key K, value V) {
	if _, loaded := m.data.Swap(key, value); !loaded {
		m.length.Add(1)
	}
}

// LoadOrStore reports loaded=true when the key was already present.
func (m *Map[K, V]) LoadOrStore(key K, value V) (V, bool) {
	actual, loaded := m.data.LoadOrStore(key, value)
	if !loaded {
		m.length.Add(1)
	}
	return actual.(V), loaded
}

func (m *Map[K, V]) LoadAndDelete(key K) (V, bool) {
	value, loaded := m.data.LoadAndDelete(key)
	if !loaded {
		var zero V
		return zero, false
	}
	m.length.Add(-1)
	return value.(V), true
}

func (m *Map[K, V]) Delete(key K) {
	m.LoadAndDelete(key)
}

func (m *Map[K, V]) Clear() {
	m.data.Clear()
	m.length.Store(0)
}

// Range has sync.Map semantics: no consistent snapshot.
func (m *Map[K, V]) Range(f func(K, V) bool) {
	m.data.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}

func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.Range(yield)
	}
}

func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Len())
	m.Range(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Set is a concurrent set built on Map.
type Set[K comparable] struct {
	m Map[K, struct{}]
}

// Add reports whether key was newly inserted.
func (s *Set[K]) Add(key K) bool {
	_, loaded := s.m.LoadOrStore(key, struct{}{})
	return !loaded
}

func (s *Set[K]) Contains(key K) bool {
	_, ok := s.m.Load(key)
	return ok
}

func (s *Set[K]) Remove(key K) {
	s.m.Delete(key)
}

func (s *Set[K]) Len() int64 {
	return s.m.Len()
}

func (s *Set[K]) Items() []K {
	return s.m.Keys()
}
