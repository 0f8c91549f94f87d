package concurrent

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapLength(t *testing.T) {
	var m Map[string, int]

	m.Store("a", 1)
	m.Store("a", 2)
	m.Store("b", 3)
	assert.Equal(t, int64(2), m.Len())

	v, ok := m.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, loaded := m.LoadOrStore("b", 9)
	assert.True(t, loaded)

	m.Delete("a")
	m.Delete("missing")
	assert.Equal(t, int64(1), m.Len())

	keys := m.Keys()
	assert.Equal(t, []string{"b"}, keys)

	m.Clear()
	assert.Equal(t, int64(0), m.Len())
}

func TestMapConcurrentStore(t *testing.T) {
	var m Map[int, int]
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Store(i, i)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), m.Len())
}

func TestSet(t *testing.T) {
	var s Set[string]

	assert.True(t, s.Add("x"))
	assert.False(t, s.Add("x"))
	assert.True(t, s.Add("y"))
	assert.True(t, s.Contains("x"))

	s.Remove("x")
	assert.False(t, s.Contains("x"))

	items := s.Items()
	sort.Strings(items)
	assert.Equal(t, []string{"y"}, items)
	assert.Equal(t, int64(1), s.Len())
}

func BenchmarkMapStore(b *testing.B) {
	var m Map[string, int]
	for i := 0; i < b.N; i++ {
		m.Store(fmt.Sprint(i%1024), i)
	}
}
