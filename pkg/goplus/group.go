package goplus

import (
	"sync"
	"sync/atomic"
)

var (
	defaultGroup     *WaitGroup
	defaultGroupOnce sync.Once
)

func DefaultGroup() *WaitGroup {
	defaultGroupOnce.Do(func() {
		defaultGroup = NewWaitGroup()
	})
	return defaultGroup
}

// Go runs fn on the default group with panic recovery.
func Go(fn func()) {
	DefaultGroup().Go(fn)
}

// GoNamed is Go with the task name attached to any recovered panic.
func GoNamed(name string, fn func()) {
	DefaultGroup().GoNamed(name, fn)
}

func Wait() {
	DefaultGroup().Wait()
}

func Running() int64 {
	return DefaultGroup().Running()
}

type WaitGroup struct {
	wg      sync.WaitGroup
	running atomic.Int64
}

func NewWaitGroup() *WaitGroup {
	return &WaitGroup{}
}

func (s *WaitGroup) Go(fn func()) {
	s.GoNamed("", fn)
}

func (s *WaitGroup) GoNamed(name string, fn func()) {
	s.running.Add(1)
	s.wg.Add(1)

	go func() {
		defer s.done()
		defer RecoverNamed(name)

		fn()
	}()
}

func (s *WaitGroup) done() {
	s.running.Add(-1)
	s.wg.Done()
}

func (s *WaitGroup) Wait() {
	s.wg.Wait()
}

func (s *WaitGroup) Running() int64 {
	return s.running.Load()
}
