package pool

import (
	"fmt"
	"sync"
)

// Resettable values are cleared by Put before they go back into the pool.
type Resettable interface {
	Reset()
}

// Pool is a typed sync.Pool. Get never needs a type assertion at the call site.
type Pool[T any] struct {
	pool sync.Pool
}

func New[T any](newFn func() T) (*Pool[T], error) {
	if newFn == nil {
		return nil, fmt.Errorf("pool: constructor must not be nil")
	}
	return &Pool[T]{pool: sync.Pool{New: func() any { return newFn() }}}, nil
}

// MustNew is New for package-level pools whose constructor is known good.
func MustNew[T any](newFn func() T) *Pool[T] {
	p, err := New(newFn)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pool[T]) Get() T {
	//nolint:forcetypeassert // New only ever stores T
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(v T) {
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	p.pool.Put(v)
}
