package ds

import (
	"fmt"
	"iter"
	"slices"
)

// Set is a set data structure that maintains insertion order. Remove is an
// O(N) operation.
type Set[T comparable] struct {
	m map[T]struct{}
	l []T
}

func NewSet[T comparable](capacity int) *Set[T] {
	return &Set[T]{
		m: make(map[T]struct{}, capacity),
		l: make([]T, 0, capacity),
	}
}

func SetOf[T comparable](vs ...T) *Set[T] {
	s := NewSet[T](len(vs))
	s.Add(vs...)
	return s
}

// Add inserts values not yet in the set and reports how many were new.
func (s *Set[T]) Add(vs ...T) int {
	added := 0
	for _, v := range vs {
		if !s.Has(v) {
			s.m[v] = struct{}{}
			s.l = append(s.l, v)
			added++
		}
	}
	return added
}

// Remove deletes v and reports whether it was present.
func (s *Set[T]) Remove(v T) bool {
	if !s.Has(v) {
		return false
	}
	delete(s.m, v)
	s.l = slices.DeleteFunc(s.l, func(el T) bool { return el == v })
	return true
}

// The number of items in the set.
func (s *Set[T]) Size() int {
	if s == nil {
		return 0
	}
	return len(s.l)
}

func (s *Set[T]) All() iter.Seq[T] {
	if s == nil {
		return func(yield func(T) bool) {}
	}
	return slices.Values(s.l)
}

// At returns the i-th item in insertion order.
func (s *Set[T]) At(i int) T {
	return s.l[i]
}

// Index returns the insertion position of v, or -1 when v is not in the set.
func (s *Set[T]) Index(v T) int {
	if !s.Has(v) {
		return -1
	}
	return slices.Index(s.l, v)
}

// Slice returns a copy of the items in insertion order.
func (s *Set[T]) Slice() []T {
	if s == nil {
		return nil
	}
	return slices.Clone(s.l)
}

func (s *Set[T]) Has(v T) bool {
	if s == nil {
		return false
	}
	_, ok := s.m[v]
	return ok
}

func (s *Set[T]) String() string {
	return fmt.Sprintf("%v", s.l)
}
