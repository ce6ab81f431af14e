// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

// slab is a minimal index-stable container: Insert returns an index that
// stays valid (and Get-able) until Remove is called on it, and a removed
// index is safe to remove again (Remove reports false instead of panicking
// or double-freeing). Freed indices are recycled, so long-lived caches with
// many watch churns don't grow their backing array without bound.
//
// This stands in for the free-list "slab" container the original watch
// registry used; Go has no equivalent in its standard library, so this is
// a small from-scratch allocator-style structure rather than a wrapper
// around an existing package.
type slab[T any] struct {
	entries  []slabEntry[T]
	freeHead int
	count    int
}

type slabEntry[T any] struct {
	occupied bool
	value    T
	nextFree int
}

func newSlab[T any]() *slab[T] {
	return &slab[T]{freeHead: -1}
}

// Insert stores v and returns its index.
func (s *slab[T]) Insert(v T) int {
	if s.freeHead >= 0 {
		idx := s.freeHead
		s.freeHead = s.entries[idx].nextFree
		s.entries[idx] = slabEntry[T]{occupied: true, value: v}
		s.count++
		return idx
	}
	idx := len(s.entries)
	s.entries = append(s.entries, slabEntry[T]{occupied: true, value: v})
	s.count++
	return idx
}

// Get returns the value at idx, or ok=false if idx is out of range or has
// been removed.
func (s *slab[T]) Get(idx int) (T, bool) {
	var zero T
	if idx < 0 || idx >= len(s.entries) || !s.entries[idx].occupied {
		return zero, false
	}
	return s.entries[idx].value, true
}

// Remove evicts idx. Reports false (a no-op) if idx was already removed or
// never existed, so callers never need to guard a cancel against a racing
// second cancel.
func (s *slab[T]) Remove(idx int) (T, bool) {
	var zero T
	if idx < 0 || idx >= len(s.entries) || !s.entries[idx].occupied {
		return zero, false
	}
	v := s.entries[idx].value
	s.entries[idx] = slabEntry[T]{occupied: false, nextFree: s.freeHead}
	s.freeHead = idx
	s.count--
	return v, true
}

// Len reports the number of currently-occupied entries.
func (s *slab[T]) Len() int { return s.count }

// Each calls f for every occupied entry, in index order. f returning false
// stops iteration early.
func (s *slab[T]) Each(f func(idx int, v T) bool) {
	for i := range s.entries {
		if s.entries[i].occupied {
			if !f(i, s.entries[i].value) {
				return
			}
		}
	}
}
