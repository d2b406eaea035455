// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tsmap implements a small ordered map keyed by dataflow.Timestamp,
// backed by a sorted slice. The number of live entries in a time-versioned
// state is always small (bounded by retention/history size), so a sorted
// slice with binary-search lookups is simpler and just as fast as a tree
// for this workload.
package tsmap

import (
	"sort"

	"code.hybscloud.com/dataflow"
)

// Map is an ordered map from dataflow.Timestamp to V, iterable in either
// direction in sorted key order.
type Map[V any] struct {
	keys []dataflow.Timestamp
	vals []V
}

func (m *Map[V]) search(k dataflow.Timestamp) int {
	return sort.Search(len(m.keys), func(i int) bool { return !m.keys[i].Less(k) })
}

// Set inserts or overwrites the value at key k.
func (m *Map[V]) Set(k dataflow.Timestamp, v V) {
	i := m.search(k)
	if i < len(m.keys) && m.keys[i].Equal(k) {
		m.vals[i] = v
		return
	}
	m.keys = append(m.keys, dataflow.Timestamp{})
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = k
	m.vals = append(m.vals, v)
	copy(m.vals[i+1:], m.vals[i:])
	m.vals[i] = v
}

// Get returns the value at key k and whether it was present.
func (m *Map[V]) Get(k dataflow.Timestamp) (V, bool) {
	i := m.search(k)
	if i < len(m.keys) && m.keys[i].Equal(k) {
		return m.vals[i], true
	}
	var zero V
	return zero, false
}

// GetPtr returns a pointer into the map's storage for key k, allowing
// in-place mutation, and whether it was present.
func (m *Map[V]) GetPtr(k dataflow.Timestamp) (*V, bool) {
	i := m.search(k)
	if i < len(m.keys) && m.keys[i].Equal(k) {
		return &m.vals[i], true
	}
	return nil, false
}

// Has reports whether key k is present.
func (m *Map[V]) Has(k dataflow.Timestamp) bool {
	_, ok := m.Get(k)
	return ok
}

// Delete removes key k if present.
func (m *Map[V]) Delete(k dataflow.Timestamp) {
	i := m.search(k)
	if i < len(m.keys) && m.keys[i].Equal(k) {
		m.keys = append(m.keys[:i], m.keys[i+1:]...)
		m.vals = append(m.vals[:i], m.vals[i+1:]...)
	}
}

// Len returns the number of entries.
func (m *Map[V]) Len() int { return len(m.keys) }

// KeysAscending returns the live keys in ascending order. Callers must not
// mutate the returned slice.
func (m *Map[V]) KeysAscending() []dataflow.Timestamp { return m.keys }

// DeleteLE removes every entry with key <= k.
func (m *Map[V]) DeleteLE(k dataflow.Timestamp) {
	i := m.search(k)
	// search returns the first index whose key is NOT < k; entries with
	// key == k must also be dropped, so advance past equal keys too.
	for i < len(m.keys) && m.keys[i].Equal(k) {
		i++
	}
	m.keys = m.keys[i:]
	m.vals = m.vals[i:]
}

// KeepMostRecentLE retains at most the `keep` most recent entries with key
// <= k (entries with key > k are always retained); older <= k entries are
// dropped. keep <= 0 drops every entry with key <= k.
func (m *Map[V]) KeepMostRecentLE(k dataflow.Timestamp, keep int) {
	end := m.search(k)
	for end < len(m.keys) && m.keys[end].Equal(k) {
		end++
	}
	// [0, end) are the entries with key <= k, ascending.
	if keep <= 0 {
		m.keys = append(m.keys[:0:0], m.keys[end:]...)
		m.vals = append(m.vals[:0:0], m.vals[end:]...)
		return
	}
	if end <= keep {
		return
	}
	drop := end - keep
	m.keys = append(m.keys[:0:0], m.keys[drop:]...)
	m.vals = append(m.vals[:0:0], m.vals[drop:]...)
}
