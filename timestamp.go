// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dataflow

import (
	"fmt"
	"strings"
)

// Timestamp is the logical coordinate operators advance along. It is built
// from a sequence of unsigned integers compared lexicographically, plus two
// distinguished values: Bottom precedes every other timestamp and Top
// succeeds every other timestamp and signals end-of-stream.
//
// The zero value is Bottom.
type Timestamp struct {
	coords []uint64
	kind   tsKind
}

type tsKind uint8

const (
	tsBottom tsKind = iota
	tsNormal
	tsTop
)

// Bottom returns the timestamp that precedes all others.
func Bottom() Timestamp { return Timestamp{kind: tsBottom} }

// Top returns the timestamp that succeeds all others. Sending a Top
// watermark on a write stream closes it.
func Top() Timestamp { return Timestamp{kind: tsTop} }

// New builds a normal timestamp from its coordinates, most-significant
// first. New() with no coordinates is a normal, zero-length timestamp and
// is distinct from Bottom (it compares equal only to itself).
func New(coords ...uint64) Timestamp {
	cp := make([]uint64, len(coords))
	copy(cp, coords)
	return Timestamp{coords: cp, kind: tsNormal}
}

// IsBottom reports whether t is the distinguished bottom timestamp.
func (t Timestamp) IsBottom() bool { return t.kind == tsBottom }

// IsTop reports whether t is the distinguished top timestamp.
func (t Timestamp) IsTop() bool { return t.kind == tsTop }

// Coords returns the underlying coordinate slice. Callers must not mutate it.
func (t Timestamp) Coords() []uint64 { return t.coords }

// Compare returns -1, 0, or 1 as t is less than, equal to, or greater than
// other. Bottom compares less than every normal timestamp and Top; Top
// compares greater than every normal timestamp and Bottom. Two normal
// timestamps compare lexicographically by coordinate; where one is a
// prefix of the other, the shorter sequence is less.
func (t Timestamp) Compare(other Timestamp) int {
	if t.kind != other.kind {
		if t.kind < other.kind {
			return -1
		}
		return 1
	}
	if t.kind != tsNormal {
		return 0
	}
	n := len(t.coords)
	if len(other.coords) < n {
		n = len(other.coords)
	}
	for i := 0; i < n; i++ {
		switch {
		case t.coords[i] < other.coords[i]:
			return -1
		case t.coords[i] > other.coords[i]:
			return 1
		}
	}
	switch {
	case len(t.coords) < len(other.coords):
		return -1
	case len(t.coords) > len(other.coords):
		return 1
	}
	return 0
}

// Less reports whether t sorts strictly before other.
func (t Timestamp) Less(other Timestamp) bool { return t.Compare(other) < 0 }

// Equal reports whether t and other denote the same logical time.
func (t Timestamp) Equal(other Timestamp) bool { return t.Compare(other) == 0 }

// String renders the timestamp for diagnostics, not for wire use.
func (t Timestamp) String() string {
	switch t.kind {
	case tsBottom:
		return "⊥"
	case tsTop:
		return "⊤"
	default:
		parts := make([]string, len(t.coords))
		for i, c := range t.coords {
			parts[i] = fmt.Sprintf("%d", c)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
}
