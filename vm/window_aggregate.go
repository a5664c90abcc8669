// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package vm

import "golang.org/x/exp/slices"

// arena is the per-operator scratch owner for variable-length aggregate
// state (spec.md §3, §5, §9). It is a plain byte-slice pool: Alloc hands
// out a slice of the requested size, reusing a previously Freed slice of
// adequate size when one is available, same role as the teacher's
// bytecode arenas but sized for aggregate scratch instead of row data.
type arena struct {
	free [][]byte
}

func newArena() *arena {
	return &arena{}
}

// Alloc returns a zeroed byte slice of length n, preferring a reclaimed
// slot from Free over a fresh allocation.
func (a *arena) Alloc(n int) []byte {
	for i, b := range a.free {
		if cap(b) >= n {
			a.free = slices.Delete(a.free, i, i+1)
			b = b[:n]
			for j := range b {
				b[j] = 0
			}
			return b
		}
	}
	return make([]byte, n)
}

// Free reclaims b for a future Alloc call of equal or smaller size. Per
// spec.md §9, the arena may grow within a partition (group_concat-style
// aggregates that never shrink their state do not have to call Free),
// and is only truly released at partition reset or operator teardown.
func (a *arena) Free(b []byte) {
	if b != nil {
		a.free = append(a.free, b)
	}
}

// reset discards every reclaimed slot, used at partition boundaries for
// aggregates whose Reset reports it is safe (spec.md §9).
func (a *arena) reset() {
	a.free = a.free[:0]
}

// AggregateFunc is the narrow consumed interface from spec.md §6: the
// aggregate-function library is an external collaborator, reached only
// through this contract.
type AggregateFunc interface {
	// Create allocates fresh accumulator state from a.
	Create(a *arena) any
	// Add folds the row at cols[...][row] into state.
	Add(state any, cols []Column, row int)
	// Finalize computes the output cell. ok reports whether the
	// result is non-NULL.
	Finalize(state any) (value any, ok bool)
	// Destroy releases any arena-backed storage held by state.
	Destroy(a *arena, state any)
}

// InvertibleAggregateFunc is an AggregateFunc that can also remove a
// previously Added row. Its presence (via a type assertion) is what the
// frame driver uses to decide incremental subtract vs reset-and-replay
// (spec.md §4.5): "presence of Subtract signals invertibility."
type InvertibleAggregateFunc interface {
	AggregateFunc
	Subtract(state any, cols []Column, row int)
}

// --- built-in aggregates -----------------------------------------------
//
// These stand in for the aggregate-function library spec.md §1 puts out
// of scope; they exist so the operator is independently testable
// end-to-end (spec.md §8's literal scenarios all use sum/count).

type sumState struct {
	sum   float64
	isInt bool
	isum  int64
	any   bool
}

// sumAgg implements SUM(x) over a float64 or int64 argument column. It
// is invertible: SUM supports Subtract, unlike MIN/MAX.
type sumAgg struct{ argIsInt bool }

func NewSumAgg(argIsInt bool) AggregateFunc { return &sumAgg{argIsInt: argIsInt} }

func (s *sumAgg) Create(a *arena) any { return &sumState{isInt: s.argIsInt} }

func (s *sumAgg) Add(st any, cols []Column, row int) {
	state := st.(*sumState)
	if state.isInt {
		c := cols[0].(*Int64Column)
		if c.IsNull(row) {
			return
		}
		state.isum += c.Values[row]
	} else {
		c := cols[0].(*Float64Column)
		if c.IsNull(row) {
			return
		}
		state.sum += c.Values[row]
	}
	state.any = true
}

func (s *sumAgg) Subtract(st any, cols []Column, row int) {
	state := st.(*sumState)
	if state.isInt {
		c := cols[0].(*Int64Column)
		if c.IsNull(row) {
			return
		}
		state.isum -= c.Values[row]
	} else {
		c := cols[0].(*Float64Column)
		if c.IsNull(row) {
			return
		}
		state.sum -= c.Values[row]
	}
}

func (s *sumAgg) Finalize(st any) (any, bool) {
	state := st.(*sumState)
	if !state.any {
		return nil, false
	}
	if state.isInt {
		return state.isum, true
	}
	return state.sum, true
}

func (s *sumAgg) Destroy(a *arena, st any) {}

// countAgg implements COUNT(x) (or COUNT(*) when the argument column is
// nil, i.e. every row counts regardless of nulls). Invertible.
type countState struct{ n int64 }

type countAgg struct{ star bool }

func NewCountAgg(star bool) AggregateFunc { return &countAgg{star: star} }

func (c *countAgg) Create(a *arena) any { return &countState{} }

func (c *countAgg) Add(st any, cols []Column, row int) {
	state := st.(*countState)
	if c.star || !cols[0].IsNull(row) {
		state.n++
	}
}

func (c *countAgg) Subtract(st any, cols []Column, row int) {
	state := st.(*countState)
	if c.star || !cols[0].IsNull(row) {
		state.n--
	}
}

func (c *countAgg) Finalize(st any) (any, bool) {
	return st.(*countState).n, true
}

func (c *countAgg) Destroy(a *arena, st any) {}

// avgAgg implements AVG(x) over a float64 argument, built from a
// running sum and count. Invertible.
type avgState struct {
	sum float64
	n   int64
}

type avgAgg struct{}

func NewAvgAgg() AggregateFunc { return &avgAgg{} }

func (av *avgAgg) Create(a *arena) any { return &avgState{} }

func (av *avgAgg) Add(st any, cols []Column, row int) {
	state := st.(*avgState)
	c := cols[0].(*Float64Column)
	if c.IsNull(row) {
		return
	}
	state.sum += c.Values[row]
	state.n++
}

func (av *avgAgg) Subtract(st any, cols []Column, row int) {
	state := st.(*avgState)
	c := cols[0].(*Float64Column)
	if c.IsNull(row) {
		return
	}
	state.sum -= c.Values[row]
	state.n--
}

func (av *avgAgg) Finalize(st any) (any, bool) {
	state := st.(*avgState)
	if state.n == 0 {
		return nil, false
	}
	return state.sum / float64(state.n), true
}

func (av *avgAgg) Destroy(a *arena, st any) {}

// maxAgg implements MAX(x) over a float64 argument. Not invertible:
// removing the current maximum from the frame requires rescanning the
// remaining rows, which this narrow aggregate contract cannot do, so
// maxAgg intentionally has no Subtract method and the frame driver
// always resets and replays it.
type maxState struct {
	max float64
	any bool
}

type maxAgg struct{}

func NewMaxAgg() AggregateFunc { return &maxAgg{} }

func (m *maxAgg) Create(a *arena) any { return &maxState{} }

func (m *maxAgg) Add(st any, cols []Column, row int) {
	state := st.(*maxState)
	c := cols[0].(*Float64Column)
	if c.IsNull(row) {
		return
	}
	if !state.any || c.Values[row] > state.max {
		state.max = c.Values[row]
	}
	state.any = true
}

func (m *maxAgg) Finalize(st any) (any, bool) {
	state := st.(*maxState)
	if !state.any {
		return nil, false
	}
	return state.max, true
}

func (m *maxAgg) Destroy(a *arena, st any) {}
