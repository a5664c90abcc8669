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

// columnAt returns the input column at logical index idx for the block
// that x addresses.
func (w *WindowOperator) columnAt(x RowCoord, idx int) Column {
	return w.inputAt(x)[idx]
}

// equalOnIndices is the "scan-forward-while-equal" primitive spec.md §9
// asks for: it is shared by partition detection (indices =
// partitionByIndices) and peer detection (indices = the ORDER BY column
// indices), parameterized only by which column indices must compare
// equal.
func (w *WindowOperator) equalOnIndices(x, y RowCoord, indices []int) bool {
	for _, idx := range indices {
		xc, ok1 := w.columnAt(x, idx).(ComparableColumn)
		yc := w.columnAt(y, idx)
		if !ok1 {
			w.invariantViolated("column %d is not comparable", idx)
		}
		if !xc.EqualAt(int(x.Row), yc, int(y.Row)) {
			return false
		}
	}
	return true
}

// arePeers reports whether x and y belong to the same ORDER BY peer
// group: true iff x == y or all ORDER BY columns compare equal at x and
// y (spec.md §4.3). With no ORDER BY, every row in the partition is a
// peer of every other.
func (w *WindowOperator) arePeers(x, y RowCoord) bool {
	if x.Equal(y) {
		return true
	}
	if len(w.orderBy) == 0 {
		return true
	}
	idx := make([]int, len(w.orderBy))
	for i, ob := range w.orderBy {
		idx[i] = ob.Index
	}
	return w.equalOnIndices(x, y, idx)
}

// advancePartitionEnd scans rows from the current partitionEnd forward,
// comparing each candidate row against the row immediately before it
// (rather than against partitionStart, which may already address a
// released block, per spec.md §9's constraint that partitionStart is
// usable only for coordinate comparisons). Because PARTITION BY groups
// are contiguous runs, adjacent-row equality and first-row equality are
// the same partition membership test.
//
// Returns true when partitionEnd has been finally determined (either a
// partition boundary was found, or input_is_finished closed out the
// last partition); false means the buffer is exhausted and more
// upstream input is required (spec.md §4.2, outcome 3).
func (w *WindowOperator) advancePartitionEnd() bool {
	if w.partitionEnded {
		return true
	}
	if len(w.partitionByIndices) == 0 {
		// no PARTITION BY: the whole input is one partition, so every
		// buffered row belongs to it; still walk row by row so
		// partitionRows stays accurate for percent_rank/ntile.
		end := w.blocksEnd()
		for !w.partitionEnd.Equal(end) {
			w.partitionEnd = w.advance(w.partitionEnd)
			w.partitionRows++
		}
		if w.inputIsFinished {
			w.partitionEnded = true
			return true
		}
		return false
	}

	end := w.blocksEnd()
	for {
		if w.partitionEnd.Equal(end) {
			if w.inputIsFinished {
				w.partitionEnded = true
				return true
			}
			return false
		}
		prev := w.partitionEnd
		// the first row of the partition has no predecessor to
		// compare against; it trivially belongs to the partition.
		if !w.partitionStart.Equal(w.partitionEnd) {
			prev = w.advancePrevRow(w.partitionEnd)
			if !w.equalOnIndices(prev, w.partitionEnd, w.partitionByIndices) {
				w.partitionEnded = true
				return true
			}
		}
		w.partitionEnd = w.advance(w.partitionEnd)
		w.partitionRows++
		end = w.blocksEnd()
	}
}

// advancePrevRow returns the row immediately preceding x. x must not be
// (block, 0) of the very first buffered block unless that block is also
// partitionStart's block at row 0 (callers only use this for rows known
// to have a live predecessor within the current partition).
func (w *WindowOperator) advancePrevRow(x RowCoord) RowCoord {
	if x.Row > 0 {
		return RowCoord{Block: x.Block, Row: x.Row - 1}
	}
	return RowCoord{Block: x.Block - 1, Row: uint64(w.rowsIn(x.Block - 1)) - 1}
}
