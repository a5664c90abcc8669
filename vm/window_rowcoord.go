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

// RowCoord addresses a single row in the monotonically-numbered block
// space of a WindowOperator. Block indices only ever increase, so a
// RowCoord remains a stable address even after earlier blocks have been
// released from the buffer.
type RowCoord struct {
	Block uint64
	Row   uint64
}

// Less orders RowCoord lexicographically by (Block, Row).
func (c RowCoord) Less(other RowCoord) bool {
	return c.Block < other.Block ||
		(c.Block == other.Block && c.Row < other.Row)
}

// Equal reports whether c and other address the same row.
func (c RowCoord) Equal(other RowCoord) bool {
	return c.Block == other.Block && c.Row == other.Row
}

// LessEqual is Less-or-Equal.
func (c RowCoord) LessEqual(other RowCoord) bool {
	return c.Less(other) || c.Equal(other)
}

// rows returns the row count of the block x addresses, via the owning
// operator's buffer.
func (w *WindowOperator) rowsIn(block uint64) uint64 {
	return uint64(w.blockAt(block).rows)
}

// blocksEnd returns the past-the-end sentinel: the address of row 0 of
// the block that would follow the last buffered block.
func (w *WindowOperator) blocksEnd() RowCoord {
	return RowCoord{Block: w.firstBlockNumber + uint64(len(w.buffer)), Row: 0}
}

// advance moves x one row forward, rolling over to the next block's row 0
// when x's block is exhausted. advance never needs to look past blocksEnd
// immediately after a row is consumed; callers must ensure x.Block is
// still a live block (or x == blocksEnd(), assertValid's "past the end"
// case) before calling.
func (w *WindowOperator) advance(x RowCoord) RowCoord {
	rows := w.rowsIn(x.Block)
	x.Row++
	if x.Row < rows {
		return x
	}
	x.Row = 0
	x.Block++
	return x
}

// moveRowNumber moves x by a signed row offset, clamping at partitionStart
// (negative offsets) or blocksEnd (positive offsets). It returns the
// clamped position and the portion of the offset that could not be
// consumed because of clamping: zero means the move landed exactly,
// non-zero means the caller asked for more rows than are available on
// that side and must treat the frame boundary as not yet determined
// (more input needed) or as bounded by the partition, depending on the
// bound kind.
func (w *WindowOperator) moveRowNumber(x RowCoord, offset int64) (RowCoord, int64) {
	if offset == 0 {
		return x, 0
	}
	if offset < 0 {
		return w.moveBackward(x, -offset)
	}
	return w.moveForward(x, offset)
}

func (w *WindowOperator) moveBackward(x RowCoord, n int64) (RowCoord, int64) {
	limit := w.partitionStart
	for n > 0 {
		if x.Equal(limit) || x.Less(limit) {
			// already at (or somehow before) the clamp point
			return limit, n
		}
		if x.Row > 0 {
			step := int64(x.Row)
			if step > n {
				step = n
			}
			x.Row -= uint64(step)
			n -= step
			continue
		}
		// x.Row == 0: step back into the previous block, if it is
		// still addressable (>= limit.Block) and buffered.
		if x.Block == 0 || x.Block-1 < limit.Block {
			return x, n
		}
		if x.Block-1 < w.firstBlockNumber {
			// the previous block has already been released; we can
			// still report the clamp, but we cannot step into it.
			return x, n
		}
		prevRows := w.rowsIn(x.Block - 1)
		x.Block--
		x.Row = prevRows
		// falls through to the x.Row > 0 branch next iteration, which
		// will immediately subtract from this now-valid row count
	}
	return x, 0
}

func (w *WindowOperator) moveForward(x RowCoord, n int64) (RowCoord, int64) {
	end := w.blocksEnd()
	for n > 0 {
		if x.Equal(end) {
			return x, n
		}
		rows := w.rowsIn(x.Block)
		remaining := int64(rows - x.Row)
		if remaining > n {
			x.Row += uint64(n)
			return x, 0
		}
		n -= remaining
		x.Row = 0
		x.Block++
		if x.Equal(end) {
			if n > 0 {
				return x, n
			}
			return x, 0
		}
	}
	return x, 0
}

// moveRowNumberUnchecked moves x by offset without clamping at
// partitionStart or blocksEnd; it is used internally by moveRowNumber's
// ROWS-mode callers that have already established the move is in range.
// Mirrors the teacher header's moveRowNumberNoCheck, which exists as a
// separate fast path for the same reason: avoiding the clamp check when
// the caller already knows the destination is buffered.
func (w *WindowOperator) moveRowNumberUnchecked(x RowCoord, offset int64) RowCoord {
	pos, remainder := w.moveRowNumber(x, offset)
	if remainder != 0 {
		w.invariantViolated("moveRowNumberUnchecked: offset %d from %v could not be satisfied", offset, x)
	}
	return pos
}
