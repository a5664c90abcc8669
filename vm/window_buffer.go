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

// appendBlock adds a freshly-read upstream block to the tail of the
// buffer, allocating its (initially empty) output columns.
func (w *WindowOperator) appendBlock(in InputBlock) {
	blk := &windowBlock{
		input: in,
		rows:  in.Rows,
	}
	blk.outputs = make([]MutableColumn, len(w.workspaces))
	for i, ws := range w.workspaces {
		blk.outputs[i] = ws.spec.NewResult(in.Rows)
	}
	w.buffer = append(w.buffer, blk)
}

// blockAt returns the buffered block at the given absolute block number.
// It panics with InvariantViolated if the block is not live, mirroring
// the teacher's assert-on-every-dereference discipline (spec.md §9's
// "Supplemented Features" note on assertValid).
func (w *WindowOperator) blockAt(blockNumber uint64) *windowBlock {
	if blockNumber < w.firstBlockNumber || blockNumber-w.firstBlockNumber >= uint64(len(w.buffer)) {
		w.invariantViolated("blockAt(%d): first=%d buffered=%d", blockNumber, w.firstBlockNumber, len(w.buffer))
	}
	return w.buffer[blockNumber-w.firstBlockNumber]
}

// inputAt returns the input columns of the block x addresses.
func (w *WindowOperator) inputAt(x RowCoord) []Column {
	return w.blockAt(x.Block).input.Columns
}

// outputAt returns the in-progress output columns of the block x
// addresses.
func (w *WindowOperator) outputAt(x RowCoord) []MutableColumn {
	return w.blockAt(x.Block).outputs
}

// blockRowsNumber returns the row count of the block x addresses.
func (w *WindowOperator) blockRowsNumber(x RowCoord) int {
	return w.blockAt(x.Block).rows
}

// assertValid checks the invariants from spec.md §3: x must address a
// live row, or be exactly the blocksEnd sentinel.
func (w *WindowOperator) assertValid(x RowCoord) {
	if x.Block < w.firstBlockNumber {
		w.invariantViolated("assertValid(%v): block before first_block_number=%d", x, w.firstBlockNumber)
	}
	end := w.blocksEnd()
	if x.Equal(end) {
		if x.Row != 0 {
			w.invariantViolated("assertValid(%v): blocksEnd sentinel with nonzero row", x)
		}
		return
	}
	if x.Row >= uint64(w.blockRowsNumber(x)) {
		w.invariantViolated("assertValid(%v): row out of range for block", x)
	}
}

// releaseReadyBlocks drops every buffered block strictly before retain.Block
// from the front of the buffer, per spec.md §4.6. retain must be no further
// forward than any coordinate still reachable from a row not yet emitted:
// the caller (window_emit.go) computes it as the minimum of
// firstNotReadyRow, the current frameStart of every workspace, and the
// backward reach of any buffered LAG-style pure function, so that a block
// is never released while some pending row's frame or offset lookup still
// needs it. It returns the released blocks in ascending order so the
// emission controller can hand them downstream.
func (w *WindowOperator) releaseReadyBlocks(retain RowCoord) []*windowBlock {
	var released []*windowBlock
	for len(w.buffer) > 0 && w.firstBlockNumber < retain.Block {
		released = append(released, w.buffer[0])
		w.buffer = w.buffer[1:]
		w.firstBlockNumber++
	}
	return released
}
