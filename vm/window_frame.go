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

// movePartitionRelative is the partition-clamped variant of
// moveRowNumber used by LEAD/LAG (spec.md §4.5's "pure window functions
// ... compute the output cell directly" from row coordinates, never
// reaching outside their own partition).
func (w *WindowOperator) movePartitionRelative(from, partitionEnd RowCoord, partitionEnded bool, offset int64) (pos RowCoord, inBounds, ready bool) {
	if offset == 0 {
		return from, true, true
	}
	if offset < 0 {
		pos, _ = w.moveRowNumber(from, offset)
		// a backward move always "completes": either it reaches a
		// live row, or it clamps at partitionStart, in which case
		// pos == partitionStart and the row doesn't exist.
		return pos, !pos.LessEqual(w.partitionStart) || pos.Equal(from), true
	}
	pos, remainder := w.moveRowNumber(from, offset)
	if remainder != 0 {
		if partitionEnded {
			return partitionEnd, false, true
		}
		return RowCoord{}, false, false
	}
	if pos.Less(partitionEnd) {
		return pos, true, true
	}
	if partitionEnded {
		return partitionEnd, false, true
	}
	return RowCoord{}, false, false
}

// nextFrame is the pure function spec.md §9's Design Notes ask for:
// next_frame(prevFrame, currentRow, partitionBounds, spec, buffer) ->
// (frame, started, ended). It is a method (not a free function) only
// because it needs buffer access to resolve row offsets; it has no side
// effects on WindowOperator state.
func (w *WindowOperator) nextFrame() (bounds frameBounds) {
	switch w.desc.Frame.Mode {
	case FrameRows:
		bounds.start, bounds.started = w.frameRowsStart()
		bounds.end, bounds.ended = w.frameRowsEnd()
	case FrameRange:
		// NewWindowOperator rejects numeric RANGE offsets, so only
		// UNBOUNDED and CURRENT ROW boundaries reach here.
		if w.desc.Frame.Start.Kind == CurrentRow {
			bounds.start, bounds.started = w.peerGroupStart, true
		} else {
			bounds.start, bounds.started = w.partitionStart, true
		}
		if w.desc.Frame.End.Kind == CurrentRow {
			bounds.end = w.peerGroupEnd()
			bounds.ended = w.peerGroupEndKnown()
		} else {
			bounds.end, bounds.ended = w.partitionEnd, w.partitionEnded
		}
	}
	return bounds
}

func (w *WindowOperator) frameRowsStart() (RowCoord, bool) {
	switch w.desc.Frame.Start.Kind {
	case UnboundedPreceding:
		return w.partitionStart, true
	case CurrentRow:
		return w.currentRow, true
	case Preceding:
		pos, remainder := w.moveRowNumber(w.currentRow, -w.desc.Frame.Start.Offset)
		// backward moves always resolve: they either reach a live
		// row or clamp at partitionStart, and partitionStart is
		// always already known (it is fixed the moment the
		// partition begins).
		_ = remainder
		return pos, true
	case Following:
		pos, remainder := w.moveRowNumber(w.currentRow, w.desc.Frame.Start.Offset)
		if remainder != 0 {
			if w.partitionEnded {
				return w.partitionEnd, true
			}
			return pos, false
		}
		if pos.Less(w.partitionEnd) {
			return pos, true
		}
		if w.partitionEnded {
			return w.partitionEnd, true
		}
		return pos, false
	default:
		w.invariantViolated("unsupported frame start kind %v", w.desc.Frame.Start.Kind)
		return RowCoord{}, false
	}
}

func (w *WindowOperator) frameRowsEnd() (RowCoord, bool) {
	switch w.desc.Frame.End.Kind {
	case UnboundedFollowing:
		return w.partitionEnd, w.partitionEnded
	case CurrentRow:
		return w.advance(w.currentRow), true
	case Following:
		// frame_end = min(partition_end, moveRowNumber(current_row, N+1));
		// frame_ended iff the move wasn't clamped, or the partition
		// has already ended (spec.md §4.4).
		pos, remainder := w.moveRowNumber(w.currentRow, w.desc.Frame.End.Offset+1)
		if remainder == 0 && pos.Less(w.partitionEnd) {
			return pos, true
		}
		if w.partitionEnded {
			return w.partitionEnd, true
		}
		return pos, false
	case Preceding:
		pos, _ := w.moveRowNumber(w.currentRow, -w.desc.Frame.End.Offset+1)
		return pos, true
	default:
		w.invariantViolated("unsupported frame end kind %v", w.desc.Frame.End.Kind)
		return RowCoord{}, false
	}
}

// peerGroupEnd returns the first row past the current peer group, used
// by RANGE CURRENT ROW framing (spec.md §4.4). It scans forward from
// currentRow using the same equal-on-indices primitive partition
// detection uses, parameterized on ORDER BY indices instead.
func (w *WindowOperator) peerGroupEnd() RowCoord {
	end := w.blocksEnd()
	pos := w.currentRow
	for {
		if pos.Equal(w.partitionEnd) || pos.Equal(end) {
			return pos
		}
		if !w.arePeers(w.peerGroupStart, pos) {
			return pos
		}
		pos = w.advance(pos)
	}
}

// peerGroupEndKnown reports whether peerGroupEnd() can be fully resolved
// with currently buffered data (either a non-peer row was found, or the
// partition itself has ended).
func (w *WindowOperator) peerGroupEndKnown() bool {
	end := w.blocksEnd()
	pos := w.currentRow
	for {
		if pos.Equal(w.partitionEnd) {
			return true
		}
		if pos.Equal(end) {
			return w.partitionEnded
		}
		if !w.arePeers(w.peerGroupStart, pos) {
			return true
		}
		pos = w.advance(pos)
	}
}

// updateAggregates applies the incremental add/subtract/reset-and-replay
// rule from spec.md §4.5 for one workspace, given the frame it is
// currently reflecting (ws.prevFrame) and the freshly computed frame.
func (w *WindowOperator) updateAggregates(ws *windowWorkspace, newFrame frameBounds) {
	fn := ws.spec.Aggregate
	prev := ws.prevFrame
	if !prev.started {
		// first frame ever computed for this workspace in this
		// partition: there is nothing to subtract, only to add.
		prev = frameBounds{start: newFrame.start, end: newFrame.start, started: true, ended: true}
	}

	inv, invertible := fn.(InvertibleAggregateFunc)

	if newFrame.start.Less(prev.start) {
		// frame widened on the left: not representable by
		// subtracting (we'd be adding, not removing), so reset and
		// replay the whole frame from scratch.
		invertible = false
	}

	if !invertible {
		fn.Destroy(ws.aggArena, ws.state)
		ws.state = fn.Create(ws.aggArena)
		w.forEachRow(newFrame.start, newFrame.end, func(coord RowCoord) {
			fn.Add(ws.state, w.argColumns(ws, coord), int(coord.Row))
		})
		ws.prevFrame = newFrame
		return
	}

	if newFrame.start.Less(prev.start) {
		w.invariantViolated("invertible branch reached with a left-widening frame")
	}
	if prev.start.Less(newFrame.start) {
		w.forEachRow(prev.start, newFrame.start, func(coord RowCoord) {
			inv.Subtract(ws.state, w.argColumns(ws, coord), int(coord.Row))
		})
	}
	addFrom := prev.end
	if addFrom.Less(newFrame.start) {
		addFrom = newFrame.start
	}
	w.forEachRow(addFrom, newFrame.end, func(coord RowCoord) {
		fn.Add(ws.state, w.argColumns(ws, coord), int(coord.Row))
	})
	ws.prevFrame = newFrame
}

// forEachRow calls f for every row coordinate in [from, to).
func (w *WindowOperator) forEachRow(from, to RowCoord, f func(RowCoord)) {
	pos := from
	for pos.Less(to) {
		f(pos)
		pos = w.advance(pos)
	}
}

// argColumns rebinds a workspace's argument columns to the block that
// coord addresses (spec.md §3: "rebound on every blockAt access because
// block release invalidates pointers").
func (w *WindowOperator) argColumns(ws *windowWorkspace, coord RowCoord) []Column {
	all := w.inputAt(coord)
	cols := make([]Column, len(ws.spec.ArgIndices))
	for i, idx := range ws.spec.ArgIndices {
		cols[i] = all[idx]
	}
	return cols
}
