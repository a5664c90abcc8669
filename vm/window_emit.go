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

import (
	"context"
	"fmt"
)

// Read is the operator's blocking pull entry point (spec.md §5, §6): it
// returns the next fully-computed output block, or a zero-Rows OutputBlock
// with a nil error at end-of-stream. It pulls from src zero or more times
// per call and holds no external locks between calls.
//
// InvariantViolated failures (spec.md §7: "fatal in debug builds; reported
// as an internal error in release builds") surface here as a returned
// error rather than a crash, via recover, matching invariantViolated's
// panic(fmt.Errorf(...)) convention.
func (w *WindowOperator) Read(ctx context.Context) (out OutputBlock, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				out, err = OutputBlock{}, rerr
				w.closed = true
				return
			}
			panic(r)
		}
	}()
	return w.readLoop(ctx)
}

func (w *WindowOperator) readLoop(ctx context.Context) (OutputBlock, error) {
	if w.closed {
		return OutputBlock{}, nil
	}
	for {
		if err := ctx.Err(); err != nil {
			w.teardown()
			return OutputBlock{}, ErrCancelled
		}

		if out, ok := w.tryEmit(); ok {
			return out, nil
		}

		progressed, err := w.advanceOneRow()
		if err != nil {
			w.closed = true
			return OutputBlock{}, err
		}
		if progressed {
			continue
		}

		if w.inputIsFinished {
			if len(w.buffer) == 0 {
				w.closed = true
				return OutputBlock{}, nil
			}
			// every buffered row has already been computed (the frame
			// driver only stalls waiting for more input); flushing
			// must make forward progress, or an invariant has broken.
			if w.firstNotReadyRow.Equal(w.blocksEnd()) {
				out, ok := w.forceEmit()
				if !ok {
					w.invariantViolated("Read: input finished but no block is emittable and none is computable")
				}
				return out, nil
			}
			w.invariantViolated("Read: input finished but a buffered row is still pending")
		}

		in, err := w.src.Read()
		if err != nil {
			w.closed = true
			return OutputBlock{}, fmt.Errorf("%s: %w", errUpstreamWrapPrefix, err)
		}
		if in.Rows == 0 {
			w.inputIsFinished = true
			continue
		}
		w.appendBlock(in)
	}
}

// teardown releases the buffer and aggregate state on cancellation
// (spec.md §5: "releases its buffer and aggregate state and fails with
// Cancelled").
func (w *WindowOperator) teardown() {
	w.closed = true
	for _, ws := range w.workspaces {
		if ws.spec.Kind == AggregateFunction {
			ws.spec.Aggregate.Destroy(ws.aggArena, ws.state)
		}
	}
	w.buffer = nil
}

// advanceOneRow computes exactly one row if the buffered input currently
// allows it, reporting whether it made progress. No progress means the
// caller must either pull more upstream input or, at true end-of-stream,
// force the final partial release.
func (w *WindowOperator) advanceOneRow() (bool, error) {
	if !w.partitionEnded {
		if !w.advancePartitionEnd() {
			return false, nil
		}
	}

	if w.currentRow.Equal(w.partitionEnd) {
		if w.currentRow.Equal(w.blocksEnd()) {
			return false, nil
		}
		w.startNextPartition()
		return true, nil
	}

	frame := w.nextFrame()
	if !(frame.started && frame.ended) {
		return false, nil
	}

	rowCtx := w.makeRowContext(frame)
	for _, ws := range w.workspaces {
		if ws.spec.Kind != PureFunction {
			continue
		}
		rowCtx.argIndices = ws.spec.ArgIndices
		if !ws.spec.Pure.Ready(rowCtx) {
			return false, nil
		}
	}

	w.computeRow(frame, rowCtx)
	return true, nil
}

// startNextPartition resets per-partition state when current_row reaches
// partition_end (spec.md §4.5's partition-transition clause).
func (w *WindowOperator) startNextPartition() {
	w.partitionStart = w.partitionEnd
	w.partitionEnded = false
	w.partitionRows = 0
	w.peerGroupStart = w.partitionStart
	w.peerGroupNumber = 1
	w.peerGroupStartRowNumber = 1
	w.currentRowNumber = 1
	w.prevFrameStart = RowCoord{}
	w.frameStarted, w.frameEnded = false, false

	for _, ws := range w.workspaces {
		if ws.spec.Kind == AggregateFunction {
			ws.spec.Aggregate.Destroy(ws.aggArena, ws.state)
			ws.state = ws.spec.Aggregate.Create(ws.aggArena)
			ws.prevFrame = frameBounds{}
			// Safe to reclaim every workspace's arena slots at a
			// partition boundary: none of the built-in aggregates
			// (spec.md §9) keep state alive across partitions.
			ws.aggArena.reset()
		} else {
			ws.spec.Pure.ResetPartition()
		}
	}
}

// makeRowContext builds the ctx a pure window function consumes for
// current_row (spec.md §6's pure-window-function interface).
func (w *WindowOperator) makeRowContext(frame frameBounds) *windowRowContext {
	return &windowRowContext{
		op:                      w,
		currentRow:              w.currentRow,
		currentRowNumber:        w.currentRowNumber,
		peerGroupStartRowNumber: w.peerGroupStartRowNumber,
		peerGroupNumber:         w.peerGroupNumber,
		partitionStart:          w.partitionStart,
		partitionEnd:            w.partitionEnd,
		partitionEnded:          w.partitionEnded,
		partitionRows:           w.partitionRows,
		frameStart:              frame.start,
		frameEnd:                frame.end,
	}
}

// computeRow writes every workspace's output cell for current_row, then
// advances the row/peer-group bookkeeping (spec.md §4.5).
func (w *WindowOperator) computeRow(frame frameBounds, rowCtx *windowRowContext) {
	w.frameStart, w.frameEnd = frame.start, frame.end
	w.frameStarted, w.frameEnded = frame.started, frame.ended

	outputs := w.outputAt(w.currentRow)
	row := int(w.currentRow.Row)
	for i, ws := range w.workspaces {
		if ws.spec.Kind == AggregateFunction {
			w.updateAggregates(ws, frame)
			value, ok := ws.spec.Aggregate.Finalize(ws.state)
			writeAggregateCell(outputs[i], row, value, ok)
		} else {
			rowCtx.argIndices = ws.spec.ArgIndices
			ws.spec.Pure.Compute(rowCtx, outputs[i], row)
		}
	}

	w.prevFrameStart = frame.start
	prevRow := w.currentRow
	w.currentRow = w.advance(w.currentRow)
	w.currentRowNumber++
	w.firstNotReadyRow = w.currentRow

	if !w.currentRow.Equal(w.partitionEnd) && !w.arePeers(prevRow, w.currentRow) {
		w.peerGroupStart = w.currentRow
		w.peerGroupStartRowNumber = w.currentRowNumber
		w.peerGroupNumber++
	}
}

// writeAggregateCell stores an AggregateFunc.Finalize result into out,
// dispatching on out's concrete type; ok=false writes NULL.
func writeAggregateCell(out MutableColumn, row int, value any, ok bool) {
	if !ok {
		out.SetNull(row)
		return
	}
	switch c := out.(type) {
	case *Int64Column:
		switch v := value.(type) {
		case int64:
			c.Set(row, v)
		case float64:
			c.Set(row, int64(v))
		default:
			typeMismatch("writeAggregateCell: result column type %T cannot hold %T", out, value)
		}
	case *Float64Column:
		switch v := value.(type) {
		case float64:
			c.Set(row, v)
		case int64:
			c.Set(row, float64(v))
		default:
			typeMismatch("writeAggregateCell: result column type %T cannot hold %T", out, value)
		}
	default:
		typeMismatch("writeAggregateCell: result column type %T cannot hold %T", out, value)
	}
}

// retainBoundary computes the earliest RowCoord still needed by any row
// not yet computed: firstNotReadyRow, clamped further back by the current
// frame_start (frame_start is monotonic within a partition, so no future
// row in this partition needs anything before it) and by the operator's
// maxBackwardReach (LAG's reach is independent of the frame clause). A
// block is only released once it is strictly before this boundary.
func (w *WindowOperator) retainBoundary() RowCoord {
	retain := w.firstNotReadyRow
	if w.frameStarted && w.frameStart.Less(retain) {
		retain = w.frameStart
	}
	if w.maxBackwardReach > 0 {
		reach, _ := w.moveRowNumber(w.currentRow, -w.maxBackwardReach)
		if reach.Less(retain) {
			retain = reach
		}
	}
	return retain
}

// tryEmit releases every block that retainBoundary() permits and, if the
// oldest released block exists, assembles and returns it as an
// OutputBlock (spec.md §4.6).
func (w *WindowOperator) tryEmit() (OutputBlock, bool) {
	released := w.releaseReadyBlocks(w.retainBoundary())
	if len(released) == 0 {
		return OutputBlock{}, false
	}
	return w.assembleOutput(released[0]), true
}

// forceEmit is tryEmit's end-of-stream counterpart: once input is
// finished and every buffered row has been computed, every remaining
// buffered block is emittable regardless of frame_start/LAG reach (there
// are no more rows left that could need them).
func (w *WindowOperator) forceEmit() (OutputBlock, bool) {
	if len(w.buffer) == 0 {
		return OutputBlock{}, false
	}
	blk := w.buffer[0]
	w.buffer = w.buffer[1:]
	w.firstBlockNumber++
	return w.assembleOutput(blk), true
}

func (w *WindowOperator) assembleOutput(blk *windowBlock) OutputBlock {
	out := OutputBlock{
		Results: blk.outputs,
		Rows:    blk.rows,
	}
	if len(w.desc.PassThroughIndices) > 0 {
		out.PassThrough = make([]Column, len(w.desc.PassThroughIndices))
		for i, idx := range w.desc.PassThroughIndices {
			out.PassThrough[i] = blk.input.Columns[idx]
		}
	}
	return out
}
