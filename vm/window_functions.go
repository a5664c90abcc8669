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

// This file is the pure-window-function side of the aggregate/window
// contract described in spec.md §6. It supersedes the teacher's original
// hash_aggregate_window.go, which bolted row_number/rank/dense_rank onto
// the sort-based HashAggregate path via a `next(repeat bool) uint`
// counter interface that only knew about repeat-vs-new-peer, not about
// partitions, frames, or row coordinates. PureWindowFunc below keeps the
// same rank/dense_rank counting algorithm (a running number plus a
// skip-count for tied peers) but drives it from the operator's own
// current_row_number / peer_group_start_row_number / peer_group_number,
// which the streaming operator already maintains per spec.md §4.5.

// windowRowContext is what spec.md §6 calls "ctx": the row coordinates
// and numbering a pure window function needs to compute its cell.
type windowRowContext struct {
	op *WindowOperator

	currentRow              RowCoord
	currentRowNumber        uint64
	peerGroupStartRowNumber uint64
	peerGroupNumber         uint64

	partitionStart RowCoord
	partitionEnd   RowCoord
	partitionEnded bool
	partitionRows  uint64

	frameStart RowCoord
	frameEnd   RowCoord

	argIndices []int
}

func (ctx *windowRowContext) CurrentRow() RowCoord              { return ctx.currentRow }
func (ctx *windowRowContext) CurrentRowNumber() uint64          { return ctx.currentRowNumber }
func (ctx *windowRowContext) PeerGroupStartRowNumber() uint64   { return ctx.peerGroupStartRowNumber }
func (ctx *windowRowContext) PeerGroupNumber() uint64           { return ctx.peerGroupNumber }
func (ctx *windowRowContext) PartitionStart() RowCoord          { return ctx.partitionStart }
func (ctx *windowRowContext) PartitionEnd() RowCoord            { return ctx.partitionEnd }
func (ctx *windowRowContext) PartitionEnded() bool              { return ctx.partitionEnded }
func (ctx *windowRowContext) PartitionSize() uint64             { return ctx.partitionRows }
func (ctx *windowRowContext) FrameStart() RowCoord              { return ctx.frameStart }
func (ctx *windowRowContext) FrameEnd() RowCoord                { return ctx.frameEnd }

// Arg returns the n'th argument column (per FunctionSpec.ArgIndices),
// rebound to whichever block coord addresses.
func (ctx *windowRowContext) Arg(n int, coord RowCoord) Column {
	return ctx.op.columnAt(coord, ctx.argIndices[n])
}

// MoveWithinPartition moves from by offset rows, never crossing the
// partition boundary. It returns ready=false when offset is positive and
// the destination cannot yet be determined (partition end not yet known
// and not enough buffered input) — the caller must wait for more input.
// When offset lands at or past partitionEnd (forward) or at/before
// partitionStart (backward), pos equals that boundary and inBounds is
// false, signalling "no such row" (the caller substitutes a default).
func (ctx *windowRowContext) MoveWithinPartition(from RowCoord, offset int64) (pos RowCoord, inBounds, ready bool) {
	return ctx.op.movePartitionRelative(from, ctx.partitionEnd, ctx.partitionEnded, offset)
}

// PureWindowFunc is the pure-window-function side of spec.md §6's
// consumed interface.
type PureWindowFunc interface {
	// Ready reports whether Compute may be called for ctx.CurrentRow
	// yet. Most functions only need the shared frame to be ready
	// (checked by the frame driver before Ready is even consulted);
	// a few (percent_rank, ntile) additionally need the whole
	// partition scanned, and lead/lag need their target row resolved.
	Ready(ctx *windowRowContext) bool
	// Compute writes the output cell for row (the position of
	// ctx.CurrentRow within out's block) into out.
	Compute(ctx *windowRowContext, out MutableColumn, row int)
	// ResetPartition reinitializes running state at a partition
	// boundary.
	ResetPartition()
}

// --- row_number / rank / dense_rank -------------------------------------

type rowNumberFunc struct{}

func NewRowNumberFunc() PureWindowFunc { return &rowNumberFunc{} }

func (*rowNumberFunc) Ready(*windowRowContext) bool { return true }
func (*rowNumberFunc) ResetPartition()              {}
func (*rowNumberFunc) Compute(ctx *windowRowContext, out MutableColumn, row int) {
	out.(*Uint64Column).Set(row, ctx.CurrentRowNumber())
}

type rankFunc struct{}

func NewRankFunc() PureWindowFunc { return &rankFunc{} }

func (*rankFunc) Ready(*windowRowContext) bool { return true }
func (*rankFunc) ResetPartition()              {}
func (*rankFunc) Compute(ctx *windowRowContext, out MutableColumn, row int) {
	out.(*Uint64Column).Set(row, ctx.PeerGroupStartRowNumber())
}

type denseRankFunc struct{}

func NewDenseRankFunc() PureWindowFunc { return &denseRankFunc{} }

func (*denseRankFunc) Ready(*windowRowContext) bool { return true }
func (*denseRankFunc) ResetPartition()              {}
func (*denseRankFunc) Compute(ctx *windowRowContext, out MutableColumn, row int) {
	out.(*Uint64Column).Set(row, ctx.PeerGroupNumber())
}

// percentRankFunc computes (rank-1)/(n-1), 0 when n==1. It needs the
// partition's total row count, so it is not Ready until partitionEnded
// (spec.md §4.2 outcome 1 or 2 must have already fired).
type percentRankFunc struct{}

func NewPercentRankFunc() PureWindowFunc { return &percentRankFunc{} }

func (*percentRankFunc) Ready(ctx *windowRowContext) bool { return ctx.PartitionEnded() }
func (*percentRankFunc) ResetPartition()                  {}
func (*percentRankFunc) Compute(ctx *windowRowContext, out MutableColumn, row int) {
	n := ctx.PartitionSize()
	col := out.(*Float64Column)
	if n <= 1 {
		col.Set(row, 0)
		return
	}
	col.Set(row, float64(ctx.PeerGroupStartRowNumber()-1)/float64(n-1))
}

// ntileFunc distributes the partition's rows into Buckets groups as
// evenly as possible, the first (n mod buckets) groups getting one extra
// row, matching standard SQL NTILE semantics.
type ntileFunc struct {
	Buckets uint64
}

func NewNtileFunc(buckets uint64) PureWindowFunc { return &ntileFunc{Buckets: buckets} }

func (*ntileFunc) Ready(ctx *windowRowContext) bool { return ctx.PartitionEnded() }
func (*ntileFunc) ResetPartition()                  {}
func (f *ntileFunc) Compute(ctx *windowRowContext, out MutableColumn, row int) {
	n := ctx.PartitionSize()
	buckets := f.Buckets
	if buckets == 0 {
		buckets = 1
	}
	base := n / buckets
	extra := n % buckets
	// rows 1..extra*(base+1) fall into the larger buckets, then the
	// remainder is divided evenly among the rest
	boundary := extra * (base + 1)
	rn := ctx.CurrentRowNumber()
	var bucket uint64
	if rn <= boundary {
		bucket = (rn-1)/(base+1) + 1
	} else if base > 0 {
		bucket = extra + (rn-1-boundary)/base + 1
	} else {
		bucket = buckets
	}
	out.(*Uint64Column).Set(row, bucket)
}

// --- lead / lag ----------------------------------------------------------

// offsetValueFunc implements both LEAD and LAG: a fixed-distance lookup
// within the partition, falling back to a default (NULL when Default is
// nil) when the target row doesn't exist.
type offsetValueFunc struct {
	Offset  int64 // positive for LEAD, negative for LAG
	Default func(out MutableColumn, row int)
}

func NewLeadFunc(offset int64, writeDefault func(out MutableColumn, row int)) PureWindowFunc {
	return &offsetValueFunc{Offset: offset, Default: writeDefault}
}

func NewLagFunc(offset int64, writeDefault func(out MutableColumn, row int)) PureWindowFunc {
	return &offsetValueFunc{Offset: -offset, Default: writeDefault}
}

// BackwardReach reports how many rows behind current_row this function
// may still need to read. The emission controller (window_emit.go) uses
// it, via a type assertion, to widen the block-release boundary beyond
// frame_start for LAG: LAG's offset is independent of the frame clause,
// so frame_start alone does not bound how far back it may look.
func (f *offsetValueFunc) BackwardReach() int64 {
	if f.Offset < 0 {
		return -f.Offset
	}
	return 0
}

func (f *offsetValueFunc) Ready(ctx *windowRowContext) bool {
	_, _, ready := ctx.MoveWithinPartition(ctx.CurrentRow(), f.Offset)
	return ready
}

func (*offsetValueFunc) ResetPartition() {}

func (f *offsetValueFunc) Compute(ctx *windowRowContext, out MutableColumn, row int) {
	pos, inBounds, _ := ctx.MoveWithinPartition(ctx.CurrentRow(), f.Offset)
	if !inBounds {
		if f.Default != nil {
			f.Default(out, row)
		} else {
			out.SetNull(row)
		}
		return
	}
	copyCell(ctx.Arg(0, pos), int(pos.Row), out, row)
}

// --- first_value / last_value / nth_value --------------------------------
//
// Unlike LEAD/LAG, these are frame-relative (spec.md §4.5): they read
// from [frame_start, frame_end), which is only known once the shared
// frame state machine has already marked the row Ready, so these never
// need their own Ready override.

type firstValueFunc struct{}

func NewFirstValueFunc() PureWindowFunc { return &firstValueFunc{} }

func (*firstValueFunc) Ready(*windowRowContext) bool { return true }
func (*firstValueFunc) ResetPartition()              {}
func (*firstValueFunc) Compute(ctx *windowRowContext, out MutableColumn, row int) {
	if ctx.FrameStart().Equal(ctx.FrameEnd()) {
		out.SetNull(row)
		return
	}
	pos := ctx.FrameStart()
	copyCell(ctx.Arg(0, pos), int(pos.Row), out, row)
}

type lastValueFunc struct{}

func NewLastValueFunc() PureWindowFunc { return &lastValueFunc{} }

func (*lastValueFunc) Ready(*windowRowContext) bool { return true }
func (*lastValueFunc) ResetPartition()              {}
func (*lastValueFunc) Compute(ctx *windowRowContext, out MutableColumn, row int) {
	if ctx.FrameStart().Equal(ctx.FrameEnd()) {
		out.SetNull(row)
		return
	}
	pos := ctx.op.advancePrevRow(ctx.FrameEnd())
	copyCell(ctx.Arg(0, pos), int(pos.Row), out, row)
}

// nthValueFunc returns the value at the N'th row (1-based) of the
// current frame, or NULL if the frame has fewer than N rows.
type nthValueFunc struct {
	N int64
}

func NewNthValueFunc(n int64) PureWindowFunc { return &nthValueFunc{N: n} }

func (*nthValueFunc) Ready(*windowRowContext) bool { return true }
func (*nthValueFunc) ResetPartition()              {}
func (f *nthValueFunc) Compute(ctx *windowRowContext, out MutableColumn, row int) {
	if f.N < 1 {
		out.SetNull(row)
		return
	}
	pos, remainder := ctx.op.moveRowNumber(ctx.FrameStart(), f.N-1)
	if remainder != 0 || !pos.Less(ctx.FrameEnd()) {
		out.SetNull(row)
		return
	}
	copyCell(ctx.Arg(0, pos), int(pos.Row), out, row)
}

// copyCell copies one cell from a Column/row into a MutableColumn/row of
// the same concrete type, preserving NULLs. It is the generic glue
// between argument columns (read) and result columns (write) that lets
// first_value/last_value/nth_value/lead/lag be argument-type agnostic.
func copyCell(src Column, srow int, dst MutableColumn, drow int) {
	if src.IsNull(srow) {
		dst.SetNull(drow)
		return
	}
	switch s := src.(type) {
	case *Int64Column:
		dst.(*Int64Column).Set(drow, s.Values[srow])
	case *Float64Column:
		dst.(*Float64Column).Set(drow, s.Values[srow])
	case *StringColumn:
		dst.(*StringColumn).Set(drow, s.Values[srow])
	default:
		typeMismatch("copyCell: unsupported column type %T", src)
	}
}
