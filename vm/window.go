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

// Package vm (this file) implements the streaming window-function
// operator: a pull-mode pipeline stage that consumes ordered columnar
// blocks from an upstream BlockSource and emits blocks of identical row
// count augmented with one result column per window function.
package vm

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// Column is the narrow, read-only view the window operator needs of one
// field across all rows of a block. The real expression engine's
// ion/bytecode representation is out of scope (see doc.go); Column is the
// seam the operator talks across instead.
type Column interface {
	Len() int
	IsNull(row int) bool
}

// ComparableColumn supports the equality comparisons PARTITION BY needs.
type ComparableColumn interface {
	Column
	// EqualAt reports whether row i of this column equals row j of
	// other. NULLs compare equal to NULLs.
	EqualAt(i int, other Column, j int) bool
}

// OrderedColumn additionally supports the ordering comparisons ORDER BY
// needs for peer-group detection.
type OrderedColumn interface {
	ComparableColumn
	// CompareAt returns <0, 0, >0 as row i of this column is less than,
	// equal to, or greater than row j of other. NULL ordering
	// (first/last) is applied by the caller.
	CompareAt(i int, other Column, j int) int
}

// MutableColumn is a window function's output destination: one cell
// written per row, in row order, exactly once.
type MutableColumn interface {
	Len() int
	SetNull(row int)
}

// InputBlock is one upstream columnar batch. A zero-row InputBlock is the
// end-of-stream sentinel (see BlockSource).
type InputBlock struct {
	Columns []Column
	Rows    int
}

// OutputBlock is one downstream columnar batch: the pass-through input
// columns named by output_header, followed by one column per window
// function, in WindowDescription.Functions order.
type OutputBlock struct {
	PassThrough []Column
	Results     []MutableColumn
	Rows        int
}

// BlockSource is the upstream pull contract (spec §6): Read returns the
// next block, or a zero-row InputBlock (with a nil error) to signal
// end-of-stream. A non-nil error aborts the operator with ErrUpstream.
type BlockSource interface {
	Read() (InputBlock, error)
}

// OrderByColumn is one ORDER BY key: a column index plus its collation.
type OrderByColumn struct {
	Index     int
	Desc      bool
	NullsLast bool
}

// FrameMode selects ROWS or RANGE framing (spec §4.4).
type FrameMode int

const (
	FrameRows FrameMode = iota
	FrameRange
)

// BoundKind enumerates the frame boundary kinds from spec §6.
type BoundKind int

const (
	UnboundedPreceding BoundKind = iota
	Preceding
	CurrentRow
	Following
	UnboundedFollowing
)

// Bound is one frame boundary: UnboundedPreceding/CurrentRow/
// UnboundedFollowing carry no offset, Preceding(N)/Following(N) carry N
// in Offset.
type Bound struct {
	Kind   BoundKind
	Offset int64
}

// FrameSpec is the resolved frame clause of an OVER(...) window.
type FrameSpec struct {
	Mode  FrameMode
	Start Bound
	End   Bound
}

// FunctionKind distinguishes aggregate window functions (sum, avg, ...)
// from pure window functions (row_number, rank, lead, ...).
type FunctionKind int

const (
	AggregateFunction FunctionKind = iota
	PureFunction
)

// FunctionSpec is one resolved window function from the SELECT list.
type FunctionSpec struct {
	Name       string
	Kind       FunctionKind
	ArgIndices []int

	// Aggregate is set when Kind == AggregateFunction.
	Aggregate AggregateFunc
	// Pure is set when Kind == PureFunction.
	Pure PureWindowFunc

	// NewResult allocates this function's output column, sized for
	// rows rows. The planner resolves the declared result type
	// (spec §6); this operator only needs to be able to build an
	// empty column of that type to write cells into.
	NewResult func(rows int) MutableColumn
}

// WindowDescription is the fully-resolved specification the operator is
// constructed from (spec §6). Planning/parsing of OVER clauses into this
// shape is out of scope.
type WindowDescription struct {
	PartitionByIndices []int
	OrderBy            []OrderByColumn
	Frame              FrameSpec
	Functions          []FunctionSpec

	// PassThroughIndices names the input columns, in order, that form
	// the leading columns of output_header (spec §6); the window
	// function results follow in Functions order.
	PassThroughIndices []int
}

// Error kinds from spec §7.
var (
	ErrUnsupportedFrame   = errors.New("vm: unsupported window frame")
	ErrTypeMismatch       = errors.New("vm: window function argument type mismatch")
	ErrCancelled          = errors.New("vm: window operator cancelled")
	ErrInvariantViolated  = errors.New("vm: window operator invariant violated")
	errUpstreamWrapPrefix = "vm: window operator upstream"
)

// windowBlock is one buffered block plus its in-progress output columns.
type windowBlock struct {
	input   InputBlock
	outputs []MutableColumn
	rows    int
}

// windowWorkspace is the per-function scratch described in spec §3.
// argument column refs are rebound on every block access because
// releasing a block invalidates any previously held Column pointers.
type windowWorkspace struct {
	spec FunctionSpec
	// aggregate-only: the live accumulator state, and the frame it
	// currently reflects. Argument columns are never cached here: they
	// are rebound on every row via argColumns, since releasing a block
	// invalidates any previously held Column pointer.
	state     any
	prevFrame frameBounds
	aggArena  *arena
}

// frameBounds is a computed [start, end) row window.
type frameBounds struct {
	start, end   RowCoord
	started, ended bool
}

// WindowOperator is the streaming window-function pipeline stage
// (spec §2, §3's OperatorState). One instance serves one query; it owns
// its buffer and workspaces exclusively.
type WindowOperator struct {
	id uuid.UUID

	src  BlockSource
	desc WindowDescription

	partitionByIndices []int
	orderBy            []OrderByColumn

	workspaces []*windowWorkspace

	buffer           []*windowBlock
	firstBlockNumber uint64

	partitionStart  RowCoord
	partitionEnd    RowCoord
	partitionEnded  bool
	// partitionRows counts rows in [partitionStart, partitionEnd) as they
	// are scanned by advancePartitionEnd. percent_rank/ntile need the
	// partition's total size, and partitionStart's block may already be
	// released by the time they run, so this is accumulated incrementally
	// rather than recomputed from the coordinates.
	partitionRows uint64

	currentRow RowCoord

	peerGroupStart           RowCoord
	peerGroupNumber          uint64
	peerGroupStartRowNumber  uint64
	currentRowNumber         uint64

	frameStart, frameEnd   RowCoord
	frameStarted, frameEnded bool
	prevFrameStart         RowCoord

	nextOutputBlockNumber uint64
	firstNotReadyRow      RowCoord

	// maxBackwardReach is the widest backward offset any workspace's
	// pure function may still read (see backwardReacher), used to widen
	// the block-release boundary beyond frame_start.
	maxBackwardReach int64

	inputIsFinished bool
	closed          bool
}

// backwardReacher is an optional PureWindowFunc extension (LAG implements
// it) reporting how far behind current_row the function may look,
// independent of the frame clause.
type backwardReacher interface {
	BackwardReach() int64
}

// NewWindowOperator validates desc and constructs an operator reading
// from src. It returns ErrUnsupportedFrame immediately (rather than
// failing lazily on the first Read) when desc describes a frame this
// operator cannot execute, per spec §4.4 / §9 Open Questions.
func NewWindowOperator(src BlockSource, desc WindowDescription) (*WindowOperator, error) {
	if desc.Frame.Mode == FrameRange {
		if desc.Frame.Start.Kind == Preceding || desc.Frame.Start.Kind == Following ||
			desc.Frame.End.Kind == Preceding || desc.Frame.End.Kind == Following {
			return nil, fmt.Errorf("%w: RANGE with numeric offsets requires ordering arithmetic not implemented by this operator", ErrUnsupportedFrame)
		}
	}
	if len(desc.Functions) == 0 {
		return nil, fmt.Errorf("vm: window operator requires at least one window function")
	}

	partitionByIndices := slices.Clone(desc.PartitionByIndices)
	slices.Sort(partitionByIndices)
	partitionByIndices = slices.Compact(partitionByIndices)

	w := &WindowOperator{
		id:                 uuid.New(),
		src:                src,
		desc:               desc,
		partitionByIndices: partitionByIndices,
		orderBy:            desc.OrderBy,
	}
	for i := range desc.Functions {
		fn := desc.Functions[i]
		ws := &windowWorkspace{spec: fn}
		if fn.Kind == AggregateFunction {
			if fn.Aggregate == nil {
				return nil, fmt.Errorf("vm: window function %q declared Aggregate kind with nil implementation", fn.Name)
			}
			ws.aggArena = newArena()
			ws.state = fn.Aggregate.Create(ws.aggArena)
		} else if fn.Pure == nil {
			return nil, fmt.Errorf("vm: window function %q declared Pure kind with nil implementation", fn.Name)
		} else if br, ok := fn.Pure.(backwardReacher); ok {
			if reach := br.BackwardReach(); reach > w.maxBackwardReach {
				w.maxBackwardReach = reach
			}
		}
		w.workspaces = append(w.workspaces, ws)
	}
	w.peerGroupNumber = 1
	w.peerGroupStartRowNumber = 1
	w.currentRowNumber = 1
	return w, nil
}

func (w *WindowOperator) invariantViolated(format string, args ...any) {
	errorf("window operator %s: invariant violated: "+format, append([]any{w.id}, args...)...)
	panic(fmt.Errorf("%w: %s", ErrInvariantViolated, fmt.Sprintf(format, args...)))
}

// typeMismatch reports an argument or result column of an unexpected
// concrete type (spec §7). Like invariantViolated, it panics; Read's
// recover converts it into a returned error rather than crashing, since
// this can only happen if the planner handed the operator a
// WindowDescription whose declared types don't match its NewResult/
// argument columns.
func typeMismatch(format string, args ...any) {
	panic(fmt.Errorf("%w: %s", ErrTypeMismatch, fmt.Sprintf(format, args...)))
}
