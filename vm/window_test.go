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
	"testing"
)

// sliceBlockSource is a BlockSource over a fixed slice of InputBlocks,
// used in place of the real upstream pipeline stage (out of scope per
// spec.md §1).
type sliceBlockSource struct {
	blocks []InputBlock
	pos    int
}

func (s *sliceBlockSource) Read() (InputBlock, error) {
	if s.pos >= len(s.blocks) {
		return InputBlock{}, nil
	}
	b := s.blocks[s.pos]
	s.pos++
	return b, nil
}

// intColumnBlocks splits xs (and optional parallel int64 columns) into
// blocks of the given sizes, one InputBlock per size.
func intColumnBlocks(sizes []int, cols ...[]int64) []InputBlock {
	var blocks []InputBlock
	off := 0
	for _, n := range sizes {
		columns := make([]Column, len(cols))
		for ci, col := range cols {
			c := NewInt64Column(n)
			for i := 0; i < n; i++ {
				c.Set(i, col[off+i])
			}
			columns[ci] = c
		}
		blocks = append(blocks, InputBlock{Columns: columns, Rows: n})
		off += n
	}
	return blocks
}

func newInt64Result(rows int) MutableColumn { return NewInt64Column(rows) }
func newUint64Result(rows int) MutableColumn { return NewUint64Column(rows) }

// runWindow drives op to completion via Read and returns the concatenated
// int64 result column at functionIndex.
func runWindowInt64(t *testing.T, src BlockSource, desc WindowDescription, functionIndex int) []int64 {
	t.Helper()
	op, err := NewWindowOperator(src, desc)
	if err != nil {
		t.Fatalf("NewWindowOperator: %s", err)
	}
	var got []int64
	ctx := context.Background()
	for {
		out, err := op.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %s", err)
		}
		if out.Rows == 0 {
			break
		}
		col := out.Results[functionIndex].(*Int64Column)
		got = append(got, col.Values...)
	}
	return got
}

func runWindowUint64(t *testing.T, src BlockSource, desc WindowDescription, functionIndex int) []uint64 {
	t.Helper()
	op, err := NewWindowOperator(src, desc)
	if err != nil {
		t.Fatalf("NewWindowOperator: %s", err)
	}
	var got []uint64
	ctx := context.Background()
	for {
		out, err := op.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %s", err)
		}
		if out.Rows == 0 {
			break
		}
		col := out.Results[functionIndex].(*Uint64Column)
		got = append(got, col.Values...)
	}
	return got
}

func int64Equal(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func uint64Equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Scenario 1: sum(x) OVER (ORDER BY x ROWS BETWEEN UNBOUNDED PRECEDING
// AND CURRENT ROW), x = [1,2,2,3] => [1,3,5,8].
func TestBoundarySumRunningTotal(t *testing.T) {
	x := []int64{1, 2, 2, 3}
	desc := WindowDescription{
		OrderBy: []OrderByColumn{{Index: 0}},
		Frame: FrameSpec{
			Mode:  FrameRows,
			Start: Bound{Kind: UnboundedPreceding},
			End:   Bound{Kind: CurrentRow},
		},
		Functions: []FunctionSpec{
			{Kind: AggregateFunction, ArgIndices: []int{0}, Aggregate: NewSumAgg(true), NewResult: newInt64Result},
		},
	}
	src := &sliceBlockSource{blocks: intColumnBlocks([]int{4}, x)}
	got := runWindowInt64(t, src, desc, 0)
	want := []int64{1, 3, 5, 8}
	if !int64Equal(got, want) {
		t.Errorf("sum running total = %v, want %v", got, want)
	}
}

// Scenario 2: rank/dense_rank/row_number over the same input.
func TestBoundaryRankFamily(t *testing.T) {
	x := []int64{1, 2, 2, 3}
	base := WindowDescription{
		OrderBy: []OrderByColumn{{Index: 0}},
		Frame: FrameSpec{
			Mode:  FrameRows,
			Start: Bound{Kind: UnboundedPreceding},
			End:   Bound{Kind: CurrentRow},
		},
	}

	rankDesc := base
	rankDesc.Functions = []FunctionSpec{{Kind: PureFunction, Pure: NewRankFunc(), NewResult: newUint64Result}}
	if got, want := runWindowUint64(t, &sliceBlockSource{blocks: intColumnBlocks([]int{4}, x)}, rankDesc, 0), []uint64{1, 2, 2, 4}; !uint64Equal(got, want) {
		t.Errorf("rank() = %v, want %v", got, want)
	}

	denseDesc := base
	denseDesc.Functions = []FunctionSpec{{Kind: PureFunction, Pure: NewDenseRankFunc(), NewResult: newUint64Result}}
	if got, want := runWindowUint64(t, &sliceBlockSource{blocks: intColumnBlocks([]int{4}, x)}, denseDesc, 0), []uint64{1, 2, 2, 3}; !uint64Equal(got, want) {
		t.Errorf("dense_rank() = %v, want %v", got, want)
	}

	rowNumDesc := base
	rowNumDesc.Functions = []FunctionSpec{{Kind: PureFunction, Pure: NewRowNumberFunc(), NewResult: newUint64Result}}
	if got, want := runWindowUint64(t, &sliceBlockSource{blocks: intColumnBlocks([]int{4}, x)}, rowNumDesc, 0), []uint64{1, 2, 3, 4}; !uint64Equal(got, want) {
		t.Errorf("row_number() = %v, want %v", got, want)
	}
}

// Scenario 3: PARTITION BY p, ORDER BY x, row_number() restarts per
// partition.
func TestBoundaryRowNumberPerPartition(t *testing.T) {
	p := []int64{0, 0, 1, 1, 1} // A,A,B,B,B encoded as 0/1
	x := []int64{10, 20, 5, 5, 6}
	desc := WindowDescription{
		PartitionByIndices: []int{0},
		OrderBy:            []OrderByColumn{{Index: 1}},
		Frame: FrameSpec{
			Mode:  FrameRows,
			Start: Bound{Kind: UnboundedPreceding},
			End:   Bound{Kind: CurrentRow},
		},
		Functions: []FunctionSpec{
			{Kind: PureFunction, Pure: NewRowNumberFunc(), NewResult: newUint64Result},
		},
	}
	src := &sliceBlockSource{blocks: intColumnBlocks([]int{5}, p, x)}
	got := runWindowUint64(t, src, desc, 0)
	want := []uint64{1, 2, 1, 2, 3}
	if !uint64Equal(got, want) {
		t.Errorf("row_number() per partition = %v, want %v", got, want)
	}
}

// Scenario 4: RANGE BETWEEN CURRENT ROW AND CURRENT ROW, count(*), peers
// share a frame.
func TestBoundaryRangeCurrentRowCount(t *testing.T) {
	x := []int64{1, 2, 2, 3}
	desc := WindowDescription{
		OrderBy: []OrderByColumn{{Index: 0}},
		Frame: FrameSpec{
			Mode:  FrameRange,
			Start: Bound{Kind: CurrentRow},
			End:   Bound{Kind: CurrentRow},
		},
		Functions: []FunctionSpec{
			{Kind: AggregateFunction, Aggregate: NewCountAgg(true), NewResult: newInt64Result},
		},
	}
	src := &sliceBlockSource{blocks: intColumnBlocks([]int{4}, x)}
	got := runWindowInt64(t, src, desc, 0)
	want := []int64{1, 2, 2, 1}
	if !int64Equal(got, want) {
		t.Errorf("count(*) RANGE CURRENT ROW = %v, want %v", got, want)
	}
}

// Scenario 5 + 6: ROWS BETWEEN 1 PRECEDING AND 1 FOLLOWING, sum(x), and
// re-splitting the same input into different block sizes must yield
// byte-identical output (spec.md §8 invariant 6).
func TestBoundarySlidingSumAndResplitInvariance(t *testing.T) {
	x := []int64{1, 2, 3, 4, 5}
	want := []int64{3, 6, 9, 12, 9}
	desc := func() WindowDescription {
		return WindowDescription{
			Frame: FrameSpec{
				Mode:  FrameRows,
				Start: Bound{Kind: Preceding, Offset: 1},
				End:   Bound{Kind: Following, Offset: 1},
			},
			Functions: []FunctionSpec{
				{Kind: AggregateFunction, ArgIndices: []int{0}, Aggregate: NewSumAgg(true), NewResult: newInt64Result},
			},
		}
	}

	splits := [][]int{{1, 1, 1, 1, 1}, {5}, {2, 3}}
	for _, sizes := range splits {
		src := &sliceBlockSource{blocks: intColumnBlocks(sizes, x)}
		got := runWindowInt64(t, src, desc(), 0)
		if !int64Equal(got, want) {
			t.Errorf("split %v: sliding sum = %v, want %v", sizes, got, want)
		}
	}
}

// Round-trip / idempotence: ROWS BETWEEN CURRENT ROW AND CURRENT ROW with
// sum(x) returns x unchanged (spec.md §8).
func TestRoundTripCurrentRowOnlyFrame(t *testing.T) {
	x := []int64{7, -3, 0, 42, 5}
	desc := WindowDescription{
		Frame: FrameSpec{
			Mode:  FrameRows,
			Start: Bound{Kind: CurrentRow},
			End:   Bound{Kind: CurrentRow},
		},
		Functions: []FunctionSpec{
			{Kind: AggregateFunction, ArgIndices: []int{0}, Aggregate: NewSumAgg(true), NewResult: newInt64Result},
		},
	}
	src := &sliceBlockSource{blocks: intColumnBlocks([]int{2, 3}, x)}
	got := runWindowInt64(t, src, desc, 0)
	if !int64Equal(got, x) {
		t.Errorf("CURRENT ROW/CURRENT ROW sum(x) = %v, want unchanged %v", got, x)
	}
}

// Row-number sum invariant: Σ row_number == n(n+1)/2 per partition
// (spec.md §8 invariant 2).
func TestRowNumberSumInvariant(t *testing.T) {
	x := []int64{5, 1, 9, 3, 7, 2, 8}
	desc := WindowDescription{
		OrderBy: []OrderByColumn{{Index: 0}},
		Frame: FrameSpec{
			Mode:  FrameRows,
			Start: Bound{Kind: UnboundedPreceding},
			End:   Bound{Kind: CurrentRow},
		},
		Functions: []FunctionSpec{
			{Kind: PureFunction, Pure: NewRowNumberFunc(), NewResult: newUint64Result},
		},
	}
	src := &sliceBlockSource{blocks: intColumnBlocks([]int{3, 4}, x)}
	got := runWindowUint64(t, src, desc, 0)
	var sum uint64
	for _, v := range got {
		sum += v
	}
	n := uint64(len(x))
	want := n * (n + 1) / 2
	if sum != want {
		t.Errorf("sum(row_number) = %d, want %d", sum, want)
	}
}

func TestCancellation(t *testing.T) {
	x := []int64{1, 2, 3}
	desc := WindowDescription{
		Frame: FrameSpec{
			Mode:  FrameRows,
			Start: Bound{Kind: UnboundedPreceding},
			End:   Bound{Kind: CurrentRow},
		},
		Functions: []FunctionSpec{
			{Kind: AggregateFunction, ArgIndices: []int{0}, Aggregate: NewSumAgg(true), NewResult: newInt64Result},
		},
	}
	op, err := NewWindowOperator(&sliceBlockSource{blocks: intColumnBlocks([]int{3}, x)}, desc)
	if err != nil {
		t.Fatalf("NewWindowOperator: %s", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = op.Read(ctx)
	if err != ErrCancelled {
		t.Errorf("Read after cancel: got %v, want ErrCancelled", err)
	}
}
