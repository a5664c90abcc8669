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

// Concrete column implementations. These stand in for whatever the real
// expression engine would hand the window operator (see doc.go); they
// are also what the operator writes its own outputs into, so each type
// below works both as an upstream Column and as a MutableColumn.

// Int64Column is a column of nullable int64 values.
type Int64Column struct {
	Values []int64
	Nulls  []bool
}

func NewInt64Column(rows int) *Int64Column {
	return &Int64Column{Values: make([]int64, rows), Nulls: make([]bool, rows)}
}

func (c *Int64Column) Len() int          { return len(c.Values) }
func (c *Int64Column) IsNull(i int) bool { return c.Nulls != nil && c.Nulls[i] }
func (c *Int64Column) SetNull(i int)     { c.Nulls[i] = true }
func (c *Int64Column) Set(i int, v int64) {
	c.Values[i] = v
	c.Nulls[i] = false
}

func (c *Int64Column) EqualAt(i int, other Column, j int) bool {
	o, ok := other.(*Int64Column)
	if !ok {
		return false
	}
	if c.IsNull(i) || o.IsNull(j) {
		return c.IsNull(i) == o.IsNull(j)
	}
	return c.Values[i] == o.Values[j]
}

func (c *Int64Column) CompareAt(i int, other Column, j int) int {
	o := other.(*Int64Column)
	switch {
	case c.Values[i] < o.Values[j]:
		return -1
	case c.Values[i] > o.Values[j]:
		return 1
	default:
		return 0
	}
}

// Float64Column is a column of nullable float64 values.
type Float64Column struct {
	Values []float64
	Nulls  []bool
}

func NewFloat64Column(rows int) *Float64Column {
	return &Float64Column{Values: make([]float64, rows), Nulls: make([]bool, rows)}
}

func (c *Float64Column) Len() int          { return len(c.Values) }
func (c *Float64Column) IsNull(i int) bool { return c.Nulls != nil && c.Nulls[i] }
func (c *Float64Column) SetNull(i int)     { c.Nulls[i] = true }
func (c *Float64Column) Set(i int, v float64) {
	c.Values[i] = v
	c.Nulls[i] = false
}

func (c *Float64Column) EqualAt(i int, other Column, j int) bool {
	o, ok := other.(*Float64Column)
	if !ok {
		return false
	}
	if c.IsNull(i) || o.IsNull(j) {
		return c.IsNull(i) == o.IsNull(j)
	}
	return c.Values[i] == o.Values[j]
}

func (c *Float64Column) CompareAt(i int, other Column, j int) int {
	o := other.(*Float64Column)
	switch {
	case c.Values[i] < o.Values[j]:
		return -1
	case c.Values[i] > o.Values[j]:
		return 1
	default:
		return 0
	}
}

// StringColumn is a column of nullable string values.
type StringColumn struct {
	Values []string
	Nulls  []bool
}

func NewStringColumn(rows int) *StringColumn {
	return &StringColumn{Values: make([]string, rows), Nulls: make([]bool, rows)}
}

func (c *StringColumn) Len() int          { return len(c.Values) }
func (c *StringColumn) IsNull(i int) bool { return c.Nulls != nil && c.Nulls[i] }
func (c *StringColumn) SetNull(i int)     { c.Nulls[i] = true }
func (c *StringColumn) Set(i int, v string) {
	c.Values[i] = v
	c.Nulls[i] = false
}

func (c *StringColumn) EqualAt(i int, other Column, j int) bool {
	o, ok := other.(*StringColumn)
	if !ok {
		return false
	}
	if c.IsNull(i) || o.IsNull(j) {
		return c.IsNull(i) == o.IsNull(j)
	}
	return c.Values[i] == o.Values[j]
}

func (c *StringColumn) CompareAt(i int, other Column, j int) int {
	o := other.(*StringColumn)
	switch {
	case c.Values[i] < o.Values[j]:
		return -1
	case c.Values[i] > o.Values[j]:
		return 1
	default:
		return 0
	}
}

// Uint64Column is a column of non-nullable uint64 values, used for
// row_number/rank/dense_rank/ntile outputs (these never produce NULL).
type Uint64Column struct {
	Values []uint64
}

func NewUint64Column(rows int) *Uint64Column {
	return &Uint64Column{Values: make([]uint64, rows)}
}

func (c *Uint64Column) Len() int          { return len(c.Values) }
func (c *Uint64Column) IsNull(i int) bool { return false }
func (c *Uint64Column) SetNull(i int)     {} // no-op: these functions never emit NULL
func (c *Uint64Column) Set(i int, v uint64) {
	c.Values[i] = v
}
