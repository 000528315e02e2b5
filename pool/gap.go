// File: pool/gap.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

// Gap is a reclaimed interval inside an arena's used region.
type Gap struct {
	Pos  int
	Size int
}

const gapBatch = 16

// gapTable records free space below the reserved boundary. Bytes at or above
// reserved were never carved and are not tracked. A freed span that ends at
// reserved lowers the boundary instead of becoming a gap; adjacent gaps are
// not merged with each other.
//
// gapTable is not safe for concurrent use; MemPool guards it with gapMu.
type gapTable struct {
	gaps     []Gap
	reserved int
}

// take carves span bytes, preferring the last gap large enough (last-fit).
// It returns the offset and true, or false when the result would not fit in
// total bytes.
func (t *gapTable) take(span, total int) (int, bool) {
	g := -1
	for i := range t.gaps {
		if t.gaps[i].Size >= span {
			g = i
		}
	}

	if g >= 0 {
		off := t.gaps[g].Pos
		if span < t.gaps[g].Size {
			t.gaps[g].Pos += span
			t.gaps[g].Size -= span
		} else {
			copy(t.gaps[g:], t.gaps[g+1:])
			t.gaps = t.gaps[:len(t.gaps)-1]
		}
		return off, true
	}

	off := t.reserved
	if off+span > total {
		return 0, false
	}
	t.reserved += span
	return off, true
}

// give returns the span at off to the table.
func (t *gapTable) give(off, span int) {
	if off+span == t.reserved {
		t.reserved -= span
		return
	}
	if len(t.gaps) == cap(t.gaps) {
		grown := make([]Gap, len(t.gaps), 2*cap(t.gaps)+gapBatch)
		copy(grown, t.gaps)
		t.gaps = grown
	}
	t.gaps = append(t.gaps, Gap{Pos: off, Size: span})
}

// carved returns the bytes currently handed out below reserved.
func (t *gapTable) carved() int {
	used := t.reserved
	for _, g := range t.gaps {
		used -= g.Size
	}
	return used
}

func (t *gapTable) reset() {
	t.gaps = t.gaps[:0]
	t.reserved = 0
}
