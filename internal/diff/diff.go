package diff

import (
	"github.com/roach88/sdde/internal/ir"
)

// maxSameRun is the number of consecutive matching bytes an open run absorbs
// before it closes. Up to this many matches are buffered and folded back
// into the run if another mismatch follows.
const maxSameRun = 2

// builder carries the state of one Diff pass.
type builder struct {
	diffs []ir.Difference

	// open reports whether the last element of diffs is still growing.
	// It never leaves the builder.
	open bool

	sameCount int
	sameBuf   []byte
}

// Diff returns the ordered differences that turn old into next.
// Identical inputs yield no differences.
func Diff(old, next []byte) []ir.Difference {
	b := &builder{}
	for i, c := range next {
		switch {
		case i >= len(old):
			b.insert(i, c)
		case old[i] != c:
			b.mismatch(i, c)
		default:
			b.match(c)
		}
	}
	b.open = false

	if len(old) > len(next) {
		b.diffs = append(b.diffs, ir.Difference{
			Action: ir.ActionDelete,
			Range:  ir.NewRange(uint64(len(next)), uint64(len(old)-len(next))),
		})
	}
	return b.diffs
}

func (b *builder) last() *ir.Difference {
	return &b.diffs[len(b.diffs)-1]
}

func (b *builder) start(action ir.Action, i int, c byte) {
	b.diffs = append(b.diffs, ir.Difference{
		Action: action,
		Range:  ir.NewRange(uint64(i), 1),
		Value:  []byte{c},
	})
	b.open = true
}

func (b *builder) extend(c byte) {
	d := b.last()
	d.Value = append(d.Value, c)
	d.Range.Length++
}

func (b *builder) resetSame() {
	b.sameCount = 0
	b.sameBuf = b.sameBuf[:0]
}

// mismatch handles a byte inside old's bounds that differs from old.
func (b *builder) mismatch(i int, c byte) {
	if !b.open {
		b.start(ir.ActionReplace, i, c)
		return
	}
	if b.sameCount > 0 {
		d := b.last()
		d.Value = append(d.Value, b.sameBuf...)
		d.Range.Length += uint64(b.sameCount)
		b.resetSame()
	}
	b.extend(c)
}

// match handles a byte inside old's bounds that equals old.
func (b *builder) match(c byte) {
	if !b.open {
		return
	}
	if b.sameCount < maxSameRun {
		b.sameCount++
		b.sameBuf = append(b.sameBuf, c)
		return
	}
	b.open = false
	b.resetSame()
}

// insert handles a byte past the end of old.
func (b *builder) insert(i int, c byte) {
	if b.open && b.last().Action == ir.ActionInsert {
		b.extend(c)
		return
	}
	if b.open {
		b.open = false
		b.resetSame()
	}
	b.start(ir.ActionInsert, i, c)
}
