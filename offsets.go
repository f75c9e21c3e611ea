package multibar

import "github.com/bits-and-blooms/bitset"

// offsetPool hands out terminal line offsets. It always returns the
// lowest free line so reclaimed rows are reused before the display grows
// downward. Offset 0 is the anchor row, owned by the aggregate bar for
// the life of the run.
type offsetPool struct {
	used      *bitset.BitSet
	highWater int
}

func newOffsetPool() *offsetPool {
	p := &offsetPool{used: bitset.New(8)}
	p.used.Set(0)
	return p
}

// acquire claims and returns the lowest unused offset.
func (p *offsetPool) acquire() int {
	idx, ok := p.used.NextClear(0)
	if !ok {
		idx = p.used.Len()
	}
	p.used.Set(idx)
	if int(idx) > p.highWater {
		p.highWater = int(idx)
	}
	return int(idx)
}

// release returns an offset to the pool. The anchor row stays claimed.
func (p *offsetPool) release(offset int) {
	if offset <= 0 {
		return
	}
	p.used.Clear(uint(offset))
}

// high returns the deepest offset ever claimed.
func (p *offsetPool) high() int { return p.highWater }
