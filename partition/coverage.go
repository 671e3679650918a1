package partition

import (
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// Violation counts the offsets of a plan that break one of its rules
type Violation struct {
	Count int64
	// First is the lowest offending offset, meaningful when Count > 0
	First int64
}

func (v *Violation) add(off, n int64) {
	if n <= 0 {
		return
	}
	if v.Count == 0 || off < v.First {
		v.First = off
	}
	v.Count += n
}

// Coverage records which blocks of a device a set of ranges visit. It is used
// to check that a plan has no overlapping ranges and to report what it leaves out.
//
// Plans where every range shares one block-aligned stride, which is what Plan
// produces, are checked arithmetically. Anything else is walked block by block
// over a bitset that only grows as far as the highest visited block.
type Coverage struct {
	blockSize      int64
	blocks         int64
	visited        int64
	firstUnvisited int64
	// Overlaps counts blocks visited by more than one range
	Overlaps Violation
	// OutOfBounds counts offsets past the last whole block of the device
	OutOfBounds Violation
	// Misaligned counts offsets that are not a multiple of the block size
	Misaligned Violation
}

// NewCoverage checks the ranges of a plan against a device of deviceSize bytes.
func NewCoverage(ranges []Range, deviceSize int64) *Coverage {
	c := &Coverage{firstUnvisited: -1}
	if len(ranges) == 0 || ranges[0].BlockSize <= 0 {
		return c
	}
	c.blockSize = ranges[0].BlockSize
	c.blocks = deviceSize / c.blockSize
	if c.blocks > 0 {
		c.firstUnvisited = 0
	}

	if stride, ok := uniformStride(ranges); ok {
		c.strided(ranges, stride)
	} else {
		c.walk(ranges)
	}
	return c
}

// uniformStride reports whether all ranges are block aligned and share one stride
func uniformStride(ranges []Range) (int64, bool) {
	bs := ranges[0].BlockSize
	stride := ranges[0].Stride
	if stride <= 0 || stride%bs != 0 {
		return 0, false
	}
	for _, r := range ranges {
		if r.BlockSize != bs || r.Stride != stride || r.Start < 0 || r.Start%bs != 0 {
			return 0, false
		}
	}
	return stride, true
}

// span is the half-open interval [lo, hi) of stride indexes a range visits
// within its residue class
type span struct {
	lo, hi int64
}

func (c *Coverage) strided(ranges []Range, stride int64) {
	limit := c.blocks * c.blockSize
	classes := map[int64][]span{}
	var total int64

	for _, r := range ranges {
		if r.Count <= 0 {
			continue
		}
		var inBounds int64
		if r.Start < limit {
			inBounds = (limit - r.Start + stride - 1) / stride
			if inBounds > r.Count {
				inBounds = r.Count
			}
		}
		c.OutOfBounds.add(r.Offset(inBounds), r.Count-inBounds)
		if inBounds == 0 {
			continue
		}
		total += inBounds
		residue := r.Start % stride
		lo := r.Start / stride
		classes[residue] = append(classes[residue], span{lo: lo, hi: lo + inBounds})
	}

	first := limit
	for residue, spans := range classes {
		sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })
		// end is the furthest index visited so far, gap the lowest index not visited
		var end, gap int64
		gapFound := false
		for _, s := range spans {
			if !gapFound {
				if s.lo > gap {
					gapFound = true
				} else if s.hi > gap {
					gap = s.hi
				}
			}
			if s.lo < end {
				c.Overlaps.add(residue+s.lo*stride, min(s.hi, end)-s.lo)
			}
			end = max(end, s.hi)
		}
		if off := residue + gap*stride; off < first {
			first = off
		}
	}

	// the lowest residue class no range visits at all
	for j := int64(0); j*c.blockSize < stride && j*c.blockSize < first; j++ {
		if _, ok := classes[j*c.blockSize]; !ok {
			first = j * c.blockSize
			break
		}
	}

	c.visited = total - c.Overlaps.Count
	if first < limit {
		c.firstUnvisited = first
	} else {
		c.firstUnvisited = -1
	}
}

func (c *Coverage) walk(ranges []Range) {
	visited := bitset.New(0)
	limit := c.blocks * c.blockSize

	for _, r := range ranges {
		for k := int64(0); k < r.Count; k++ {
			off := r.Offset(k)
			if off < 0 {
				c.OutOfBounds.add(off, 1)
				continue
			}
			if off >= limit {
				if r.Stride > 0 {
					// offsets only grow from here
					c.OutOfBounds.add(off, r.Count-k)
					break
				}
				c.OutOfBounds.add(off, 1)
				continue
			}
			if off%c.blockSize != 0 {
				c.Misaligned.add(off, 1)
				continue
			}
			idx := uint(off / c.blockSize)
			if visited.Test(idx) {
				c.Overlaps.add(off, 1)
				continue
			}
			visited.Set(idx)
		}
	}

	c.visited = int64(visited.Count())
	idx, ok := visited.NextClear(0)
	if !ok {
		idx = visited.Len()
	}
	if int64(idx) < c.blocks {
		c.firstUnvisited = int64(idx) * c.blockSize
	} else {
		c.firstUnvisited = -1
	}
}

// Visited is the number of distinct in-bounds blocks visited
func (c *Coverage) Visited() int64 {
	return c.visited
}

// Blocks is the number of whole blocks on the device
func (c *Coverage) Blocks() int64 {
	return c.blocks
}

// FirstUnvisited returns the offset of the lowest block that no range visits
func (c *Coverage) FirstUnvisited() (int64, bool) {
	if c.firstUnvisited < 0 {
		return 0, false
	}
	return c.firstUnvisited, true
}

// Err reports the first violation of the plan invariants, if any
func (c *Coverage) Err() error {
	switch {
	case c.Overlaps.Count > 0:
		return fmt.Errorf("%d blocks visited more than once, first at offset %d", c.Overlaps.Count, c.Overlaps.First)
	case c.Misaligned.Count > 0:
		return fmt.Errorf("%d offsets not aligned to block size %d, first at %d", c.Misaligned.Count, c.blockSize, c.Misaligned.First)
	case c.OutOfBounds.Count > 0:
		return fmt.Errorf("%d blocks beyond the end of the device, first at offset %d", c.OutOfBounds.Count, c.OutOfBounds.First)
	}
	return nil
}
