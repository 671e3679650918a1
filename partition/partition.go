// Package partition splits the address space of a device between scan workers.
//
// Workers do not get contiguous ranges. Worker i of N visits the blocks at
//
//	i*blockSize + k*N*blockSize, for k in [0, count)
//
// so the workers interleave and never read the same block twice. Blocks past
// N*count*blockSize are not assigned to anyone.
package partition

import (
	"fmt"
)

// Range is the partition of a single worker
type Range struct {
	Worker int
	// Start is the offset of the first block, Worker*BlockSize
	Start int64
	// Stride is the distance between two consecutive blocks of the same worker
	Stride    int64
	Count     int64
	BlockSize int64
}

// Offset returns the byte offset of the k-th block of the range.
func (r Range) Offset(k int64) int64 {
	return r.Start + k*r.Stride
}

// Bytes is the number of bytes the worker will request in total
func (r Range) Bytes() int64 {
	return r.Count * r.BlockSize
}

// Offsets lists every offset of the range, in the order the worker reads them
func (r Range) Offsets() []int64 {
	offsets := make([]int64, 0, r.Count)
	for k := int64(0); k < r.Count; k++ {
		offsets = append(offsets, r.Offset(k))
	}
	return offsets
}

func (r Range) String() string {
	return fmt.Sprintf("T%02d: start=%d stride=%d blocks=%d", r.Worker, r.Start, r.Stride, r.Count)
}

// Plan derives the partition of every worker.
//
// Without an override, each worker gets (deviceSize/blockSize)/threads blocks,
// floor division both times. An override of n gives every worker exactly n blocks
// whatever the device size is; reading past the end of the device is then up to
// the caller.
//
// Pass override <= 0 for no override.
func Plan(deviceSize, blockSize int64, threads int, override int64) ([]Range, error) {
	switch {
	case blockSize <= 0:
		return nil, NewInvalidPlanError("block size", blockSize)
	case threads <= 0:
		return nil, NewInvalidPlanError("thread count", int64(threads))
	case deviceSize < 0:
		return nil, NewInvalidPlanError("device size", deviceSize)
	}

	count := override
	if count <= 0 {
		totalBlocks := deviceSize / blockSize
		count = totalBlocks / int64(threads)
	}
	// multiply here, not per block, to keep offsets from overflowing
	stride := int64(threads) * blockSize

	ranges := make([]Range, threads)
	for i := range ranges {
		ranges[i] = Range{
			Worker:    i,
			Start:     int64(i) * blockSize,
			Stride:    stride,
			Count:     count,
			BlockSize: blockSize,
		}
	}
	return ranges, nil
}

// Visited is the number of blocks visited by all ranges together
func Visited(ranges []Range) int64 {
	var total int64
	for _, r := range ranges {
		total += r.Count
	}
	return total
}

// Unassigned is the number of whole blocks of the device that no range visits.
// It is 0 when an override assigns more blocks than the device holds.
func Unassigned(ranges []Range, deviceSize int64) int64 {
	if len(ranges) == 0 {
		return 0
	}
	total := deviceSize / ranges[0].BlockSize
	if visited := Visited(ranges); visited < total {
		return total - visited
	}
	return 0
}
