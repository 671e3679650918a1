// Package disk provides a read-only handle to a single block device or image
// that is about to be scanned.
//
// A Disk is normally obtained from github.com/diskfs/go-blockhash.Open. Its
// size is discovered once when it is opened and never changes afterwards.
package disk

import (
	"fmt"

	"github.com/diskfs/go-blockhash/backend"
)

// Disk is a reference to a single disk block device or image that has been Open()
type Disk struct {
	Backend           backend.Storage
	Device            string
	Type              DeviceType
	Size              int64
	LogicalBlocksize  int64
	PhysicalBlocksize int64
	// Offset is the position of byte 0 of this Disk on the underlying device; non-zero for windows.
	Offset int64
}

// ReadAt reads len(p) bytes at off without touching any shared file position, so
// it may be called concurrently from multiple goroutines.
func (d *Disk) ReadAt(p []byte, off int64) (int, error) {
	return d.Backend.ReadAt(p, off)
}

// Window returns a Disk covering length bytes starting at start. The returned
// Disk shares the backend with d; closing either closes both.
//
// A length of 0 means "to the end of the disk".
func (d *Disk) Window(start, length int64) (*Disk, error) {
	if start < 0 || start > d.Size {
		return nil, NewInvalidWindowError(start, length, d.Size)
	}
	if length == 0 {
		length = d.Size - start
	}
	if length < 0 || length > d.Size-start {
		return nil, NewInvalidWindowError(start, length, d.Size)
	}
	return &Disk{
		Backend:           backend.Sub(d.Backend, start, length),
		Device:            d.Device,
		Type:              d.Type,
		Size:              length,
		LogicalBlocksize:  d.LogicalBlocksize,
		PhysicalBlocksize: d.PhysicalBlocksize,
		Offset:            d.Offset + start,
	}, nil
}

// Close releases the underlying device handle
func (d *Disk) Close() error {
	if d.Backend == nil {
		return nil
	}
	if err := d.Backend.Close(); err != nil {
		return fmt.Errorf("could not close device %s: %w", d.Device, err)
	}
	return nil
}

// String describes the disk for logs
func (d *Disk) String() string {
	return fmt.Sprintf("%s (%s, %d bytes)", d.Device, d.Type, d.Size)
}
