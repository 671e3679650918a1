// Package blockhash hashes block devices and disk images in parallel.
//
// A device is split into interleaved partitions of fixed-size blocks, one per
// worker. Worker i reads blocks i, i+N, i+2N, ... (N being the worker count) with
// positional reads, feeds them in order into its own digest, and writes one result
// line when it is done. There is no whole-device digest, only one digest per worker.
//
// This package opens the device. The partitioning lives in
// github.com/diskfs/go-blockhash/partition, the workers and the orchestration in
// github.com/diskfs/go-blockhash/scan.
//
// Some examples:
//
// 1. Hash /dev/sdb with 4 workers and 1MiB blocks, writing results to digest.out
//
//	import "github.com/diskfs/go-blockhash/scan"
//
//	cfg := scan.DefaultConfig()
//	cfg.Device = "/dev/sdb"
//	cfg.BlockSize = 1024 * 1024
//	cfg.Threads = 4
//	out, err := report.CreateFile(cfg.Output)
//	summary, err := scan.New(cfg, logrus.New()).Run(ctx, out)
//
// 2. Open an image read-only and look at its geometry
//
//	import blockhash "github.com/diskfs/go-blockhash"
//
//	d, err := blockhash.Open("/tmp/disk.img")
//	defer d.Close()
//	fmt.Println(d.Size, d.LogicalBlocksize)
package blockhash

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/diskfs/go-blockhash/backend"
	"github.com/diskfs/go-blockhash/backend/file"
	"github.com/diskfs/go-blockhash/backend/mmap"
	"github.com/diskfs/go-blockhash/disk"
)

// when a device does not report its sector size, e.g. a plain image file, we assume 512
const defaultBlocksize int64 = 512

type openOpts struct {
	mmap   bool
	start  int64
	length int64
}

// OpenOpt configures Open
type OpenOpt func(o *openOpts)

// WithMmap reads the device through a read-only memory mapping instead of pread(2)
func WithMmap() OpenOpt {
	return func(o *openOpts) {
		o.mmap = true
	}
}

// WithWindow restricts the returned Disk to length bytes starting at start.
// A length of 0 extends the window to the end of the device.
func WithWindow(start, length int64) OpenOpt {
	return func(o *openOpts) {
		o.start = start
		o.length = length
	}
}

// Open a Disk read-only from a path to a device
// Should pass a path to a block device e.g. /dev/sda or a path to a file /tmp/foo.img
// The provided device must exist at the time you call Open()
//
// Every failure is returned as a *disk.DeviceOpenError.
func Open(device string, opts ...OpenOpt) (*disk.Disk, error) {
	o := &openOpts{}
	for _, opt := range opts {
		opt(o)
	}
	d, err := open(device, o)
	if err != nil {
		return nil, disk.NewDeviceOpenError(device, err)
	}
	return d, nil
}

func open(device string, o *openOpts) (*disk.Disk, error) {
	if device == "" {
		return nil, errors.New("must pass device name")
	}
	if _, err := os.Stat(device); os.IsNotExist(err) {
		return nil, fmt.Errorf("provided device %s does not exist", device)
	}
	f, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open device %s read-only: %w", device, err)
	}

	d, err := initDisk(f, o)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if o.start == 0 && o.length == 0 {
		return d, nil
	}
	w, err := d.Window(o.start, o.length)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	return w, nil
}

func initDisk(f *os.File, o *openOpts) (*disk.Disk, error) {
	var (
		size     int64
		lblksize = defaultBlocksize
		pblksize = defaultBlocksize
	)

	diskType, err := disk.DetermineDeviceType(f)
	if err != nil {
		return nil, err
	}

	switch diskType {
	case disk.DeviceTypeFile:
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("could not get info for device %s: %w", f.Name(), err)
		}
		size = info.Size()
	case disk.DeviceTypeBlockDevice:
		size, err = getDeviceSize(f)
		if err != nil {
			return nil, fmt.Errorf("could not get size of device %s: %w", f.Name(), err)
		}
		lblksize, pblksize, err = getSectorSizes(f)
		if err != nil {
			return nil, fmt.Errorf("unable to get block sizes for device %s: %w", f.Name(), err)
		}
	}

	var storage backend.Storage
	if o.mmap {
		storage, err = mmap.New(f, size)
		if err != nil {
			return nil, err
		}
	} else {
		storage = file.New(f)
	}

	return &disk.Disk{
		Backend:           storage,
		Device:            f.Name(),
		Type:              diskType,
		Size:              size,
		LogicalBlocksize:  lblksize,
		PhysicalBlocksize: pblksize,
	}, nil
}

// seekSize finds the size by seeking to the end, which works for block devices
// on most platforms even when no ioctl is available. The offset is restored.
func seekSize(f *os.File) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}
