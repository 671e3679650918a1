package blockhash

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	blksszGet    = 0x1268
	blkbszGet    = 0x80081270
	blkgetsize64 = 0x80081272
)

// getDeviceSize asks the kernel for the size of a block device in bytes,
// falling back to seeking to the end.
func getDeviceSize(f *os.File) (int64, error) {
	size, err := ioctlGetUint64(f.Fd(), blkgetsize64)
	if err == nil {
		return int64(size), nil
	}
	return seekSize(f)
}

// BLKGETSIZE64 writes a u64, which does not fit the int of unix.IoctlGetInt
// on 32-bit platforms
func ioctlGetUint64(fd uintptr, req uint) (uint64, error) {
	var value uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), uintptr(unsafe.Pointer(&value)))
	if errno != 0 {
		return 0, errno
	}
	return value, nil
}

// to get the logical and physical sector sizes
func getSectorSizes(f *os.File) (int64, int64, error) {
	fd := f.Fd()
	logicalSectorSize, err := unix.IoctlGetInt(int(fd), blksszGet)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get device logical sector size: %w", err)
	}
	physicalSectorSize, err := unix.IoctlGetInt(int(fd), blkbszGet)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get device physical sector size: %w", err)
	}
	return int64(logicalSectorSize), int64(physicalSectorSize), nil
}
