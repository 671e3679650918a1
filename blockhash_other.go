//go:build !linux && !darwin

package blockhash

import (
	"os"
)

func getDeviceSize(f *os.File) (int64, error) {
	return seekSize(f)
}

// getSectorSizes get the logical and physical sector sizes for a block device
func getSectorSizes(f *os.File) (logicalSectorSize, physicalSectorSize int64, err error) {
	return defaultBlocksize, defaultBlocksize, nil
}
