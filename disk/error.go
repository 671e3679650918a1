package disk

import "fmt"

// DeviceOpenError is returned when a device cannot be opened or its size
// cannot be determined. Nothing has been read from the device at that point.
type DeviceOpenError struct {
	device string
	err    error
}

func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("could not open device %s: %v", e.device, e.err)
}

func (e *DeviceOpenError) Unwrap() error {
	return e.err
}

// Device the path that failed to open
func (e *DeviceOpenError) Device() string {
	return e.device
}

func NewDeviceOpenError(device string, err error) *DeviceOpenError {
	return &DeviceOpenError{
		device: device,
		err:    err,
	}
}

type InvalidWindowError struct {
	start  int64
	length int64
	size   int64
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("window of %d bytes at offset %d does not fit in disk of %d bytes", e.length, e.start, e.size)
}

func NewInvalidWindowError(start, length, size int64) *InvalidWindowError {
	return &InvalidWindowError{
		start:  start,
		length: length,
		size:   size,
	}
}
