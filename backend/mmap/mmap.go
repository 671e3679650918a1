// Package mmap provides a read-only backend.Storage that serves positional
// reads out of a shared memory mapping of the device.
package mmap

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	mmapgo "github.com/edsrzf/mmap-go"

	"github.com/diskfs/go-blockhash/backend"
)

type mappedBackend struct {
	f *os.File

	mu   sync.RWMutex
	data mmapgo.MMap
	pos  int64
}

// New maps size bytes of an already opened file. The returned Storage takes
// ownership of f.
func New(f *os.File, size int64) (backend.Storage, error) {
	if size <= 0 {
		// mmap of zero bytes is an error on every platform
		return &mappedBackend{f: f}, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("device %s of %d bytes is too large to map", f.Name(), size)
	}
	data, err := mmapgo.MapRegion(f, int(size), mmapgo.RDONLY, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("could not map device %s: %w", f.Name(), err)
	}
	return &mappedBackend{f: f, data: data}, nil
}

// backend.Storage interface guard
var _ backend.Storage = (*mappedBackend)(nil)

func (m *mappedBackend) Sys() (*os.File, error) {
	return m.f, nil
}

func (m *mappedBackend) Stat() (fs.FileInfo, error) {
	return m.f.Stat()
}

func (m *mappedBackend) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.f == nil {
		return 0, backend.ErrClosed
	}
	if off < 0 {
		return 0, fs.ErrInvalid
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *mappedBackend) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.f == nil {
		return 0, backend.ErrClosed
	}
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *mappedBackend) Seek(offset int64, whence int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = m.pos + offset
	case io.SeekEnd:
		pos = int64(len(m.data)) + offset
	default:
		return -1, backend.ErrNotSuitable
	}
	if pos < 0 {
		return -1, fs.ErrInvalid
	}
	m.pos = pos
	return pos, nil
}

func (m *mappedBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.f == nil {
		return backend.ErrClosed
	}
	var err error
	if m.data != nil {
		err = m.data.Unmap()
		m.data = nil
	}
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	m.f = nil
	return err
}
