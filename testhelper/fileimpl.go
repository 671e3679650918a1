package testhelper

import (
	"bytes"
	"fmt"
	"os"

	"github.com/diskfs/go-blockhash/backend"
)

type reader func(b []byte, offset int64) (int, error)

// FileImpl implement github.com/diskfs/go-blockhash/backend.Storage
// used for testing to enable stubbing out devices, e.g. to inject short or failed reads
type FileImpl struct {
	Reader reader
	Closer func() error
}

var _ backend.Storage = (*FileImpl)(nil)

func (f *FileImpl) Stat() (os.FileInfo, error) {
	return nil, nil
}

func (f *FileImpl) Read(b []byte) (int, error) {
	return f.Reader(b, 0)
}

func (f *FileImpl) Close() error {
	if f.Closer != nil {
		return f.Closer()
	}
	return nil
}

// ReadAt read at a particular offset
func (f *FileImpl) ReadAt(b []byte, offset int64) (int, error) {
	return f.Reader(b, offset)
}

// Seek seek a particular offset - does not actually work
//
//nolint:unused,revive // to implement the interface
func (f *FileImpl) Seek(offset int64, whence int) (int64, error) {
	return 0, fmt.Errorf("FileImpl does not implement Seek()")
}

func (f *FileImpl) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}

// NewMemory returns a FileImpl serving reads from data, the in-memory
// equivalent of a device image. ReadAt semantics follow bytes.Reader.
func NewMemory(data []byte) *FileImpl {
	r := bytes.NewReader(data)
	return &FileImpl{
		Reader: r.ReadAt,
	}
}

// Pattern returns size bytes where every 4096-byte block is filled with a
// byte derived from its index, so that different blocks hash differently.
func Pattern(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i/4096) ^ byte(i%251)
	}
	return b
}
