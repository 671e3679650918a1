package backend

import (
	"errors"
	"io"
	"io/fs"
	"os"
)

var (
	ErrNotSuitable = errors.New("backing file is not suitable")
	ErrClosed      = errors.New("backing storage already closed")
)

type File interface {
	fs.File
	io.ReaderAt
	io.Seeker
	io.Closer
}

// Storage is a read-only view of a device or image. ReadAt must be safe for
// concurrent use, since every worker of a scan shares the same Storage.
type Storage interface {
	File
	// OS-specific file for ioctl calls via fd
	Sys() (*os.File, error)
}
