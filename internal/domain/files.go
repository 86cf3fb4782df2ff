package domain

import (
	"io"
	"os"
)

// FileOpts carries ownership and permission metadata for an upload.
type FileOpts struct {
	UID  int
	GID  int
	Mode os.FileMode
}

// DefaultFileOpts returns root ownership with mode 0700.
func DefaultFileOpts() FileOpts {
	return FileOpts{UID: 0, GID: 0, Mode: 0o700}
}

// File is a remote file being streamed to the caller. Close must be called.
type File struct {
	io.ReadCloser

	UID  int
	GID  int
	Mode os.FileMode
	// Type is "file" or "directory".
	Type string
}
