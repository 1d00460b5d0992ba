package mirror

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceMissing marks a source directory that does not exist.
	ErrSourceMissing = errors.New("source does not exist")
	// ErrNotDirectory marks a path that must be a directory but is not.
	ErrNotDirectory = errors.New("not a directory")
	// ErrNotRegularFile marks a path that must be a regular file but is not.
	ErrNotRegularFile = errors.New("not a regular file")
	// ErrTooDeep marks a walk that exceeded MaxDepth, usually a symlink cycle.
	ErrTooDeep = errors.New("directory nesting too deep")
)

// FileSystemError is the single failure kind a mirror run reports.
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("mirror %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error {
	return e.Err
}

func fsError(op, path string, err error) error {
	return &FileSystemError{Op: op, Path: path, Err: err}
}
