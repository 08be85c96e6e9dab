// Package storage reads track audio from the local filesystem.
package storage

import (
	"context"
	"io"
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
)

var (
	ErrNotFound     = errors.New("audio file not found")
	ErrNotAFile     = errors.New("not a regular file")
	ErrFileTooLarge = errors.New("audio file too large")
)

const chunkSize = 1 << 20

// Files reads audio bytes from disk.
type Files struct {
	maxSize int64
}

// NewFiles creates a file reader. maxSize <= 0 disables the size limit.
func NewFiles(maxSize int64) *Files {
	return &Files{maxSize: maxSize}
}

// ReadAudioBytes reads the whole file at path. The read is abandoned between
// chunks once ctx is done.
func (f *Files) ReadAudioBytes(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Mark(errors.Wrapf(err, "failed to open %s", path), ErrNotFound)
		}
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Mark(errors.Newf("%s is not a regular file", path), ErrNotAFile)
	}
	if f.maxSize > 0 && info.Size() > f.maxSize {
		return nil, errors.Mark(errors.Newf("%s is %d bytes, limit %d", path, info.Size(), f.maxSize), ErrFileTooLarge)
	}

	data := make([]byte, 0, info.Size())
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := file.Read(buf)
		data = append(data, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return data, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", path)
		}
	}
}
