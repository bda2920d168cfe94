// Package transfer moves exported text to files and reads imported files back.
package transfer

import (
	"context"
	"errors"
	"os"
)

// ErrFileIO wraps every read or write failure of a FileTransfer.
var ErrFileIO = errors.New("file transfer failed")

const (
	SortOrderAscending  = "asc"
	SortOrderDescending = "desc"
)

// FileTransfer is the host side of saving and loading files.
type FileTransfer interface {
	// SaveText stores content under filename.
	SaveText(filename, content string) error
	// ReadText returns the full text behind handle.
	ReadText(ctx context.Context, handle string) (string, error)
}

// ListingConfig holds all options for listing files.
type ListingConfig struct {
	SortOrder string
	PageSize  int
	// If non-empty, only return files with this prefix.
	FilenamePrefix string
}

type FileEntry struct {
	Name     string
	FileInfo os.FileInfo
}
