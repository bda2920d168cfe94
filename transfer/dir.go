package transfer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultPageSize = 10

// DirTransfer saves and reads files inside one base directory.
// Names handed to SaveText must stay inside that directory; ReadText also accepts absolute paths.
type DirTransfer struct {
	baseDir  string
	pageSize int
}

// DirOption is a functional option for configuring the DirTransfer.
type DirOption func(*DirTransfer)

// WithDirPageSize sets the default page size for pagination.
func WithDirPageSize(size int) DirOption {
	return func(d *DirTransfer) {
		if size > 0 {
			d.pageSize = size
		}
	}
}

// NewDirTransfer resolves baseDir and creates it when createIfNotExists is set.
func NewDirTransfer(baseDir string, createIfNotExists bool, opts ...DirOption) (*DirTransfer, error) {
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory path: %w", err)
	}

	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		if !createIfNotExists {
			return nil, fmt.Errorf("directory %s does not exist", baseDir)
		}
		if err := os.MkdirAll(baseDir, 0o770); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", baseDir, err)
		}
	}

	d := &DirTransfer{baseDir: baseDir, pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *DirTransfer) BaseDir() string { return d.baseDir }

// SaveText writes content to filename atomically, replacing any previous file.
func (d *DirTransfer) SaveText(filename, content string) error {
	target, err := d.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o770); err != nil {
		return fmt.Errorf("%w: %w", ErrFileIO, err)
	}

	tmpName := target + ".tmp-" + tempSuffix()
	if err := os.WriteFile(tmpName, []byte(content), 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %w", ErrFileIO, filename, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %w", ErrFileIO, filename, err)
	}
	return nil
}

// ReadText reads the whole file. Relative handles are resolved against the base directory.
func (d *DirTransfer) ReadText(ctx context.Context, handle string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFileIO, err)
	}
	path := handle
	if !filepath.IsAbs(path) {
		resolved, err := d.resolve(handle)
		if err != nil {
			return "", err
		}
		path = resolved
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrFileIO, handle, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", ErrFileIO, handle, err)
	}
	return string(data), nil
}

// pageTokenData encodes all paging state.
type pageTokenData struct {
	FileIndex      int    `json:"fileIndex"`
	SortOrder      string `json:"sortOrder"`
	PageSize       int    `json:"pageSize"`
	FilenamePrefix string `json:"filenamePrefix,omitempty"`
}

// List pages over the regular files in the base directory, sorted by name.
// Temporary files of in-flight saves are skipped.
func (d *DirTransfer) List(
	config ListingConfig,
	pageToken string,
) (entries []FileEntry, nextPageToken string, err error) {
	var token pageTokenData
	if pageToken != "" {
		tokenBytes, err := base64.StdEncoding.DecodeString(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		if err := json.Unmarshal(tokenBytes, &token); err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
	} else {
		token.SortOrder = config.SortOrder
		if token.SortOrder == "" {
			token.SortOrder = SortOrderAscending
		}
		token.PageSize = config.PageSize
		if token.PageSize <= 0 {
			token.PageSize = d.pageSize
		}
		token.FilenamePrefix = config.FilenamePrefix
	}

	dirEntries, err := os.ReadDir(d.baseDir)
	if err != nil {
		return nil, "", fmt.Errorf("%w: list %s: %w", ErrFileIO, d.baseDir, err)
	}
	var names []string
	for _, e := range dirEntries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.Contains(name, ".tmp-") {
			continue
		}
		if token.FilenamePrefix != "" && !strings.HasPrefix(name, token.FilenamePrefix) {
			continue
		}
		names = append(names, name)
	}
	// ReadDir already sorts ascending.
	if token.SortOrder == SortOrderDescending {
		slices.Reverse(names)
	}

	start := min(token.FileIndex, len(names))
	end := min(start+token.PageSize, len(names))
	for _, name := range names[start:end] {
		info, err := os.Stat(filepath.Join(d.baseDir, name))
		if err != nil {
			// Removed between ReadDir and Stat.
			continue
		}
		entries = append(entries, FileEntry{Name: name, FileInfo: info})
	}

	if end < len(names) {
		token.FileIndex = end
		b, err := json.Marshal(token)
		if err != nil {
			return nil, "", err
		}
		nextPageToken = base64.StdEncoding.EncodeToString(b)
	}
	return entries, nextPageToken, nil
}

// resolve joins name to the base directory and rejects names that would escape it.
func (d *DirTransfer) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty file name", ErrFileIO)
	}
	target := filepath.Join(d.baseDir, name)
	rel, err := filepath.Rel(d.baseDir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q is outside %s", ErrFileIO, name, d.baseDir)
	}
	return target, nil
}

func tempSuffix() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return fmt.Sprint(time.Now().UnixNano())
}
