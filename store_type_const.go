// Package filebridge holds the file-backed persistent variable scope.
// The import/export pipeline itself lives in encdec (codec), varstore (scopes) and binding (host entry points).
package filebridge

import (
	"errors"
	"time"

	"github.com/ppipada/filebridge-go/encdec"
)

// ErrFileConflict is when flush/delete detects that somebody modified the file since we last read/wrote it.
var ErrFileConflict = errors.New("concurrent modification detected for a file")

// Operation is the kind of mutation that happened on a file or a variable.
type Operation string

const (
	OpSetFile    Operation = "setFile"
	OpResetFile  Operation = "resetFile"
	OpDeleteFile Operation = "deleteFile"
	OpSetVar     Operation = "setVar"
	OpDeleteVar  Operation = "deleteVar"
)

// FileEvent is delivered *after* a mutation has been written to disk.
type FileEvent struct {
	Op Operation
	// Absolute path of the backing JSON file.
	File string
	// Empty for file-level ops.
	Name string
	// Nil for OpSetFile / OpResetFile.
	OldValue any
	// Nil for delete.
	NewValue any
	// Deep-copy of all variables after the change.
	Data      map[string]any
	Timestamp time.Time
}

// FileListener is a callback that observes mutations.
type FileListener func(FileEvent)

// ValueFormatGetter returns the on-disk format of the named variable.
// encdec.FormatBase64 keeps the variable compressed in the file; anything else stores it as plain JSON.
type ValueFormatGetter func(name string) encdec.Format
