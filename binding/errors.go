package binding

import (
	"errors"

	"github.com/ppipada/filebridge-go/encdec"
	"github.com/ppipada/filebridge-go/transfer"
	"github.com/ppipada/filebridge-go/varstore"
)

var (
	// ErrMissingPayload is returned by Export when there is nothing to save.
	ErrMissingPayload = errors.New("no data to save")
	ErrUnknownCommand = errors.New("unknown command")
)

// ErrorKind tags the outcome of a bridge operation.
type ErrorKind int

const (
	NoError ErrorKind = iota
	SerializationError
	CompressionError
	InvalidVariableName
	MissingPayload
	FileIOError
	Unknown
)

func (k ErrorKind) String() string {
	switch k {
	case NoError:
		return "ok"
	case SerializationError:
		return "serialization"
	case CompressionError:
		return "compression"
	case InvalidVariableName:
		return "invalid variable name"
	case MissingPayload:
		return "missing payload"
	case FileIOError:
		return "file io"
	default:
		return "unknown"
	}
}

// KindOf classifies err. A nil error is NoError.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return NoError
	case errors.Is(err, ErrMissingPayload):
		return MissingPayload
	case errors.Is(err, varstore.ErrInvalidVariableName):
		return InvalidVariableName
	case errors.Is(err, transfer.ErrFileIO):
		return FileIOError
	case errors.Is(err, encdec.ErrCompression):
		return CompressionError
	case errors.Is(err, encdec.ErrSerialization):
		return SerializationError
	default:
		return Unknown
	}
}
