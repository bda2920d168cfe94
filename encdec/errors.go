package encdec

import "errors"

var (
	// ErrSerialization marks JSON encode or decode failures.
	ErrSerialization = errors.New("serialization failed")
	// ErrCompression marks failures in the compress/base64 stage.
	ErrCompression = errors.New("compression failed")
)
