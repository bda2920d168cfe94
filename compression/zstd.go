package compression

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstd.Encoder and zstd.Decoder are safe for concurrent use with EncodeAll/DecodeAll,
// so one of each is shared by every Zstd value.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compression: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compression: zstd decoder initialization failed: " + err.Error())
	}
}

// Zstd is the default compressor. JSON text compresses well at the default level.
type Zstd struct{}

func (Zstd) Name() string { return NameZstd }

func (Zstd) Compress(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, nil), nil
}

func (Zstd) Decompress(data []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
