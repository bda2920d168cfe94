package binding

import (
	"errors"
	"log/slog"
	"math"
	"reflect"
	"strings"

	"github.com/ppipada/filebridge-go/encdec"
	"github.com/ppipada/filebridge-go/filename"
	"github.com/ppipada/filebridge-go/transfer"
	"github.com/ppipada/filebridge-go/varstore"
)

// Bridge runs the export and import pipelines against one variable store and one file transfer.
type Bridge struct {
	cfg        Config
	codec      *encdec.PayloadCodec
	store      *varstore.Store
	files      transfer.FileTransfer
	normalizer filename.Normalizer
	logger     *slog.Logger
}

// Option is a functional option for configuring the Bridge.
type Option func(*Bridge)

func WithConfig(cfg Config) Option {
	return func(b *Bridge) {
		b.cfg = cfg
	}
}

// WithCodec sets the payload codec. A nil codec is ignored.
func WithCodec(codec *encdec.PayloadCodec) Option {
	return func(b *Bridge) {
		if codec != nil {
			b.codec = codec
		}
	}
}

// WithLogger sets the logger failures are reported to. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func NewBridge(store *varstore.Store, files transfer.FileTransfer, opts ...Option) (*Bridge, error) {
	if store == nil {
		return nil, errors.New("invalid variable store")
	}
	if files == nil {
		return nil, errors.New("invalid file transfer")
	}
	b := &Bridge{
		cfg:    DefaultConfig(),
		codec:  encdec.Default,
		store:  store,
		files:  files,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.cfg = b.cfg.withDefaults()
	b.normalizer = filename.Normalizer{
		DefaultName:      b.cfg.DefaultFileName,
		DefaultExtension: b.cfg.DefaultFileExtension,
	}
	return b, nil
}

func (b *Bridge) Config() Config { return b.cfg }

func (b *Bridge) Store() *varstore.Store { return b.store }

// FileName returns the name Export would save fileName under.
func (b *Bridge) FileName(fileName string) string {
	return b.normalizer.Normalize(fileName)
}

// Export encodes payload in format and saves it under the normalized fileName.
// It returns the name the file was saved under.
// A falsy payload is ErrMissingPayload and nothing is written.
// Every failure is logged before it is returned.
func (b *Bridge) Export(payload any, fileName string, format string) (string, error) {
	if isFalsy(payload) {
		b.logger.Error("export skipped", "file", fileName, "err", ErrMissingPayload)
		return "", ErrMissingPayload
	}
	f := b.format(format)
	content, err := b.codec.Encode(payload, f)
	if err != nil {
		b.logger.Error("failed to encode export payload", "format", f, "err", err)
		return "", err
	}
	name := b.FileName(fileName)
	if err := b.files.SaveText(name, content); err != nil {
		b.logger.Error("failed to save export file", "file", name, "err", err)
		return "", err
	}
	return name, nil
}

// ExportVariable exports the current value of a stored variable.
func (b *Bridge) ExportVariable(variable, fileName, format string) (string, error) {
	value, ok, err := b.store.ReadVariable(variable)
	if err != nil {
		b.logger.Error("failed to read variable for export", "variable", variable, "err", err)
		return "", err
	}
	if !ok {
		b.logger.Error("export skipped", "variable", variable, "err", ErrMissingPayload)
		return "", ErrMissingPayload
	}
	return b.Export(value, fileName, format)
}

func (b *Bridge) format(tag string) encdec.Format {
	if strings.TrimSpace(tag) == "" {
		return b.cfg.DefaultFormat
	}
	return encdec.ParseFormat(tag)
}

// isFalsy reports whether v counts as "no data": nil, the empty string, false, zero or NaN.
// Nil maps, slices and pointers also count. Empty non-nil collections are data.
func isFalsy(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f == 0 || math.IsNaN(f)
	case reflect.Map, reflect.Slice, reflect.Pointer:
		return rv.IsNil()
	default:
		return false
	}
}
