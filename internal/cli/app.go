package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/viper"

	filebridge "github.com/ppipada/filebridge-go"
	"github.com/ppipada/filebridge-go/binding"
	"github.com/ppipada/filebridge-go/compression"
	"github.com/ppipada/filebridge-go/encdec"
	"github.com/ppipada/filebridge-go/sqlitestore"
	"github.com/ppipada/filebridge-go/transfer"
	"github.com/ppipada/filebridge-go/varstore"
)

const (
	engineFile   = "file"
	engineSQLite = "sqlite"

	defaultFileStoreName   = "variables.json"
	defaultSQLiteStoreName = "variables.db"
)

// app is everything one command invocation works with.
type app struct {
	logger *slog.Logger
	codec  *encdec.PayloadCodec
	store  *varstore.Store
	engine persistentEngine
	files  *transfer.DirTransfer
	bridge *binding.Bridge

	closers []io.Closer
}

func newApp(v *viper.Viper, stderr io.Writer) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	logger, logCloser, err := newLogger(v.GetString(logLevelFlag), v.GetString(logFileFlag), stderr)
	if err != nil {
		return nil, err
	}
	if logCloser != nil {
		a.closers = append(a.closers, logCloser)
	}
	a.logger = logger
	slog.SetDefault(logger)

	cp, err := compression.ByName(v.GetString(compressorFlag))
	if err != nil {
		return nil, err
	}
	a.codec = encdec.NewPayloadCodec(encdec.WithCompressor(cp))

	a.engine, err = openEngine(
		v.GetString(storeEngineFlag),
		v.GetString(storePathFlag),
		v.GetStringSlice(compressedVarsFlag),
		a.codec,
		logger,
	)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.engine)

	a.store, err = varstore.NewStore(a.engine, nil)
	if err != nil {
		return nil, err
	}
	a.files, err = transfer.NewDirTransfer(v.GetString(dirFlag), true)
	if err != nil {
		return nil, err
	}
	a.bridge, err = binding.NewBridge(a.store, a.files,
		binding.WithCodec(a.codec),
		binding.WithLogger(logger),
		binding.WithConfig(bindingConfig(v)),
	)
	if err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

// Close releases the store and the log file. Closers run in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for _, c := range slices.Backward(a.closers) {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func bindingConfig(v *viper.Viper) binding.Config {
	return binding.Config{
		DefaultFileLabel:     v.GetString(bindingLabelConf),
		RenderAsLink:         v.GetBool(bindingAsLinkConf),
		DefaultFileExtension: v.GetString(bindingExtensionConf),
		DefaultFileName:      v.GetString(bindingNameConf),
		DefaultVariable:      v.GetString(bindingVariableConf),
		DefaultFormat:        encdec.ParseFormat(v.GetString(bindingFormatConf)),
	}
}

// openEngine opens the store engine that keeps $ variables.
func openEngine(
	engine, path string,
	compressedVars []string,
	codec *encdec.PayloadCodec,
	logger *slog.Logger,
) (persistentEngine, error) {
	switch engine {
	case "", engineFile:
		if path == "" {
			path = defaultFileStoreName
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
			return nil, err
		}
		getter := func(name string) encdec.Format {
			if slices.Contains(compressedVars, name) {
				return encdec.FormatBase64
			}
			return encdec.FormatJSON
		}
		return newFileEngine(path, getter,
			filebridge.WithPayloadCodec(codec),
			filebridge.WithFileListeners(logFileEvents(logger)),
		)

	case engineSQLite:
		cfg := sqlitestore.Config{BaseDir: sqlitestore.MemoryDBBaseDir}
		if path != sqlitestore.MemoryDBBaseDir {
			if path == "" {
				path = defaultSQLiteStoreName
			}
			cfg.BaseDir, cfg.DBFileName = filepath.Dir(path), filepath.Base(path)
		}
		s, err := sqlitestore.NewStore(cfg)
		if err != nil {
			return nil, err
		}
		return sqliteEngine{s}, nil

	default:
		return nil, fmt.Errorf("'%s' is not a supported store engine", engine)
	}
}
