package cli

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	filebridge "github.com/ppipada/filebridge-go"
	"github.com/ppipada/filebridge-go/sqlitestore"
	"github.com/ppipada/filebridge-go/varstore"
)

var errNoBackingFile = errors.New("the store engine has no backing file to delete")

// persistentEngine is the store behind $ variables as the commands drive it.
type persistentEngine interface {
	varstore.Scope
	Names(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
	All(ctx context.Context) (map[string]any, error)
	ReplaceAll(ctx context.Context, data map[string]any) error
	Reset(ctx context.Context) error
	DeleteBacking(ctx context.Context) error
	Close() error
}

// fileEngine batches the writes of one command and flushes them once on Close.
type fileEngine struct {
	fs *filebridge.VariableFileStore

	mu      sync.Mutex
	dirty   bool
	deleted bool
}

func newFileEngine(path string, getter filebridge.ValueFormatGetter, opts ...filebridge.FileOption) (*fileEngine, error) {
	e := &fileEngine{}
	opts = append(opts,
		filebridge.WithCreateIfNotExists(true),
		filebridge.WithFileAutoFlush(false),
		filebridge.WithValueFormatGetter(getter),
		filebridge.WithFileListeners(e.track),
	)
	fs, err := filebridge.NewVariableFileStore(path, map[string]any{}, opts...)
	if err != nil {
		return nil, err
	}
	e.fs = fs
	return e, nil
}

func (e *fileEngine) track(ev filebridge.FileEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch ev.Op {
	case filebridge.OpSetVar, filebridge.OpDeleteVar, filebridge.OpSetFile:
		e.dirty = true
	case filebridge.OpResetFile:
		// Reset always writes the file.
		e.dirty, e.deleted = false, false
	case filebridge.OpDeleteFile:
		e.dirty, e.deleted = false, true
	}
}

func (e *fileEngine) Get(name string) (any, bool, error) { return e.fs.Get(name) }

func (e *fileEngine) Set(name string, value any) error { return e.fs.Set(name, value) }

func (e *fileEngine) Names(context.Context) ([]string, error) { return e.fs.Names(), nil }

func (e *fileEngine) Delete(_ context.Context, name string) error { return e.fs.Delete(name) }

func (e *fileEngine) All(context.Context) (map[string]any, error) { return e.fs.GetAll(true) }

func (e *fileEngine) ReplaceAll(_ context.Context, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	return e.fs.SetAll(data)
}

func (e *fileEngine) Reset(context.Context) error { return e.fs.Reset() }

func (e *fileEngine) DeleteBacking(context.Context) error { return e.fs.DeleteFile() }

// Close writes pending changes unless the backing file was deleted.
func (e *fileEngine) Close() error {
	e.mu.Lock()
	flush := e.dirty && !e.deleted
	e.dirty = false
	e.mu.Unlock()
	if flush {
		if err := e.fs.Flush(); err != nil {
			return err
		}
	}
	return e.fs.Close()
}

type sqliteEngine struct {
	*sqlitestore.Store
}

func (e sqliteEngine) ReplaceAll(ctx context.Context, data map[string]any) error {
	return e.Replace(ctx, data)
}

func (e sqliteEngine) Reset(ctx context.Context) error { return e.Replace(ctx, nil) }

func (e sqliteEngine) DeleteBacking(context.Context) error { return errNoBackingFile }

// logFileEvents reports file store mutations at debug level.
func logFileEvents(logger *slog.Logger) filebridge.FileListener {
	return func(ev filebridge.FileEvent) {
		logger.Debug("variable file changed", "op", ev.Op, "file", ev.File, "name", ev.Name)
	}
}
