package integration

import (
	"path/filepath"
	"sync"
	"testing"

	filebridge "github.com/ppipada/filebridge-go"
	"github.com/ppipada/filebridge-go/binding"
	"github.com/ppipada/filebridge-go/encdec"
	"github.com/ppipada/filebridge-go/sqlitestore"
	"github.com/ppipada/filebridge-go/transfer"
	"github.com/ppipada/filebridge-go/varstore"
)

const (
	engineFile   = "file"
	engineSQLite = "sqlite"
)

type pipeline struct {
	bridge *binding.Bridge
	store  *varstore.Store
	files  *transfer.DirTransfer
	// Only set for the file engine.
	fileStore *filebridge.VariableFileStore
	events    *eventRecorder
}

// eventRecorder collects file store events.
type eventRecorder struct {
	mu     sync.Mutex
	events []filebridge.FileEvent
}

func (r *eventRecorder) listen(e filebridge.FileEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) names(op filebridge.Operation) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Op == op {
			out = append(out, e.Name)
		}
	}
	return out
}

func newPipeline(t *testing.T, engine string, codec *encdec.PayloadCodec) *pipeline {
	t.Helper()
	p := &pipeline{events: &eventRecorder{}}

	var persistent varstore.Scope
	switch engine {
	case engineFile:
		fs, err := filebridge.NewVariableFileStore(
			filepath.Join(t.TempDir(), "vars.json"),
			map[string]any{},
			filebridge.WithCreateIfNotExists(true),
			filebridge.WithPayloadCodec(codec),
			filebridge.WithFileListeners(p.events.listen),
		)
		if err != nil {
			t.Fatalf("NewVariableFileStore() error = %v", err)
		}
		t.Cleanup(func() { _ = fs.Close() })
		p.fileStore = fs
		persistent = fs
	case engineSQLite:
		s, err := sqlitestore.NewStore(sqlitestore.Config{BaseDir: t.TempDir(), DBFileName: "vars.db"})
		if err != nil {
			t.Fatalf("sqlitestore.NewStore() error = %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		persistent = s
	default:
		t.Fatalf("unknown engine %q", engine)
	}

	var err error
	p.store, err = varstore.NewStore(persistent, nil)
	if err != nil {
		t.Fatalf("varstore.NewStore() error = %v", err)
	}
	p.files, err = transfer.NewDirTransfer(filepath.Join(t.TempDir(), "files"), true)
	if err != nil {
		t.Fatalf("NewDirTransfer() error = %v", err)
	}
	p.bridge, err = binding.NewBridge(p.store, p.files, binding.WithCodec(codec))
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	return p
}
