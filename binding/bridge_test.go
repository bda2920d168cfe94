package binding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppipada/filebridge-go/encdec"
	"github.com/ppipada/filebridge-go/transfer"
	"github.com/ppipada/filebridge-go/varstore"
)

// memFiles is an in-memory FileTransfer that records every save.
type memFiles struct {
	mu      sync.Mutex
	files   map[string]string
	saves   int
	saveErr error
}

func newMemFiles() *memFiles { return &memFiles{files: map[string]string{}} }

func (m *memFiles) SaveText(name, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.files[name] = content
	return nil
}

func (m *memFiles) ReadText(_ context.Context, handle string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[handle]
	if !ok {
		return "", fmt.Errorf("%w: %s not found", transfer.ErrFileIO, handle)
	}
	return content, nil
}

type testEnv struct {
	bridge *Bridge
	files  *memFiles
	store  *varstore.Store
	logs   *bytes.Buffer
}

func newTestEnv(t *testing.T, opts ...Option) testEnv {
	t.Helper()
	store, err := varstore.NewStore(varstore.NewMemoryScope(), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	files := newMemFiles()
	logs := &bytes.Buffer{}
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(logs, nil)))}, opts...)
	b, err := NewBridge(store, files, opts...)
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	return testEnv{bridge: b, files: files, store: store, logs: logs}
}

func TestNewBridgeValidation(t *testing.T) {
	store, _ := varstore.NewStore(varstore.NewMemoryScope(), nil)
	if _, err := NewBridge(nil, newMemFiles()); err == nil {
		t.Errorf("NewBridge(nil store) error = nil")
	}
	if _, err := NewBridge(store, nil); err == nil {
		t.Errorf("NewBridge(nil files) error = nil")
	}
	b, err := NewBridge(store, newMemFiles(), WithConfig(Config{RenderAsLink: true}), WithCodec(nil), WithLogger(nil))
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	want := DefaultConfig()
	want.RenderAsLink = true
	if diff := cmp.Diff(want, b.Config()); diff != "" {
		t.Errorf("Config() mismatch (-want +got):\n%s", diff)
	}
}

func TestExportNoOpOnFalsyPayload(t *testing.T) {
	var nilMap map[string]any
	var nilPtr *int
	var nilSlice []any
	var nilErr error
	for _, payload := range []any{nil, "", false, 0, 0.0, math.NaN(), uint8(0), nilMap, nilPtr, nilSlice, nilErr} {
		t.Run(fmt.Sprintf("%T(%v)", payload, payload), func(t *testing.T) {
			env := newTestEnv(t)
			name, err := env.bridge.Export(payload, "x", "json")
			if !errors.Is(err, ErrMissingPayload) {
				t.Fatalf("Export() error = %v, want ErrMissingPayload", err)
			}
			if KindOf(err) != MissingPayload {
				t.Errorf("KindOf() = %v, want %v", KindOf(err), MissingPayload)
			}
			if name != "" || env.files.saves != 0 {
				t.Errorf("Export() wrote %d files (name %q), want none", env.files.saves, name)
			}
			if !strings.Contains(env.logs.String(), "export skipped") {
				t.Errorf("missing log line, got %q", env.logs.String())
			}
		})
	}
}

func TestExport(t *testing.T) {
	tests := []struct {
		name     string
		payload  any
		file     string
		format   string
		wantFile string
		want     string
	}{
		{
			name: "text string", payload: "hello", file: "Notes", format: "",
			wantFile: "notes.twinedata", want: "hello",
		},
		{
			name: "text object", payload: map[string]any{"a": 1}, file: "My File!.txt", format: "text",
			wantFile: "my-file.txt", want: `{"a":1}`,
		},
		{
			name: "json string", payload: "hello", file: "", format: " json ",
			wantFile: "file.twinedata", want: `"hello"`,
		},
		{
			name: "empty collections are data", payload: []any{}, file: "list.json", format: "json",
			wantFile: "list.json", want: `[]`,
		},
		{
			name: "unknown format acts as text", payload: true, file: "x", format: "xml",
			wantFile: "x.twinedata", want: "true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			got, err := env.bridge.Export(tt.payload, tt.file, tt.format)
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			if got != tt.wantFile {
				t.Errorf("Export() file = %q, want %q", got, tt.wantFile)
			}
			if content := env.files.files[tt.wantFile]; content != tt.want {
				t.Errorf("saved content = %q, want %q", content, tt.want)
			}
		})
	}
}

func TestExportBase64Decodes(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]any{"turn": float64(7), "flags": []any{"met-ada"}}
	for _, tag := range []string{"base64", "b64", "64"} {
		name, err := env.bridge.Export(payload, "save-"+tag, tag)
		if err != nil {
			t.Fatalf("Export(%s) error = %v", tag, err)
		}
		got, err := encdec.Decode(env.files.files[name])
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if diff := cmp.Diff(payload, got); diff != "" {
			t.Errorf("%s export mismatch (-want +got):\n%s", tag, diff)
		}
	}
}

func TestExportFailures(t *testing.T) {
	t.Run("encode failure", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.bridge.Export(map[string]any{"c": make(chan int)}, "x", "json")
		if KindOf(err) != SerializationError {
			t.Errorf("KindOf(%v) = %v, want %v", err, KindOf(err), SerializationError)
		}
		if env.files.saves != 0 {
			t.Errorf("file written on encode failure")
		}
	})
	t.Run("save failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.files.saveErr = fmt.Errorf("%w: disk full", transfer.ErrFileIO)
		_, err := env.bridge.Export("data", "x", "text")
		if KindOf(err) != FileIOError {
			t.Errorf("KindOf(%v) = %v, want %v", err, KindOf(err), FileIOError)
		}
		if !strings.Contains(env.logs.String(), "disk full") {
			t.Errorf("failure not logged: %q", env.logs.String())
		}
	})
}

func TestExportVariable(t *testing.T) {
	env := newTestEnv(t)
	if err := env.store.WriteVariable("$save", map[string]any{"hp": 3}); err != nil {
		t.Fatalf("WriteVariable() error = %v", err)
	}
	name, err := env.bridge.ExportVariable("$save", "slot 1", "json")
	if err != nil {
		t.Fatalf("ExportVariable() error = %v", err)
	}
	if got := env.files.files[name]; got != `{"hp":3}` {
		t.Errorf("saved content = %q", got)
	}
	if _, err := env.bridge.ExportVariable("$missing", "x", "json"); !errors.Is(err, ErrMissingPayload) {
		t.Errorf("ExportVariable(missing) error = %v, want ErrMissingPayload", err)
	}
	if _, err := env.bridge.ExportVariable("missing", "x", "json"); KindOf(err) != InvalidVariableName {
		t.Errorf("ExportVariable(no sigil) kind = %v, want %v", KindOf(err), InvalidVariableName)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	d, err := transfer.NewDirTransfer(t.TempDir(), false)
	if err != nil {
		t.Fatalf("NewDirTransfer() error = %v", err)
	}
	store, _ := varstore.NewStore(varstore.NewMemoryScope(), nil)
	b, err := NewBridge(store, d)
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	payload := map[string]any{"chapter": float64(2), "items": []any{"key"}}
	for _, format := range []string{"json", "base64"} {
		t.Run(format, func(t *testing.T) {
			name, err := b.Export(payload, "Round Trip "+format, format)
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			c, err := b.NewImportControl("_loaded", format, "")
			if err != nil {
				t.Fatalf("NewImportControl() error = %v", err)
			}
			if err := c.Select(context.Background(), name); err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			got, ok, err := store.ReadVariable("_loaded")
			if err != nil || !ok {
				t.Fatalf("ReadVariable() = %v, %v", ok, err)
			}
			if diff := cmp.Diff(payload, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, NoError},
		{ErrMissingPayload, MissingPayload},
		{fmt.Errorf("wrap: %w", varstore.ErrInvalidVariableName), InvalidVariableName},
		{fmt.Errorf("wrap: %w", transfer.ErrFileIO), FileIOError},
		{fmt.Errorf("wrap: %w", encdec.ErrCompression), CompressionError},
		{encdec.ErrSerialization, SerializationError},
		{errors.New("other"), Unknown},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
