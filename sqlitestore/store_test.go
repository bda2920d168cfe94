package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppipada/filebridge-go/varstore"
)

var _ varstore.Scope = (*Store)(nil)

func TestNewStoreConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory ok", Config{BaseDir: MemoryDBBaseDir}, false},
		{"memory with filename", Config{BaseDir: MemoryDBBaseDir, DBFileName: "x.db"}, true},
		{"empty base dir", Config{DBFileName: "x.db"}, true},
		{"file without name", Config{BaseDir: t.TempDir()}, true},
		{"blank table", Config{BaseDir: MemoryDBBaseDir, Table: "  "}, true},
		{"file ok", Config{BaseDir: t.TempDir(), DBFileName: "vars.db", Table: "story vars"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}

func TestStoreSetGet(t *testing.T) {
	s, err := NewStore(Config{BaseDir: MemoryDBBaseDir})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()

	value := map[string]any{"room": "hall", "keys": []any{"brass"}, "turn": float64(4)}
	if err := s.Set("save", value); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := s.Get("save")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}
	if diff := cmp.Diff(value, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}

	if err := s.Set("save", "overwritten"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if got, _, _ := s.Get("save"); got != "overwritten" {
		t.Errorf("Get() after overwrite = %v", got)
	}

	if _, ok, err := s.Get("missing"); ok || err != nil {
		t.Errorf("Get(missing) = %v, %v", ok, err)
	}
	if err := s.Set("", 1); err == nil {
		t.Errorf("Set(empty) expected error")
	}
	if err := s.Set("bad", make(chan int)); err == nil {
		t.Errorf("Set(chan) expected error")
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := Config{BaseDir: filepath.Join(t.TempDir(), "db"), DBFileName: "vars.db"}

	s, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	for _, n := range []string{"b", "a", "c"} {
		if err := s.SetContext(ctx, n, n+"-value"); err != nil {
			t.Fatalf("SetContext(%s) error = %v", n, err)
		}
	}
	if err := s.Delete(ctx, "c"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	names, err := reopened.Names(ctx)
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	got, ok, err := reopened.GetContext(ctx, "a")
	if err != nil || !ok || got != "a-value" {
		t.Errorf("GetContext(a) = %v, %v, %v", got, ok, err)
	}
}

func TestStoreAsPersistentScope(t *testing.T) {
	s, err := NewStore(Config{BaseDir: MemoryDBBaseDir})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	vs, err := varstore.NewStore(s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := vs.WriteVariable("$gold", 10); err != nil {
		t.Fatalf("WriteVariable() error = %v", err)
	}
	got, ok, err := s.Get("gold")
	if err != nil || !ok || got != float64(10) {
		t.Errorf("Get(gold) = %v, %v, %v", got, ok, err)
	}
}

func TestStoreAllAndReplace(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(Config{BaseDir: MemoryDBBaseDir})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.SetContext(ctx, "old", true); err != nil {
		t.Fatalf("SetContext() error = %v", err)
	}
	data := map[string]any{"save": map[string]any{"turn": float64(2)}, "name": "Ada"}
	if err := s.Replace(ctx, data); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	got, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if diff := cmp.Diff(data, got); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}

	// A failed replace keeps the previous content.
	if err := s.Replace(ctx, map[string]any{"bad": make(chan int)}); err == nil {
		t.Errorf("Replace(chan) error = nil")
	}
	if err := s.Replace(ctx, map[string]any{"": 1}); err == nil {
		t.Errorf("Replace(empty name) error = nil")
	}
	got, _ = s.All(ctx)
	if diff := cmp.Diff(data, got); diff != "" {
		t.Errorf("All() after failed Replace mismatch (-want +got):\n%s", diff)
	}

	if err := s.Replace(ctx, nil); err != nil {
		t.Fatalf("Replace(nil) error = %v", err)
	}
	if names, _ := s.Names(ctx); len(names) != 0 {
		t.Errorf("Names() after clearing = %v", names)
	}
}
