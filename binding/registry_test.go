package binding

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppipada/filebridge-go/encdec"
)

func TestRegistryRegister(t *testing.T) {
	r := NewEmptyRegistry()
	noop := func(context.Context, []string) (string, error) { return "ok", nil }

	if err := r.Register("ping", noop); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("ping", noop); err == nil {
		t.Errorf("Register(duplicate) error = nil")
	}
	if err := r.Register(" ", noop); err == nil {
		t.Errorf("Register(blank) error = nil")
	}
	if err := r.Register("nil", nil); err == nil {
		t.Errorf("Register(nil handler) error = nil")
	}
	if _, ok := r.Lookup("ping"); !ok {
		t.Errorf("Lookup(ping) not found")
	}
	out, err := r.Invoke(context.Background(), "ping", nil)
	if err != nil || out != "ok" {
		t.Errorf("Invoke(ping) = %q, %v", out, err)
	}
	if _, err := r.Invoke(context.Background(), "pong", nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Invoke(pong) error = %v, want ErrUnknownCommand", err)
	}
}

func TestRegistryBuiltins(t *testing.T) {
	env := newTestEnv(t)
	r, err := NewRegistry(env.bridge)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if diff := cmp.Diff([]string{"export", "import"}, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name     string
		command  string
		args     []string
		want     string
		wantKind ErrorKind
	}{
		{
			name: "import defaults", command: "import", args: []string{"$save"},
			want: `<label class="upload-file" data-format="text"><button>Import</button></label>`,
		},
		{
			name: "import trims format", command: "import", args: []string{"_x", " json ", "Load"},
			want: `<label class="upload-file" data-format="json"><button>Load</button></label>`,
		},
		{name: "import without variable", command: "import", wantKind: InvalidVariableName},
		{name: "import bad variable", command: "import", args: []string{"save"}, wantKind: InvalidVariableName},
		{name: "export json payload", command: "export", args: []string{`{"a":1}`, " Slot 1 ", "json"}, want: "slot-1.twinedata"},
		{name: "export text payload", command: "export", args: []string{"hello world"}, want: "file.twinedata"},
		{name: "export without payload", command: "export", wantKind: MissingPayload},
		{name: "export zero payload", command: "export", args: []string{"0", "x"}, wantKind: MissingPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Invoke(context.Background(), tt.command, tt.args)
			if KindOf(err) != tt.wantKind {
				t.Fatalf("Invoke() error = %v, want kind %v", err, tt.wantKind)
			}
			if got != tt.want {
				t.Errorf("Invoke() = %q, want %q", got, tt.want)
			}
		})
	}

	saved, err := encdec.ParsePayload(env.files.files["slot-1.twinedata"])
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if diff := cmp.Diff(map[string]any{"a": float64(1)}, saved); diff != "" {
		t.Errorf("exported payload mismatch (-want +got):\n%s", diff)
	}
	if got := env.files.files["file.twinedata"]; got != "hello world" {
		t.Errorf("text export = %q", got)
	}
}
