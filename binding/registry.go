package binding

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ppipada/filebridge-go/encdec"
	"github.com/ppipada/filebridge-go/varstore"
)

// Handler runs one command. The returned string is the command's output.
type Handler func(ctx context.Context, args []string) (string, error)

// Registry maps command names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewEmptyRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// NewRegistry returns a registry with the import and export commands of bridge registered.
func NewRegistry(bridge *Bridge) (*Registry, error) {
	r := NewEmptyRegistry()
	if err := r.Register("import", importHandler(bridge)); err != nil {
		return nil, err
	}
	if err := r.Register("export", exportHandler(bridge)); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds h under name. Names are unique.
func (r *Registry) Register(name string, h Handler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("command name cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("nil handler for command %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("command %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) Invoke(ctx context.Context, name string, args []string) (string, error) {
	h, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return h(ctx, args)
}

// importHandler takes <variable> [format] [label] and returns the rendered control.
func importHandler(b *Bridge) Handler {
	return func(_ context.Context, args []string) (string, error) {
		variable, format, label := arg(args, 0), arg(args, 1), arg(args, 2)
		if variable == "" {
			return "", fmt.Errorf("%w: missing", varstore.ErrInvalidVariableName)
		}
		c, err := b.NewImportControl(variable, strings.TrimSpace(format), label)
		if err != nil {
			return "", err
		}
		return c.Render(), nil
	}
}

// exportHandler takes <payload> [file] [format]. The payload is parsed as JSON when it is valid JSON
// and used as text otherwise. It returns the saved file name.
func exportHandler(b *Bridge) Handler {
	return func(_ context.Context, args []string) (string, error) {
		raw := arg(args, 0)
		var payload any = raw
		if v, err := encdec.ParsePayload(raw); err == nil {
			payload = v
		}
		return b.Export(payload, strings.TrimSpace(arg(args, 1)), strings.TrimSpace(arg(args, 2)))
	}
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
