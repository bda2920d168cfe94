package varstore

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ppipada/filebridge-go/encdec"
	"github.com/ppipada/filebridge-go/internal/maputil"
)

// Scope is one variable namespace. Keys are bare names, without sigil.
type Scope interface {
	Get(name string) (value any, ok bool, err error)
	Set(name string, value any) error
}

// MemoryScope is an in-process Scope. It is the transient namespace of a Store.
type MemoryScope struct {
	mu   sync.RWMutex
	data map[string]any
}

func NewMemoryScope() *MemoryScope {
	return &MemoryScope{data: make(map[string]any)}
}

func (m *MemoryScope) Get(name string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[name]
	return v, ok, nil
}

func (m *MemoryScope) Set(name string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = value
	return nil
}

// Delete removes name. Deleting a missing name is a noop.
func (m *MemoryScope) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
}

// Names returns the stored names in sorted order.
func (m *MemoryScope) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.data))
}

// Store routes variables to their scope by VariableRef.
// Values are deep-cloned on the way in and on the way out, so the store never aliases caller data.
type Store struct {
	persistent Scope
	transient  Scope
}

// NewStore builds a Store. A nil transient scope gets a fresh MemoryScope.
func NewStore(persistent, transient Scope) (*Store, error) {
	if persistent == nil {
		return nil, errors.New("invalid persistent scope")
	}
	if transient == nil {
		transient = NewMemoryScope()
	}
	return &Store{persistent: persistent, transient: transient}, nil
}

// Scope returns the namespace for kind.
func (s *Store) Scope(kind ScopeKind) Scope {
	if kind == Transient {
		return s.transient
	}
	return s.persistent
}

// WriteVariable parses name and stores a clone of value in the scope its sigil selects.
func (s *Store) WriteVariable(name string, value any) error {
	ref, err := ParseVariableRef(name)
	if err != nil {
		return err
	}
	return s.Write(ref, value)
}

// Write stores a clone of value under ref.
// Values that cannot be cloned, such as channels or cyclic maps, fail with encdec.ErrSerialization.
func (s *Store) Write(ref VariableRef, value any) error {
	if ref.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidVariableName)
	}
	cloned, err := maputil.Clone(value)
	if err != nil {
		return fmt.Errorf("%w: failed to clone value for %s: %w", encdec.ErrSerialization, ref, err)
	}
	if err := s.Scope(ref.Scope).Set(ref.Name, cloned); err != nil {
		return fmt.Errorf("failed to set %s: %w", ref, err)
	}
	return nil
}

// ReadVariable parses name and returns a copy of the stored value.
func (s *Store) ReadVariable(name string) (any, bool, error) {
	ref, err := ParseVariableRef(name)
	if err != nil {
		return nil, false, err
	}
	return s.Read(ref)
}

// Read returns a copy of the value stored under ref.
func (s *Store) Read(ref VariableRef) (any, bool, error) {
	v, ok, err := s.Scope(ref.Scope).Get(ref.Name)
	if err != nil || !ok {
		return nil, ok, err
	}
	return maputil.DeepCopyValue(v), true, nil
}
