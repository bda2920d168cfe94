// Package varstore routes named variables to a persistent or a transient scope.
package varstore

import (
	"errors"
	"fmt"
)

// ErrInvalidVariableName is returned for names without a recognized sigil or without a bare name.
var ErrInvalidVariableName = errors.New("invalid variable name")

// ScopeKind selects the namespace a variable lives in.
type ScopeKind int

const (
	Persistent ScopeKind = iota
	Transient
)

const (
	PersistentSigil = '$'
	TransientSigil  = '_'
)

func (k ScopeKind) String() string {
	switch k {
	case Persistent:
		return "persistent"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("scope(%d)", int(k))
	}
}

// VariableRef is a parsed variable name. The sigil is read once, here, and never sniffed again.
type VariableRef struct {
	Scope ScopeKind
	Name  string
}

// ParseVariableRef splits "$name" or "_name" into scope and bare name.
func ParseVariableRef(s string) (VariableRef, error) {
	if len(s) < 2 {
		return VariableRef{}, fmt.Errorf("%w: %q", ErrInvalidVariableName, s)
	}
	var scope ScopeKind
	switch s[0] {
	case PersistentSigil:
		scope = Persistent
	case TransientSigil:
		scope = Transient
	default:
		return VariableRef{}, fmt.Errorf("%w: %q must start with $ or _", ErrInvalidVariableName, s)
	}
	return VariableRef{Scope: scope, Name: s[1:]}, nil
}

// MustParseVariableRef is ParseVariableRef for names known at compile time.
func MustParseVariableRef(s string) VariableRef {
	ref, err := ParseVariableRef(s)
	if err != nil {
		panic(err)
	}
	return ref
}

// String returns the sigil form of the reference.
func (r VariableRef) String() string {
	if r.Scope == Transient {
		return string(TransientSigil) + r.Name
	}
	return string(PersistentSigil) + r.Name
}
