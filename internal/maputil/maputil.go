// Package maputil copies generic JSON-shaped values.
package maputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// ErrCyclicValue is returned when a map or slice contains itself.
var ErrCyclicValue = errors.New("value contains a cycle")

// DeepCopyValue creates a deep copy of an any value.
// Only map[string]any and []any are walked; every other value is returned as is.
// Shared and cyclic references are reproduced in the copy, so a cyclic value does not recurse forever.
func DeepCopyValue(value any) any {
	return deepCopy(value, map[refKey]any{})
}

// refKey identifies a map or a non-empty slice by its backing storage.
type refKey struct {
	ptr uintptr
	len int
}

func deepCopy(value any, seen map[refKey]any) any {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			return make(map[string]any)
		}
		key := refKey{ptr: reflect.ValueOf(v).Pointer(), len: -1}
		if c, ok := seen[key]; ok {
			return c
		}
		newV := make(map[string]any, len(v))
		seen[key] = newV
		for k, val := range v {
			newV[k] = deepCopy(val, seen)
		}
		return newV
	case []any:
		if len(v) == 0 {
			return []any{}
		}
		key := refKey{ptr: reflect.ValueOf(v).Pointer(), len: len(v)}
		if c, ok := seen[key]; ok {
			return c
		}
		sliceCopy := make([]any, len(v))
		seen[key] = sliceCopy
		for i, elem := range v {
			sliceCopy[i] = deepCopy(elem, seen)
		}
		return sliceCopy
	default:
		// For basic types, it's safe to return as is.
		return v
	}
}

// Clone returns a copy of value that shares no mutable state with it.
// Generic JSON values (maps, slices, strings, float64, bool, nil) are copied recursively.
// Anything else, such as structs, typed slices or pointers, is normalized through JSON into its generic form.
// A cyclic value is an error wrapping ErrCyclicValue.
func Clone(value any) (any, error) {
	generic, err := inspect(value, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot clone %T: %w", value, err)
	}
	if generic {
		return DeepCopyValue(value), nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		var unsupported *json.UnsupportedValueError
		if errors.As(err, &unsupported) && strings.HasPrefix(unsupported.Str, "encountered a cycle") {
			err = fmt.Errorf("%w: %w", ErrCyclicValue, err)
		}
		return nil, fmt.Errorf("cannot clone %T: %w", value, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("cannot clone %T: %w", value, err)
	}
	return out, nil
}

// IsGeneric reports whether value consists only of the types encoding/json produces when decoding into any.
// A cyclic value is not generic.
func IsGeneric(value any) bool {
	generic, err := inspect(value, nil)
	return generic && err == nil
}

// inspect walks value depth first. ancestors holds the maps and slices on the current path;
// meeting one of them again is a cycle. Values shared between siblings are fine.
func inspect(value any, ancestors []refKey) (bool, error) {
	var (
		key   refKey
		elems []any
	)
	switch v := value.(type) {
	case nil, string, float64, bool:
		return true, nil
	case map[string]any:
		if len(v) == 0 {
			return true, nil
		}
		key = refKey{ptr: reflect.ValueOf(v).Pointer(), len: -1}
		elems = make([]any, 0, len(v))
		for _, val := range v {
			elems = append(elems, val)
		}
	case []any:
		if len(v) == 0 {
			return true, nil
		}
		key = refKey{ptr: reflect.ValueOf(v).Pointer(), len: len(v)}
		elems = v
	default:
		return false, nil
	}

	if slices.Contains(ancestors, key) {
		return false, ErrCyclicValue
	}
	ancestors = append(ancestors, key)
	for _, elem := range elems {
		generic, err := inspect(elem, ancestors)
		if err != nil || !generic {
			return generic, err
		}
	}
	return true, nil
}
