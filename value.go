package gosim

import (
	"fmt"
	"reflect"
	"sync"
)

// typeCache avoids repeated reflection when stamping a TypedValue with
// its construction-time type identity.
var (
	typeCache   = make(map[reflect.Type]string)
	typeCacheMu sync.RWMutex
)

func typeNameOf(t reflect.Type) string {
	typeCacheMu.RLock()
	if name, ok := typeCache[t]; ok {
		typeCacheMu.RUnlock()
		return name
	}
	typeCacheMu.RUnlock()

	typeCacheMu.Lock()
	defer typeCacheMu.Unlock()
	if name, ok := typeCache[t]; ok {
		return name
	}
	name := t.String()
	typeCache[t] = name
	return name
}

// TypedValue is a type-erased container that remembers the concrete
// type it was constructed with. Reading or consuming it as a type
// other than the one it was built with fails with a typed error
// instead of panicking.
type TypedValue struct {
	payload  interface{}
	typeName string
	clone    func(interface{}) interface{}
}

// NewTypedValue wraps v, recording its runtime type identity and a
// clone thunk captured at construction time.
func NewTypedValue[T any](v T) TypedValue {
	t := reflect.TypeOf(v)
	var name string
	if t == nil {
		name = "<nil>"
	} else {
		name = typeNameOf(t)
	}
	return TypedValue{
		payload:  v,
		typeName: name,
		clone: func(p interface{}) interface{} {
			return p.(T)
		},
	}
}

// TypeName returns the recorded construction-time type identity.
func (tv TypedValue) TypeName() string {
	return tv.typeName
}

// Get returns the payload as T, or a TypeMismatch error if tv was not
// constructed with type T.
func Get[T any](tv TypedValue) (T, error) {
	var zero T
	v, ok := tv.payload.(T)
	if !ok {
		want := "<nil>"
		if t := reflect.TypeOf(zero); t != nil {
			want = typeNameOf(t)
		}
		return zero, newTypeMismatchError(want, tv.typeName)
	}
	return v, nil
}

// Into consumes tv, returning the payload as T. Semantically identical
// to Get; kept distinct for call sites that intend to take ownership.
func Into[T any](tv TypedValue) (T, error) {
	return Get[T](tv)
}

// Clone returns a copy of tv, invoking the clone thunk recorded at
// construction. Cloning is always defined because NewTypedValue only
// requires T, and every Go value can be copied by assignment; deep
// copy semantics for reference types are the caller's responsibility.
func (tv TypedValue) Clone() TypedValue {
	return TypedValue{
		payload:  tv.clone(tv.payload),
		typeName: tv.typeName,
		clone:    tv.clone,
	}
}

func newTypeMismatchError(want, got string) error {
	return &EngineError{
		Kind: TypeMismatch,
		Msg:  fmt.Sprintf("type mismatch: expected %s, got %s", want, got),
	}
}
