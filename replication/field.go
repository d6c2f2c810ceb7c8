package replication

import (
	"encoding/json"
	"fmt"
)

type field interface {
	fieldName() string
	isDirty() bool
	clean()
	encode() (json.RawMessage, error)
	// decode parses raw without storing it. The returned commit stores the
	// value and reports whether it changed.
	decode(raw json.RawMessage) (commit func() bool, err error)
	react()
}

// Field is a value written by the server and copied to every remote proxy.
// The reaction runs on a proxy each time a different value arrives. The
// transport never loops a value back to the server, so server code calls
// Notify itself after Set.
type Field[T comparable] struct {
	name  string
	value T
	dirty bool
	onRep func()
}

// NewField declares a replicated field on t.
func NewField[T comparable](t *Table, name string, initial T, onRep func()) *Field[T] {
	f := &Field[T]{name: name, value: initial, onRep: onRep}
	t.addField(f)
	return f
}

func (f *Field[T]) Name() string { return f.name }

func (f *Field[T]) Get() T { return f.value }

// Set stores v and marks it for the next replication pass. It is a no-op
// returning false unless role is RoleServer.
func (f *Field[T]) Set(role Role, v T) bool {
	if role != RoleServer {
		return false
	}
	if f.value != v {
		f.value = v
		f.dirty = true
	}
	return true
}

// Notify runs the change reaction in this process.
func (f *Field[T]) Notify() { f.react() }

func (f *Field[T]) fieldName() string { return f.name }
func (f *Field[T]) isDirty() bool     { return f.dirty }
func (f *Field[T]) clean()            { f.dirty = false }

func (f *Field[T]) encode() (json.RawMessage, error) {
	b, err := json.Marshal(f.value)
	if err != nil {
		return nil, fmt.Errorf("encode field %s: %w", f.name, err)
	}
	return b, nil
}

func (f *Field[T]) decode(raw json.RawMessage) (func() bool, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode field %s: %w", f.name, err)
	}
	return func() bool {
		if v == f.value {
			return false
		}
		f.value = v
		return true
	}, nil
}

func (f *Field[T]) react() {
	if f.onRep != nil {
		f.onRep()
	}
}
