package replication

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Table is the per-object registration of replicated fields and RPCs. It is
// filled once when the object is constructed.
type Table struct {
	fields []field
	byName map[string]field
	rpcs   map[string]handler
}

func NewTable() *Table {
	return &Table{
		byName: make(map[string]field),
		rpcs:   make(map[string]handler),
	}
}

func (t *Table) addField(f field) {
	if _, ok := t.byName[f.fieldName()]; ok {
		panic(fmt.Sprintf("replication: field %q declared twice", f.fieldName()))
	}
	t.fields = append(t.fields, f)
	t.byName[f.fieldName()] = f
}

func (t *Table) addRPC(name string, h handler) {
	if _, ok := t.rpcs[name]; ok {
		panic(fmt.Sprintf("replication: rpc %q declared twice", name))
	}
	t.rpcs[name] = h
}

// Fields returns field names in declaration order.
func (t *Table) Fields() []string {
	out := make([]string, 0, len(t.fields))
	for _, f := range t.fields {
		out = append(out, f.fieldName())
	}
	return out
}

// Dirty reports whether any field changed since the last Collect.
func (t *Table) Dirty() bool {
	for _, f := range t.fields {
		if f.isDirty() {
			return true
		}
	}
	return false
}

// Collect encodes the changed fields and clears their dirty flags. If any
// field fails to encode nothing is cleared.
func (t *Table) Collect() ([]FieldValue, error) {
	var out []FieldValue
	var sent []field
	for _, f := range t.fields {
		if !f.isDirty() {
			continue
		}
		raw, err := f.encode()
		if err != nil {
			return nil, err
		}
		sent = append(sent, f)
		out = append(out, FieldValue{Name: f.fieldName(), Value: raw})
	}
	for _, f := range sent {
		f.clean()
	}
	return out, nil
}

// Snapshot encodes every field, for a peer that has never seen the object.
func (t *Table) Snapshot() ([]FieldValue, error) {
	out := make([]FieldValue, 0, len(t.fields))
	for _, f := range t.fields {
		raw, err := f.encode()
		if err != nil {
			return nil, err
		}
		out = append(out, FieldValue{Name: f.fieldName(), Value: raw})
	}
	return out, nil
}

// Apply stores received values and then runs the reaction of every field
// whose value changed, in the order received. A bundle with an unknown or
// undecodable entry is rejected whole.
func (t *Table) Apply(values []FieldValue) error {
	type staged struct {
		f      field
		commit func() bool
	}
	pending := make([]staged, 0, len(values))
	for _, v := range values {
		f, ok := t.byName[v.Name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, v.Name)
		}
		commit, err := f.decode(v.Value)
		if err != nil {
			return err
		}
		pending = append(pending, staged{f: f, commit: commit})
	}
	var changed []field
	for _, p := range pending {
		if p.commit() {
			changed = append(changed, p.f)
		}
	}
	for _, f := range changed {
		f.react()
	}
	return nil
}

// Receive runs a call that arrived from another process. from is the calling
// connection on the server and empty on a proxy.
func (t *Table) Receive(ctx context.Context, obj Object, tr Transport, from ConnID, call Call) (err error) {
	_, span := tracer().Start(ctx, "rpc.receive."+call.Name)
	span.SetAttributes(
		attribute.String("rpc.name", call.Name),
		attribute.String("actor.id", obj.NetID()),
		attribute.String("actor.role", obj.Role().String()),
		attribute.String("conn.id", string(from)),
	)
	defer func() { endSpan(span, err) }()

	h, ok := t.rpcs[call.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRPC, call.Name)
	}
	return h.receive(obj, tr, from, call.Params)
}
