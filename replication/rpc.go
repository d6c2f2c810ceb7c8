package replication

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "multiplayer/replication"

func tracer() trace.Tracer { return otel.Tracer(tracerName) }

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type handler interface {
	receive(obj Object, tr Transport, from ConnID, raw json.RawMessage) error
}

// RPC is a procedure declared with the process it runs on and an optional
// validator. A server-bound call that fails validation disconnects the
// caller.
type RPC[P any] struct {
	name     string
	exec     ExecContext
	body     func(P)
	validate func(P) bool
}

// NewRPC declares an RPC on t.
func NewRPC[P any](t *Table, name string, exec ExecContext, body func(P)) *RPC[P] {
	r := &RPC[P]{name: name, exec: exec, body: body}
	t.addRPC(name, r)
	return r
}

// Validate attaches a validator. Only server-bound calls are validated.
func (r *RPC[P]) Validate(fn func(P) bool) *RPC[P] {
	r.validate = fn
	return r
}

func (r *RPC[P]) Name() string { return r.name }

func (r *RPC[P]) Context() ExecContext { return r.exec }

// Invoke calls the RPC from this process on obj.
func (r *RPC[P]) Invoke(ctx context.Context, obj Object, tr Transport, p P) (err error) {
	_, span := tracer().Start(ctx, "rpc.invoke."+r.name)
	span.SetAttributes(
		attribute.String("rpc.name", r.name),
		attribute.String("rpc.context", r.exec.String()),
		attribute.String("actor.id", obj.NetID()),
		attribute.String("actor.role", obj.Role().String()),
	)
	defer func() { endSpan(span, err) }()

	switch r.exec {
	case RunOnServer:
		if obj.Role() == RoleServer {
			if !r.accepts(p) {
				return fmt.Errorf("%s: %w", r.name, ErrRejected)
			}
			r.run(p)
			return nil
		}
		if !obj.IsLocallyOwned() {
			return fmt.Errorf("%s: %w", r.name, ErrNotOwner)
		}
		if tr == nil {
			return fmt.Errorf("%s: %w", r.name, ErrNoTransport)
		}
		call, err := r.call(obj, p)
		if err != nil {
			return err
		}
		return tr.SendToServer(call)

	case RunOnAllClients:
		r.run(p)
		if obj.Role() != RoleServer || tr == nil {
			return nil
		}
		call, err := r.call(obj, p)
		if err != nil {
			return err
		}
		return tr.Broadcast(call)

	case RunOnOwningClient:
		if obj.Role() != RoleServer {
			if !obj.IsLocallyOwned() {
				return fmt.Errorf("%s: %w", r.name, ErrNotOwner)
			}
			r.run(p)
			return nil
		}
		conn := obj.OwningConn()
		if conn == "" {
			return fmt.Errorf("%s: %w", r.name, ErrNoOwningConnection)
		}
		if tr == nil {
			return fmt.Errorf("%s: %w", r.name, ErrNoTransport)
		}
		call, err := r.call(obj, p)
		if err != nil {
			return err
		}
		return tr.SendToConn(conn, call)
	}
	return fmt.Errorf("%s: %w", r.name, ErrWrongContext)
}

func (r *RPC[P]) receive(obj Object, tr Transport, from ConnID, raw json.RawMessage) error {
	switch obj.Role() {
	case RoleServer:
		if r.exec != RunOnServer {
			return fmt.Errorf("%s: %w", r.name, ErrWrongContext)
		}
		if obj.OwningConn() != from {
			return fmt.Errorf("%s from %s: %w", r.name, from, ErrNotOwner)
		}
		p, err := r.decode(raw)
		if err != nil || !r.accepts(p) {
			reason := fmt.Errorf("%s: %w", r.name, ErrRejected)
			if tr != nil {
				tr.Disconnect(from, reason)
			}
			return reason
		}
		r.run(p)
		return nil

	case RoleRemoteProxy:
		if r.exec == RunOnServer {
			return fmt.Errorf("%s: %w", r.name, ErrWrongContext)
		}
		p, err := r.decode(raw)
		if err != nil {
			return err
		}
		r.run(p)
		return nil
	}
	return fmt.Errorf("%s: %w", r.name, ErrNotAuthority)
}

func (r *RPC[P]) accepts(p P) bool {
	return r.validate == nil || r.validate(p)
}

func (r *RPC[P]) run(p P) {
	if r.body != nil {
		r.body(p)
	}
}

func (r *RPC[P]) call(obj Object, p P) (Call, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Call{}, fmt.Errorf("encode %s params: %w", r.name, err)
	}
	return Call{Object: obj.NetID(), Name: r.name, Params: raw}, nil
}

func (r *RPC[P]) decode(raw json.RawMessage) (P, error) {
	var p P
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode %s params: %w", r.name, err)
	}
	return p, nil
}
