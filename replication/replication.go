// Package replication holds the authority contract shared by every networked
// object: fields that only the server may write and that are pushed to remote
// proxies, and procedures that declare where they execute.
package replication

import (
	"encoding/json"
	"errors"
)

// Role is the authority a process holds over one object.
type Role uint8

const (
	RoleNone Role = iota
	RoleServer
	RoleRemoteProxy
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleRemoteProxy:
		return "remote_proxy"
	default:
		return "none"
	}
}

// ExecContext says which process runs the body of an RPC.
type ExecContext uint8

const (
	RunOnServer ExecContext = iota + 1
	RunOnAllClients
	RunOnOwningClient
)

func (c ExecContext) String() string {
	switch c {
	case RunOnServer:
		return "server"
	case RunOnAllClients:
		return "multicast"
	case RunOnOwningClient:
		return "owning_client"
	default:
		return "unknown"
	}
}

// ConnID names a client connection on the server.
type ConnID string

var (
	ErrNotAuthority       = errors.New("not authority")
	ErrNotOwner           = errors.New("caller does not own object")
	ErrNoOwningConnection = errors.New("object has no owning connection")
	ErrNoTransport        = errors.New("no transport")
	ErrRejected           = errors.New("rpc rejected by validator")
	ErrUnknownRPC         = errors.New("unknown rpc")
	ErrUnknownField       = errors.New("unknown replicated field")
	ErrWrongContext       = errors.New("rpc not allowed in this context")
)

// Object is what dispatch needs to know about the actor a field or RPC
// belongs to.
type Object interface {
	NetID() string
	Role() Role
	// OwningConn is the connection that owns the object, empty when the
	// server owns it. Only meaningful on the server.
	OwningConn() ConnID
	// IsLocallyOwned reports whether this process owns the object. Only
	// meaningful on a remote proxy.
	IsLocallyOwned() bool
}

// Call is one RPC on the wire.
type Call struct {
	Object string          `json:"object"`
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params,omitempty"`
}

// FieldValue is one replicated field on the wire.
type FieldValue struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Transport moves calls between processes. Delivery is fire-and-forget.
type Transport interface {
	SendToServer(call Call) error
	SendToConn(conn ConnID, call Call) error
	Broadcast(call Call) error
	Disconnect(conn ConnID, reason error)
}
