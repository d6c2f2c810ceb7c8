package session

import (
	"multiplayer/replication"
	"multiplayer/world"
)

type Conn interface {
	Send([]byte) error
	Close() error
}

// Join: issued once after hello parsed
type Join struct {
	Conn  Conn
	Name  string
	Reply chan<- JoinResult
}

type JoinResult struct {
	Conn replication.ConnID
	Err  error
}

// Message: one frame read from a connection. Conn is empty on a client.
type Message struct {
	Conn replication.ConnID
	Data []byte
}

// Leave: issued on disconnect
type Leave struct {
	Conn replication.ConnID
}

// Closed: the client's connection to the server ended.
type Closed struct {
	Err error
}

// Do runs Fn on the loop goroutine, which owns the world. Done, if set, is
// closed afterwards.
type Do struct {
	Fn   func(w *world.World)
	Done chan<- struct{}
}
