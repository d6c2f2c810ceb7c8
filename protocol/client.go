package protocol

import "multiplayer/replication"

// Messages sent from a joining process to the server.

type Hello struct {
	V    int    `json:"v"`              // version
	Name string `json:"name,omitempty"` // optional player name
}

// RPC carries a server-bound call from a client, or a multicast / owning
// client call from the server.
type RPC struct {
	Call replication.Call `json:"call"`
}
