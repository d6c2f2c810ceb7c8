package protocol

import (
	"encoding/json"
)

// Message types carried in Envelope.T.
const (
	MsgHello      = "hello"
	MsgWelcome    = "welcome"
	MsgSpawn      = "spawn"
	MsgDestroy    = "destroy"
	MsgReplicate  = "replicate"
	MsgRPC        = "rpc"
	MsgDisconnect = "disconnect"
)

const Version = 1

const (
	SimTickHz   = 40
	BroadcastHz = 20
)

type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"` // raw payload bytes
}
