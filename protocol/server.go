package protocol

import (
	"github.com/go-gl/mathgl/mgl64"

	"multiplayer/replication"
	"multiplayer/world"
)

// Messages sent from the server to connected clients.

type Welcome struct {
	Conn   replication.ConnID `json:"conn"`
	TickHz int                `json:"tickHz"`
	Map    string             `json:"map"`
}

// Spawn announces an actor. Owned and Controlled are computed for the
// receiving connection.
type Spawn struct {
	ID                string                   `json:"id"`
	Type              string                   `json:"type"`
	Owned             bool                     `json:"owned,omitempty"`
	Controlled        bool                     `json:"controlled,omitempty"`
	Location          mgl64.Vec3               `json:"location"`
	Rotation          world.Rotator            `json:"rotation"`
	ReplicateMovement bool                     `json:"replicateMovement,omitempty"`
	SimulatePhysics   bool                     `json:"simulatePhysics,omitempty"`
	Movable           bool                     `json:"movable,omitempty"`
	Mesh              string                   `json:"mesh,omitempty"`
	Fields            []replication.FieldValue `json:"fields,omitempty"`
}

type Destroy struct {
	ID string `json:"id"`
}

// Replicate is one flush of changed state.
type Replicate struct {
	Tick   int           `json:"tick"`
	Actors []ActorUpdate `json:"actors"`
}

type ActorUpdate struct {
	ID       string                   `json:"id"`
	Location *mgl64.Vec3              `json:"location,omitempty"`
	Rotation *world.Rotator           `json:"rotation,omitempty"`
	Fields   []replication.FieldValue `json:"fields,omitempty"`
}

type Disconnect struct {
	Reason string `json:"reason"`
}
