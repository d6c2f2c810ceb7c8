package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"multiplayer/replication"
)

// Rotator is an orientation in degrees.
type Rotator struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Vector is the unit direction the rotator faces.
func (r Rotator) Vector() mgl64.Vec3 {
	p := mgl64.DegToRad(r.Pitch)
	y := mgl64.DegToRad(r.Yaw)
	return mgl64.Vec3{math.Cos(p) * math.Cos(y), math.Cos(p) * math.Sin(y), math.Sin(p)}
}

// YawBasis returns the forward and right unit vectors of the yaw alone.
func (r Rotator) YawBasis() (forward, right mgl64.Vec3) {
	rot := mgl64.Rotate3DZ(mgl64.DegToRad(r.Yaw))
	return rot.Mul3x1(mgl64.Vec3{1, 0, 0}), rot.Mul3x1(mgl64.Vec3{0, 1, 0})
}

type Mobility uint8

const (
	Static Mobility = iota
	Movable
)

// Actor is one object in the world. Its role is fixed when it is spawned.
type Actor struct {
	id       string
	typeName string
	role     replication.Role
	world    *World
	behavior Behavior
	table    *replication.Table

	owner        *Actor
	conn         replication.ConnID
	locallyOwned bool
	controller   *Controller

	location mgl64.Vec3
	rotation Rotator
	Velocity mgl64.Vec3

	replicates        bool
	replicateMovement bool
	mobility          Mobility
	simulatePhysics   bool
	mesh              string

	movementDirty bool
	netSpawned    bool
	destroyed     bool
}

func (a *Actor) NetID() string                    { return a.id }
func (a *Actor) ID() string                       { return a.id }
func (a *Actor) Type() string                     { return a.typeName }
func (a *Actor) Role() replication.Role           { return a.role }
func (a *Actor) HasAuthority() bool               { return a.role == replication.RoleServer }
func (a *Actor) World() *World                    { return a.world }
func (a *Actor) Behavior() Behavior               { return a.behavior }
func (a *Actor) Table() *replication.Table        { return a.table }
func (a *Actor) Owner() *Actor                    { return a.owner }
func (a *Actor) Controller() *Controller          { return a.controller }
func (a *Actor) Destroyed() bool                  { return a.destroyed }
func (a *Actor) Transport() replication.Transport { return a.world.transport }

func (a *Actor) SetOwner(owner *Actor) { a.owner = owner }

// SetOwningConn binds the actor to a client connection.
func (a *Actor) SetOwningConn(conn replication.ConnID) { a.conn = conn }

// OwningConn walks the owner chain for the first bound connection.
func (a *Actor) OwningConn() replication.ConnID {
	for cur := a; cur != nil; cur = cur.owner {
		if cur.conn != "" {
			return cur.conn
		}
	}
	return ""
}

// IsLocallyOwned walks the owner chain on a proxy.
func (a *Actor) IsLocallyOwned() bool {
	for cur := a; cur != nil; cur = cur.owner {
		if cur.locallyOwned {
			return true
		}
	}
	return false
}

// IsLocallyControlled reports whether a local player drives this actor.
func (a *Actor) IsLocallyControlled() bool {
	return a.controller != nil && a.controller.Local
}

func (a *Actor) Location() mgl64.Vec3 { return a.location }
func (a *Actor) Rotation() Rotator    { return a.rotation }

// UpVector is world up; actors here never roll or pitch their root.
func (a *Actor) UpVector() mgl64.Vec3 { return mgl64.Vec3{0, 0, 1} }

func (a *Actor) SetLocation(loc mgl64.Vec3) {
	if a.location == loc {
		return
	}
	a.location = loc
	a.movementDirty = true
}

func (a *Actor) SetRotation(rot Rotator) {
	if a.rotation == rot {
		return
	}
	a.rotation = rot
	a.movementDirty = true
}

// TakeMovementDirty reports and clears a pending location or rotation change.
func (a *Actor) TakeMovementDirty() bool {
	d := a.movementDirty
	a.movementDirty = false
	return d
}

func (a *Actor) Replicates() bool            { return a.replicates }
func (a *Actor) SetReplicates(v bool)        { a.replicates = v }
func (a *Actor) ReplicatesMovement() bool    { return a.replicateMovement }
func (a *Actor) SetReplicateMovement(v bool) { a.replicateMovement = v }
func (a *Actor) Mobility() Mobility          { return a.mobility }
func (a *Actor) SetMobility(m Mobility)      { a.mobility = m }
func (a *Actor) SimulatesPhysics() bool      { return a.simulatePhysics }
func (a *Actor) SetSimulatePhysics(v bool)   { a.simulatePhysics = v }
func (a *Actor) Mesh() string                { return a.mesh }
func (a *Actor) SetMesh(name string)         { a.mesh = name }

// NetSpawned reports whether remote peers have been told about the actor.
func (a *Actor) NetSpawned() bool { return a.netSpawned }
func (a *Actor) MarkNetSpawned()  { a.netSpawned = true }
