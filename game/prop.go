package game

import (
	"time"

	"multiplayer/world"
)

const PropType = "StaticMeshActor"

// Prop is a static-mesh actor. On the server it falls under gravity while
// simulating physics; clients see its location through movement
// replication.
type Prop struct {
	*world.Actor
}

func NewProp(a *world.Actor) world.Behavior {
	return &Prop{Actor: a}
}

func (p *Prop) BeginPlay() {}

func (p *Prop) Tick(dt time.Duration) {
	if p.HasAuthority() {
		fall(p.Actor, dt)
	}
}
