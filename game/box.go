package game

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"

	"multiplayer/replication"
	"multiplayer/world"
)

const BoxType = "MyBox"

// Box counts down a replicated value every two seconds and, independently,
// multicasts an explosion every two seconds.
type Box struct {
	*world.Actor

	ReplicatedVar *replication.Field[float64]
	explode       *replication.RPC[struct{}]

	decreaseTimer world.TimerHandle
	explodeTimer  world.TimerHandle

	reactions  int
	explosions int
}

func NewBox(a *world.Actor) world.Behavior {
	b := &Box{Actor: a}
	a.SetReplicates(true)
	a.SetReplicateMovement(true)
	b.ReplicatedVar = replication.NewField(a.Table(), "ReplicatedVar", BoxInitialValue, b.OnRepReplicatedVar)
	b.explode = replication.NewRPC(a.Table(), "MulticastRPCExplode", replication.RunOnAllClients, b.multicastExplodeImpl)
	return b
}

// Reactions counts OnRepReplicatedVar runs in this process.
func (b *Box) Reactions() int { return b.reactions }

// Explosions counts MulticastRPCExplode runs in this process.
func (b *Box) Explosions() int { return b.explosions }

func (b *Box) BeginPlay() {
	if !b.HasAuthority() {
		return
	}
	b.World().SetTimer(b.Actor, &b.decreaseTimer, BoxDecreaseInterval, b.DecreaseReplicatedVar)
	b.World().SetTimer(b.Actor, &b.explodeTimer, BoxExplodeInterval, b.MulticastRPCExplode)
}

// DecreaseReplicatedVar lowers the counter by one and re-arms while it is
// still positive.
func (b *Box) DecreaseReplicatedVar() {
	if !b.HasAuthority() {
		return
	}
	b.ReplicatedVar.Set(b.Role(), b.ReplicatedVar.Get()-1)
	b.ReplicatedVar.Notify()
	if b.ReplicatedVar.Get() > 0 {
		b.World().SetTimer(b.Actor, &b.decreaseTimer, BoxDecreaseInterval, b.DecreaseReplicatedVar)
	}
}

func (b *Box) MulticastRPCExplode() {
	if err := b.explode.Invoke(context.Background(), b, b.Transport(), struct{}{}); err != nil {
		b.World().Logger().Printf("[box] MulticastRPCExplode: %v", err)
	}
}

func (b *Box) multicastExplodeImpl(struct{}) {
	b.explosions++
	if b.HasAuthority() {
		b.World().Logger().Printf("[server] MulticastRPCExplode %s", b.ID())
		b.World().SetTimer(b.Actor, &b.explodeTimer, BoxExplodeInterval, b.MulticastRPCExplode)
		return
	}
	b.World().Logger().Printf("[client] MulticastRPCExplode %s", b.ID())
}

// OnRepReplicatedVar runs on every process when the counter changes. The
// server moves the box up; movement replication carries that to clients.
func (b *Box) OnRepReplicatedVar() {
	b.reactions++
	if b.HasAuthority() {
		b.SetLocation(b.Location().Add(mgl64.Vec3{0, 0, BoxRiseOnChange}))
		b.World().Logger().Printf("[server] OnRep_ReplicatedVar %s = %.0f", b.ID(), b.ReplicatedVar.Get())
		return
	}
	b.World().Logger().Printf("[client] OnRep_ReplicatedVar %s = %.0f", b.ID(), b.ReplicatedVar.Get())
}
