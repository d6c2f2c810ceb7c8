package game

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"multiplayer/replication"
	"multiplayer/world"
)

const (
	CharacterType = "Character"

	ActionMove world.Action = "Move"
	ActionLook world.Action = "Look"
	ActionJump world.Action = "Jump"
)

// Assets names the optional content a character uses. An empty name means
// the asset is not configured and the dependent action is skipped.
type Assets struct {
	SphereMesh     string
	ParticleSystem string
	MappingContext string
}

// Effect is a visual effect played in this process.
type Effect struct {
	System   string
	Location mgl64.Vec3
}

// MoveRequest is what the owning client's movement component sends each
// tick in place of raw input.
type MoveRequest struct {
	Seq             uint32        `json:"seq"`
	Input           Input         `json:"input"`
	ControlRotation world.Rotator `json:"controlRotation"`
}

// Character is the default pawn.
type Character struct {
	*world.Actor
	assets Assets

	pendingAccel mgl64.Vec3
	jumpHeld     bool

	lastInput Input
	lastSeq   uint32
	moveSeq   uint32

	serverRPCTest *replication.RPC[int]
	clientRPC     *replication.RPC[struct{}]
	serverMove    *replication.RPC[MoveRequest]

	Effects []Effect
}

// NewCharacter returns the constructor for CharacterType.
func NewCharacter(assets Assets) world.Constructor {
	return func(a *world.Actor) world.Behavior {
		c := &Character{Actor: a, assets: assets}
		a.SetReplicates(true)
		a.SetReplicateMovement(true)
		a.SetMobility(world.Movable)

		c.serverRPCTest = replication.NewRPC(a.Table(), "ServerRPCTest", replication.RunOnServer, c.serverRPCTestImpl).
			Validate(func(v int) bool { return v >= ServerRPCTestMin && v <= ServerRPCTestMax })
		c.clientRPC = replication.NewRPC(a.Table(), "ClientRPCFunction", replication.RunOnOwningClient, c.clientRPCImpl)
		c.serverMove = replication.NewRPC(a.Table(), "ServerMove", replication.RunOnServer, c.serverMoveImpl)
		return c
	}
}

func (c *Character) BeginPlay() {
	c.addMappingContext()
}

func (c *Character) PossessedBy(*world.Controller) {
	c.addMappingContext()
}

func (c *Character) addMappingContext() {
	ctrl := c.Controller()
	if ctrl == nil || !ctrl.Local || ctrl.Subsystem == nil || c.assets.MappingContext == "" {
		return
	}
	ctrl.Subsystem.AddMappingContext(c.assets.MappingContext, 0)
}

func (c *Character) SetupPlayerInputComponent(ic *world.InputComponent) {
	if ic == nil {
		return
	}
	ic.BindAction(ActionJump, world.Triggered, func(mgl64.Vec2) { c.Jump() })
	ic.BindAction(ActionJump, world.Completed, func(mgl64.Vec2) { c.StopJumping() })
	ic.BindAction(ActionMove, world.Triggered, c.Move)
	ic.BindAction(ActionLook, world.Triggered, c.Look)
}

// Move adds movement input along the control yaw: y forward, x right.
func (c *Character) Move(v mgl64.Vec2) {
	ctrl := c.Controller()
	if ctrl == nil {
		return
	}
	forward, right := world.Rotator{Yaw: ctrl.ControlRotation.Yaw}.YawBasis()
	c.AddMovementInput(forward, v.Y())
	c.AddMovementInput(right, v.X())
}

// Look turns the control rotation: x is yaw, y is pitch.
func (c *Character) Look(v mgl64.Vec2) {
	ctrl := c.Controller()
	if ctrl == nil {
		return
	}
	ctrl.AddYawInput(v.X())
	ctrl.AddPitchInput(v.Y())
}

func (c *Character) AddMovementInput(dir mgl64.Vec3, scale float64) {
	c.pendingAccel = c.pendingAccel.Add(dir.Mul(scale))
}

func (c *Character) Jump()        { c.jumpHeld = true }
func (c *Character) StopJumping() { c.jumpHeld = false }

// consumeInput drains the input gathered since the last tick.
func (c *Character) consumeInput() Input {
	in := Input{Accel: c.pendingAccel, Jump: c.jumpHeld}
	if l := in.Accel.Len(); l > 1 {
		in.Accel = in.Accel.Mul(1 / l)
	}
	c.pendingAccel = mgl64.Vec3{}
	return in
}

func (c *Character) Tick(dt time.Duration) {
	if c.IsLocallyControlled() {
		in := c.consumeInput()
		if !c.HasAuthority() {
			c.moveSeq++
			req := MoveRequest{Seq: c.moveSeq, Input: in, ControlRotation: c.Controller().ControlRotation}
			if err := c.serverMove.Invoke(context.Background(), c, c.Transport(), req); err != nil {
				c.World().Logger().Printf("[client] ServerMove: %v", err)
			}
			return
		}
		c.lastInput = in
	}
	if c.HasAuthority() {
		Step(c.Actor, c.lastInput, dt)
	}
}

func (c *Character) serverMoveImpl(req MoveRequest) {
	// Duplicate or stale moves are ignored.
	if req.Seq != 0 && req.Seq <= c.lastSeq {
		return
	}
	c.lastSeq = req.Seq
	if l := req.Input.Accel.Len(); l > 1 {
		req.Input.Accel = req.Input.Accel.Mul(1 / l)
	}
	c.lastInput = req.Input
	if ctrl := c.Controller(); ctrl != nil {
		ctrl.ControlRotation = req.ControlRotation
	}
}

// ServerRPCTest asks the server to spawn a physics sphere in front of the
// character. Values outside [0,100] get the caller disconnected.
func (c *Character) ServerRPCTest(ctx context.Context, v int) error {
	return c.serverRPCTest.Invoke(ctx, c, c.Transport(), v)
}

// ClientRPCFunction plays the particle effect on the owning client only.
func (c *Character) ClientRPCFunction(ctx context.Context) error {
	return c.clientRPC.Invoke(ctx, c, c.Transport(), struct{}{})
}

func (c *Character) serverRPCTestImpl(v int) {
	if !c.HasAuthority() || c.assets.SphereMesh == "" {
		return
	}
	loc := c.Location().
		Add(c.Rotation().Vector().Mul(SpawnForwardOffset)).
		Add(c.UpVector().Mul(SpawnUpOffset))
	prop, err := c.World().Spawn(PropType, world.SpawnParams{Owner: c.Actor, Location: loc})
	if err != nil {
		c.World().Logger().Printf("[server] ServerRPCTest(%d): %v", v, err)
		return
	}
	prop.SetReplicates(true)
	prop.SetReplicateMovement(true)
	prop.SetMobility(world.Movable)
	prop.SetMesh(c.assets.SphereMesh)
	prop.SetSimulatePhysics(true)
}

func (c *Character) clientRPCImpl(struct{}) {
	if c.assets.ParticleSystem == "" {
		return
	}
	c.Effects = append(c.Effects, Effect{System: c.assets.ParticleSystem, Location: c.Location()})
	c.World().Logger().Printf("[client] effect %s at %v", c.assets.ParticleSystem, c.Location())
}
