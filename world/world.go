// Package world is the arena that owns actors in one process: it creates
// them with a fixed role, destroys them explicitly, runs their timers and
// ticks them forward.
package world

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"

	"multiplayer/replication"
)

var (
	ErrUnknownType = errors.New("unknown actor type")
	ErrDuplicateID = errors.New("actor id already exists")
)

// Behavior is the gameplay half of an actor, built by a Constructor.
type Behavior interface {
	BeginPlay()
}

// Ticker is implemented by behaviors that advance every world step.
type Ticker interface {
	Tick(dt time.Duration)
}

// Possessable is implemented by behaviors that react to gaining a
// controller.
type Possessable interface {
	PossessedBy(c *Controller)
}

// InputSetup is implemented by behaviors that bind player input when a
// local controller possesses them.
type InputSetup interface {
	SetupPlayerInputComponent(ic *InputComponent)
}

// Constructor builds the behavior of a new actor. It runs before the actor
// is visible to the rest of the world, so replicated fields and RPCs are
// declared here.
type Constructor func(a *Actor) Behavior

// SpawnParams configures a new actor.
type SpawnParams struct {
	Owner    *Actor
	Conn     replication.ConnID
	Location mgl64.Vec3
	Rotation Rotator
}

// World holds every actor of one process.
type World struct {
	role      replication.Role
	mapName   string
	types     map[string]Constructor
	actors    map[string]*Actor
	order     []*Actor
	destroyed []*Actor
	transport replication.Transport
	logger    *log.Logger

	now     time.Duration
	timers  []*timer
	timerID uint64
	seq     uint64

	local *Controller
}

// New creates an empty world whose spawned actors take role.
func New(role replication.Role, logger *log.Logger) *World {
	if logger == nil {
		logger = log.Default()
	}
	return &World{
		role:   role,
		types:  make(map[string]Constructor),
		actors: make(map[string]*Actor),
		logger: logger,
	}
}

func (w *World) Role() replication.Role { return w.role }

func (w *World) Logger() *log.Logger { return w.logger }

func (w *World) Map() string { return w.mapName }

func (w *World) SetMap(name string) { w.mapName = name }

func (w *World) Transport() replication.Transport { return w.transport }

func (w *World) SetTransport(tr replication.Transport) { w.transport = tr }

// Register makes typeName spawnable in this world.
func (w *World) Register(typeName string, ctor Constructor) {
	w.types[typeName] = ctor
}

// Spawn creates an authoritative actor. Only a server world spawns.
func (w *World) Spawn(typeName string, params SpawnParams) (*Actor, error) {
	if w.role != replication.RoleServer {
		return nil, fmt.Errorf("spawn %s: %w", typeName, replication.ErrNotAuthority)
	}
	a, err := w.construct(ulid.Make().String(), typeName, replication.RoleServer)
	if err != nil {
		return nil, err
	}
	a.owner = params.Owner
	a.conn = params.Conn
	a.location = params.Location
	a.rotation = params.Rotation
	w.add(a)
	a.behavior.BeginPlay()
	return a, nil
}

// ProxyParams describes an actor announced by the server.
type ProxyParams struct {
	ID           string
	Type         string
	LocallyOwned bool
	Location     mgl64.Vec3
	Rotation     Rotator
	Fields       []replication.FieldValue
}

// SpawnProxy creates the local copy of a server actor, applies its initial
// field values and begins play.
func (w *World) SpawnProxy(p ProxyParams) (*Actor, error) {
	if _, ok := w.actors[p.ID]; ok {
		return nil, fmt.Errorf("spawn proxy %s: %w", p.ID, ErrDuplicateID)
	}
	a, err := w.construct(p.ID, p.Type, replication.RoleRemoteProxy)
	if err != nil {
		return nil, err
	}
	a.locallyOwned = p.LocallyOwned
	a.location = p.Location
	a.rotation = p.Rotation
	w.add(a)
	if err := a.table.Apply(p.Fields); err != nil {
		return a, fmt.Errorf("initial replication of %s: %w", p.ID, err)
	}
	a.behavior.BeginPlay()
	return a, nil
}

func (w *World) construct(id, typeName string, role replication.Role) (*Actor, error) {
	ctor, ok := w.types[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	a := &Actor{
		id:       id,
		typeName: typeName,
		role:     role,
		world:    w,
		table:    replication.NewTable(),
	}
	a.behavior = ctor(a)
	return a, nil
}

func (w *World) add(a *Actor) {
	w.actors[a.id] = a
	w.order = append(w.order, a)
}

// Destroy removes the actor and its pending timers.
func (w *World) Destroy(a *Actor) {
	if a == nil || a.destroyed {
		return
	}
	a.destroyed = true
	if a.controller != nil {
		a.controller.Pawn = nil
	}
	delete(w.actors, a.id)
	for i, cur := range w.order {
		if cur == a {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	kept := w.timers[:0]
	for _, t := range w.timers {
		if t.actor != a {
			kept = append(kept, t)
		} else if t.handle != nil && t.handle.id == t.id {
			t.handle.id = 0
		}
	}
	w.timers = kept
	if a.netSpawned {
		w.destroyed = append(w.destroyed, a)
	}
}

// Actor looks up a live actor.
func (w *World) Actor(id string) (*Actor, bool) {
	a, ok := w.actors[id]
	return a, ok
}

// Actors returns live actors in spawn order.
func (w *World) Actors() []*Actor {
	out := make([]*Actor, len(w.order))
	copy(out, w.order)
	return out
}

// TakeDestroyed returns net-spawned actors destroyed since the last call.
func (w *World) TakeDestroyed() []*Actor {
	out := w.destroyed
	w.destroyed = nil
	return out
}

// Possess hands a pawn to a controller and binds player input for a local
// controller.
func (w *World) Possess(c *Controller, pawn *Actor) {
	if c.Pawn != nil {
		c.Pawn.controller = nil
	}
	c.Pawn = pawn
	pawn.controller = c
	if c.Local {
		w.local = c
		if c.Subsystem == nil {
			c.Subsystem = &InputSubsystem{}
		}
		c.Input = NewInputComponent()
		if s, ok := pawn.behavior.(InputSetup); ok {
			s.SetupPlayerInputComponent(c.Input)
		}
	}
	if p, ok := pawn.behavior.(Possessable); ok {
		p.PossessedBy(c)
	}
}

// LocalController is the controller of the player at this process, if any.
func (w *World) LocalController() *Controller { return w.local }

// Now is the simulated time since the world started.
func (w *World) Now() time.Duration { return w.now }

// Step advances simulated time by dt, firing due timers in order, then ticks
// every actor.
func (w *World) Step(dt time.Duration) {
	target := w.now + dt
	for {
		t := w.nextDue(target)
		if t == nil {
			break
		}
		w.now = t.due
		t.handle.id = 0
		t.fn()
	}
	w.now = target
	for _, a := range w.Actors() {
		if a.destroyed {
			continue
		}
		if tk, ok := a.behavior.(Ticker); ok {
			tk.Tick(dt)
		}
	}
}
