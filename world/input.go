package world

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"multiplayer/replication"
)

// Action names an input action such as "Move" or "Look".
type Action string

type TriggerEvent uint8

const (
	Triggered TriggerEvent = iota
	Completed
)

// Controller is a player's seat in the world. Local is true only in the
// process where that player sits.
type Controller struct {
	Name      string
	Conn      replication.ConnID
	Local     bool
	Pawn      *Actor
	Input     *InputComponent
	Subsystem *InputSubsystem

	ControlRotation Rotator
}

// AddYawInput and AddPitchInput turn the view, not the pawn.
func (c *Controller) AddYawInput(v float64) { c.ControlRotation.Yaw += v }

func (c *Controller) AddPitchInput(v float64) {
	p := c.ControlRotation.Pitch + v
	c.ControlRotation.Pitch = mgl64.Clamp(p, -89, 89)
}

// MappingContext is a named set of action mappings from the platform.
type MappingContext struct {
	Name     string
	Priority int
}

// InputSubsystem tracks the mapping contexts active for a local player.
// Actions are delivered only while at least one context is active.
type InputSubsystem struct {
	contexts []MappingContext
}

func (s *InputSubsystem) AddMappingContext(name string, priority int) {
	for _, c := range s.contexts {
		if c.Name == name {
			return
		}
	}
	s.contexts = append(s.contexts, MappingContext{Name: name, Priority: priority})
	sort.SliceStable(s.contexts, func(i, j int) bool { return s.contexts[i].Priority > s.contexts[j].Priority })
}

func (s *InputSubsystem) Contexts() []MappingContext {
	return append([]MappingContext(nil), s.contexts...)
}

type binding struct {
	action Action
	event  TriggerEvent
	fn     func(mgl64.Vec2)
}

// InputComponent routes action values to bound handlers.
type InputComponent struct {
	bindings []binding
}

func NewInputComponent() *InputComponent { return &InputComponent{} }

func (ic *InputComponent) BindAction(a Action, ev TriggerEvent, fn func(mgl64.Vec2)) {
	ic.bindings = append(ic.bindings, binding{action: a, event: ev, fn: fn})
}

// Dispatch runs every handler bound to a and ev and returns how many ran.
func (ic *InputComponent) Dispatch(a Action, ev TriggerEvent, v mgl64.Vec2) int {
	n := 0
	for _, b := range ic.bindings {
		if b.action == a && b.event == ev {
			b.fn(v)
			n++
		}
	}
	return n
}

// Feed delivers one input sample from the platform to the possessed pawn.
func (c *Controller) Feed(a Action, ev TriggerEvent, v mgl64.Vec2) int {
	if c.Input == nil || c.Subsystem == nil || len(c.Subsystem.contexts) == 0 {
		return 0
	}
	return c.Input.Dispatch(a, ev, v)
}
