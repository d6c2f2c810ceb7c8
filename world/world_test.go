package world

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"multiplayer/replication"
)

type counter struct {
	a       *Actor
	value   *replication.Field[float64]
	begun   int
	reacted []float64
	ticks   int
}

func (c *counter) BeginPlay()            { c.begun++ }
func (c *counter) Tick(dt time.Duration) { c.ticks++ }

func newCounter(a *Actor) Behavior {
	c := &counter{a: a}
	c.value = replication.NewField(a.Table(), "Value", 10.0, func() {
		c.reacted = append(c.reacted, c.value.Get())
	})
	return c
}

func TestSpawnAssignsServerRoleAndBeginsPlay(t *testing.T) {
	w := New(replication.RoleServer, nil)
	w.Register("Counter", newCounter)

	a, err := w.Spawn("Counter", SpawnParams{Location: mgl64.Vec3{1, 2, 3}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if a.Role() != replication.RoleServer || !a.HasAuthority() {
		t.Fatalf("role = %v, want server", a.Role())
	}
	if a.ID() == "" {
		t.Fatalf("expected generated id")
	}
	if a.Behavior().(*counter).begun != 1 {
		t.Fatalf("BeginPlay not called once")
	}
	if got, ok := w.Actor(a.ID()); !ok || got != a {
		t.Fatalf("lookup failed")
	}
}

func TestSpawnOnProxyWorldFails(t *testing.T) {
	w := New(replication.RoleRemoteProxy, nil)
	w.Register("Counter", newCounter)
	_, err := w.Spawn("Counter", SpawnParams{})
	if !errors.Is(err, replication.ErrNotAuthority) {
		t.Fatalf("err = %v, want ErrNotAuthority", err)
	}
}

func TestSpawnUnknownType(t *testing.T) {
	w := New(replication.RoleServer, nil)
	if _, err := w.Spawn("Nope", SpawnParams{}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
}

func TestSpawnProxyAppliesInitialFields(t *testing.T) {
	w := New(replication.RoleRemoteProxy, nil)
	w.Register("Counter", newCounter)

	a, err := w.SpawnProxy(ProxyParams{
		ID:     "01ABC",
		Type:   "Counter",
		Fields: []replication.FieldValue{{Name: "Value", Value: []byte("7")}},
	})
	if err != nil {
		t.Fatalf("spawn proxy: %v", err)
	}
	c := a.Behavior().(*counter)
	if a.Role() != replication.RoleRemoteProxy {
		t.Fatalf("role = %v, want remote proxy", a.Role())
	}
	if c.value.Get() != 7 || len(c.reacted) != 1 {
		t.Fatalf("value=%v reacted=%v", c.value.Get(), c.reacted)
	}
	if _, err := w.SpawnProxy(ProxyParams{ID: "01ABC", Type: "Counter"}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
}

func TestOwnerChain(t *testing.T) {
	w := New(replication.RoleServer, nil)
	w.Register("Counter", newCounter)
	pawn, _ := w.Spawn("Counter", SpawnParams{Conn: "c1"})
	prop, _ := w.Spawn("Counter", SpawnParams{Owner: pawn})
	loose, _ := w.Spawn("Counter", SpawnParams{})

	if prop.OwningConn() != "c1" {
		t.Fatalf("prop owning conn = %q, want c1", prop.OwningConn())
	}
	if loose.OwningConn() != "" {
		t.Fatalf("loose owning conn = %q, want empty", loose.OwningConn())
	}
}

func TestTimersFireInOrderAndRearm(t *testing.T) {
	w := New(replication.RoleServer, nil)
	w.Register("Counter", newCounter)
	a, _ := w.Spawn("Counter", SpawnParams{})

	var fired []string
	var h1, h2 TimerHandle
	var rearm func()
	rearm = func() {
		fired = append(fired, "a")
		if len(fired) < 5 {
			w.SetTimer(a, &h1, 2*time.Second, rearm)
		}
	}
	w.SetTimer(a, &h1, 2*time.Second, rearm)
	w.SetTimer(a, &h2, 3*time.Second, func() { fired = append(fired, "b") })

	w.Step(5 * time.Second)
	want := []string{"a", "b", "a"}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired = %v, want %v", fired, want)
		}
	}
	if !h1.Active() || h2.Active() {
		t.Fatalf("h1 active=%v h2 active=%v", h1.Active(), h2.Active())
	}
}

func TestSetTimerReplacesPendingHandle(t *testing.T) {
	w := New(replication.RoleServer, nil)
	w.Register("Counter", newCounter)
	a, _ := w.Spawn("Counter", SpawnParams{})

	var fired []string
	var h TimerHandle
	w.SetTimer(a, &h, time.Second, func() { fired = append(fired, "first") })
	w.SetTimer(a, &h, time.Second, func() { fired = append(fired, "second") })
	w.Step(2 * time.Second)

	if len(fired) != 1 || fired[0] != "second" {
		t.Fatalf("fired = %v, want [second]", fired)
	}
}

func TestDestroyDropsTimersAndRecordsNetDestroy(t *testing.T) {
	w := New(replication.RoleServer, nil)
	w.Register("Counter", newCounter)
	a, _ := w.Spawn("Counter", SpawnParams{})
	a.MarkNetSpawned()

	var h TimerHandle
	fired := false
	w.SetTimer(a, &h, time.Second, func() { fired = true })
	w.Destroy(a)
	w.Step(2 * time.Second)

	if fired {
		t.Fatalf("timer fired for destroyed actor")
	}
	if h.Active() || w.PendingTimers() != 0 {
		t.Fatalf("handle active=%v pending=%d after destroy", h.Active(), w.PendingTimers())
	}
	if _, ok := w.Actor(a.ID()); ok {
		t.Fatalf("destroyed actor still present")
	}
	gone := w.TakeDestroyed()
	if len(gone) != 1 || gone[0] != a {
		t.Fatalf("destroyed = %v", gone)
	}
	if len(w.TakeDestroyed()) != 0 {
		t.Fatalf("TakeDestroyed did not clear")
	}
}

func TestStepTicksActors(t *testing.T) {
	w := New(replication.RoleServer, nil)
	w.Register("Counter", newCounter)
	a, _ := w.Spawn("Counter", SpawnParams{})
	w.Step(25 * time.Millisecond)
	w.Step(25 * time.Millisecond)
	if got := a.Behavior().(*counter).ticks; got != 2 {
		t.Fatalf("ticks = %d, want 2", got)
	}
	if w.Now() != 50*time.Millisecond {
		t.Fatalf("now = %v", w.Now())
	}
}

func TestYawBasis(t *testing.T) {
	fwd, right := Rotator{Yaw: 90}.YawBasis()
	if fwd.Sub(mgl64.Vec3{0, 1, 0}).Len() > 1e-9 {
		t.Fatalf("forward = %v", fwd)
	}
	if right.Sub(mgl64.Vec3{-1, 0, 0}).Len() > 1e-9 {
		t.Fatalf("right = %v", right)
	}
}

func TestControllerFeedNeedsMappingContext(t *testing.T) {
	w := New(replication.RoleServer, nil)
	w.Register("Counter", newCounter)
	a, _ := w.Spawn("Counter", SpawnParams{})

	c := &Controller{Local: true}
	w.Possess(c, a)
	got := 0
	c.Input.BindAction("Move", Triggered, func(mgl64.Vec2) { got++ })

	if n := c.Feed("Move", Triggered, mgl64.Vec2{1, 0}); n != 0 {
		t.Fatalf("delivered %d without a mapping context", n)
	}
	c.Subsystem.AddMappingContext("Default", 0)
	if n := c.Feed("Move", Triggered, mgl64.Vec2{1, 0}); n != 1 || got != 1 {
		t.Fatalf("delivered %d, handler ran %d", n, got)
	}
	if w.LocalController() != c || !a.IsLocallyControlled() {
		t.Fatalf("local controller not recorded")
	}
}
