package game

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"multiplayer/replication"
	"multiplayer/world"
)

type recordingTransport struct {
	toServer []replication.Call
	toConn   map[replication.ConnID][]replication.Call
	all      []replication.Call
}

func (r *recordingTransport) SendToServer(c replication.Call) error {
	r.toServer = append(r.toServer, c)
	return nil
}

func (r *recordingTransport) SendToConn(id replication.ConnID, c replication.Call) error {
	if r.toConn == nil {
		r.toConn = make(map[replication.ConnID][]replication.Call)
	}
	r.toConn[id] = append(r.toConn[id], c)
	return nil
}

func (r *recordingTransport) Broadcast(c replication.Call) error {
	r.all = append(r.all, c)
	return nil
}

func (r *recordingTransport) Disconnect(replication.ConnID, error) {}

func spawnCharacter(t *testing.T, w *world.World, conn replication.ConnID) *Character {
	t.Helper()
	a, err := w.Spawn(CharacterType, world.SpawnParams{Conn: conn})
	if err != nil {
		t.Fatalf("spawn character: %v", err)
	}
	return a.Behavior().(*Character)
}

func props(w *world.World) []*world.Actor {
	var out []*world.Actor
	for _, a := range w.Actors() {
		if a.Type() == PropType {
			out = append(out, a)
		}
	}
	return out
}

func TestServerRPCTestSpawnsPhysicsProp(t *testing.T) {
	w := newServerWorld(t)
	c := spawnCharacter(t, w, "c1")

	if err := c.ServerRPCTest(context.Background(), 50); err != nil {
		t.Fatalf("ServerRPCTest: %v", err)
	}
	ps := props(w)
	if len(ps) != 1 {
		t.Fatalf("props = %d, want 1", len(ps))
	}
	p := ps[0]
	want := mgl64.Vec3{SpawnForwardOffset, 0, SpawnUpOffset}
	if p.Location().Sub(want).Len() > 1e-9 {
		t.Fatalf("prop at %v, want %v", p.Location(), want)
	}
	if !p.Replicates() || !p.ReplicatesMovement() || !p.SimulatesPhysics() || p.Mobility() != world.Movable {
		t.Fatalf("prop flags: replicates=%v movement=%v physics=%v mobility=%v",
			p.Replicates(), p.ReplicatesMovement(), p.SimulatesPhysics(), p.Mobility())
	}
	if p.Mesh() != "Sphere" {
		t.Fatalf("mesh = %q, want Sphere", p.Mesh())
	}
	if p.Owner() != c.Actor || p.OwningConn() != "c1" {
		t.Fatalf("prop owner = %v conn = %q", p.Owner(), p.OwningConn())
	}
}

func TestServerRPCTestBounds(t *testing.T) {
	cases := []struct {
		v    int
		want bool
	}{
		{-1, false},
		{0, true},
		{100, true},
		{101, false},
	}
	for _, tc := range cases {
		w := newServerWorld(t)
		c := spawnCharacter(t, w, "c1")
		err := c.ServerRPCTest(context.Background(), tc.v)
		if tc.want && err != nil {
			t.Fatalf("ServerRPCTest(%d): %v", tc.v, err)
		}
		if !tc.want && !errors.Is(err, replication.ErrRejected) {
			t.Fatalf("ServerRPCTest(%d) err = %v, want ErrRejected", tc.v, err)
		}
		if n := len(props(w)); (n == 1) != tc.want {
			t.Fatalf("ServerRPCTest(%d) spawned %d props", tc.v, n)
		}
	}
}

func TestServerRPCTestWithoutMeshSpawnsNothing(t *testing.T) {
	w := world.New(replication.RoleServer, nil)
	Register(w, Assets{})
	c := spawnCharacter(t, w, "c1")
	if err := c.ServerRPCTest(context.Background(), 10); err != nil {
		t.Fatalf("ServerRPCTest: %v", err)
	}
	if n := len(props(w)); n != 0 {
		t.Fatalf("props = %d, want 0", n)
	}
}

func TestClientRPCFunctionGoesToOwningConnection(t *testing.T) {
	w := newServerWorld(t)
	tr := &recordingTransport{}
	w.SetTransport(tr)
	c := spawnCharacter(t, w, "c2")

	if err := c.ClientRPCFunction(context.Background()); err != nil {
		t.Fatalf("ClientRPCFunction: %v", err)
	}
	if len(tr.toConn["c2"]) != 1 || len(tr.all) != 0 {
		t.Fatalf("sent toConn=%v all=%v", tr.toConn, tr.all)
	}
	if len(c.Effects) != 0 {
		t.Fatalf("effect played on the server")
	}
}

func TestClientRPCFunctionWithoutOwner(t *testing.T) {
	w := newServerWorld(t)
	w.SetTransport(&recordingTransport{})
	c := spawnCharacter(t, w, "")
	err := c.ClientRPCFunction(context.Background())
	if !errors.Is(err, replication.ErrNoOwningConnection) {
		t.Fatalf("err = %v, want ErrNoOwningConnection", err)
	}
}

func newProxyCharacter(t *testing.T, assets Assets, owned bool) (*world.World, *Character, *recordingTransport) {
	t.Helper()
	w := world.New(replication.RoleRemoteProxy, nil)
	Register(w, assets)
	tr := &recordingTransport{}
	w.SetTransport(tr)
	a, err := w.SpawnProxy(world.ProxyParams{ID: "char", Type: CharacterType, LocallyOwned: owned})
	if err != nil {
		t.Fatalf("spawn proxy: %v", err)
	}
	return w, a.Behavior().(*Character), tr
}

func TestClientRPCFunctionPlaysEffectOnOwner(t *testing.T) {
	w, c, _ := newProxyCharacter(t, Assets{ParticleSystem: "P_Explosion"}, true)
	call := replication.Call{Object: c.ID(), Name: "ClientRPCFunction", Params: json.RawMessage(`{}`)}
	if err := c.Table().Receive(context.Background(), c, w.Transport(), "", call); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(c.Effects) != 1 || c.Effects[0].System != "P_Explosion" {
		t.Fatalf("effects = %v", c.Effects)
	}
}

func TestClientRPCFunctionWithoutParticleSystem(t *testing.T) {
	_, c, _ := newProxyCharacter(t, Assets{}, true)
	if err := c.ClientRPCFunction(context.Background()); err != nil {
		t.Fatalf("ClientRPCFunction: %v", err)
	}
	if len(c.Effects) != 0 {
		t.Fatalf("effects = %v, want none", c.Effects)
	}
}

func TestServerRPCTestFromProxySendsToServer(t *testing.T) {
	_, c, tr := newProxyCharacter(t, Assets{}, true)
	if err := c.ServerRPCTest(context.Background(), 7); err != nil {
		t.Fatalf("ServerRPCTest: %v", err)
	}
	if len(tr.toServer) != 1 || tr.toServer[0].Name != "ServerRPCTest" || string(tr.toServer[0].Params) != "7" {
		t.Fatalf("toServer = %+v", tr.toServer)
	}
}

func TestServerRPCTestFromUnownedProxy(t *testing.T) {
	_, c, tr := newProxyCharacter(t, Assets{}, false)
	err := c.ServerRPCTest(context.Background(), 7)
	if !errors.Is(err, replication.ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
	if len(tr.toServer) != 0 {
		t.Fatalf("unowned proxy sent %d calls", len(tr.toServer))
	}
}

func TestInputNeedsMappingContext(t *testing.T) {
	w := world.New(replication.RoleServer, nil)
	Register(w, Assets{})
	c := spawnCharacter(t, w, "")
	ctrl := &world.Controller{Name: "host", Local: true}
	w.Possess(ctrl, c.Actor)

	if n := ctrl.Feed(ActionMove, world.Triggered, mgl64.Vec2{0, 1}); n != 0 {
		t.Fatalf("delivered %d handlers without a mapping context", n)
	}
}

func TestLocalInputMovesServerPawn(t *testing.T) {
	w := newServerWorld(t)
	c := spawnCharacter(t, w, "")
	ctrl := &world.Controller{Name: "host", Local: true}
	w.Possess(ctrl, c.Actor)

	if got := ctrl.Subsystem.Contexts(); len(got) != 1 || got[0].Name != "IMC_Default" {
		t.Fatalf("mapping contexts = %v", got)
	}
	for i := 0; i < 20; i++ {
		if n := ctrl.Feed(ActionMove, world.Triggered, mgl64.Vec2{0, 1}); n != 1 {
			t.Fatalf("move handlers = %d, want 1", n)
		}
		w.Step(tick)
	}
	if x := c.Location().X(); x <= 0 {
		t.Fatalf("expected forward movement, x=%f", x)
	}

	ctrl.Feed(ActionLook, world.Triggered, mgl64.Vec2{90, 0})
	if yaw := ctrl.ControlRotation.Yaw; yaw != 90 {
		t.Fatalf("control yaw = %f, want 90", yaw)
	}
}

func TestLocallyControlledProxySendsServerMove(t *testing.T) {
	w, c, tr := newProxyCharacter(t, Assets{MappingContext: "IMC_Default"}, true)
	ctrl := &world.Controller{Name: "joiner", Local: true}
	w.Possess(ctrl, c.Actor)

	ctrl.Feed(ActionMove, world.Triggered, mgl64.Vec2{1, 0})
	ctrl.Feed(ActionJump, world.Triggered, mgl64.Vec2{})
	w.Step(tick)

	if len(tr.toServer) != 1 || tr.toServer[0].Name != "ServerMove" {
		t.Fatalf("toServer = %+v", tr.toServer)
	}
	var req MoveRequest
	if err := json.Unmarshal(tr.toServer[0].Params, &req); err != nil {
		t.Fatalf("decode move: %v", err)
	}
	if req.Seq != 1 || !req.Input.Jump || req.Input.Accel.Sub(mgl64.Vec3{0, 1, 0}).Len() > 1e-9 {
		t.Fatalf("move request = %+v", req)
	}
	if c.Location() != (mgl64.Vec3{}) {
		t.Fatalf("proxy moved itself to %v", c.Location())
	}
}

func TestServerMoveIgnoresStaleSequence(t *testing.T) {
	w := newServerWorld(t)
	c := spawnCharacter(t, w, "c1")

	send := func(seq uint32, x float64) {
		raw, _ := json.Marshal(MoveRequest{Seq: seq, Input: Input{Accel: mgl64.Vec3{x, 0, 0}}})
		call := replication.Call{Object: c.ID(), Name: "ServerMove", Params: raw}
		if err := c.Table().Receive(context.Background(), c, nil, "c1", call); err != nil {
			t.Fatalf("receive: %v", err)
		}
	}
	send(2, 1)
	send(1, -1)
	if c.lastInput.Accel.X() != 1 {
		t.Fatalf("stale move applied: %v", c.lastInput)
	}
}
