package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"multiplayer/protocol"
	"multiplayer/replication"
	"multiplayer/world"
)

// GameMode decides what a server world contains and who gets which pawn.
type GameMode interface {
	StartPlay(w *world.World) error
	PostLogin(w *world.World, c *world.Controller) error
	Logout(w *world.World, c *world.Controller)
}

type drop struct {
	conn   replication.ConnID
	reason error
}

// Server is the authority loop of a hosting process. One goroutine owns the
// world; connections talk to it only through Inbox.
type Server struct {
	Inbox          chan any
	tickHz         int
	broadcastEvery int
	world          *world.World
	mode           GameMode
	clients        map[replication.ConnID]Conn
	controllers    map[replication.ConnID]*world.Controller
	nextID         int
	tick           int
	drops          []drop
	players        atomic.Int32
	logger         *log.Logger

	quit     chan struct{}
	stopOnce sync.Once
}

// NewServer wraps a server-role world and installs itself as its transport.
func NewServer(w *world.World, mode GameMode, logger *log.Logger) *Server {
	broadcastEvery := protocol.SimTickHz / protocol.BroadcastHz
	if broadcastEvery <= 0 {
		broadcastEvery = 1
	}
	if logger == nil {
		logger = w.Logger()
	}
	s := &Server{
		Inbox:          make(chan any, 256),
		tickHz:         protocol.SimTickHz,
		broadcastEvery: broadcastEvery,
		world:          w,
		mode:           mode,
		clients:        make(map[replication.ConnID]Conn),
		controllers:    make(map[replication.ConnID]*world.Controller),
		nextID:         1,
		logger:         logger,
		quit:           make(chan struct{}),
	}
	w.SetTransport(s)
	return s
}

func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}

// Done is closed when the server stops.
func (s *Server) Done() <-chan struct{} { return s.quit }

// NumPlayers returns the current number of connected clients.
func (s *Server) NumPlayers() int {
	return int(s.players.Load())
}

func (s *Server) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(s.tickHz))
	defer ticker.Stop()
	defer s.closeAll()

	dt := time.Second / time.Duration(s.tickHz)
	for {
		select {
		case <-s.quit:
			return
		case cmd := <-s.Inbox:
			s.handleCommand(cmd)
		case <-ticker.C:
			s.Advance(dt)
		}
	}
}

// Advance steps the world once and flushes replication on broadcast ticks.
// Run calls it from the ticker; tests call it directly.
func (s *Server) Advance(dt time.Duration) {
	s.world.Step(dt)
	s.tick++
	if s.tick%s.broadcastEvery == 0 {
		s.flush()
	}
	s.processDrops()
}

func (s *Server) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case Join:
		c.Reply <- s.handleJoin(c)
	case Message:
		s.handleMessage(c.Conn, c.Data)
		s.flushLifecycle()
	case Leave:
		s.handleLeave(c.Conn)
	case Do:
		c.Fn(s.world)
		s.flushLifecycle()
		if c.Done != nil {
			close(c.Done)
		}
	}
	s.processDrops()
}

func (s *Server) handleJoin(c Join) JoinResult {
	id := replication.ConnID(fmt.Sprintf("c%d", s.nextID))
	s.nextID++
	name := c.Name
	if name == "" {
		name = fmt.Sprintf("Player %s", id)
	}
	s.clients[id] = c.Conn
	s.players.Store(int32(len(s.clients)))

	s.send(id, protocol.MsgWelcome, protocol.Welcome{Conn: id, TickHz: s.tickHz, Map: s.world.Map()})
	for _, a := range s.world.Actors() {
		if a.NetSpawned() {
			s.sendSpawn(id, a)
		}
	}

	ctrl := &world.Controller{Name: name, Conn: id}
	s.controllers[id] = ctrl
	if s.mode != nil {
		if err := s.mode.PostLogin(s.world, ctrl); err != nil {
			s.logger.Printf("[server] post login %s: %v", id, err)
		}
	}
	s.flushLifecycle()
	s.logger.Printf("[server] %s joined as %q", id, name)
	return JoinResult{Conn: id}
}

func (s *Server) handleLeave(id replication.ConnID) {
	c, ok := s.clients[id]
	if !ok {
		return
	}
	if ctrl, ok := s.controllers[id]; ok {
		if s.mode != nil {
			s.mode.Logout(s.world, ctrl)
		}
		delete(s.controllers, id)
	}
	_ = c.Close()
	delete(s.clients, id)
	s.players.Store(int32(len(s.clients)))
	s.flushLifecycle()
	s.logger.Printf("[server] %s left", id)
}

func (s *Server) handleMessage(id replication.ConnID, b []byte) {
	if _, ok := s.clients[id]; !ok {
		return
	}
	env, err := protocol.DecodeEnvelope(b)
	if err != nil {
		s.logger.Printf("[server] %s: %v", id, err)
		return
	}
	switch env.T {
	case protocol.MsgRPC:
		msg, err := protocol.DecodePayload[protocol.RPC](env)
		if err != nil {
			s.logger.Printf("[server] %s: %v", id, err)
			return
		}
		a, ok := s.world.Actor(msg.Call.Object)
		if !ok {
			return
		}
		if err := a.Table().Receive(context.Background(), a, s, id, msg.Call); err != nil {
			s.logger.Printf("[RPC] %s %s: %v", id, msg.Call.Name, err)
		}
	case protocol.MsgHello:
	default:
		s.logger.Printf("[server] %s: unexpected %q", id, env.T)
	}
}

// flushLifecycle tells clients about destroyed actors and about replicated
// actors they have not seen yet.
func (s *Server) flushLifecycle() {
	for _, a := range s.world.TakeDestroyed() {
		s.broadcast(protocol.MsgDestroy, protocol.Destroy{ID: a.ID()})
	}
	for _, a := range s.world.Actors() {
		if !a.Replicates() || a.NetSpawned() {
			continue
		}
		a.MarkNetSpawned()
		for id := range s.clients {
			s.sendSpawn(id, a)
		}
		if _, err := a.Table().Collect(); err != nil {
			s.logger.Printf("[server] collect %s: %v", a.ID(), err)
		}
		a.TakeMovementDirty()
	}
}

func (s *Server) flush() {
	s.flushLifecycle()
	upd := protocol.Replicate{Tick: s.tick}
	for _, a := range s.world.Actors() {
		if !a.NetSpawned() {
			continue
		}
		fields, err := a.Table().Collect()
		if err != nil {
			s.logger.Printf("[server] collect %s: %v", a.ID(), err)
			continue
		}
		moved := a.TakeMovementDirty() && a.ReplicatesMovement()
		if len(fields) == 0 && !moved {
			continue
		}
		u := protocol.ActorUpdate{ID: a.ID(), Fields: fields}
		if moved {
			loc, rot := a.Location(), a.Rotation()
			u.Location, u.Rotation = &loc, &rot
		}
		upd.Actors = append(upd.Actors, u)
	}
	if len(upd.Actors) > 0 {
		s.broadcast(protocol.MsgReplicate, upd)
	}
}

func (s *Server) sendSpawn(id replication.ConnID, a *world.Actor) {
	fields, err := a.Table().Snapshot()
	if err != nil {
		s.logger.Printf("[server] snapshot %s: %v", a.ID(), err)
		return
	}
	ctrl := a.Controller()
	s.send(id, protocol.MsgSpawn, protocol.Spawn{
		ID:                a.ID(),
		Type:              a.Type(),
		Owned:             a.OwningConn() == id,
		Controlled:        ctrl != nil && ctrl.Conn == id,
		Location:          a.Location(),
		Rotation:          a.Rotation(),
		ReplicateMovement: a.ReplicatesMovement(),
		SimulatePhysics:   a.SimulatesPhysics(),
		Movable:           a.Mobility() == world.Movable,
		Mesh:              a.Mesh(),
		Fields:            fields,
	})
}

func (s *Server) send(id replication.ConnID, t string, payload any) {
	c, ok := s.clients[id]
	if !ok {
		return
	}
	b, err := protocol.Encode(t, payload)
	if err != nil {
		s.logger.Printf("[server] encode %s: %v", t, err)
		return
	}
	if err := c.Send(b); err != nil {
		s.drops = append(s.drops, drop{conn: id})
	}
}

func (s *Server) broadcast(t string, payload any) {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		s.logger.Printf("[server] encode %s: %v", t, err)
		return
	}
	for id, c := range s.clients {
		if err := c.Send(b); err != nil {
			s.drops = append(s.drops, drop{conn: id})
		}
	}
}

// processDrops removes connections that failed or were disconnected during
// the last command or tick.
func (s *Server) processDrops() {
	for len(s.drops) > 0 {
		d := s.drops[0]
		s.drops = s.drops[1:]
		if d.reason != nil {
			s.send(d.conn, protocol.MsgDisconnect, protocol.Disconnect{Reason: d.reason.Error()})
			s.logger.Printf("[server] disconnecting %s: %v", d.conn, d.reason)
		}
		s.handleLeave(d.conn)
	}
}

func (s *Server) closeAll() {
	for id, c := range s.clients {
		_ = c.Close()
		delete(s.clients, id)
	}
	s.players.Store(0)
}

// SendToServer implements replication.Transport. The server never sends to
// itself.
func (s *Server) SendToServer(replication.Call) error {
	return fmt.Errorf("send to server: %w", replication.ErrWrongContext)
}

func (s *Server) SendToConn(conn replication.ConnID, call replication.Call) error {
	if _, ok := s.clients[conn]; !ok {
		return fmt.Errorf("send to %s: %w", conn, replication.ErrNoOwningConnection)
	}
	s.flushLifecycle()
	s.send(conn, protocol.MsgRPC, protocol.RPC{Call: call})
	return nil
}

func (s *Server) Broadcast(call replication.Call) error {
	s.flushLifecycle()
	s.broadcast(protocol.MsgRPC, protocol.RPC{Call: call})
	return nil
}

// Disconnect drops conn once the current command finishes.
func (s *Server) Disconnect(conn replication.ConnID, reason error) {
	s.drops = append(s.drops, drop{conn: conn, reason: reason})
}
