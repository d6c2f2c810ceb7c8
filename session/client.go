package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"multiplayer/protocol"
	"multiplayer/replication"
	"multiplayer/world"
)

var ErrClosed = errors.New("connection closed")

// Client is the loop of a joined process. Its world only holds remote
// proxies; the server's messages are the only way they change.
type Client struct {
	Inbox  chan any
	conn   Conn
	world  *world.World
	local  *world.Controller
	id     replication.ConnID
	tickHz int
	logger *log.Logger

	welcomed  chan struct{}
	quit      chan struct{}
	stopOnce  sync.Once
	mu        sync.Mutex
	closedErr error
}

// NewClient wraps a proxy-role world. local, if set, possesses whichever
// pawn the server marks as controlled by this connection.
func NewClient(w *world.World, local *world.Controller, logger *log.Logger) *Client {
	if logger == nil {
		logger = w.Logger()
	}
	c := &Client{
		Inbox:    make(chan any, 256),
		world:    w,
		local:    local,
		tickHz:   protocol.SimTickHz,
		logger:   logger,
		welcomed: make(chan struct{}),
		quit:     make(chan struct{}),
	}
	w.SetTransport(c)
	return c
}

// Attach binds the connection and sends hello.
func (c *Client) Attach(conn Conn, name string) error {
	c.conn = conn
	b, err := protocol.Encode(protocol.MsgHello, protocol.Hello{V: protocol.Version, Name: name})
	if err != nil {
		return err
	}
	return conn.Send(b)
}

func (c *Client) Stop() {
	c.stopOnce.Do(func() { close(c.quit) })
}

func (c *Client) Done() <-chan struct{} { return c.quit }

// Welcomed is closed once the server has assigned a connection id.
func (c *Client) Welcomed() <-chan struct{} { return c.welcomed }

// ConnID is the id the server assigned, empty before welcome.
func (c *Client) ConnID() replication.ConnID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Err is why the client stopped, if it did.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedErr
}

func (c *Client) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(c.tickHz))
	defer ticker.Stop()
	defer func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}()

	dt := time.Second / time.Duration(c.tickHz)
	for {
		select {
		case <-c.quit:
			return
		case cmd := <-c.Inbox:
			c.handleCommand(cmd)
		case <-ticker.C:
			c.world.Step(dt)
		}
	}
}

func (c *Client) handleCommand(cmd any) {
	switch m := cmd.(type) {
	case Message:
		c.handleMessage(m.Data)
	case Closed:
		err := m.Err
		if err == nil {
			err = ErrClosed
		}
		c.shutdown(err)
	case Do:
		m.Fn(c.world)
		if m.Done != nil {
			close(m.Done)
		}
	}
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	if c.closedErr == nil {
		c.closedErr = err
	}
	c.mu.Unlock()
	c.logger.Printf("[client] closed: %v", err)
	c.Stop()
}

func (c *Client) handleMessage(b []byte) {
	env, err := protocol.DecodeEnvelope(b)
	if err != nil {
		c.logger.Printf("[client] %v", err)
		return
	}
	switch env.T {
	case protocol.MsgWelcome:
		msg, err := protocol.DecodePayload[protocol.Welcome](env)
		if err != nil {
			c.logger.Printf("[client] %v", err)
			return
		}
		c.mu.Lock()
		c.id = msg.Conn
		c.mu.Unlock()
		c.world.SetMap(msg.Map)
		if c.local != nil {
			c.local.Conn = msg.Conn
		}
		select {
		case <-c.welcomed:
		default:
			close(c.welcomed)
		}

	case protocol.MsgSpawn:
		msg, err := protocol.DecodePayload[protocol.Spawn](env)
		if err != nil {
			c.logger.Printf("[client] %v", err)
			return
		}
		c.spawn(msg)

	case protocol.MsgDestroy:
		msg, err := protocol.DecodePayload[protocol.Destroy](env)
		if err != nil {
			return
		}
		if a, ok := c.world.Actor(msg.ID); ok {
			c.world.Destroy(a)
		}

	case protocol.MsgReplicate:
		msg, err := protocol.DecodePayload[protocol.Replicate](env)
		if err != nil {
			c.logger.Printf("[client] %v", err)
			return
		}
		for _, u := range msg.Actors {
			c.apply(u)
		}

	case protocol.MsgRPC:
		msg, err := protocol.DecodePayload[protocol.RPC](env)
		if err != nil {
			c.logger.Printf("[client] %v", err)
			return
		}
		a, ok := c.world.Actor(msg.Call.Object)
		if !ok {
			return
		}
		if err := a.Table().Receive(context.Background(), a, c, "", msg.Call); err != nil {
			c.logger.Printf("[RPC] %s: %v", msg.Call.Name, err)
		}

	case protocol.MsgDisconnect:
		msg, err := protocol.DecodePayload[protocol.Disconnect](env)
		if err != nil {
			c.logger.Printf("[client] %v", err)
		}
		c.shutdown(fmt.Errorf("disconnected by server: %s", msg.Reason))
	}
}

func (c *Client) spawn(msg protocol.Spawn) {
	a, err := c.world.SpawnProxy(world.ProxyParams{
		ID:           msg.ID,
		Type:         msg.Type,
		LocallyOwned: msg.Owned,
		Location:     msg.Location,
		Rotation:     msg.Rotation,
		Fields:       msg.Fields,
	})
	if err != nil {
		c.logger.Printf("[client] spawn %s: %v", msg.ID, err)
		if a == nil {
			return
		}
	}
	a.SetReplicateMovement(msg.ReplicateMovement)
	a.SetSimulatePhysics(msg.SimulatePhysics)
	a.SetMesh(msg.Mesh)
	if msg.Movable {
		a.SetMobility(world.Movable)
	}
	if msg.Controlled && c.local != nil {
		c.world.Possess(c.local, a)
	}
}

func (c *Client) apply(u protocol.ActorUpdate) {
	a, ok := c.world.Actor(u.ID)
	if !ok {
		return
	}
	if u.Location != nil {
		a.SetLocation(*u.Location)
	}
	if u.Rotation != nil {
		a.SetRotation(*u.Rotation)
	}
	if err := a.Table().Apply(u.Fields); err != nil {
		c.logger.Printf("[client] replicate %s: %v", u.ID, err)
	}
}

// SendToServer implements replication.Transport.
func (c *Client) SendToServer(call replication.Call) error {
	if c.conn == nil {
		return fmt.Errorf("send %s: %w", call.Name, ErrClosed)
	}
	b, err := protocol.Encode(protocol.MsgRPC, protocol.RPC{Call: call})
	if err != nil {
		return err
	}
	return c.conn.Send(b)
}

func (c *Client) SendToConn(replication.ConnID, replication.Call) error {
	return replication.ErrNotAuthority
}

func (c *Client) Broadcast(replication.Call) error {
	return replication.ErrNotAuthority
}

// Disconnect is a no-op: only the server drops connections.
func (c *Client) Disconnect(replication.ConnID, error) {}
