package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"multiplayer/replication"
	"multiplayer/world"
)

var (
	ErrAlreadyTraveled = errors.New("process already hosting or connected")
	ErrNotTraveled     = errors.New("process is standalone")
	ErrNoDialer        = errors.New("no dialer configured")
)

// NetMode is what a process currently is on the network.
type NetMode int

const (
	NetStandalone NetMode = iota
	NetListenServer
	NetClient
)

func (m NetMode) String() string {
	switch m {
	case NetListenServer:
		return "ListenServer"
	case NetClient:
		return "Client"
	default:
		return "Standalone"
	}
}

// Listener accepts remote connections for a hosting server. Listen returns
// once the socket is bound; accepting stops when ctx ends.
type Listener interface {
	Listen(ctx context.Context, srv *Server) error
}

// Dialer opens the connection of a joining client. Frames read from the
// returned Conn are delivered to cli.Inbox.
type Dialer interface {
	Dial(ctx context.Context, addr string, cli *Client) (Conn, error)
}

// Options configures a Process.
type Options struct {
	// Name is sent in hello and names the local controller.
	Name string
	// LocalPlayer gives the process a local player controller.
	LocalPlayer bool
	// Setup registers actor types on every world the process creates.
	Setup    func(w *world.World)
	Mode     GameMode
	Listener Listener
	Dialer   Dialer
	Logger   *log.Logger
}

// Process owns at most one world at a time and moves between standalone,
// listen server and client through travel.
type Process struct {
	opts  Options
	local *world.Controller

	mu        sync.Mutex
	mode      NetMode
	traveling bool
	server    *Server
	client    *Client
	cancel    context.CancelFunc
}

func NewProcess(opts Options) *Process {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	p := &Process{opts: opts}
	if opts.LocalPlayer {
		p.local = &world.Controller{Name: opts.Name, Local: true}
	}
	return p
}

// Role is RoleServer once hosting. Joining leaves it unchanged: the client's
// actors are proxies, the process itself is not an authority.
func (p *Process) Role() replication.Role {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == NetListenServer {
		return replication.RoleServer
	}
	return replication.RoleNone
}

func (p *Process) NetMode() NetMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// LocalPlayer returns the local player controller, or nil if the process has
// none.
func (p *Process) LocalPlayer() *world.Controller { return p.local }

func (p *Process) Server() *Server {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.server
}

func (p *Process) Client() *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client
}

// ServerTravel loads the map named by url in a new server world. With the
// listen option the process accepts remote players.
func (p *Process) ServerTravel(ctx context.Context, url string) error {
	u, err := ParseTravelURL(url)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != NetStandalone || p.traveling {
		return fmt.Errorf("server travel to %s: %w", u.Map, ErrAlreadyTraveled)
	}

	w := world.New(replication.RoleServer, p.opts.Logger)
	if p.opts.Setup != nil {
		p.opts.Setup(w)
	}
	w.SetMap(u.Map)
	srv := NewServer(w, p.opts.Mode, p.opts.Logger)
	go srv.Run()

	var startErr error
	if err := doOn(ctx, srv.Inbox, srv.Done(), func(w *world.World) {
		if p.opts.Mode == nil {
			return
		}
		if startErr = p.opts.Mode.StartPlay(w); startErr != nil {
			return
		}
		if p.local != nil {
			startErr = p.opts.Mode.PostLogin(w, p.local)
		}
	}); err != nil {
		srv.Stop()
		return err
	}
	if startErr != nil {
		srv.Stop()
		return fmt.Errorf("server travel to %s: %w", u.Map, startErr)
	}

	lctx, cancel := context.WithCancel(context.Background())
	if u.Listen() && p.opts.Listener != nil {
		if err := p.opts.Listener.Listen(lctx, srv); err != nil {
			cancel()
			srv.Stop()
			return fmt.Errorf("listen: %w", err)
		}
	}

	p.mode = NetListenServer
	p.server = srv
	p.cancel = cancel
	p.opts.Logger.Printf("[session] hosting %s (listen=%v)", u.Map, u.Listen())
	return nil
}

// ClientTravel connects to a server at addr and waits for its welcome. On
// failure the process is left as it was. The lock is not held while waiting,
// so Role and NetMode stay readable during the dial.
func (p *Process) ClientTravel(ctx context.Context, addr string) error {
	p.mu.Lock()
	if p.mode != NetStandalone || p.traveling {
		p.mu.Unlock()
		return fmt.Errorf("client travel to %s: %w", addr, ErrAlreadyTraveled)
	}
	if p.opts.Dialer == nil {
		p.mu.Unlock()
		return fmt.Errorf("client travel to %s: %w", addr, ErrNoDialer)
	}
	p.traveling = true
	p.mu.Unlock()

	cli, err := p.connect(ctx, addr)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.traveling = false
	if err != nil {
		return fmt.Errorf("client travel to %s: %w", addr, err)
	}
	p.mode = NetClient
	p.client = cli
	p.opts.Logger.Printf("[session] joined %s as %s", addr, cli.ConnID())
	return nil
}

func (p *Process) connect(ctx context.Context, addr string) (*Client, error) {
	w := world.New(replication.RoleRemoteProxy, p.opts.Logger)
	if p.opts.Setup != nil {
		p.opts.Setup(w)
	}
	cli := NewClient(w, p.local, p.opts.Logger)
	conn, err := p.opts.Dialer.Dial(ctx, addr, cli)
	if err != nil {
		return nil, err
	}
	if err := cli.Attach(conn, p.opts.Name); err != nil {
		_ = conn.Close()
		return nil, err
	}
	go cli.Run()

	select {
	case <-cli.Welcomed():
		return cli, nil
	case <-cli.Done():
		if err := cli.Err(); err != nil {
			return nil, err
		}
		return nil, ErrClosed
	case <-ctx.Done():
		cli.Stop()
		return nil, ctx.Err()
	}
}

// Do runs fn on the loop that owns the current world and waits for it.
func (p *Process) Do(ctx context.Context, fn func(w *world.World)) error {
	p.mu.Lock()
	var inbox chan any
	var done <-chan struct{}
	switch p.mode {
	case NetListenServer:
		inbox, done = p.server.Inbox, p.server.Done()
	case NetClient:
		inbox, done = p.client.Inbox, p.client.Done()
	}
	p.mu.Unlock()
	if inbox == nil {
		return ErrNotTraveled
	}
	return doOn(ctx, inbox, done, fn)
}

// Input feeds one action event to the local player.
func (p *Process) Input(ctx context.Context, action world.Action, ev world.TriggerEvent, v mgl64.Vec2) error {
	if p.local == nil {
		return nil
	}
	return p.Do(ctx, func(*world.World) {
		p.local.Feed(action, ev, v)
	})
}

// Shutdown stops listening and the current loop and returns to standalone.
func (p *Process) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.server != nil {
		p.server.Stop()
		p.server = nil
	}
	if p.client != nil {
		p.client.Stop()
		p.client = nil
	}
	p.mode = NetStandalone
}

func doOn(ctx context.Context, inbox chan<- any, loopDone <-chan struct{}, fn func(w *world.World)) error {
	done := make(chan struct{})
	select {
	case inbox <- Do{Fn: fn, Done: done}:
	case <-loopDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-loopDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
