// Package network carries the session protocol over WebSockets.
package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"multiplayer/protocol"
	"multiplayer/session"
)

const Path = "/ws"

var upgrader = websocket.Upgrader{
	// LAN play: any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades requests and joins each socket to srv.
func Handler(srv *session.Server, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc(Path, func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Println("[network] upgrade:", err)
			return
		}
		serveConn(srv, newConn(ws), logger)
	})
	return mux
}

func serveConn(srv *session.Server, c *wsConn, logger *log.Logger) {
	defer c.Close()

	// Handshake: first frame must be hello.
	b, err := c.read()
	if err != nil {
		logger.Println("[network] read hello:", err)
		return
	}
	hello, err := protocol.Decode[protocol.Hello](b, protocol.MsgHello)
	if err != nil {
		logger.Println("[network] hello:", err)
		return
	}
	if hello.V != protocol.Version {
		reason := fmt.Sprintf("protocol version %d, want %d", hello.V, protocol.Version)
		if out, err := protocol.Encode(protocol.MsgDisconnect, protocol.Disconnect{Reason: reason}); err == nil {
			_ = c.Send(out)
		}
		logger.Printf("[network] %s: %s", c.ws.RemoteAddr(), reason)
		return
	}

	reply := make(chan session.JoinResult, 1)
	select {
	case srv.Inbox <- session.Join{Conn: c, Name: hello.Name, Reply: reply}:
	case <-srv.Done():
		return
	}
	var res session.JoinResult
	select {
	case res = <-reply:
	case <-srv.Done():
		return
	}
	if res.Err != nil {
		logger.Printf("[network] join: %v", res.Err)
		return
	}

	for {
		b, err := c.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Printf("[network] %s read: %v", res.Conn, err)
			}
			break
		}
		select {
		case srv.Inbox <- session.Message{Conn: res.Conn, Data: b}:
		case <-srv.Done():
			return
		}
	}
	select {
	case srv.Inbox <- session.Leave{Conn: res.Conn}:
	case <-srv.Done():
	}
}

// Listener serves the WebSocket endpoint for a hosting process.
type Listener struct {
	Addr   string
	Logger *log.Logger

	mu   sync.Mutex
	addr net.Addr
}

// Listen binds Addr and serves until ctx ends.
func (l *Listener) Listen(ctx context.Context, srv *session.Server) error {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	ln, err := net.Listen("tcp", l.Addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.addr = ln.Addr()
	l.mu.Unlock()

	hs := &http.Server{
		Handler:           Handler(srv, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("[network] listening on %s (ws endpoint: %s)", ln.Addr(), Path)
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("[network] serve: %v", err)
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
		case <-srv.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()
	return nil
}

// BoundAddr is the address actually bound, useful with port 0.
func (l *Listener) BoundAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}
