package network

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/gorilla/websocket"

	"multiplayer/session"
)

// Dialer connects a joining process to a listen server.
type Dialer struct {
	Logger *log.Logger
}

// Dial opens ws://addr/ws and feeds every frame to cli. When the socket ends
// cli receives Closed.
func (d Dialer) Dial(ctx context.Context, addr string, cli *session.Client) (session.Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: Path}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	c := newConn(ws)
	go readInto(c, cli)
	return c, nil
}

func readInto(c *wsConn, cli *session.Client) {
	for {
		b, err := c.read()
		if err != nil {
			select {
			case cli.Inbox <- session.Closed{Err: err}:
			case <-cli.Done():
			}
			return
		}
		select {
		case cli.Inbox <- session.Message{Data: b}:
		case <-cli.Done():
			return
		}
	}
}
