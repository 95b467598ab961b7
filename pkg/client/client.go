package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theia-log/theia/pkg/model"
)

const defaultWriteTimeout = 5 * time.Second

// Client is a push channel to a collector's /event endpoint.
type Client struct {
	conn *websocket.Conn
	addr string
}

// Dial opens the push channel. addr is host:port, without a scheme.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, err := dial(ctx, addr, "/event")
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, addr: addr}, nil
}

// Send ships one event. An error means the channel is unusable; the
// caller decides whether to redial.
func (c *Client) Send(ev *model.Event) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, model.Marshal(ev)); err != nil {
		return fmt.Errorf("push event %s: %w", ev.ID, err)
	}
	return nil
}

// Close closes the push channel.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// ChannelURL builds the websocket URL for a collector endpoint path.
func ChannelURL(addr, path string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: path}
	return u.String()
}

func dial(ctx context.Context, addr, path string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ChannelURL(addr, path), nil)
	if err != nil {
		return nil, fmt.Errorf("dial collector %s%s: %w", addr, path, err)
	}
	return conn, nil
}
