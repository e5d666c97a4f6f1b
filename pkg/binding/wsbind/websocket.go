// Package wsbind connects generated WebSocket bindings to gobwas/ws
// connections. Publish and subscribe share one long-lived connection.
package wsbind

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/artpar/channelgen/pkg/binding"
)

// Conn is a client connection to one resolved channel address.
type Conn struct {
	Address string
	Query   string

	conn   net.Conn
	rw     io.ReadWriter
	writeM sync.Mutex
}

// Dial connects to baseURL+addr with an optional encoded query. baseURL uses
// the ws:// or wss:// scheme.
func Dial(ctx context.Context, baseURL, addr, query string) (*Conn, error) {
	url := strings.TrimSuffix(baseURL, "/") + addr
	if query != "" {
		url += "?" + query
	}
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := newConn(conn, br, addr)
	c.Query = query
	return c, nil
}

func newConn(conn net.Conn, br *bufio.Reader, addr string) *Conn {
	var r io.Reader = conn
	if br != nil {
		r = br
	}
	return &Conn{
		Address: addr,
		conn:    conn,
		rw:      struct {
			io.Reader
			io.Writer
		}{r, conn},
	}
}

// Sender writes outbound payloads as text frames on c. The outbound address
// must be the one c was dialed with.
func (c *Conn) Sender() binding.Sender {
	return func(ctx context.Context, out binding.Outbound) error {
		if out.Address != c.Address {
			return fmt.Errorf("connection is bound to %s, not %s", c.Address, out.Address)
		}
		c.writeM.Lock()
		defer c.writeM.Unlock()
		return wsutil.WriteClientMessage(c.rw, ws.OpText, out.Payload)
	}
}

// Opener reads server frames from c. Reading stops, and the connection is
// closed, when the subscription ends; there is no reconnect.
func (c *Conn) Opener() binding.Opener {
	return func(ctx context.Context) (binding.Source, error) {
		return binding.SourceFuncs{
			NextFunc: func(ctx context.Context) (binding.Delivery, error) {
				for {
					data, op, err := wsutil.ReadServerData(c.rw)
					if err != nil {
						var closed wsutil.ClosedError
						if errors.As(err, &closed) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
							return binding.Delivery{}, binding.ErrSourceClosed
						}
						return binding.Delivery{}, err
					}
					if op != ws.OpText && op != ws.OpBinary {
						continue
					}
					return binding.Delivery{Address: c.Address, Query: c.Query, Payload: data}, nil
				}
			},
			CloseFunc: c.Close,
		}, nil
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
