package wsbind

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/artpar/channelgen/pkg/binding"
)

// echoServer replies to every client frame with "echo:" prepended and closes
// the connection after the first exchange.
func echoServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		msg, _, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}
		_ = wsutil.WriteServerMessage(conn, ws.OpText, append([]byte("echo:"+r.URL.Path+":"), msg...))
		_ = wsutil.WriteServerMessage(conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		// wait for the client's close reply
		_, _, _ = wsutil.ReadClientData(conn)
	}))
}

func TestConn_Duplex(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	ctx := context.Background()
	c, err := Dial(ctx, "ws://"+strings.TrimPrefix(srv.URL, "http://"), "/rooms/7", "")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	src, err := c.Opener()(ctx)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	send := c.Sender()
	if err := send(ctx, binding.Outbound{Address: "/rooms/8", Payload: []byte("x")}); err == nil {
		t.Error("expected error sending to another address")
	}
	if err := send(ctx, binding.Outbound{Address: "/rooms/7", Payload: []byte(`{"text":"hi"}`)}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	d, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if string(d.Payload) != `echo:/rooms/7:{"text":"hi"}` || d.Address != "/rooms/7" {
		t.Errorf("delivery = %+v (%s)", d, d.Payload)
	}

	if _, err := src.Next(ctx); !errors.Is(err, binding.ErrSourceClosed) {
		t.Errorf("Next after server close = %v", err)
	}
}

func TestDial_Refused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	if _, err := Dial(context.Background(), "ws://"+strings.TrimPrefix(srv.URL, "http://"), "/x", ""); err == nil {
		t.Error("expected dial error")
	}
}
