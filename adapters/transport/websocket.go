package transport

import (
	"fmt"

	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/domain/address"
)

var importWsbind = ir.Import{Path: "github.com/artpar/channelgen/pkg/binding/wsbind"}

// WebSocket binds a channel to one connection dialed at the resolved path.
// Publish and subscribe share the connection, so subscribe takes no
// parameters: they were fixed when dialing.
type WebSocket struct{}

func (WebSocket) Protocol() string { return "websocket" }
func (WebSocket) Suffix() string { return "WebSocket" }

func (WebSocket) Capabilities() synth.Capabilities {
	return synth.Capabilities{Publish: true, Subscribe: true, Duplex: true, Query: true}
}

func (WebSocket) Delimiter() address.Delimiter { return address.Slash }
func (WebSocket) Wildcard() string { return "" }

func (WebSocket) Client(synth.Operation) []ir.Param {
	return []ir.Param{{Name: "conn", Type: "*wsbind.Conn"}}
}

func (WebSocket) Imports(synth.Operation) []ir.Import { return []ir.Import{importWsbind} }

func (WebSocket) Dependencies(synth.Operation) []synth.Dependency {
	return []synth.Dependency{{Module: "github.com/gobwas/ws", Purpose: "WebSocket client"}}
}

func (WebSocket) NativeSend(synth.Site) ir.Expr { return ir.Code("conn.Sender()") }

func (WebSocket) NativeRequest(synth.Site) ir.Expr { return notSupported() }

func (WebSocket) NativeSource(synth.Site) ir.Block {
	return ir.Block{ir.Return{Values: ir.Codes("conn.Opener()(ctx)")}}
}

// Shared emits the dial helper that resolves the channel address and query
// from the parameters.
func (WebSocket) Shared(site synth.Site) []ir.Decl {
	d := site.Channel
	channel := site.Names.Channel(address.Slash)
	name := "Dial" + site.Names.Exported + "WebSocket"

	params := []ir.Param{{Name: "ctx", Type: "context.Context"}, {Name: "baseURL", Type: "string"}}
	values := ir.Code("nil")
	if len(d.AllParameters()) > 0 {
		params = append(params, ir.Param{Name: "params", Type: site.Names.Parameters()})
		values = ir.Code("params.values()")
	}

	body := ir.Block{
		ir.Define{Names: []string{"addr", "err"}, Value: ir.Call{Fun: channel + ".Resolve", Args: []ir.Expr{values}}},
		ir.CheckErr("nil"),
	}
	query := ir.Expr(ir.Quote(""))
	if len(d.Query()) > 0 {
		body = append(body,
			ir.Define{Names: []string{"query", "err"}, Value: ir.Call{Fun: channel + ".Query", Args: []ir.Expr{values}}},
			ir.CheckErr("nil"),
		)
		query = ir.Code("query")
	}
	body = append(body, ir.Return{Values: []ir.Expr{
		ir.Call{Fun: "wsbind.Dial", Args: []ir.Expr{ir.Code("ctx"), ir.Code("baseURL"), ir.Code("addr"), query}},
	}})

	return []ir.Decl{&ir.FuncDecl{
		Doc:     fmt.Sprintf("%s opens the %s connection under baseURL (ws:// or wss://).", name, d.ID()),
		Name:    name,
		Params:  params,
		Results: []ir.Param{{Type: "*wsbind.Conn"}, {Type: "error"}},
		Body:    body,
		Imports: []ir.Import{importContext, importWsbind},
	}}
}
