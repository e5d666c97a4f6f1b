package transport

import (
	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/domain/address"
)

// EventSource subscribes to a server-sent event stream at baseURL plus the
// resolved path. The stream only flows to the client.
type EventSource struct{}

func (EventSource) Protocol() string { return "eventsource" }
func (EventSource) Suffix() string { return "EventSource" }

func (EventSource) Capabilities() synth.Capabilities {
	return synth.Capabilities{Subscribe: true, PushOnly: true, Query: true}
}

func (EventSource) Delimiter() address.Delimiter { return address.Slash }
func (EventSource) Wildcard() string { return "" }

func (EventSource) Client(synth.Operation) []ir.Param {
	return []ir.Param{{Name: "client", Type: "*http.Client"}, {Name: "baseURL", Type: "string"}}
}

func (EventSource) Imports(synth.Operation) []ir.Import { return []ir.Import{importHTTP} }

func (EventSource) Dependencies(synth.Operation) []synth.Dependency { return nil }

func (EventSource) NativeSend(synth.Site) ir.Expr { return notSupported() }
func (EventSource) NativeRequest(synth.Site) ir.Expr { return notSupported() }

func (EventSource) NativeSource(site synth.Site) ir.Block {
	query := ir.Expr(ir.Quote(""))
	if site.Query != "" {
		query = ir.Code(site.Query)
	}
	return ir.Block{ir.Return{Values: []ir.Expr{ir.Call{Fun: "binding.OpenEventStream", Args: []ir.Expr{
		ir.Code("ctx"), ir.Code("client"), ir.Code("baseURL"), ir.Code(site.Address), query, ir.Code("nil"),
	}}}}}
}

func (EventSource) Shared(synth.Site) []ir.Decl { return nil }
