// Package transport provides one synth.Adapter per supported protocol.
package transport

import (
	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/core/synth"
)

const bindingPath = "github.com/artpar/channelgen/pkg/binding"

var (
	importBinding = ir.Import{Path: bindingPath}
	importContext = ir.Import{Path: "context"}
	importErrors  = ir.Import{Path: "errors"}
	importHTTP    = ir.Import{Path: "net/http"}
)

// Default returns every built-in adapter.
func Default() []synth.Adapter {
	return []synth.Adapter{
		NATS{},
		Kafka{},
		MQTT{},
		AMQP{},
		WebSocket{},
		EventSource{},
		HTTPClient{},
	}
}

// NewSynthesizer returns a synthesizer serving the built-in adapters.
func NewSynthesizer() *synth.Synthesizer {
	return synth.New(Default()...)
}

// code is a statement written out verbatim.
func code(s string) ir.Stmt { return ir.ExprStmt{X: ir.Code(s)} }

func outboundParams() []ir.Param {
	return []ir.Param{{Name: "ctx", Type: "context.Context"}, {Name: "out", Type: "binding.Outbound"}}
}

// senderLit is a binding.Sender function literal.
func senderLit(body ...ir.Stmt) ir.FuncLit {
	return ir.FuncLit{Params: outboundParams(), Results: []ir.Param{{Type: "error"}}, Body: body}
}

// requesterLit is a binding.Requester function literal.
func requesterLit(body ...ir.Stmt) ir.FuncLit {
	return ir.FuncLit{
		Params:  outboundParams(),
		Results: []ir.Param{{Type: "binding.Delivery"}, {Type: "error"}},
		Body:    body,
	}
}

// notSupported is returned by adapters for operations they never serve;
// the synthesizer rejects those operations before asking.
func notSupported() ir.Expr { return ir.Code("nil") }
