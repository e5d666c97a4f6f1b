package transport

import (
	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/domain/address"
)

var importPaho = ir.Import{Path: "github.com/eclipse/paho.mqtt.golang", Alias: "mqtt"}

// MQTT binds channels to topics on a paho client at QoS 1. Topics are
// slash-delimited and "+" matches one level. MQTT 3.1.1 carries no
// user properties, so headers are not transmitted.
type MQTT struct{}

func (MQTT) Protocol() string { return "mqtt" }
func (MQTT) Suffix() string { return "MQTT" }

func (MQTT) Capabilities() synth.Capabilities {
	return synth.Capabilities{Publish: true, Subscribe: true}
}

func (MQTT) Delimiter() address.Delimiter { return address.Slash }
func (MQTT) Wildcard() string { return "+" }

func (MQTT) Client(synth.Operation) []ir.Param {
	return []ir.Param{{Name: "client", Type: "mqtt.Client"}}
}

func (MQTT) Imports(op synth.Operation) []ir.Import {
	if op == synth.Subscribe {
		return []ir.Import{importPaho, {Path: "sync"}}
	}
	return []ir.Import{importPaho}
}

func (MQTT) Dependencies(synth.Operation) []synth.Dependency {
	return []synth.Dependency{{Module: "github.com/eclipse/paho.mqtt.golang", Purpose: "MQTT client"}}
}

func (MQTT) NativeSend(synth.Site) ir.Expr {
	return senderLit(
		ir.Define{Names: []string{"token"}, Value: ir.Code("client.Publish(out.Address, 1, false, out.Payload)")},
		code("select {\ncase <-token.Done():\ncase <-ctx.Done():\nreturn ctx.Err()\n}"),
		ir.Return{Values: ir.Codes("token.Error()")},
	)
}

func (MQTT) NativeRequest(synth.Site) ir.Expr { return notSupported() }

// NativeSource hands messages from paho's callback to a buffered channel.
// The callback also stops on done, which is closed before Unsubscribe so a
// blocked callback cannot hold paho's router while the unsubscribe waits.
func (MQTT) NativeSource(site synth.Site) ir.Block {
	addr := site.Address
	return ir.Block{
		ir.Define{Names: []string{"msgs"}, Value: ir.Code("make(chan mqtt.Message, 64)")},
		ir.Define{Names: []string{"done"}, Value: ir.Code("make(chan struct{})")},
		ir.Var{Name: "stop", Type: "sync.Once"},
		ir.Define{Names: []string{"token"}, Value: ir.Call{Fun: "client.Subscribe", Args: []ir.Expr{
			ir.Code(addr),
			ir.Code("1"),
			ir.FuncLit{
				Params: []ir.Param{{Name: "_", Type: "mqtt.Client"}, {Name: "m", Type: "mqtt.Message"}},
				Body:   ir.Block{code("select {\ncase msgs <- m:\ncase <-ctx.Done():\ncase <-done:\n}")},
			},
		}}},
		code("token.Wait()"),
		ir.If{
			Init: ir.Define{Names: []string{"err"}, Value: ir.Code("token.Error()")},
			Cond: ir.Code("err != nil"),
			Then: ir.Block{ir.ReturnErr("nil")},
		},
		ir.Define{Names: []string{"convert"}, Value: ir.FuncLit{
			Params:  []ir.Param{{Name: "m", Type: "mqtt.Message"}},
			Results: []ir.Param{{Type: "binding.Delivery"}},
			Body:    ir.Block{ir.Return{Values: ir.Codes("binding.Delivery{Address: m.Topic(), Payload: m.Payload()}")}},
		}},
		ir.Define{Names: []string{"unsubscribe"}, Value: ir.FuncLit{
			Results: []ir.Param{{Type: "error"}},
			Body: ir.Block{
				code("stop.Do(func() { close(done) })"),
				ir.Define{Names: []string{"t"}, Value: ir.Call{Fun: "client.Unsubscribe", Args: ir.Codes(addr)}},
				code("t.Wait()"),
				ir.Return{Values: ir.Codes("t.Error()")},
			},
		}},
		ir.Return{Values: ir.Codes("binding.MapSource(msgs, convert, unsubscribe)", "nil")},
	}
}

func (MQTT) Shared(synth.Site) []ir.Decl { return nil }
