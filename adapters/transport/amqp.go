package transport

import (
	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/domain/address"
)

var importAMQP = ir.Import{Path: "github.com/rabbitmq/amqp091-go", Alias: "amqp"}

// AMQP publishes to the queue named by the resolved address through the
// default exchange and consumes from the same queue. The exchange variant
// publishes through a named exchange with the address as routing key.
type AMQP struct{}

func (AMQP) Protocol() string { return "amqp" }
func (AMQP) Suffix() string { return "AMQP" }

func (AMQP) Capabilities() synth.Capabilities {
	return synth.Capabilities{Publish: true, Subscribe: true, Exchange: true}
}

func (AMQP) Delimiter() address.Delimiter { return address.Dot }
func (AMQP) Wildcard() string { return "" }

func (AMQP) Client(op synth.Operation) []ir.Param {
	params := []ir.Param{{Name: "ch", Type: "*amqp.Channel"}}
	if op == synth.ExchangePublish {
		params = append(params, ir.Param{Name: "exchange", Type: "string"})
	}
	return params
}

func (AMQP) Imports(synth.Operation) []ir.Import { return []ir.Import{importAMQP} }

func (AMQP) Dependencies(synth.Operation) []synth.Dependency {
	return []synth.Dependency{{Module: "github.com/rabbitmq/amqp091-go", Purpose: "AMQP 0-9-1 client"}}
}

func (AMQP) NativeSend(site synth.Site) ir.Expr {
	exchange := ir.Expr(ir.Quote(""))
	if site.Operation == synth.ExchangePublish {
		exchange = ir.Code("exchange")
	}
	return senderLit(ir.Return{Values: []ir.Expr{ir.Call{Fun: "ch.PublishWithContext", Args: []ir.Expr{
		ir.Code("ctx"),
		exchange,
		ir.Code("out.Address"),
		ir.Code("false"),
		ir.Code("false"),
		ir.Composite{Type: "amqp.Publishing", Fields: []ir.KeyValue{
			{Key: "Headers", Value: ir.Code("amqpHeaders(out.Headers)")},
			{Key: "Body", Value: ir.Code("out.Payload")},
		}},
	}}}})
}

func (AMQP) NativeRequest(synth.Site) ir.Expr { return notSupported() }

func (AMQP) NativeSource(site synth.Site) ir.Block {
	return ir.Block{
		ir.Define{Names: []string{"tag"}, Value: ir.Call{Fun: "binding.NewConsumerTag", Args: []ir.Expr{ir.Quote(site.Channel.ID())}}},
		ir.Define{Names: []string{"msgs", "err"}, Value: ir.Call{Fun: "ch.Consume", Args: []ir.Expr{
			ir.Code(site.Address), ir.Code("tag"), ir.Code("true"), ir.Code("false"), ir.Code("false"), ir.Code("false"), ir.Code("nil"),
		}}},
		ir.CheckErr("nil"),
		ir.Define{Names: []string{"cancel"}, Value: ir.FuncLit{
			Results: []ir.Param{{Type: "error"}},
			Body:    ir.Block{ir.Return{Values: ir.Codes("ch.Cancel(tag, false)")}},
		}},
		ir.Return{Values: ir.Codes("binding.MapSource(msgs, amqpDelivery, cancel)", "nil")},
	}
}

// Shared emits the header and delivery conversions.
func (AMQP) Shared(synth.Site) []ir.Decl {
	return []ir.Decl{
		&ir.FuncDecl{
			Name:    "amqpHeaders",
			Params:  []ir.Param{{Name: "h", Type: "map[string]string"}},
			Results: []ir.Param{{Type: "amqp.Table"}},
			Body: ir.Block{
				ir.If{Cond: ir.Code("len(h) == 0"), Then: ir.Block{ir.Return{Values: ir.Codes("nil")}}},
				ir.Define{Names: []string{"t"}, Value: ir.Code("make(amqp.Table, len(h))")},
				ir.Range{Key: "k", Value: "v", X: ir.Code("h"), Body: ir.Block{ir.Assign{Names: []string{"t[k]"}, Value: ir.Code("v")}}},
				ir.Return{Values: ir.Codes("t")},
			},
			Imports: []ir.Import{importAMQP},
		},
		&ir.FuncDecl{
			Name:    "amqpDelivery",
			Params:  []ir.Param{{Name: "m", Type: "amqp.Delivery"}},
			Results: []ir.Param{{Type: "binding.Delivery"}},
			Body: ir.Block{
				ir.Define{Names: []string{"d"}, Value: ir.Code("binding.Delivery{Address: m.RoutingKey, Payload: m.Body}")},
				ir.If{Cond: ir.Code("len(m.Headers) > 0"), Then: ir.Block{
					ir.Assign{Names: []string{"d.Headers"}, Value: ir.Code("make(map[string]string, len(m.Headers))")},
					ir.Range{Key: "k", Value: "v", X: ir.Code("m.Headers"), Body: ir.Block{
						ir.Assign{Names: []string{"d.Headers[k]"}, Value: ir.Code("fmt.Sprint(v)")},
					}},
				}},
				ir.Return{Values: ir.Codes("d")},
			},
			Imports: []ir.Import{importAMQP, importBinding, {Path: "fmt"}},
		},
	}
}
