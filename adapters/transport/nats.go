package transport

import (
	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/domain/address"
)

var importNATS = ir.Import{Path: "github.com/nats-io/nats.go"}

// NATS binds channels to subjects on a *nats.Conn. Subjects are
// dot-delimited and "*" matches one token. The JetStream variants take a
// nats.JetStreamContext and ack each message as it is received.
type NATS struct{}

func (NATS) Protocol() string { return "nats" }
func (NATS) Suffix() string { return "NATS" }

func (NATS) Capabilities() synth.Capabilities {
	return synth.Capabilities{Publish: true, Subscribe: true, RequestReply: true, JetStream: true}
}

func (NATS) Delimiter() address.Delimiter { return address.Dot }
func (NATS) Wildcard() string { return "*" }

func (NATS) Client(op synth.Operation) []ir.Param {
	js := ir.Param{Name: "js", Type: "nats.JetStreamContext"}
	subOpts := ir.Param{Name: "subOpts", Type: "[]nats.SubOpt"}
	switch op {
	case synth.JetStreamPublish:
		return []ir.Param{js}
	case synth.JetStreamPushSubscribe:
		return []ir.Param{js, subOpts}
	case synth.JetStreamPullSubscribe:
		return []ir.Param{js, {Name: "durable", Type: "string"}, subOpts}
	}
	return []ir.Param{{Name: "nc", Type: "*nats.Conn"}}
}

func (NATS) Imports(op synth.Operation) []ir.Import {
	switch op {
	case synth.Subscribe, synth.Reply, synth.JetStreamPushSubscribe:
		return []ir.Import{importNATS, importErrors}
	case synth.JetStreamPullSubscribe:
		return []ir.Import{importNATS, importErrors, {Path: "time"}}
	}
	return []ir.Import{importNATS}
}

func (NATS) Dependencies(synth.Operation) []synth.Dependency {
	return []synth.Dependency{{Module: "github.com/nats-io/nats.go", Purpose: "NATS client"}}
}

func (NATS) NativeSend(site synth.Site) ir.Expr {
	if site.Operation == synth.JetStreamPublish {
		return senderLit(
			ir.Define{Names: []string{"_", "err"}, Value: ir.Code("js.PublishMsg(natsOutbound(out), nats.Context(ctx))")},
			ir.Return{Values: ir.Codes("err")},
		)
	}
	return senderLit(ir.Return{Values: ir.Codes("nc.PublishMsg(natsOutbound(out))")})
}

func (NATS) NativeRequest(synth.Site) ir.Expr {
	return requesterLit(
		ir.Define{Names: []string{"reply", "err"}, Value: ir.Code("nc.RequestMsgWithContext(ctx, natsOutbound(out))")},
		ir.CheckErr("binding.Delivery{}"),
		ir.Return{Values: ir.Codes("natsDelivery(nc, reply)", "nil")},
	)
}

// closedCheck maps the errors of an unsubscribed or disconnected
// subscription to binding.ErrSourceClosed.
var closedCheck = ir.If{
	Cond: ir.Code("errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription)"),
	Then: ir.Block{ir.Return{Values: ir.Codes("binding.Delivery{}", "binding.ErrSourceClosed")}},
}

// ack acknowledges m before it is handed on; a failed ack leaves m for
// redelivery and is reported without ending the subscription.
var ack = ir.If{
	Init: ir.Define{Names: []string{"err"}, Value: ir.Code("m.Ack()")},
	Cond: ir.Code("err != nil"),
	Then: ir.Block{ir.Return{Values: ir.Codes("binding.Delivery{}", "binding.Transient(err)")}},
}

func (NATS) NativeSource(site synth.Site) ir.Block {
	switch site.Operation {
	case synth.JetStreamPushSubscribe:
		return jetStreamPush(site)
	case synth.JetStreamPullSubscribe:
		return jetStreamPull(site)
	}
	next := nextFunc(
		ir.Define{Names: []string{"m", "err"}, Value: ir.Code("s.NextMsgWithContext(ctx)")},
		closedCheck,
		ir.CheckErr("binding.Delivery{}"),
		ir.Return{Values: ir.Codes("natsDelivery(nc, m)", "nil")},
	)
	return natsSource(ir.Call{Fun: "nc.SubscribeSync", Args: ir.Codes(site.Address)}, next)
}

func natsSource(subscribe ir.Expr, next ir.FuncLit) ir.Block {
	return ir.Block{
		ir.Define{Names: []string{"s", "err"}, Value: subscribe},
		ir.CheckErr("nil"),
		ir.Return{Values: []ir.Expr{
			ir.Composite{Type: "binding.SourceFuncs", Fields: []ir.KeyValue{
				{Key: "NextFunc", Value: next},
				{Key: "CloseFunc", Value: ir.Code("s.Unsubscribe")},
			}},
			ir.Code("nil"),
		}},
	}
}

func nextFunc(body ...ir.Stmt) ir.FuncLit {
	return ir.FuncLit{
		Params:  []ir.Param{{Name: "ctx", Type: "context.Context"}},
		Results: []ir.Param{{Type: "binding.Delivery"}, {Type: "error"}},
		Body:    body,
	}
}

// jetStreamPush consumes a push consumer through a synchronous subscription.
func jetStreamPush(site synth.Site) ir.Block {
	next := nextFunc(
		ir.Define{Names: []string{"m", "err"}, Value: ir.Code("s.NextMsgWithContext(ctx)")},
		closedCheck,
		ir.CheckErr("binding.Delivery{}"),
		ack,
		ir.Return{Values: ir.Codes("jetStreamDelivery(m)", "nil")},
	)
	return natsSource(ir.Call{Fun: "js.SubscribeSync", Args: ir.Codes(site.Address, "subOpts...")}, next)
}

// jetStreamPull fetches one message at a time from a durable pull consumer.
// Each fetch waits at most a second so that cancellation is noticed.
func jetStreamPull(site synth.Site) ir.Block {
	next := nextFunc(ir.For{Body: ir.Block{
		ir.If{
			Init: ir.Define{Names: []string{"err"}, Value: ir.Code("ctx.Err()")},
			Cond: ir.Code("err != nil"),
			Then: ir.Block{ir.Return{Values: ir.Codes("binding.Delivery{}", "err")}},
		},
		ir.Define{Names: []string{"msgs", "err"}, Value: ir.Code("s.Fetch(1, nats.MaxWait(time.Second))")},
		ir.If{Cond: ir.Code("errors.Is(err, nats.ErrTimeout) || (err == nil && len(msgs) == 0)"), Then: ir.Block{code("continue")}},
		closedCheck,
		ir.CheckErr("binding.Delivery{}"),
		ir.Define{Names: []string{"m"}, Value: ir.Code("msgs[0]")},
		ack,
		ir.Return{Values: ir.Codes("jetStreamDelivery(m)", "nil")},
	}})
	return natsSource(ir.Call{Fun: "js.PullSubscribe", Args: ir.Codes(site.Address, "durable", "subOpts...")}, next)
}

// Shared emits the message conversions every NATS binding in the package
// uses. They do not depend on the channel, so identical copies merge.
func (NATS) Shared(site synth.Site) []ir.Decl {
	decls := []ir.Decl{natsOutboundDecl(), natsDeliveryDecl()}
	for _, op := range site.Options.Operations {
		if op == synth.JetStreamPushSubscribe || op == synth.JetStreamPullSubscribe {
			return append(decls, jetStreamDeliveryDecl())
		}
	}
	return decls
}

func jetStreamDeliveryDecl() ir.Decl {
	return &ir.FuncDecl{
		Doc:     "jetStreamDelivery converts a stream message. Stream messages are not answered.",
		Name:    "jetStreamDelivery",
		Params:  []ir.Param{{Name: "m", Type: "*nats.Msg"}},
		Results: []ir.Param{{Type: "binding.Delivery"}},
		Body: ir.Block{
			ir.Define{Names: []string{"d"}, Value: ir.Code("binding.Delivery{Address: m.Subject, Payload: m.Data}")},
			natsHeaders,
			ir.Return{Values: ir.Codes("d")},
		},
		Imports: []ir.Import{importNATS, importBinding},
	}
}

func natsOutboundDecl() ir.Decl {
	return &ir.FuncDecl{
		Name:    "natsOutbound",
		Params:  []ir.Param{{Name: "out", Type: "binding.Outbound"}},
		Results: []ir.Param{{Type: "*nats.Msg"}},
		Body: ir.Block{
			ir.Define{Names: []string{"m"}, Value: ir.Code("nats.NewMsg(out.Address)")},
			ir.Assign{Names: []string{"m.Data"}, Value: ir.Code("out.Payload")},
			ir.Range{Key: "k", Value: "v", X: ir.Code("out.Headers"), Body: ir.Block{code("m.Header.Set(k, v)")}},
			ir.Return{Values: ir.Codes("m")},
		},
		Imports: []ir.Import{importNATS, importBinding},
	}
}

func natsDeliveryDecl() ir.Decl {
	return &ir.FuncDecl{
		Doc:     "natsDelivery converts m; a message with a reply subject can be answered.",
		Name:    "natsDelivery",
		Params:  []ir.Param{{Name: "nc", Type: "*nats.Conn"}, {Name: "m", Type: "*nats.Msg"}},
		Results: []ir.Param{{Type: "binding.Delivery"}},
		Body: ir.Block{
			ir.Define{Names: []string{"d"}, Value: ir.Code("binding.Delivery{Address: m.Subject, Payload: m.Data}")},
			natsHeaders,
			ir.If{Cond: ir.Code(`m.Reply != ""`), Then: ir.Block{
				ir.Define{Names: []string{"subject"}, Value: ir.Code("m.Reply")},
				ir.Assign{Names: []string{"d.Respond"}, Value: ir.FuncLit{
					Params: []ir.Param{
						{Name: "_", Type: "context.Context"},
						{Name: "payload", Type: "[]byte"},
						{Name: "headers", Type: "map[string]string"},
					},
					Results: []ir.Param{{Type: "error"}},
					Body: ir.Block{ir.Return{Values: ir.Codes(
						"nc.PublishMsg(natsOutbound(binding.Outbound{Address: subject, Payload: payload, Headers: headers}))",
					)}},
				}},
			}},
			ir.Return{Values: ir.Codes("d")},
		},
		Imports: []ir.Import{importNATS, importBinding, importContext},
	}
}

var natsHeaders = ir.If{Cond: ir.Code("len(m.Header) > 0"), Then: ir.Block{
	ir.Assign{Names: []string{"d.Headers"}, Value: ir.Code("make(map[string]string, len(m.Header))")},
	ir.Range{Key: "k", X: ir.Code("m.Header"), Body: ir.Block{
		ir.Assign{Names: []string{"d.Headers[k]"}, Value: ir.Code("m.Header.Get(k)")},
	}},
}}
