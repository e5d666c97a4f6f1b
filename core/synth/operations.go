package synth

import (
	"fmt"

	"github.com/artpar/channelgen/core/ir"
)

// operation returns the declarations of one binding; the exported entry
// point comes first.
func (g *generator) operation(op Operation) []ir.Decl {
	switch op.Kind() {
	case Publish:
		return []ir.Decl{g.publishDecl(op)}
	case Subscribe:
		return []ir.Decl{g.subscribeDecl(op)}
	case Request:
		return []ir.Decl{g.requestDecl()}
	case Reply:
		if g.adapter.Capabilities().InboundReply {
			return []ir.Decl{g.replyHandlerDecl()}
		}
		return []ir.Decl{g.replyDecl()}
	}
	panic(fmt.Sprintf("synth: unknown operation %q", op))
}

func (g *generator) imports(op Operation, extra ...ir.Import) []ir.Import {
	out := append([]ir.Import{importContext, importBinding}, extra...)
	return append(out, g.adapter.Imports(op)...)
}

func (g *generator) values() ir.Expr {
	if !g.hasParams() {
		return ir.Code("nil")
	}
	return ir.Code("params.values()")
}

// outboundParams lists ctx, the native client, the parameters, msg and the
// optional headers of a sending operation.
func (g *generator) outboundParams(op Operation) []ir.Param {
	params := append([]ir.Param{{Name: "ctx", Type: "context.Context"}}, g.adapter.Client(op)...)
	if g.hasParams() {
		params = append(params, ir.Param{Name: "params", Type: g.names.Parameters()})
	}
	params = append(params, ir.Param{Name: "msg", Type: g.messageType()})
	if h := g.desc.Headers(); h != nil {
		params = append(params, ir.Param{Name: "headers", Type: "*" + h.GoType})
	}
	return params
}

// headerPrelude converts the optional headers pointer to a binding.Marshaler
// without wrapping a nil pointer in a non-nil interface.
func (g *generator) headerPrelude() (ir.Block, ir.Expr) {
	if g.desc.Headers() == nil {
		return nil, ir.Code("nil")
	}
	return ir.Block{
		ir.Var{Name: "h", Type: "binding.Marshaler"},
		ir.If{Cond: ir.Code("headers != nil"), Then: ir.Block{ir.Assign{Names: []string{"h"}, Value: ir.Code("headers")}}},
	}, ir.Code("h")
}

func (g *generator) publishDecl(op Operation) ir.Decl {
	site := g.site(op)
	body, h := g.headerPrelude()
	body = append(body, ir.Return{Values: []ir.Expr{ir.Call{Fun: "binding.Publish", Args: []ir.Expr{
		ir.Code("ctx"),
		ir.Code(g.channelVar()),
		g.values(),
		marshaler(g.desc.Messages(), g.names.Message()),
		h,
		g.adapter.NativeSend(site),
	}}}})

	name := g.names.Func(op, g.adapter.Suffix())
	return &ir.FuncDecl{
		Doc:     fmt.Sprintf("%s sends msg on the %s address resolved from params.", name, g.desc.ID()),
		Name:    name,
		Params:  g.outboundParams(op),
		Results: []ir.Param{{Type: "error"}},
		Body:    body,
		Imports: g.imports(op),
	}
}

func (g *generator) requestDecl() ir.Decl {
	site := g.site(Request)
	body, h := g.headerPrelude()

	reply := g.desc.Reply()
	validate := ir.Expr(ir.Code("nil"))
	if v := g.validateFunc(reply, g.replyUnionName()); v != "" {
		validate = ir.Code(v)
	}
	body = append(body, ir.Return{Values: []ir.Expr{ir.Call{Fun: "binding.Request", Args: []ir.Expr{
		ir.Code("ctx"),
		ir.Code(g.channelVar()),
		g.values(),
		marshaler(g.desc.Messages(), g.names.Message()),
		h,
		g.adapter.NativeRequest(site),
		ir.Code(decodeFunc(reply, g.replyUnionName())),
		validate,
	}}}})

	name := g.names.Func(Request, g.adapter.Suffix())
	return &ir.FuncDecl{
		Doc:     fmt.Sprintf("%s sends msg and waits for the %s reply.", name, g.desc.ID()),
		Name:    name,
		Params:  g.outboundParams(Request),
		Results: []ir.Param{{Type: "*" + g.replyType()}, {Type: "error"}},
		Body:    body,
		Imports: g.imports(Request),
	}
}

// subscription builds the shared part of subscribe and reply: the address
// pattern, the query and the subscription start. deliver and fail are the
// callbacks handed to Subscription.Start.
func (g *generator) subscription(op Operation, deliver, fail ir.Expr) (params []ir.Param, body ir.Block) {
	caps := g.adapter.Capabilities()
	site := g.site(op)
	params = append([]ir.Param{{Name: "ctx", Type: "context.Context"}}, g.adapter.Client(op)...)

	if !caps.Duplex {
		site.Address = "addr"
		arg := "params"
		resolve := ir.Call{Fun: g.channelVar() + ".Resolve", Args: []ir.Expr{g.values()}}
		if w := g.adapter.Wildcard(); w != "" {
			arg = "filter"
			filter := ir.Expr(ir.Code("nil"))
			if g.hasParams() {
				filter = ir.Code("filter.filter()")
			}
			resolve = ir.Call{Fun: g.channelVar() + ".Pattern", Args: []ir.Expr{filter, ir.Quote(w)}}
		}
		if g.hasParams() {
			params = append(params, ir.Param{Name: arg, Type: g.names.Parameters()})
		}
		body = append(body, ir.Define{Names: []string{"addr", "err"}, Value: resolve}, ir.CheckErr("nil"))

		if caps.Query && len(g.desc.Query()) > 0 {
			site.Query = "query"
			body = append(body,
				ir.Define{Names: []string{"query", "err"}, Value: ir.Call{Fun: g.channelVar() + ".Query", Args: []ir.Expr{ir.Code(arg + ".values()")}}},
				ir.CheckErr("nil"),
			)
		}
	}

	opener := ir.FuncLit{
		Params:  []ir.Param{{Name: "ctx", Type: "context.Context"}},
		Results: []ir.Param{{Type: "binding.Source"}, {Type: "error"}},
		Body:    g.adapter.NativeSource(site),
	}
	body = append(body,
		ir.Define{Names: []string{"sub"}, Value: ir.Code("binding.NewSubscription(opts...)")},
		ir.If{
			Init: ir.Define{Names: []string{"err"}, Value: ir.Call{Fun: "sub.Start", Args: []ir.Expr{ir.Code("ctx"), opener, deliver, fail}}},
			Cond: ir.Code("err != nil"),
			Then: ir.Block{ir.ReturnErr("nil")},
		},
		ir.Return{Values: ir.Codes("sub", "nil")},
	)
	return params, body
}

func (g *generator) subscribeDecl(op Operation) ir.Decl {
	deliver := ir.FuncLit{
		Params: []ir.Param{{Name: "_", Type: "context.Context"}, {Name: "d", Type: "binding.Delivery"}},
		Body:   ir.Block{ir.ExprStmt{X: ir.Call{Fun: "binding.Dispatch", Args: ir.Codes("d", g.decoderVar(), "handler")}}},
	}
	fail := ir.FuncLit{
		Params: []ir.Param{{Name: "err", Type: "error"}},
		Body:   ir.Block{ir.ExprStmt{X: ir.Call{Fun: "handler", Args: ir.Codes("nil", g.names.Inbound()+"{}", "err")}}},
	}
	params, body := g.subscription(op, deliver, fail)
	params = append(params,
		ir.Param{Name: "handler", Type: g.names.Handler()},
		ir.Param{Name: "opts", Type: "...binding.Option"},
	)

	name := g.names.Func(op, g.adapter.Suffix())
	return &ir.FuncDecl{
		Doc: fmt.Sprintf("%s delivers every %s message to handler until the subscription\n"+
			"is closed. Messages that fail to decode or validate reach handler as errors.", name, g.desc.ID()),
		Name:    name,
		Params:  params,
		Results: []ir.Param{{Type: "*binding.Subscription"}, {Type: "error"}},
		Body:    body,
		Imports: g.imports(op),
	}
}

func (g *generator) serveCall() ir.Call {
	return ir.Call{Fun: "binding.Serve", Args: []ir.Expr{
		ir.Code("ctx"),
		ir.Code("d"),
		ir.Code(g.decoderVar()),
		ir.Code("respond"),
		encodeFunc(g.desc.Reply(), g.replyUnionName()),
	}}
}

func (g *generator) replyDecl() ir.Decl {
	deliver := ir.FuncLit{
		Params: []ir.Param{{Name: "ctx", Type: "context.Context"}, {Name: "d", Type: "binding.Delivery"}},
		Body: ir.Block{ir.If{
			Init: ir.Define{Names: []string{"err"}, Value: g.serveCall()},
			Cond: ir.Code("err != nil && onError != nil"),
			Then: ir.Block{ir.ExprStmt{X: ir.Call{Fun: "onError", Args: ir.Codes("err")}}},
		}},
	}
	params, body := g.subscription(Reply, deliver, ir.Code("onError"))
	params = append(params,
		ir.Param{Name: "respond", Type: g.names.Responder()},
		ir.Param{Name: "onError", Type: "func(error)"},
		ir.Param{Name: "opts", Type: "...binding.Option"},
	)

	name := g.names.Func(Reply, g.adapter.Suffix())
	return &ir.FuncDecl{
		Doc:     fmt.Sprintf("%s answers %s requests with respond. onError, if set, receives\nrequests that could not be served.", name, g.desc.ID()),
		Name:    name,
		Params:  params,
		Results: []ir.Param{{Type: "*binding.Subscription"}, {Type: "error"}},
		Body:    body,
		Imports: g.imports(Reply),
	}
}

func (g *generator) replyHandlerDecl() ir.Decl {
	name := g.names.Func(Reply, g.adapter.Suffix())
	return &ir.FuncDecl{
		Doc:    fmt.Sprintf("%s serves %s requests with respond.", name, g.desc.ID()),
		Name:   name,
		Params: []ir.Param{{Name: "respond", Type: g.names.Responder()}},
		Results: []ir.Param{{Type: "http.HandlerFunc"}},
		Body: ir.Block{ir.Return{Values: []ir.Expr{ir.Call{Fun: "binding.HTTPHandler", Args: []ir.Expr{ir.FuncLit{
			Params:  []ir.Param{{Name: "ctx", Type: "context.Context"}, {Name: "d", Type: "binding.Delivery"}},
			Results: []ir.Param{{Type: "error"}},
			Body:    ir.Block{ir.Return{Values: []ir.Expr{g.serveCall()}}},
		}}}}}},
		Imports: g.imports(Reply, ir.Import{Path: "net/http"}),
	}
}
