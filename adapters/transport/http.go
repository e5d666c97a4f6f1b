package transport

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/domain/address"
)

// HTTPClient generates request functions over binding.HTTPClient and reply
// handlers as http.HandlerFunc.
type HTTPClient struct{}

func (HTTPClient) Protocol() string { return "http_client" }
func (HTTPClient) Suffix() string { return "HTTP" }

func (HTTPClient) Capabilities() synth.Capabilities {
	return synth.Capabilities{RequestReply: true, Query: true, InboundReply: true}
}

func (HTTPClient) Delimiter() address.Delimiter { return address.Slash }
func (HTTPClient) Wildcard() string { return "" }

func (HTTPClient) Client(op synth.Operation) []ir.Param {
	if op == synth.Request {
		return []ir.Param{{Name: "client", Type: "binding.HTTPClient"}}
	}
	return nil
}

func (HTTPClient) Imports(synth.Operation) []ir.Import { return nil }

func (HTTPClient) Dependencies(synth.Operation) []synth.Dependency { return nil }

func (HTTPClient) NativeSend(synth.Site) ir.Expr { return notSupported() }
func (HTTPClient) NativeRequest(synth.Site) ir.Expr { return ir.Code("client.Do") }

func (HTTPClient) NativeSource(synth.Site) ir.Block { return nil }

// Shared emits a constructor configured with the channel's method, retry
// policy, pagination and default auth scheme.
func (HTTPClient) Shared(site synth.Site) []ir.Decl {
	opts := site.Options.HTTP
	if opts == nil {
		opts = &synth.HTTPOptions{}
	}
	name := "New" + site.Names.Exported + "HTTPClient"
	imports := []ir.Import{importBinding}

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodPost
	}

	var body ir.Block
	if opts.Auth != "" {
		body = append(body, ir.If{
			Cond: ir.Code("auth.Scheme == binding.AuthNone"),
			Then: ir.Block{ir.Assign{Names: []string{"auth.Scheme"}, Value: ir.Code("binding.AuthScheme(" + strconv.Quote(opts.Auth) + ")")}},
		})
	}

	// Without a retry block the client sends each request once.
	if opts.Retry == nil {
		body = append(body, ir.Define{Names: []string{"retry"}, Value: ir.Code("binding.NoRetry()")})
	} else {
		r := opts.Retry
		body = append(body, ir.Define{Names: []string{"retry"}, Value: ir.Code("binding.DefaultRetryPolicy()")})
		set := func(field string, value string) {
			body = append(body, ir.Assign{Names: []string{"retry." + field}, Value: ir.Code(value)})
		}
		if r.MaxRetries > 0 {
			set("MaxRetries", strconv.Itoa(r.MaxRetries))
		}
		if r.InitialDelayMillis > 0 {
			set("InitialDelay", fmt.Sprintf("%d * time.Millisecond", r.InitialDelayMillis))
			imports = append(imports, ir.Import{Path: "time"})
		}
		if r.MaxDelayMillis > 0 {
			set("MaxDelay", fmt.Sprintf("%d * time.Millisecond", r.MaxDelayMillis))
			imports = append(imports, ir.Import{Path: "time"})
		}
		if r.Multiplier > 0 {
			set("Multiplier", strconv.FormatFloat(r.Multiplier, 'g', -1, 64))
		}
		if len(r.RetryableStatus) > 0 {
			codes := make([]string, len(r.RetryableStatus))
			for i, c := range r.RetryableStatus {
				codes[i] = strconv.Itoa(c)
			}
			set("RetryableStatus", "[]int{"+strings.Join(codes, ", ")+"}")
		}
		if !r.RetryOnNetworkError {
			set("RetryOnNetworkError", "false")
		}
	}

	client := ir.Composite{Type: "binding.HTTPClient", Fields: []ir.KeyValue{
		{Key: "BaseURL", Value: ir.Code("baseURL")},
		{Key: "Method", Value: ir.Quote(method)},
		{Key: "Auth", Value: ir.Code("auth")},
		{Key: "Retry", Value: ir.Code("retry")},
	}}
	if p := opts.Pagination; p != nil && p.Style != "" {
		fields := []ir.KeyValue{{Key: "Style", Value: ir.Code("binding.PaginationStyle(" + strconv.Quote(p.Style) + ")")}}
		if p.Limit > 0 {
			fields = append(fields, ir.KeyValue{Key: "Limit", Value: ir.Code(strconv.Itoa(p.Limit))})
		}
		client.Fields = append(client.Fields, ir.KeyValue{Key: "Pagination", Value: ir.Code("&" + renderComposite(fields))})
	}
	body = append(body, ir.Return{Values: []ir.Expr{client}})

	return []ir.Decl{&ir.FuncDecl{
		Doc:     fmt.Sprintf("%s returns a client for %s requests against baseURL.", name, site.Channel.ID()),
		Name:    name,
		Params:  []ir.Param{{Name: "baseURL", Type: "string"}, {Name: "auth", Type: "binding.Auth"}},
		Results: []ir.Param{{Type: "binding.HTTPClient"}},
		Body:    body,
		Imports: imports,
	}}
}

func renderComposite(fields []ir.KeyValue) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Key + ": " + string(f.Value.(ir.Code))
	}
	return "binding.Pagination{" + strings.Join(parts, ", ") + "}"
}
