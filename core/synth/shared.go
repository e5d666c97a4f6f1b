package synth

import (
	"fmt"
	"go/token"
	"strconv"
	"strings"

	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/core/render"
	"github.com/artpar/channelgen/domain/address"
	"github.com/artpar/channelgen/domain/descriptor"
	"github.com/artpar/channelgen/domain/param"
)

const (
	bindingImport = "github.com/artpar/channelgen/pkg/binding"
	addressImport = "github.com/artpar/channelgen/domain/address"
	paramImport   = "github.com/artpar/channelgen/domain/param"
)

var (
	importBinding = ir.Import{Path: bindingImport}
	importAddress = ir.Import{Path: addressImport}
	importParam   = ir.Import{Path: paramImport}
	importContext = ir.Import{Path: "context"}
	importFmt     = ir.Import{Path: "fmt"}
)

func renderDecls(decls []ir.Decl) (string, error) {
	return render.Decls(decls...)
}

// checkTypes rejects type and field names that would not compile.
func checkTypes(d descriptor.Descriptor) error {
	fail := func(format string, args ...any) error {
		return &descriptor.ChannelError{Channel: d.ID(), Reason: fmt.Sprintf(format, args...)}
	}

	for _, u := range []descriptor.Union{d.Messages(), d.Reply()} {
		seen := make(map[string]bool)
		for _, ref := range u.Types {
			if !token.IsIdentifier(ref.GoType) {
				return fail("message type %q is not a Go identifier", ref.GoType)
			}
			if seen[ref.GoType] {
				return fail("message type %s appears twice in one union", ref.GoType)
			}
			seen[ref.GoType] = true
		}
	}
	if h := d.Headers(); h != nil && !token.IsIdentifier(h.GoType) {
		return fail("header type %q is not a Go identifier", h.GoType)
	}

	fields := make(map[string]string)
	for _, p := range d.AllParameters() {
		f := Exported(p.Name)
		if prev, ok := fields[f]; ok {
			return fail("parameters %q and %q both map to field %s", prev, p.Name, f)
		}
		fields[f] = p.Name
	}
	return nil
}

// generator builds the declarations of one (channel, protocol) pair.
type generator struct {
	run     *Run
	desc    descriptor.Descriptor
	adapter Adapter
	names   Names
	opts    Options
	ops     []Operation
}

// has reports whether an operation of kind op is generated.
func (g *generator) has(op Operation) bool {
	for _, o := range g.ops {
		if o.Kind() == op {
			return true
		}
	}
	return false
}

func (g *generator) hasParams() bool { return len(g.desc.AllParameters()) > 0 }

// subscribes reports whether some operation opens a subscription.
func (g *generator) subscribes() bool {
	return g.has(Subscribe) || (g.has(Reply) && !g.adapter.Capabilities().InboundReply)
}

func (g *generator) channelVar() string { return g.names.Channel(g.adapter.Delimiter()) }
func (g *generator) decoderVar() string { return g.names.Decoder(g.adapter.Delimiter()) }

func (g *generator) site(op Operation) Site {
	return Site{Channel: g.desc, Names: g.names, Operation: op, Options: g.opts}
}

// --- Types ---

func goScalar(s param.Scalar) string {
	switch s {
	case param.ScalarInteger:
		return "int64"
	case param.ScalarNumber:
		return "float64"
	case param.ScalarBoolean:
		return "bool"
	default:
		return "string"
	}
}

func optional(p param.Spec) bool {
	return p.Location == param.LocationQuery && !p.Required && p.Type == param.TypeScalar
}

func fieldType(p param.Spec) string {
	switch p.Type {
	case param.TypeArray:
		return "[]" + goScalar(p.Scalar)
	case param.TypeObject:
		return "param.Object"
	}
	if optional(p) {
		return "*" + goScalar(p.Scalar)
	}
	return goScalar(p.Scalar)
}

func (g *generator) messageType() string { return unionType(g.desc.Messages(), g.names.Message()) }

func (g *generator) replyType() string {
	if !g.desc.HasReply() {
		return g.messageType()
	}
	return unionType(g.desc.Reply(), g.names.Reply())
}

func (g *generator) replyUnionName() string {
	if !g.desc.HasReply() {
		return g.names.Message()
	}
	return g.names.Reply()
}

func unionType(u descriptor.Union, name string) string {
	if u.IsUnion() {
		return name
	}
	return u.Single().GoType
}

func decodeFunc(u descriptor.Union, name string) string {
	if u.IsUnion() {
		return "decode" + name
	}
	return "Unmarshal" + u.Single().GoType
}

// validateFunc names the validation function for u, or returns "" when
// nothing validates.
func (g *generator) validateFunc(u descriptor.Union, name string) string {
	if !g.opts.Validate {
		return ""
	}
	if u.IsUnion() {
		for _, ref := range u.Types {
			if ref.Validate {
				return "validate" + name
			}
		}
		return ""
	}
	if ref := u.Single(); ref.Validate {
		return g.run.Validator(ref.GoType)
	}
	return ""
}

func encodeFunc(u descriptor.Union, name string) ir.Expr {
	if u.IsUnion() {
		return ir.Code("encode" + name)
	}
	t := u.Single().GoType
	return ir.FuncLit{
		Params:  []ir.Param{{Name: "r", Type: t}},
		Results: []ir.Param{{Type: "[]byte"}, {Type: "error"}},
		Body:    ir.Block{ir.Return{Values: []ir.Expr{ir.Code("r.Marshal()")}}},
	}
}

// marshaler is the binding.Marshaler expression for the outbound msg.
func marshaler(u descriptor.Union, name string) ir.Expr {
	if !u.IsUnion() {
		return ir.Code("msg")
	}
	return ir.Call{Fun: "binding.MarshalFunc", Args: []ir.Expr{ir.FuncLit{
		Results: []ir.Param{{Type: "[]byte"}, {Type: "error"}},
		Body:    ir.Block{ir.Return{Values: []ir.Expr{ir.Call{Fun: "encode" + name, Args: ir.Codes("msg")}}}},
	}}}
}

// --- Shared declarations ---

// shared returns the declarations every binding of the pair relies on. They
// are identical across protocols that share a delimiter, so the packaging
// step can merge them by name.
func (g *generator) shared() []ir.Decl {
	decls := []ir.Decl{g.channelDecl()}

	if g.hasParams() {
		decls = append(decls, g.parametersDecl(), g.valuesDecl())
		if g.subscribes() && g.adapter.Wildcard() != "" {
			decls = append(decls, g.filterDecl())
		}
		decls = append(decls, g.parametersFromDecl())
	}
	decls = append(decls, g.inboundDecl())

	if u := g.desc.Messages(); u.IsUnion() {
		decls = append(decls, g.unionDecls(u, g.names.Message())...)
	}
	if g.has(Subscribe) {
		decls = append(decls, &ir.TypeDecl{
			Doc:        fmt.Sprintf("%s receives a %s message or the error that replaced it.", g.names.Handler(), g.desc.ID()),
			Name:       g.names.Handler(),
			Alias:      true,
			Underlying: fmt.Sprintf("binding.Handler[%s, %s]", g.messageType(), g.names.Inbound()),
			Imports:    []ir.Import{importBinding},
		})
	}
	if u := g.desc.Reply(); g.has(Request) && g.desc.HasReply() && u.IsUnion() {
		decls = append(decls, g.unionDecls(u, g.names.Reply())...)
	}
	if g.has(Reply) {
		decls = append(decls, &ir.TypeDecl{
			Doc:        fmt.Sprintf("%s answers a %s request.", g.names.Responder(), g.desc.ID()),
			Name:       g.names.Responder(),
			Alias:      true,
			Underlying: fmt.Sprintf("binding.Responder[%s, %s, %s]", g.messageType(), g.replyType(), g.names.Inbound()),
			Imports:    []ir.Import{importBinding},
		})
	}
	if g.has(Subscribe) || g.has(Reply) {
		decls = append(decls, g.decoderDecl())
	}

	return append(decls, g.adapter.Shared(g.site(""))...)
}

func delimiterExpr(d address.Delimiter) string {
	if d == address.Slash {
		return "address.Slash"
	}
	return "address.Dot"
}

var (
	locationConst = map[param.Location]string{
		param.LocationPath: "param.LocationPath", param.LocationQuery: "param.LocationQuery", param.LocationTopic: "param.LocationTopic",
	}
	styleConst = map[param.Style]string{
		param.StyleSimple: "param.StyleSimple", param.StyleLabel: "param.StyleLabel", param.StyleMatrix: "param.StyleMatrix",
		param.StyleForm: "param.StyleForm", param.StyleSpaceDelimited: "param.StyleSpaceDelimited",
		param.StylePipeDelimited: "param.StylePipeDelimited", param.StyleDeepObject: "param.StyleDeepObject",
		param.StylePositional: "param.StylePositional",
	}
	typeConst = map[param.Type]string{
		param.TypeScalar: "param.TypeScalar", param.TypeArray: "param.TypeArray", param.TypeObject: "param.TypeObject",
	}
	scalarConst = map[param.Scalar]string{
		param.ScalarString: "param.ScalarString", param.ScalarInteger: "param.ScalarInteger",
		param.ScalarNumber: "param.ScalarNumber", param.ScalarBoolean: "param.ScalarBoolean",
	}
)

func specLiteral(p param.Spec) ir.Composite {
	fields := []ir.KeyValue{
		{Key: "Name", Value: ir.Quote(p.Name)},
		{Key: "Location", Value: ir.Code(locationConst[p.Location])},
		{Key: "Style", Value: ir.Code(styleConst[p.Style])},
	}
	if p.Explode {
		fields = append(fields, ir.KeyValue{Key: "Explode", Value: ir.Code("true")})
	}
	if p.AllowReserved {
		fields = append(fields, ir.KeyValue{Key: "AllowReserved", Value: ir.Code("true")})
	}
	fields = append(fields,
		ir.KeyValue{Key: "Type", Value: ir.Code(typeConst[p.Type])},
		ir.KeyValue{Key: "Scalar", Value: ir.Code(scalarConst[p.Scalar])},
	)
	if p.Required {
		fields = append(fields, ir.KeyValue{Key: "Required", Value: ir.Code("true")})
	}
	return ir.Composite{Type: "param.Spec", Fields: fields}
}

func (g *generator) channelDecl() ir.Decl {
	delim := g.adapter.Delimiter()
	args := []ir.Expr{
		ir.Quote(address.Render(g.desc.Template(), delim)),
		ir.Code(delimiterExpr(delim)),
	}
	imports := []ir.Import{importBinding, importAddress}
	for _, p := range g.desc.AllParameters() {
		args = append(args, specLiteral(p))
	}
	if g.hasParams() {
		imports = append(imports, importParam)
	}
	return &ir.VarDecl{
		Name:    g.channelVar(),
		Value:   ir.Call{Fun: "binding.MustChannel", Args: args},
		Imports: imports,
	}
}

func (g *generator) parametersDecl() ir.Decl {
	d := &ir.TypeDecl{
		Doc:  fmt.Sprintf("%s are the address and query parameters of %s.", g.names.Parameters(), g.desc.ID()),
		Name: g.names.Parameters(),
	}
	for _, p := range g.desc.AllParameters() {
		d.Struct = append(d.Struct, ir.Field{
			Name: Exported(p.Name),
			Type: fieldType(p),
			Tag:  fmt.Sprintf(`json:%s`, strconv.Quote(p.Name+omitempty(p))),
		})
		if p.Type == param.TypeObject {
			d.Imports = []ir.Import{importParam}
		}
	}
	return d
}

func omitempty(p param.Spec) string {
	if p.Required {
		return ""
	}
	return ",omitempty"
}

func (g *generator) valuesDecl() ir.Decl {
	body := ir.Block{ir.Define{Names: []string{"values"}, Value: ir.Code(fmt.Sprintf("make(map[string]any, %d)", len(g.desc.AllParameters())))}}
	var imports []ir.Import
	for _, p := range g.desc.AllParameters() {
		key := fmt.Sprintf("values[%s]", strconv.Quote(p.Name))
		field := "p." + Exported(p.Name)
		switch {
		case p.Type == param.TypeArray:
			body = append(body, ir.Assign{Names: []string{key}, Value: ir.Call{Fun: "binding.Items", Args: ir.Codes(field)}})
			imports = []ir.Import{importBinding}
		case p.Type == param.TypeObject:
			body = append(body, ir.If{Cond: ir.Code(field + " != nil"), Then: ir.Block{ir.Assign{Names: []string{key}, Value: ir.Code(field)}}})
		case optional(p):
			body = append(body, ir.If{Cond: ir.Code(field + " != nil"), Then: ir.Block{ir.Assign{Names: []string{key}, Value: ir.Code("*" + field)}}})
		default:
			body = append(body, ir.Assign{Names: []string{key}, Value: ir.Code(field)})
		}
	}
	body = append(body, ir.Return{Values: ir.Codes("values")})

	return &ir.FuncDecl{
		Recv:    &ir.Param{Name: "p", Type: g.names.Parameters()},
		Name:    "values",
		Results: []ir.Param{{Type: "map[string]any"}},
		Body:    body,
		Imports: imports,
	}
}

func zeroCheck(p param.Spec, field string) string {
	switch {
	case p.Type != param.TypeScalar:
		return "len(" + field + ") > 0"
	case p.Scalar == param.ScalarBoolean:
		return field
	case p.Scalar == param.ScalarString:
		return field + ` != ""`
	default:
		return field + " != 0"
	}
}

// filterDecl omits zero-valued address parameters so that the subscription
// pattern uses the transport wildcard for them.
func (g *generator) filterDecl() ir.Decl {
	body := ir.Block{ir.Define{Names: []string{"values"}, Value: ir.Code("make(map[string]any)")}}
	var imports []ir.Import
	for _, p := range g.desc.Parameters() {
		key := fmt.Sprintf("values[%s]", strconv.Quote(p.Name))
		field := "p." + Exported(p.Name)
		var value ir.Expr = ir.Code(field)
		if p.Type == param.TypeArray {
			value = ir.Call{Fun: "binding.Items", Args: ir.Codes(field)}
			imports = []ir.Import{importBinding}
		}
		body = append(body, ir.If{Cond: ir.Code(zeroCheck(p, field)), Then: ir.Block{ir.Assign{Names: []string{key}, Value: value}}})
	}
	body = append(body, ir.Return{Values: ir.Codes("values")})

	return &ir.FuncDecl{
		Doc:     "filter leaves zero-valued address parameters unset so that they match any value.",
		Recv:    &ir.Param{Name: "p", Type: g.names.Parameters()},
		Name:    "filter",
		Results: []ir.Param{{Type: "map[string]any"}},
		Body:    body,
		Imports: imports,
	}
}

func extractor(p param.Spec) string {
	name := strconv.Quote(p.Name)
	switch {
	case p.Type == param.TypeArray:
		return fmt.Sprintf("binding.List[%s](values, %s)", goScalar(p.Scalar), name)
	case p.Type == param.TypeObject:
		return fmt.Sprintf("binding.Fields(values, %s)", name)
	case optional(p):
		return fmt.Sprintf("binding.Optional[%s](values, %s)", goScalar(p.Scalar), name)
	default:
		return fmt.Sprintf("binding.Scalar[%s](values, %s)", goScalar(p.Scalar), name)
	}
}

func (g *generator) parametersFromDecl() ir.Decl {
	body := ir.Block{
		ir.Var{Name: "p", Type: g.names.Parameters()},
		ir.Var{Name: "err", Type: "error"},
	}
	for _, p := range g.desc.AllParameters() {
		body = append(body, ir.If{
			Init: ir.Assign{Names: []string{"p." + Exported(p.Name), "err"}, Value: ir.Code(extractor(p))},
			Cond: ir.Code("err != nil"),
			Then: ir.Block{ir.Return{Values: ir.Codes("p", "err")}},
		})
	}
	body = append(body, ir.Return{Values: ir.Codes("p", "nil")})

	return &ir.FuncDecl{
		Name:    g.names.ParametersFrom(),
		Params:  []ir.Param{{Name: "values", Type: "map[string]any"}},
		Results: []ir.Param{{Type: g.names.Parameters()}, {Type: "error"}},
		Body:    body,
		Imports: []ir.Import{importBinding},
	}
}

func (g *generator) inboundDecl() ir.Decl {
	d := &ir.TypeDecl{
		Doc:  fmt.Sprintf("%s is the metadata recovered from a received %s message.", g.names.Inbound(), g.desc.ID()),
		Name: g.names.Inbound(),
	}
	if g.hasParams() {
		d.Struct = append(d.Struct, ir.Field{Name: "Parameters", Type: g.names.Parameters()})
	}
	if h := g.desc.Headers(); h != nil {
		d.Struct = append(d.Struct, ir.Field{Name: "Headers", Type: "*" + h.GoType})
	}
	d.Struct = append(d.Struct, ir.Field{Name: "Address", Type: "string"})
	return d
}

// unionDecls emits the tagged union type with one decode, encode and
// validate arm per variant.
func (g *generator) unionDecls(u descriptor.Union, name string) []ir.Decl {
	var variants []string
	for _, ref := range u.Types {
		variants = append(variants, ref.GoType)
	}

	iface := &ir.TypeDecl{
		Doc:       fmt.Sprintf("%s is one of %s, selected by the %q property.", name, strings.Join(variants, ", "), u.Discriminator),
		Name:      name,
		Interface: []string{"Marshal() ([]byte, error)"},
	}

	field := strconv.Quote(u.Discriminator)
	var decodeCases, encodeCases, validateCases []ir.Case
	for _, ref := range u.Types {
		decodeCases = append(decodeCases, ir.Case{
			Values: []ir.Expr{ir.Quote(ref.Tag)},
			Body:   ir.Block{ir.Return{Values: []ir.Expr{ir.Call{Fun: "Unmarshal" + ref.GoType, Args: ir.Codes("data")}}}},
		})
		encodeCases = append(encodeCases, ir.Case{
			Values: ir.Codes(ref.GoType),
			Body:   ir.Block{ir.Return{Values: ir.Codes("v.Marshal()")}},
		})
		if g.opts.Validate && ref.Validate {
			validateCases = append(validateCases, ir.Case{
				Values: ir.Codes(ref.GoType),
				Body:   ir.Block{ir.Return{Values: []ir.Expr{ir.Call{Fun: g.run.Validator(ref.GoType), Args: ir.Codes("v")}}}},
			})
		}
	}
	decodeCases = append(decodeCases, ir.Case{Body: ir.Block{ir.Return{Values: []ir.Expr{
		ir.Code("nil"),
		ir.Code(fmt.Sprintf("&binding.UnknownVariantError{Field: %s, Tag: tag}", field)),
	}}}})
	encodeCases = append(encodeCases, ir.Case{Body: ir.Block{ir.Return{Values: []ir.Expr{
		ir.Code("nil"),
		ir.Code(fmt.Sprintf(`fmt.Errorf("%s: unsupported variant %%T", m)`, name)),
	}}}})

	decls := []ir.Decl{
		iface,
		&ir.FuncDecl{
			Name:    "decode" + name,
			Params:  []ir.Param{{Name: "data", Type: "[]byte"}},
			Results: []ir.Param{{Type: name}, {Type: "error"}},
			Body: ir.Block{
				ir.Define{Names: []string{"tag", "err"}, Value: ir.Call{Fun: "binding.Discriminator", Args: []ir.Expr{ir.Code("data"), ir.Code(field)}}},
				ir.CheckErr("nil"),
				ir.Switch{Tag: ir.Code("tag"), Cases: decodeCases},
			},
			Imports: []ir.Import{importBinding},
		},
		&ir.FuncDecl{
			Name:    "encode" + name,
			Params:  []ir.Param{{Name: "m", Type: name}},
			Results: []ir.Param{{Type: "[]byte"}, {Type: "error"}},
			Body:    ir.Block{ir.Switch{TypeOf: ir.Code("m"), Bind: "v", Cases: encodeCases}},
			Imports: []ir.Import{importFmt},
		},
	}
	if len(validateCases) > 0 {
		decls = append(decls, &ir.FuncDecl{
			Name:    "validate" + name,
			Params:  []ir.Param{{Name: "m", Type: name}},
			Results: []ir.Param{{Type: "error"}},
			Body: ir.Block{
				ir.Switch{TypeOf: ir.Code("m"), Bind: "v", Cases: validateCases},
				ir.Return{Values: ir.Codes("nil")},
			},
		})
	}
	return decls
}

func (g *generator) decoderDecl() ir.Decl {
	in := g.names.Inbound()
	recoverBody := ir.Block{ir.Define{Names: []string{"in"}, Value: ir.Code(in + "{Address: d.Address}")}}
	recoverCall := ir.Call{Fun: g.channelVar() + ".Recover", Args: ir.Codes("d.Address", "d.Query")}
	if g.hasParams() {
		recoverBody = append(recoverBody,
			ir.Define{Names: []string{"values", "err"}, Value: recoverCall},
			ir.If{Cond: ir.Code("err != nil"), Then: ir.Block{ir.Return{Values: ir.Codes("in", "err")}}},
			ir.If{
				Init: ir.Assign{Names: []string{"in.Parameters", "err"}, Value: ir.Call{Fun: g.names.ParametersFrom(), Args: ir.Codes("values")}},
				Cond: ir.Code("err != nil"),
				Then: ir.Block{ir.Return{Values: ir.Codes("in", "err")}},
			},
		)
	} else {
		recoverBody = append(recoverBody, ir.If{
			Init: ir.Define{Names: []string{"_", "err"}, Value: recoverCall},
			Cond: ir.Code("err != nil"),
			Then: ir.Block{ir.Return{Values: ir.Codes("in", "err")}},
		})
	}
	if h := g.desc.Headers(); h != nil {
		recoverBody = append(recoverBody, ir.If{
			Cond: ir.Code("len(d.Headers) > 0"),
			Then: ir.Block{
				ir.Define{Names: []string{"h", "err"}, Value: ir.Call{Fun: "Unmarshal" + h.GoType, Args: []ir.Expr{ir.Code("binding.HeaderJSON(d.Headers)")}}},
				ir.If{Cond: ir.Code("err != nil"), Then: ir.Block{ir.Return{Values: ir.Codes("in", "&binding.DecodeError{Err: err}")}}},
				ir.Assign{Names: []string{"in.Headers"}, Value: ir.Code("&h")},
			},
		})
	}
	recoverBody = append(recoverBody, ir.Return{Values: ir.Codes("in", "nil")})

	u := g.desc.Messages()
	fields := []ir.KeyValue{
		{Key: "Recover", Value: ir.FuncLit{
			Params:  []ir.Param{{Name: "d", Type: "binding.Delivery"}},
			Results: []ir.Param{{Type: in}, {Type: "error"}},
			Body:    recoverBody,
		}},
		{Key: "Decode", Value: ir.Code(decodeFunc(u, g.names.Message()))},
	}
	if v := g.validateFunc(u, g.names.Message()); v != "" {
		fields = append(fields, ir.KeyValue{Key: "Validate", Value: ir.Code(v)})
	}

	return &ir.VarDecl{
		Name:    g.decoderVar(),
		Value:   ir.Composite{Type: fmt.Sprintf("binding.Decoder[%s, %s]", g.messageType(), in), Fields: fields},
		Imports: []ir.Import{importBinding},
	}
}
