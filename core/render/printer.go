package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/artpar/channelgen/core/ir"
)

// printer writes Go syntax. Indentation is left to go/format.
type printer struct {
	buf bytes.Buffer
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(&p.buf, format, args...)
}

func (p *printer) nl() { p.buf.WriteByte('\n') }

func (p *printer) doc(text string) {
	if text == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			p.printf("//\n")
			continue
		}
		p.printf("// %s\n", line)
	}
}

func (p *printer) decl(d ir.Decl) {
	switch d := d.(type) {
	case *ir.TypeDecl:
		p.doc(d.Doc)
		switch {
		case d.Alias:
			p.printf("type %s = %s\n", d.Name, d.Underlying)
		case d.Underlying != "":
			p.printf("type %s %s\n", d.Name, d.Underlying)
		case d.Interface != nil:
			p.printf("type %s interface {\n", d.Name)
			for _, m := range d.Interface {
				p.printf("%s\n", m)
			}
			p.printf("}\n")
		default:
			p.printf("type %s struct {\n", d.Name)
			for _, f := range d.Struct {
				p.doc(f.Doc)
				p.printf("%s %s", f.Name, f.Type)
				if f.Tag != "" {
					p.printf(" `%s`", f.Tag)
				}
				p.nl()
			}
			p.printf("}\n")
		}

	case *ir.VarDecl:
		p.doc(d.Doc)
		p.printf("var %s", d.Name)
		if d.Type != "" {
			p.printf(" %s", d.Type)
		}
		if d.Value != nil {
			p.printf(" = ")
			p.expr(d.Value)
		}
		p.nl()

	case *ir.FuncDecl:
		p.doc(d.Doc)
		p.printf("func ")
		if d.Recv != nil {
			p.printf("(%s %s) ", d.Recv.Name, d.Recv.Type)
		}
		p.printf("%s", d.Name)
		p.signature(d.Params, d.Results)
		p.printf(" {\n")
		p.block(d.Body)
		p.printf("}\n")

	default:
		panic(fmt.Sprintf("render: unknown declaration %T", d))
	}
}

func (p *printer) signature(params, results []ir.Param) {
	p.printf("(%s)", joinParams(params))
	switch {
	case len(results) == 0:
	case len(results) == 1 && results[0].Name == "":
		p.printf(" %s", results[0].Type)
	default:
		p.printf(" (%s)", joinParams(results))
	}
}

func joinParams(params []ir.Param) string {
	parts := make([]string, len(params))
	for i, prm := range params {
		if prm.Name == "" {
			parts[i] = prm.Type
		} else {
			parts[i] = prm.Name + " " + prm.Type
		}
	}
	return strings.Join(parts, ", ")
}

func (p *printer) block(b ir.Block) {
	for _, s := range b {
		p.stmt(s)
		p.nl()
	}
}

func (p *printer) stmt(s ir.Stmt) {
	switch s := s.(type) {
	case ir.Define:
		p.printf("%s := ", strings.Join(s.Names, ", "))
		p.expr(s.Value)
	case ir.Assign:
		p.printf("%s = ", strings.Join(s.Names, ", "))
		p.expr(s.Value)
	case ir.Var:
		p.printf("var %s", s.Name)
		if s.Type != "" {
			p.printf(" %s", s.Type)
		}
		if s.Value != nil {
			p.printf(" = ")
			p.expr(s.Value)
		}
	case ir.If:
		p.printf("if ")
		if s.Init != nil {
			p.stmt(s.Init)
			p.printf("; ")
		}
		p.expr(s.Cond)
		p.printf(" {\n")
		p.block(s.Then)
		p.printf("}")
		if len(s.Else) > 0 {
			p.printf(" else {\n")
			p.block(s.Else)
			p.printf("}")
		}
	case ir.Return:
		p.printf("return")
		for i, v := range s.Values {
			if i == 0 {
				p.printf(" ")
			} else {
				p.printf(", ")
			}
			p.expr(v)
		}
	case ir.ExprStmt:
		p.expr(s.X)
	case ir.Range:
		p.printf("for %s", s.Key)
		if s.Value != "" {
			p.printf(", %s", s.Value)
		}
		p.printf(" := range ")
		p.expr(s.X)
		p.printf(" {\n")
		p.block(s.Body)
		p.printf("}")
	case ir.For:
		p.printf("for ")
		if s.Cond != nil {
			p.expr(s.Cond)
			p.printf(" ")
		}
		p.printf("{\n")
		p.block(s.Body)
		p.printf("}")
	case ir.Switch:
		p.printf("switch ")
		if s.TypeOf != nil {
			if s.Bind != "" {
				p.printf("%s := ", s.Bind)
			}
			p.expr(s.TypeOf)
			p.printf(".(type) ")
		} else if s.Tag != nil {
			p.expr(s.Tag)
			p.printf(" ")
		}
		p.printf("{\n")
		for _, c := range s.Cases {
			if c.Values == nil {
				p.printf("default:\n")
			} else {
				p.printf("case ")
				p.exprList(c.Values)
				p.printf(":\n")
			}
			p.block(c.Body)
		}
		p.printf("}")
	case ir.Comment:
		p.printf("// %s", s.Text)
	default:
		panic(fmt.Sprintf("render: unknown statement %T", s))
	}
}

func (p *printer) exprList(xs []ir.Expr) {
	for i, x := range xs {
		if i > 0 {
			p.printf(", ")
		}
		p.expr(x)
	}
}

func (p *printer) expr(e ir.Expr) {
	switch e := e.(type) {
	case ir.Code:
		p.printf("%s", string(e))
	case ir.Call:
		p.printf("%s(", e.Fun)
		p.exprList(e.Args)
		p.printf(")")
	case ir.FuncLit:
		p.printf("func")
		p.signature(e.Params, e.Results)
		p.printf(" {\n")
		p.block(e.Body)
		p.printf("}")
	case ir.Composite:
		p.printf("%s{", e.Type)
		if len(e.Fields) > 0 {
			p.nl()
			for _, f := range e.Fields {
				if f.Key != "" {
					p.printf("%s: ", f.Key)
				}
				p.expr(f.Value)
				p.printf(",\n")
			}
		}
		p.printf("}")
	default:
		panic(fmt.Sprintf("render: unknown expression %T", e))
	}
}
