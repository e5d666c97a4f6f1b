package render

import (
	"strings"
	"testing"

	"github.com/artpar/channelgen/core/ir"
)

func TestFile_GroupsImports(t *testing.T) {
	decls := []ir.Decl{
		&ir.FuncDecl{
			Doc:     "Ping sends a ping.\n\nIt never blocks.",
			Name:    "Ping",
			Params:  []ir.Param{{Name: "ctx", Type: "context.Context"}, {Name: "nc", Type: "*nats.Conn"}},
			Results: []ir.Param{{Type: "error"}},
			Body: ir.Block{
				ir.If{
					Init: ir.Define{Names: []string{"err"}, Value: ir.Call{Fun: "nc.Publish", Args: []ir.Expr{ir.Quote("ping"), ir.Code("nil")}}},
					Cond: ir.Code("err != nil"),
					Then: ir.Block{ir.Return{Values: ir.Codes(`fmt.Errorf("ping: %w", err)`)}},
				},
				ir.Return{Values: ir.Codes("ctx.Err()")},
			},
			Imports: []ir.Import{{Path: "github.com/nats-io/nats.go"}, {Path: "fmt"}, {Path: "context"}, {Path: "fmt"}},
		},
	}

	src, err := File("ping", decls)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	want := Header + `

package ping

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Ping sends a ping.
//
// It never blocks.
func Ping(ctx context.Context, nc *nats.Conn) error {
	if err := nc.Publish("ping", nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return ctx.Err()
}
`
	if string(src) != want {
		t.Errorf("File() =\n%s\nwant\n%s", src, want)
	}
}

func TestFile_NoImports(t *testing.T) {
	src, err := File("empty", []ir.Decl{&ir.TypeDecl{Name: "Empty"}})
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if strings.Contains(string(src), "import") {
		t.Errorf("unexpected import block:\n%s", src)
	}
	if !strings.Contains(string(src), "type Empty struct") {
		t.Errorf("missing type:\n%s", src)
	}
}

func TestDecls_Statements(t *testing.T) {
	tests := []struct {
		name string
		decl ir.Decl
		want string
	}{
		{
			name: "type switch",
			decl: &ir.FuncDecl{
				Name:    "kind",
				Params:  []ir.Param{{Name: "v", Type: "any"}},
				Results: []ir.Param{{Type: "string"}},
				Body: ir.Block{
					ir.Switch{TypeOf: ir.Code("v"), Bind: "x", Cases: []ir.Case{
						{Values: ir.Codes("int", "int64"), Body: ir.Block{ir.Return{Values: ir.Codes(`"int"`)}}},
						{Body: ir.Block{ir.Comment{Text: "fall back to the dynamic type"}, ir.ExprStmt{X: ir.Code("_ = x")}}},
					}},
					ir.Return{Values: ir.Codes(`"other"`)},
				},
			},
			want: "switch x := v.(type) {\n\tcase int, int64:",
		},
		{
			name: "range and composite",
			decl: &ir.VarDecl{
				Name: "defaults",
				Value: ir.Composite{Type: "Options", Fields: []ir.KeyValue{
					{Key: "Name", Value: ir.Quote("a")},
					{Key: "Limit", Value: ir.Code("10")},
				}},
			},
			want: "var defaults = Options{\n\tName:  \"a\",\n\tLimit: 10,\n}",
		},
		{
			name: "alias",
			decl: &ir.TypeDecl{Name: "Handler", Alias: true, Underlying: "func(string)"},
			want: "type Handler = func(string)",
		},
		{
			name: "method",
			decl: &ir.FuncDecl{
				Recv:    &ir.Param{Name: "p", Type: "Params"},
				Name:    "values",
				Results: []ir.Param{{Type: "map[string]any"}},
				Body: ir.Block{
					ir.Var{Name: "out", Type: "map[string]any"},
					ir.Range{Key: "k", Value: "v", X: ir.Code("p.m"), Body: ir.Block{ir.Assign{Names: []string{"out[k]"}, Value: ir.Code("v")}}},
					ir.Return{Values: ir.Codes("out")},
				},
			},
			want: "func (p Params) values() map[string]any {\n\tvar out map[string]any\n\tfor k, v := range p.m {",
		},
		{
			name: "loops",
			decl: &ir.FuncDecl{
				Name:   "drain",
				Params: []ir.Param{{Name: "ch", Type: "chan int"}},
				Body: ir.Block{
					ir.For{Cond: ir.Code("len(ch) > 0"), Body: ir.Block{ir.ExprStmt{X: ir.Code("<-ch")}}},
					ir.For{Body: ir.Block{ir.Return{}}},
				},
			},
			want: "\tfor len(ch) > 0 {\n\t\t<-ch\n\t}\n\tfor {\n\t\treturn\n\t}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Decls(tt.decl)
			if err != nil {
				t.Fatalf("Decls failed: %v", err)
			}
			if !strings.Contains(src, tt.want) {
				t.Errorf("Decls() =\n%s\nwant it to contain\n%s", src, tt.want)
			}
		})
	}
}

func TestDecls_InvalidSource(t *testing.T) {
	_, err := Decls(&ir.VarDecl{Name: "broken", Value: ir.Code("func(")})
	if err == nil {
		t.Error("expected a format error")
	}
}
