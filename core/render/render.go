// Package render prints ir declarations as gofmt'd Go source.
package render

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"text/template"

	"github.com/artpar/channelgen/core/ir"
)

// Header is the first line of every generated file.
const Header = "// Code generated by channelgen. DO NOT EDIT."

var fileTemplate = template.Must(template.New("file").Parse(`{{.Header}}

package {{.Package}}
{{if or .Std .Others}}
import (
{{- range .Std}}
	{{if .Alias}}{{.Alias}} {{end}}"{{.Path}}"{{end}}
{{- if and .Std .Others}}
{{end}}
{{- range .Others}}
	{{if .Alias}}{{.Alias}} {{end}}"{{.Path}}"{{end}}
)
{{end}}
{{.Body}}
`))

type fileData struct {
	Header  string
	Package string
	Std     []ir.Import
	Others  []ir.Import
	Body    string
}

// isStd reports whether an import path belongs to the standard library.
func isStd(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".")
}

// File renders a complete source file for pkg holding decls. Imports are
// collected from the declarations.
func File(pkg string, decls []ir.Decl) ([]byte, error) {
	var imports []ir.Import
	for _, d := range decls {
		imports = append(imports, d.DeclImports()...)
	}

	data := fileData{Header: Header, Package: pkg, Body: printDecls(decls)}
	for _, imp := range ir.SortImports(imports) {
		if isStd(imp.Path) {
			data.Std = append(data.Std, imp)
		} else {
			data.Others = append(data.Others, imp)
		}
	}

	var buf bytes.Buffer
	err := fileTemplate.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("execute file template: %w", err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s source: %w", pkg, err)
	}
	return src, nil
}

// Decls renders declarations without a package clause or imports.
func Decls(decls ...ir.Decl) (string, error) {
	src, err := format.Source([]byte(printDecls(decls)))
	if err != nil {
		return "", fmt.Errorf("format declarations: %w", err)
	}
	return string(src), nil
}

func printDecls(decls []ir.Decl) string {
	p := &printer{}
	for i, d := range decls {
		if i > 0 {
			p.nl()
		}
		p.decl(d)
	}
	return p.buf.String()
}
