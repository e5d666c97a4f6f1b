// Package output packages generated bindings into Go files and writes them.
package output

import (
	"fmt"
	"sort"

	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/core/render"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/ports"
)

// ValidatorsFile holds the validator variables of a run.
const ValidatorsFile = "channelgen_validators.go"

// Layout decides how bindings are split into files.
type Layout string

const (
	// ByChannel writes one file per channel.
	ByChannel Layout = "channel"
	// ByProtocol writes one file per channel and protocol.
	ByProtocol Layout = "protocol"
)

// Assemble groups bindings into files of package pkg. A declaration needed
// by several bindings is placed once, in the first file that needs it, so
// the files compile together as one package.
func Assemble(pkg string, layout Layout, bindings []synth.Binding, validators []ir.Decl) ([]ports.File, error) {
	type group struct {
		path     string
		channels []string
		decls    []ir.Decl
	}

	var order []string
	groups := make(map[string]*group)
	placed := make(map[string]bool)

	place := func(g *group, d ir.Decl) {
		name := d.DeclName()
		if placed[name] {
			return
		}
		placed[name] = true
		g.decls = append(g.decls, d)
	}

	for _, b := range bindings {
		path := synth.Snake(b.Channel)
		if layout == ByProtocol {
			path += "_" + synth.Snake(b.Protocol)
		}
		path += ".go"

		g, ok := groups[path]
		if !ok {
			g = &group{path: path, channels: []string{b.Channel}}
			groups[path] = g
			order = append(order, path)
		}
		for _, d := range b.Shared {
			place(g, d)
		}
		for _, d := range b.Decls {
			place(g, d)
		}
	}

	files := make([]ports.File, 0, len(order)+1)
	for _, path := range order {
		g := groups[path]
		src, err := render.File(pkg, g.decls)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", path, err)
		}
		files = append(files, ports.File{Path: path, Channels: g.channels, Content: src})
	}

	if len(validators) > 0 {
		src, err := render.File(pkg, validators)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", ValidatorsFile, err)
		}
		files = append(files, ports.File{Path: ValidatorsFile, Content: src})
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
