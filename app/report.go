package app

import (
	"strconv"
	"strings"
	"time"

	"github.com/artpar/channelgen/core/formatter"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/ports"
)

var (
	_ formatter.Document = Report{}
	_ formatter.Document = RunDetail{}
	_ formatter.Table    = RunList(nil)
	_ formatter.Table    = ProtocolList(nil)
)

// Sections lays the report out for the table formatter.
func (r Report) Sections() []formatter.Section {
	summary := formatter.Section{
		Title: "Run",
		Fields: [][2]string{
			{"ID", r.RunID},
			{"Status", r.Status},
			{"Package", r.Package},
			{"Output", r.OutputDir},
			{"Dry run", yesNo(r.DryRun)},
			{"Channels", strconv.Itoa(r.Channels)},
			{"Duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()},
		},
	}
	sections := []formatter.Section{summary, {Title: "Bindings", Table: bindingTable(r.Bindings)}}
	if len(r.Failures) > 0 {
		sections = append(sections, formatter.Section{Title: "Failures", Table: failureTable(r.Failures)})
	}
	if len(r.Warnings) > 0 {
		rows := make(stringTable, len(r.Warnings))
		for i, w := range r.Warnings {
			rows[i] = []string{w}
		}
		sections = append(sections, formatter.Section{Title: "Warnings", Table: columns{[]string{"warning"}, rows}})
	}
	sections = append(sections,
		formatter.Section{Title: "Files", Table: fileTable(r.Files)},
		formatter.Section{Title: "Dependencies", Table: dependencyTable(r)},
	)
	return sections
}

type stringTable [][]string

type columns struct {
	names []string
	rows  stringTable
}

func (c columns) Columns() []string { return c.names }
func (c columns) Rows() [][]string  { return c.rows }

func bindingTable(bs []BindingSummary) formatter.Table {
	rows := make(stringTable, len(bs))
	for i, b := range bs {
		rows[i] = []string{b.Channel, b.Protocol, b.Operation, b.Func}
	}
	return columns{[]string{"channel", "protocol", "operation", "func"}, rows}
}

func failureTable(fs []Failure) formatter.Table {
	rows := make(stringTable, len(fs))
	for i, f := range fs {
		rows[i] = []string{f.Channel, f.Protocol, f.Reason, f.Error}
	}
	return columns{[]string{"channel", "protocol", "reason", "error"}, rows}
}

func fileTable(fs []ports.WriteResult) formatter.Table {
	rows := make(stringTable, len(fs))
	for i, f := range fs {
		rows[i] = []string{f.Path, string(f.Status), strconv.Itoa(f.Bytes), shortDigest(f.Digest)}
	}
	return columns{[]string{"path", "status", "bytes", "digest"}, rows}
}

func dependencyTable(r Report) formatter.Table {
	rows := make(stringTable, len(r.Dependencies))
	for i, d := range r.Dependencies {
		rows[i] = []string{d.Module, d.Purpose}
	}
	return columns{[]string{"module", "purpose"}, rows}
}

// RunList is a page of history.
type RunList []ports.Run

func (RunList) Columns() []string {
	return []string{"id", "status", "started", "duration", "channels", "bindings", "failures", "files"}
}

func (l RunList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, r := range l {
		rows[i] = []string{
			r.ID,
			r.Status,
			r.StartedAt.Format(time.RFC3339),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
			strconv.Itoa(r.Channels),
			strconv.Itoa(r.Bindings),
			strconv.Itoa(r.Failures),
			strconv.Itoa(r.Files),
		}
	}
	return rows
}

// RunDetail is one recorded run with its files.
type RunDetail struct {
	Run       ports.Run        `json:"run" yaml:"run"`
	Artifacts []ports.Artifact `json:"artifacts" yaml:"artifacts"`
}

func (d RunDetail) Sections() []formatter.Section {
	r := d.Run
	rows := make(stringTable, len(d.Artifacts))
	for i, a := range d.Artifacts {
		rows[i] = []string{a.Path, string(a.Status), strconv.Itoa(a.Bytes), shortDigest(a.Digest)}
	}
	return []formatter.Section{
		{
			Title: "Run",
			Fields: [][2]string{
				{"ID", r.ID},
				{"Status", r.Status},
				{"Config", r.ConfigPath},
				{"Input", r.Input},
				{"Output", r.OutputDir},
				{"Dry run", yesNo(r.DryRun)},
				{"Started", r.StartedAt.Format(time.RFC3339)},
				{"Finished", r.FinishedAt.Format(time.RFC3339)},
			},
		},
		{Title: "Files", Table: columns{[]string{"path", "status", "bytes", "digest"}, rows}},
	}
}

// ProtocolInfo describes one registered transport.
type ProtocolInfo struct {
	Protocol   string   `json:"protocol" yaml:"protocol"`
	Operations []string `json:"operations" yaml:"operations"`
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Delimiter  string   `json:"delimiter" yaml:"delimiter"`
	Wildcard   string   `json:"wildcard,omitempty" yaml:"wildcard,omitempty"`
	Query      bool     `json:"query" yaml:"query"`
}

// ProtocolList lists the transports of a synthesizer.
type ProtocolList []ProtocolInfo

// Catalog describes every protocol s can synthesize, sorted by name.
func Catalog(s *synth.Synthesizer) ProtocolList {
	var out ProtocolList
	for _, p := range s.Protocols() {
		a, _ := s.Adapter(p)
		caps := a.Capabilities()
		info := ProtocolInfo{
			Protocol:  p,
			Delimiter: a.Delimiter().String(),
			Wildcard:  a.Wildcard(),
			Query:     caps.Query,
		}
		for _, op := range caps.Operations() {
			info.Operations = append(info.Operations, string(op))
		}
		for _, op := range synth.Extensions {
			if caps.Supports(op) {
				info.Extensions = append(info.Extensions, string(op))
			}
		}
		out = append(out, info)
	}
	return out
}

func (ProtocolList) Columns() []string {
	return []string{"protocol", "operations", "extensions", "delimiter", "wildcard", "query"}
}

func (l ProtocolList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, p := range l {
		rows[i] = []string{p.Protocol, strings.Join(p.Operations, ","), strings.Join(p.Extensions, ","), p.Delimiter, p.Wildcard, yesNo(p.Query)}
	}
	return rows
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
