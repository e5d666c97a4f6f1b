package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// TableFormatter formats output as aligned text tables.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// Name returns the formatter name.
func (f *TableFormatter) Name() string {
	return "table"
}

// Description returns the formatter description.
func (f *TableFormatter) Description() string {
	return "Aligned text table output"
}

// Format lays out a Document or Table. Other values are printed as indented
// JSON.
func (f *TableFormatter) Format(w io.Writer, v any, opts FormatOptions) error {
	switch v := v.(type) {
	case Document:
		for i, s := range v.Sections() {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := f.section(w, s, opts); err != nil {
				return err
			}
		}
		return nil
	case Table:
		return f.table(w, v, opts)
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
}

// FormatError formats an error message.
func (f *TableFormatter) FormatError(w io.Writer, err error) error {
	_, werr := fmt.Fprintf(w, "Error: %s\n", err.Error())
	return werr
}

func (f *TableFormatter) section(w io.Writer, s Section, opts FormatOptions) error {
	if s.Title != "" {
		fmt.Fprintf(w, "%s:\n", s.Title)
	}
	if s.Table != nil {
		return f.table(w, s.Table, opts)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, kv := range s.Fields {
		fmt.Fprintf(tw, "%s:\t%s\n", kv[0], cell(kv[1], 0))
	}
	return tw.Flush()
}

func (f *TableFormatter) table(w io.Writer, t Table, opts FormatOptions) error {
	rows := t.Rows()
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "None.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !opts.NoHeader {
		var headers []string
		for _, col := range t.Columns() {
			headers = append(headers, strings.ToUpper(col))
		}
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}
	for _, row := range rows {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = cell(v, opts.MaxWidth)
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	return tw.Flush()
}

// cell formats a value for display.
func cell(s string, maxWidth int) string {
	if s == "" {
		return "-"
	}
	if maxWidth > 3 && len(s) > maxWidth {
		return s[:maxWidth-3] + "..."
	}
	return s
}
