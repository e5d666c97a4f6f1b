package formatter

import (
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2/quick"
)

// DefaultStyle is the chroma style used for highlighted source.
const DefaultStyle = "monokai"

// Source writes one generated file under a header line. With color set the
// content is highlighted as Go for a 256-color terminal.
func Source(w io.Writer, path string, content []byte, color bool) error {
	if _, err := fmt.Fprintf(w, "// ---- %s ----\n", path); err != nil {
		return err
	}
	if !color {
		_, err := w.Write(content)
		return err
	}
	return quick.Highlight(w, string(content), "go", "terminal256", DefaultStyle)
}
