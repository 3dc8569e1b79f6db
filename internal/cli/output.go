package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type printer struct {
	w *tabwriter.Writer
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) row(cols ...string) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(p.w, "\t")
		}
		fmt.Fprint(p.w, c)
	}
	fmt.Fprintln(p.w)
}

// writeOutput renders v as indented JSON, or calls text for the text format.
func writeOutput(cmd *cobra.Command, format string, v any, text func(p *printer)) error {
	out := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(out, v)
	}
	p := &printer{w: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)}
	text(p)
	return p.w.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
