package formatting

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	kstrings "kubeop/pkg/strings"
)

// maxCellWidth truncates long values in key/value tables.
const maxCellWidth = 100

type tableFormatter struct {
	options Options
}

// FormatData renders Tabular values as a rounded table and maps as
// key/value pairs. Anything else is printed as text.
func (f *tableFormatter) FormatData(data any) error {
	switch d := data.(type) {
	case Tabular:
		if len(d.Rows()) == 0 {
			_, err := fmt.Fprintln(f.options.Out, f.colorize(text.FgYellow, "No items found"))
			return err
		}
		t := f.createTable(table.StyleRounded, d.Headers())
		for _, row := range d.Rows() {
			t.AppendRow(toRow(row))
		}
		t.Render()
		return nil
	case map[string]string:
		t := f.createTable(table.StyleRounded, []string{"KEY", "VALUE"})
		for _, key := range slices.Sorted(maps.Keys(d)) {
			t.AppendRow(table.Row{key, kstrings.Truncate(d[key], maxCellWidth)})
		}
		t.Render()
		return nil
	default:
		return (&textFormatter{options: f.options}).FormatData(data)
	}
}

func (f *tableFormatter) createTable(style table.Style, headers []string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.Out)
	t.SetStyle(style)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = f.colorize(text.FgHiCyan, strings.ToUpper(h))
	}
	t.AppendHeader(header)
	return t
}

func (f *tableFormatter) colorize(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
