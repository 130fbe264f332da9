package formatting

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

type textFormatter struct {
	options Options
}

// FormatData prints Stringers as is and Tabular values as borderless
// aligned columns, like kubectl.
func (f *textFormatter) FormatData(data any) error {
	switch d := data.(type) {
	case fmt.Stringer:
		_, err := fmt.Fprintln(f.options.Out, d.String())
		return err
	case Tabular:
		t := table.NewWriter()
		t.SetOutputMirror(f.options.Out)
		t.SetStyle(plainStyle())
		t.AppendHeader(toRow(d.Headers()))
		for _, row := range d.Rows() {
			t.AppendRow(toRow(row))
		}
		t.Render()
		return nil
	case string:
		_, err := fmt.Fprintln(f.options.Out, d)
		return err
	default:
		_, err := fmt.Fprintln(f.options.Out, PrettyJSON(d))
		return err
	}
}

func plainStyle() table.Style {
	style := table.StyleDefault
	style.Options = table.OptionsNoBordersAndSeparators
	style.Box.PaddingLeft = ""
	style.Box.PaddingRight = "   "
	return style
}
