package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column.
type column struct {
	title string
	right bool
}

// tableView collects rows for one command output. A non-nil footer renders
// below a separator, which is where totals go.
type tableView struct {
	columns []column
	rows    []table.Row
	footer  table.Row
}

func newTable(columns ...column) *tableView {
	return &tableView{columns: columns}
}

func (t *tableView) add(cells ...string) {
	t.rows = append(t.rows, t.row(cells))
}

func (t *tableView) total(cells ...string) {
	t.footer = t.row(cells)
}

// row pads or cuts cells to the column count.
func (t *tableView) row(cells []string) table.Row {
	r := make(table.Row, len(t.columns))
	for i := range r {
		if i < len(cells) {
			r[i] = cells[i]
		} else {
			r[i] = ""
		}
	}
	return r
}

func (t *tableView) String() string {
	if len(t.columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	style := table.StyleRounded
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)

	header := make(table.Row, len(t.columns))
	configs := make([]table.ColumnConfig, len(t.columns))
	for i, c := range t.columns {
		header[i] = c.title
		align := text.AlignLeft
		if c.right {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignFooter: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.AppendRows(t.rows)
	if t.footer != nil {
		tw.AppendFooter(t.footer)
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func left(title string) column  { return column{title: title} }
func right(title string) column { return column{title: title, right: true} }

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

func paint(s, color string, enabled bool) string {
	if !enabled || color == "" {
		return s
	}
	return color + s + ansiReset
}
