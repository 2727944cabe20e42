package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// tableColumn describes one rendered column. MaxWidth of zero means unbounded;
// longer cells wrap inside the column.
type tableColumn struct {
	Header   string
	Align    text.Align
	MaxWidth int
}

// renderTable lays rows out under columns with rounded borders. Short rows
// are padded; an optional footer is rendered below a separator.
func renderTable(columns []tableColumn, rows [][]string, footer ...string) string {
	if len(columns) == 0 {
		return ""
	}
	toRow := func(cells []string) table.Row {
		row := make(table.Row, len(columns))
		for i := range row {
			row[i] = ""
			if i < len(cells) {
				row[i] = cells[i]
			}
		}
		return row
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	headers := make([]string, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		headers[i] = col.Header
		configs[i] = table.ColumnConfig{
			Number:           i + 1,
			Align:            col.Align,
			AlignHeader:      text.AlignLeft,
			AlignFooter:      col.Align,
			WidthMax:         col.MaxWidth,
			WidthMaxEnforcer: text.WrapSoft,
		}
	}
	tw.AppendHeader(toRow(headers))
	for _, cells := range rows {
		tw.AppendRow(toRow(cells))
	}
	if len(footer) > 0 {
		tw.AppendFooter(toRow(footer))
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
