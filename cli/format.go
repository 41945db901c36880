package cli

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// maxCellWidth limits the number of runes, a table cell shows.
const maxCellWidth = 80

var (
	cellReplacer = strings.NewReplacer("\r", "", "\t", " ")
	cellStyle    = lipgloss.NewStyle().PaddingRight(3)
)

func formatId(id int32) string {
	if id == 0 {
		return ""
	}
	return strconv.Itoa(int(id))
}

func formatTime(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return v.Format(time.RFC3339)
}

func formatTimeOrNil(v *time.Time) string {
	if v == nil {
		return ""
	}
	return formatTime(*v)
}

// formatCell reduces a value to a single line of at most maxCellWidth runes, e.g. a job error with stack trace.
func formatCell(v string) string {
	line, _, more := strings.Cut(strings.TrimSpace(v), "\n")
	line = cellReplacer.Replace(line)

	if utf8.RuneCountInString(line) > maxCellWidth {
		line, more = string([]rune(line)[:maxCellWidth-3]), true
	}
	if more {
		line += "..."
	}
	return line
}

func newTable(headers []string) *resultTable {
	return &resultTable{headers: headers}
}

// resultTable renders query results as plain text: a header row, a separator and one row per result.
type resultTable struct {
	headers []string
	rows    [][]string
}

func (t *resultTable) addRow(row []string) {
	cells := make([]string, len(row))
	for i, v := range row {
		cells[i] = formatCell(v)
	}
	t.rows = append(t.rows, cells)
}

func (t *resultTable) format() string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		StyleFunc(func(_, _ int) lipgloss.Style { return cellStyle }).
		Headers(t.headers...).
		Rows(t.rows...)

	return tbl.String() + "\n"
}
