package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/klauern/marksync/internal/region"
	"github.com/klauern/marksync/internal/table"
)

var listStyles = struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Muted  lipgloss.Style
}{
	Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
	Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
	Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
}

func render(style lipgloss.Style, text string) string {
	if !IsColorEnabled() {
		return text
	}
	return style.Render(text)
}

// RenderRules renders the sync table in execution order.
func RenderRules(rules []table.Rule) string {
	rows := make([][]string, 0, len(rules))
	for i, r := range rules {
		marks := strings.Join(r.Marks, ",")
		if marks == "" {
			marks = "*"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), r.Destination, r.Source, Title(r.Family.String()), marks})
	}
	title := fmt.Sprintf("Sync table (%d rules)", len(rules))
	return renderTable(title, []string{"#", "DESTINATION", "SOURCE", "FAMILY", "MARKS"}, rows)
}

// RenderSpans renders the regions found in a document.
func RenderSpans(path, doc string, spans []region.Span) string {
	rows := make([][]string, 0, len(spans))
	for _, s := range spans {
		lines := fmt.Sprintf("%d-%d", region.LineOf(doc, s.Begin), region.LineOf(doc, s.End))
		rows = append(rows, []string{s.Key, lines, Title(s.Family.String()), strings.TrimSpace(s.Token)})
	}
	title := fmt.Sprintf("%s (%d regions)", path, len(spans))
	return renderTable(title, []string{"MARK", "LINES", "FAMILY", "TOKEN"}, rows)
}

// renderTable lays out rows in padded columns. Widths are measured in
// terminal cells so wide runes in paths stay aligned.
func renderTable(title string, headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString(render(listStyles.Title, title))
	b.WriteString("\n")

	if len(rows) == 0 {
		b.WriteString(render(listStyles.Muted, "  (none)"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(renderRow(headers, widths, &listStyles.Header))
	for _, row := range rows {
		b.WriteString(renderRow(row, widths, nil))
	}
	return b.String()
}

func renderRow(cells []string, widths []int, style *lipgloss.Style) string {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		if i < len(cells)-1 {
			cell = runewidth.FillRight(cell, widths[i])
		}
		if style != nil {
			cell = render(*style, cell)
		}
		padded[i] = cell
	}
	return "  " + strings.Join(padded, "  ") + "\n"
}
