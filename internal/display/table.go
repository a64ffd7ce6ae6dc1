package display

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Alignment represents column alignment options
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// BorderStyle defines table border characters
type BorderStyle struct {
	Horizontal string
	Vertical   string
	Cross      string
}

// TableStyle defines the visual style of a table
type TableStyle struct {
	Name    string
	Border  BorderStyle
	Padding int
}

var (
	// DefaultTableStyle is a plain ASCII grid
	DefaultTableStyle = TableStyle{
		Name:    "default",
		Border:  BorderStyle{Horizontal: "-", Vertical: "|", Cross: "+"},
		Padding: 1,
	}

	// RoundedTableStyle uses box drawing characters
	RoundedTableStyle = TableStyle{
		Name:    "rounded",
		Border:  BorderStyle{Horizontal: "─", Vertical: "│", Cross: "┼"},
		Padding: 1,
	}

	// CompactTableStyle has no borders
	CompactTableStyle = TableStyle{
		Name:    "compact",
		Padding: 1,
	}
)

// TableStyleByName returns a style by name, falling back to default
func TableStyleByName(name string) TableStyle {
	switch name {
	case "rounded":
		return RoundedTableStyle
	case "compact", "minimal":
		return CompactTableStyle
	default:
		return DefaultTableStyle
	}
}

// Table renders rows of text in aligned columns
type Table struct {
	headers    []string
	rows       [][]string
	alignments map[int]Alignment
	style      TableStyle
	colors     *ColorSystem
	maxWidth   int
}

// NewTable creates a table sized for the current terminal
func NewTable(colors *ColorSystem, style TableStyle, headers ...string) *Table {
	return &Table{
		headers:    headers,
		alignments: make(map[int]Alignment),
		style:      style,
		colors:     colors,
		maxWidth:   terminalWidth(),
	}
}

func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *Table) SetAlignment(column int, a Alignment) {
	t.alignments[column] = a
}

// SetMaxWidth overrides the detected terminal width. Zero disables truncation.
func (t *Table) SetMaxWidth(width int) {
	t.maxWidth = width
}

// Render writes the table to w
func (t *Table) Render(w io.Writer) error {
	widths := t.columnWidths()
	var b strings.Builder

	if len(t.headers) > 0 {
		t.renderRow(&b, t.headers, widths, true)
		t.renderRule(&b, widths)
	}
	for _, row := range t.rows {
		t.renderRow(&b, row, widths, false)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (t *Table) columnCount() int {
	n := len(t.headers)
	for _, row := range t.rows {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}

func (t *Table) columnWidths() []int {
	widths := make([]int, t.columnCount())
	measure := func(row []string) {
		for i, cell := range row {
			if l := utf8.RuneCountInString(cell); l > widths[i] {
				widths[i] = l
			}
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}

	if t.maxWidth <= 0 {
		return widths
	}
	// Shrink the widest column until the table fits
	for t.totalWidth(widths) > t.maxWidth {
		widest := 0
		for i := range widths {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= 8 {
			break
		}
		widths[widest]--
	}
	return widths
}

func (t *Table) totalWidth(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w + 2*t.style.Padding
	}
	if t.style.Border.Vertical != "" {
		total += len(widths) + 1
	}
	return total
}

func (t *Table) renderRule(b *strings.Builder, widths []int) {
	if t.style.Border.Horizontal == "" {
		return
	}
	b.WriteString(t.style.Border.Cross)
	for _, w := range widths {
		b.WriteString(strings.Repeat(t.style.Border.Horizontal, w+2*t.style.Padding))
		b.WriteString(t.style.Border.Cross)
	}
	b.WriteString("\n")
}

func (t *Table) renderRow(b *strings.Builder, row []string, widths []int, header bool) {
	pad := strings.Repeat(" ", t.style.Padding)
	b.WriteString(t.style.Border.Vertical)
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		b.WriteString(pad)
		b.WriteString(t.formatCell(cell, w, t.alignments[i], header))
		b.WriteString(pad)
		b.WriteString(t.style.Border.Vertical)
	}
	b.WriteString("\n")
}

// formatCell pads before coloring so escape codes do not count toward width
func (t *Table) formatCell(content string, width int, a Alignment, header bool) string {
	if utf8.RuneCountInString(content) > width {
		runes := []rune(content)
		if width > 3 {
			content = string(runes[:width-3]) + "..."
		} else {
			content = string(runes[:width])
		}
	}

	gap := strings.Repeat(" ", width-utf8.RuneCountInString(content))
	if header && t.colors != nil {
		content = t.colors.Colorize(content, t.colors.Theme().Primary)
	}
	if a == AlignRight {
		return gap + content
	}
	return content + gap
}

// terminalWidth returns the width of stdout, or 0 when it is not a terminal
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}
