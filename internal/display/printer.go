package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

// Printer writes command results and status lines. Structured formats keep
// stdout machine readable by sending status lines to the error writer.
type Printer struct {
	out     io.Writer
	status  io.Writer
	format  OutputFormat
	style   TableStyle
	colors  *ColorSystem
	quiet   bool
	unicode bool
}

// NewPrinter builds a printer from cfg
func NewPrinter(cfg Config, out, errOut io.Writer) (*Printer, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, _ := ParseFormat(cfg.Format)

	p := &Printer{
		out:     out,
		status:  out,
		format:  format,
		style:   TableStyleByName(cfg.TableStyle),
		colors:  NewColorSystem(ThemeByName(cfg.Theme), cfg.ColorEnabled),
		quiet:   cfg.Quiet,
		unicode: detectUnicodeSupport(),
	}
	if format != FormatTable {
		p.status = errOut
	}
	return p, nil
}

// detectUnicodeSupport mirrors the usual LANG / TERM heuristics
func detectUnicodeSupport() bool {
	if os.Getenv("LANG") == "C" || os.Getenv("LC_ALL") == "C" {
		return false
	}
	if t := os.Getenv("TERM"); t == "dumb" || t == "vt100" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func (p *Printer) Format() OutputFormat {
	return p.format
}

func (p *Printer) Success(format string, args ...interface{}) {
	p.statusLine("✓", "[OK]", p.colors.Theme().Success, format, args...)
}

func (p *Printer) Warning(format string, args ...interface{}) {
	p.statusLine("⚠", "[WARN]", p.colors.Theme().Warning, format, args...)
}

// Error is printed even in quiet mode
func (p *Printer) Error(format string, args ...interface{}) {
	quiet := p.quiet
	p.quiet = false
	p.statusLine("✗", "[ERROR]", p.colors.Theme().Error, format, args...)
	p.quiet = quiet
}

func (p *Printer) Info(format string, args ...interface{}) {
	p.statusLine("ℹ", "[INFO]", p.colors.Theme().Info, format, args...)
}

func (p *Printer) statusLine(icon, fallback string, clr Color, format string, args ...interface{}) {
	if p.quiet {
		return
	}
	prefix := fallback
	if p.unicode {
		prefix = icon
	}
	fmt.Fprintf(p.status, "%s %s\n", p.colors.Colorize(prefix, clr), fmt.Sprintf(format, args...))
}

// Header prints a section title in table mode
func (p *Printer) Header(title string) {
	if p.format != FormatTable || p.quiet {
		return
	}
	fmt.Fprintf(p.out, "\n%s\n", p.colors.Colorize(title, p.colors.Theme().Primary))
}

// NewTable returns a table using the configured style and colors
func (p *Printer) NewTable(headers ...string) *Table {
	return NewTable(p.colors, p.style, headers...)
}

// Emit prints v as JSON or YAML, or renders table in table mode
func (p *Printer) Emit(v interface{}, table *Table) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		if table == nil {
			return nil
		}
		return table.Render(p.out)
	}
}
