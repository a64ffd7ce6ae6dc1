package display

import (
	"errors"
	"fmt"
	"slices"
)

// OutputFormat selects how command results are printed
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// Config holds the CLI presentation options
type Config struct {
	ColorEnabled bool   `mapstructure:"color_enabled" yaml:"color_enabled"`
	Theme        string `mapstructure:"theme" yaml:"theme"`
	Format       string `mapstructure:"format" yaml:"format"`
	TableStyle   string `mapstructure:"table_style" yaml:"table_style"`
	Quiet        bool   `mapstructure:"quiet" yaml:"quiet"`
}

// DefaultConfig returns colored table output with the dark theme
func DefaultConfig() Config {
	return Config{
		ColorEnabled: true,
		Theme:        "dark",
		Format:       string(FormatTable),
		TableStyle:   "default",
	}
}

// SetDefaults fills empty fields
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.Theme == "" {
		c.Theme = d.Theme
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.TableStyle == "" {
		c.TableStyle = d.TableStyle
	}
}

func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{"dark", "light", "plain", "none"}, c.Theme) {
		errs = append(errs, fmt.Errorf("invalid theme %q, must be one of: dark, light, plain", c.Theme))
	}
	if _, err := ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains([]string{"default", "rounded", "compact", "minimal"}, c.TableStyle) {
		errs = append(errs, fmt.Errorf("invalid table style %q, must be one of: default, rounded, compact", c.TableStyle))
	}
	return errors.Join(errs...)
}

// ParseFormat validates an --format value
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("invalid output format %q, must be one of: table, json, yaml", s)
	}
}
