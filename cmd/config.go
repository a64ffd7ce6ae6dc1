package cmd

import (
	"fmt"
	"os"
	"sort"

	"cafe-pos/internal/config"
	"cafe-pos/internal/display"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, check and create configuration files",
		Long: `Configuration is read from --config, ./cafe-pos.yaml or $HOME/.cafe-pos.yaml.
Every key can be overridden with a CAFE_POS_ environment variable, for
example CAFE_POS_DATABASE_PASSWORD or CAFE_POS_AUTH_JWT_SECRET.`,
	}
	cmd.AddCommand(
		newConfigShowCommand(o),
		newConfigCheckCommand(o),
		newConfigInitCommand(o),
	)
	return cmd
}

func newConfigShowCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.load()
			if err != nil {
				return err
			}
			printer, err := o.printer()
			if err != nil {
				return err
			}
			if printer.Format() != display.FormatTable {
				return printer.Emit(c.Masked(), nil)
			}

			out, err := c.YAML()
			if err != nil {
				return err
			}
			if used := o.v.ConfigFileUsed(); used != "" {
				printer.Info("Loaded from %s", used)
			}
			_, err = o.out.Write(out)
			return err
		},
	}
}

func newConfigCheckCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the configuration and the directories it points at",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// invalid settings are reported by Check rather than returned
			c, err := config.Decode(o.v)
			if err != nil {
				return err
			}
			printer, err := o.printer()
			if err != nil {
				return err
			}

			result := config.Check(c)
			if printer.Format() == display.FormatTable {
				printHealth(printer, result)
			}
			if err := printer.Emit(result, healthTable(printer, result)); err != nil {
				return err
			}
			if result.OverallHealth == config.Unhealthy {
				return fmt.Errorf("configuration is %s", result.OverallHealth)
			}
			return nil
		},
	}
}

func printHealth(printer *display.Printer, r *config.HealthCheckResult) {
	switch r.OverallHealth {
	case config.Healthy:
		printer.Success("Configuration is healthy")
	case config.Degraded:
		printer.Warning("Configuration is degraded")
	default:
		printer.Error("Configuration is unhealthy")
	}
	for _, issue := range r.Issues {
		printer.Warning("%s", issue)
	}
	for _, rec := range r.Recommendations {
		printer.Info("%s", rec)
	}
}

func healthTable(printer *display.Printer, r *config.HealthCheckResult) *display.Table {
	components := make([]string, 0, len(r.ComponentStatus))
	for name := range r.ComponentStatus {
		components = append(components, name)
	}
	sort.Strings(components)

	t := printer.NewTable("Component", "Status")
	for _, name := range components {
		t.AddRow(name, r.ComponentStatus[name])
	}
	return t
}

func newConfigInitCommand(o *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with every default filled in",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "cafe-pos.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			}

			var c config.AppConfig
			c.SetDefaults()
			body, err := yaml.Marshal(&c)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, body, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			printer, err := o.printer()
			if err != nil {
				return err
			}
			printer.Success("Configuration written to %s", path)
			printer.Info("Set auth.jwt_secret before running serve")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
