package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cafe-pos/internal/backup"
	"cafe-pos/internal/config"
	"cafe-pos/internal/display"
	apperrors "cafe-pos/internal/errors"
	"cafe-pos/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information (set by SetVersionInfo)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	cfgFile   string
	verbose   bool
	quiet     bool
	logLevel  string
	logFormat string
	logFile   string

	noColor    bool
	theme      string
	format     string
	tableStyle string

	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
}

// NewRootCommand builds the command tree. out and errOut receive command
// output and status lines.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	o := &rootOptions{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "cafe-pos",
		Short: "Café point-of-sale backend",
		Long: `Cafe POS serves the point-of-sale API and manages snapshots of its data.

A snapshot is a single JSON document holding the settings, users, menu,
tables, orders, payments and WhatsApp settings together with every uploaded
file they reference. Snapshots can be downloaded, restored, and kept as
compressed (optionally encrypted) archives on local disk, S3, Azure Blob
Storage or Google Cloud Storage.

Examples:
  # Run the API
  cafe-pos serve --config cafe-pos.yaml

  # Write a snapshot to a file
  cafe-pos backup export --output backup.json

  # Restore a snapshot without prompting
  cafe-pos backup restore backup.json --yes

  # Keep a nightly archive and apply retention
  cafe-pos backup archive create --description nightly && cafe-pos backup archive prune`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if o.verbose && o.quiet {
				return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
			}
			return o.initConfig()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&o.cfgFile, "config", "", "config file (default is ./cafe-pos.yaml or $HOME/.cafe-pos.yaml)")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "suppress non-error output")
	flags.StringVar(&o.logLevel, "log-level", "", "log level (quiet, normal, verbose, debug)")
	flags.StringVar(&o.logFormat, "log-format", "", "log format (text, json)")
	flags.StringVar(&o.logFile, "log-file", "", "also write logs to this file")
	flags.BoolVar(&o.noColor, "no-color", false, "disable color output")
	flags.StringVar(&o.theme, "theme", "dark", "color theme (dark, light, plain)")
	flags.StringVar(&o.format, "format", "table", "output format (table, json, yaml)")
	flags.StringVar(&o.tableStyle, "table-style", "default", "table style (default, rounded, compact)")

	_ = o.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = o.v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = o.v.BindPFlag("logging.file", flags.Lookup("log-file"))

	root.AddCommand(
		newServeCommand(o),
		newMigrateCommand(o),
		newBackupCommand(o),
		newWhatsAppCommand(o),
		newTokenCommand(o),
		newConfigCommand(o),
		newVersionCommand(o),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	root := NewRootCommand(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describeError(err))
		os.Exit(1)
	}
}

// describeError prefers the user-facing message of typed errors. Server
// side failures keep their cause since the operator is the one reading it.
func describeError(err error) string {
	var backupErr *backup.BackupError
	if errors.As(err, &backupErr) && backupErr.IsClientError() {
		return backupErr.UserMessage()
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeValidation {
		return apperrors.FormatUserError(err)
	}
	return err.Error()
}

func (o *rootOptions) initConfig() error {
	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		o.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			o.v.AddConfigPath(home)
		}
		o.v.SetConfigType("yaml")
		o.v.SetConfigName("cafe-pos")
	}
	config.BindEnv(o.v)

	err := o.v.ReadInConfig()
	if o.cfgFile == "" && isConfigNotFound(err) {
		o.v.SetConfigName(".cafe-pos")
		err = o.v.ReadInConfig()
	}
	if err != nil && (o.cfgFile != "" || !isConfigNotFound(err)) {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func isConfigNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

// load returns the effective configuration with flag overrides applied
func (o *rootOptions) load() (*config.AppConfig, error) {
	c, err := config.Load(o.v)
	if err != nil {
		return nil, err
	}
	switch {
	case o.verbose:
		c.Logging.Level = string(logging.LogLevelVerbose)
	case o.quiet:
		c.Logging.Level = string(logging.LogLevelQuiet)
	}
	return c, nil
}

func (o *rootOptions) printer() (*display.Printer, error) {
	return display.NewPrinter(display.Config{
		ColorEnabled: !o.noColor,
		Theme:        o.theme,
		Format:       strings.ToLower(o.format),
		TableStyle:   o.tableStyle,
		Quiet:        o.quiet,
	}, o.out, o.errOut)
}

func newVersionCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(o.out, "cafe-pos version %s\n", version)
			fmt.Fprintf(o.out, "Built: %s\n", buildTime)
			fmt.Fprintf(o.out, "Commit: %s\n", gitCommit)
			fmt.Fprintf(o.out, "Go version: %s\n", goVersion)
		},
	}
}
