package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"cafe-pos/internal/backup"
	"cafe-pos/internal/confirmation"
	"cafe-pos/internal/display"

	"github.com/spf13/cobra"
)

func newBackupCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export, restore and inspect snapshots",
		Long: `Snapshots hold every business table and the uploaded files the menu and
settings refer to. A restore replaces the current data completely.`,
	}

	cmd.AddCommand(
		newBackupExportCommand(o),
		newBackupRestoreCommand(o),
		newBackupInspectCommand(o),
		newArchiveCommand(o),
	)
	return cmd
}

func newBackupExportCommand(o *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of the current data",
		Example: `  cafe-pos backup export --output backup.json
  cafe-pos backup export > backup.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := o.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			svc, err := a.backupService(ctx)
			if err != nil {
				return err
			}
			p, err := svc.Export(ctx)
			if err != nil {
				return err
			}
			body, err := p.Encode()
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = o.out.Write(append(body, '\n'))
				return err
			}
			if err := os.WriteFile(output, body, 0o600); err != nil {
				return backup.NewFilesystemError("failed to write backup file", err)
			}

			printer, err := o.printer()
			if err != nil {
				return err
			}
			c := p.Counts()
			printer.Success("Backup written to %s (%d orders, %d files)", output, c.Orders, c.Files)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

func newBackupRestoreCommand(o *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace all data with a snapshot",
		Long: `Restore replaces every table and writes the snapshot's files into the
uploads directory. The whole database change runs in one transaction; if it
fails nothing is modified.

You are asked to confirm unless --yes is given. Without a terminal on stdin
the command refuses to run without --yes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			p, err := readPayload(args[0])
			if err != nil {
				return err
			}

			printer, err := o.printer()
			if err != nil {
				return err
			}
			confirm := confirmation.NewService(printer, o.errOut)
			ok, err := confirm.ConfirmRestore(ctx, previewOf(args[0], p), yes)
			if err != nil {
				return err
			}
			if !ok {
				printer.Warning("Restore aborted")
				return nil
			}

			a, err := o.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			svc, err := a.backupService(ctx)
			if err != nil {
				return err
			}
			summary, err := svc.RestorePayload(ctx, p)
			if err != nil {
				return err
			}
			printer.Success("Backup restored")
			return printer.Emit(summary, countsTable(printer, summary.Restored))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "restore without asking for confirmation")
	return cmd
}

// inspectResult is what inspect prints in json and yaml modes
type inspectResult struct {
	Type      string        `json:"type" yaml:"type"`
	Version   int           `json:"version" yaml:"version"`
	CreatedAt time.Time     `json:"createdAt" yaml:"createdAt"`
	Counts    backup.Counts `json:"counts" yaml:"counts"`
	Files     []string      `json:"files" yaml:"files"`
}

func newBackupInspectCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show what a snapshot contains without restoring it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPayload(args[0])
			if err != nil {
				return err
			}
			printer, err := o.printer()
			if err != nil {
				return err
			}

			res := inspectResult{
				Type:      p.Type,
				Version:   p.Version,
				CreatedAt: p.CreatedAt,
				Counts:    p.Counts(),
				Files:     make([]string, 0, len(p.Files)),
			}
			for _, f := range p.Files {
				res.Files = append(res.Files, f.Path)
			}

			if printer.Format() == display.FormatTable {
				printer.Header(args[0])
				printer.Info("Version %d, created %s", p.Version, formatCreatedAt(p.CreatedAt))
			}
			return printer.Emit(res, countsTable(printer, res.Counts))
		},
	}
}

func readPayload(path string) (*backup.Payload, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, backup.NewNotFoundError(fmt.Sprintf("backup file %s not found", path), err)
		}
		return nil, backup.NewFilesystemError("failed to read backup file", err)
	}
	return backup.ParsePayload(raw)
}

func previewOf(source string, p *backup.Payload) confirmation.Preview {
	preview := confirmation.Preview{
		Source:    source,
		CreatedAt: formatCreatedAt(p.CreatedAt),
		Tenant:    p.Tenant.String("name"),
	}
	if preview.Tenant == "" {
		preview.Tenant = p.Data.Settings.String("cafeName")
	}

	counts := p.Counts()
	for _, e := range counts.Map() {
		if e.Name == "files" {
			continue
		}
		preview.Tables = append(preview.Tables, confirmation.TableCount{Name: e.Name, Count: e.Count})
	}
	preview.Files = counts.Files
	return preview
}

func countsTable(printer *display.Printer, c backup.Counts) *display.Table {
	t := printer.NewTable("Collection", "Count")
	t.SetAlignment(1, display.AlignRight)
	for _, e := range c.Map() {
		t.AddRow(e.Name, strconv.Itoa(e.Count))
	}
	return t
}

func formatCreatedAt(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}

// commandContext returns the command context, which is nil when a command
// is executed without ExecuteContext
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
