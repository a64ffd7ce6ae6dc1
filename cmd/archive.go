package cmd

import (
	"fmt"
	"os"
	"strings"

	"cafe-pos/internal/archive"
	"cafe-pos/internal/confirmation"
	"cafe-pos/internal/display"

	"github.com/spf13/cobra"
)

func newArchiveCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage stored snapshot archives",
		Long: `Archives are snapshots kept in the configured storage (local directory,
S3, Azure Blob Storage or Google Cloud Storage), compressed and optionally
encrypted. Archives tagged "protected" are never removed by prune.`,
	}

	cmd.AddCommand(
		newArchiveCreateCommand(o),
		newArchiveListCommand(o),
		newArchiveRestoreCommand(o),
		newArchiveDeleteCommand(o),
		newArchivePruneCommand(o),
	)
	return cmd
}

func newArchiveCreateCommand(o *rootOptions) *cobra.Command {
	var (
		description string
		tags        []string
		createdBy   string
	)

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Export the current data into a new archive",
		Example: `  cafe-pos backup archive create --description "before menu update" --tag protected`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := o.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			manager, err := a.archiveManager(ctx)
			if err != nil {
				return err
			}
			svc, err := a.backupService(ctx)
			if err != nil {
				return err
			}
			p, err := svc.Export(ctx)
			if err != nil {
				return err
			}
			raw, err := p.Encode()
			if err != nil {
				return err
			}

			meta, err := manager.Create(ctx, raw, archive.CreateOptions{
				Description: description,
				Tags:        tags,
				CreatedBy:   createdBy,
			})
			if err != nil {
				return err
			}

			printer, err := o.printer()
			if err != nil {
				return err
			}
			printer.Success("Archive %s created (%s stored)", meta.ID, formatBytes(meta.StoredSize))
			return printer.Emit(meta, archivesTable(printer, []*archive.Metadata{meta}))
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "description stored with the archive")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag to attach (repeatable)")
	cmd.Flags().StringVar(&createdBy, "created-by", os.Getenv("USER"), "operator recorded as the archive author")
	return cmd
}

func newArchiveListCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored archives, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := o.newApp()
			if err != nil {
				return err
			}
			manager, err := a.archiveManager(ctx)
			if err != nil {
				return err
			}
			list, err := manager.List(ctx)
			if err != nil {
				return err
			}

			printer, err := o.printer()
			if err != nil {
				return err
			}
			if len(list) == 0 && printer.Format() == display.FormatTable {
				printer.Info("No archives found")
				return nil
			}
			if list == nil {
				list = []*archive.Metadata{}
			}
			return printer.Emit(list, archivesTable(printer, list))
		},
	}
}

func newArchiveRestoreCommand(o *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Replace all data with a stored archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := o.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			manager, err := a.archiveManager(ctx)
			if err != nil {
				return err
			}
			p, meta, err := manager.LoadPayload(ctx, args[0])
			if err != nil {
				return err
			}

			printer, err := o.printer()
			if err != nil {
				return err
			}
			source := "archive " + meta.ID
			if meta.Description != "" {
				source += " (" + meta.Description + ")"
			}
			ok, err := confirmation.NewService(printer, o.errOut).ConfirmRestore(ctx, previewOf(source, p), yes)
			if err != nil {
				return err
			}
			if !ok {
				printer.Warning("Restore aborted")
				return nil
			}

			svc, err := a.backupService(ctx)
			if err != nil {
				return err
			}
			summary, err := svc.RestorePayload(ctx, p)
			if err != nil {
				return err
			}
			printer.Success("Archive %s restored", meta.ID)
			return printer.Emit(summary, countsTable(printer, summary.Restored))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "restore without asking for confirmation")
	return cmd
}

func newArchiveDeleteCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := o.newApp()
			if err != nil {
				return err
			}
			manager, err := a.archiveManager(ctx)
			if err != nil {
				return err
			}
			if err := manager.Delete(ctx, args[0]); err != nil {
				return err
			}

			printer, err := o.printer()
			if err != nil {
				return err
			}
			printer.Success("Archive %s deleted", args[0])
			return nil
		},
	}
}

func newArchivePruneCommand(o *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archives outside the retention policy",
		Long: `Prune applies archive.retention. An archive is removed when it is not
among the newest max_archives or is older than max_age. The newest archive
and archives tagged "protected" are always kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := o.newApp()
			if err != nil {
				return err
			}
			manager, err := a.archiveManager(ctx)
			if err != nil {
				return err
			}
			plan, err := manager.Prune(ctx, dryRun)
			if err != nil {
				return err
			}

			printer, err := o.printer()
			if err != nil {
				return err
			}
			if printer.Format() != display.FormatTable {
				return printer.Emit(plan, nil)
			}
			if len(plan.Delete) == 0 {
				printer.Info("Nothing to prune, %d archives kept", len(plan.Keep))
				return nil
			}
			if dryRun {
				printer.Warning("Dry run: %d archives would be deleted", len(plan.Delete))
			} else {
				printer.Success("%d archives deleted, %d kept", len(plan.Delete), len(plan.Keep))
			}
			return printer.Emit(plan, archivesTable(printer, plan.Delete))
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be deleted without deleting")
	return cmd
}

func archivesTable(printer *display.Printer, list []*archive.Metadata) *display.Table {
	t := printer.NewTable("ID", "Created", "Description", "Orders", "Files", "Size", "Compression", "Encrypted", "Tags")
	for _, col := range []int{3, 4, 5} {
		t.SetAlignment(col, display.AlignRight)
	}
	for _, m := range list {
		encrypted := "no"
		if m.Encrypted {
			encrypted = "yes"
		}
		t.AddRow(
			m.ID,
			formatCreatedAt(m.CreatedAt),
			m.Description,
			fmt.Sprint(m.Counts.Orders),
			fmt.Sprint(m.Counts.Files),
			formatBytes(m.StoredSize),
			string(m.Compression),
			encrypted,
			strings.Join(m.Tags, ","),
		)
	}
	return t
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
