package cmd

import (
	"fmt"

	"cafe-pos/internal/whatsapp"

	"github.com/spf13/cobra"
)

func newWhatsAppCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whatsapp",
		Short: "WhatsApp notification tools",
	}
	cmd.AddCommand(newWhatsAppTestCommand(o))
	return cmd
}

func newWhatsAppTestCommand(o *rootOptions) *cobra.Command {
	var to, message string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test message with the stored WhatsApp settings",
		Example: `  cafe-pos whatsapp test --to 081234567890
  cafe-pos whatsapp test --to +6281234567890 --message "Hello from the cafe"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := o.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			client := whatsapp.NewClient(whatsapp.ClientConfig{
				BaseURL: a.config.WhatsApp.APIBaseURL,
				Timeout: a.config.WhatsApp.Timeout,
			}, a.logger)
			notifier := whatsapp.NewNotifier(s, client, a.config.WhatsApp.DefaultRegion, a.logger)

			res, err := notifier.SendTest(ctx, to, message)
			if err != nil {
				return err
			}

			printer, err := o.printer()
			if err != nil {
				return err
			}
			switch res.Status {
			case whatsapp.StatusSent:
				printer.Success("Message sent (id %s)", res.MessageID)
			case whatsapp.StatusSkipped:
				printer.Warning("Message skipped: %s", res.Reason)
			default:
				printer.Error("Message failed: %s", res.Reason)
			}
			if err := printer.Emit(res, nil); err != nil {
				return err
			}
			if res.Status == whatsapp.StatusFailed {
				return fmt.Errorf("whatsapp delivery failed: %s", res.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "recipient phone number")
	cmd.Flags().StringVar(&message, "message", "", "message text (a default test text is used when empty)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
