package cmd

import (
	"context"

	apperrors "cafe-pos/internal/errors"
	"cafe-pos/internal/httpapi"
	"cafe-pos/internal/whatsapp"

	"github.com/spf13/cobra"
)

func newServeCommand(o *rootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the POS API, including the admin backup and restore endpoints:

  GET    /api/backup                    download a snapshot
  POST   /api/backup/restore            restore an uploaded snapshot
  GET    /api/backup/archives           list stored archives
  POST   /api/backup/archives           store a new archive
  POST   /api/backup/archives/{id}/restore
  DELETE /api/backup/archives/{id}
  POST   /api/whatsapp/test

The server stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newApp()
			if err != nil {
				return err
			}
			if address != "" {
				a.config.Server.Address = address
			}
			if err := a.config.ValidateServer(); err != nil {
				return err
			}
			return runServer(commandContext(cmd), a)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "listen address (overrides server.address)")
	return cmd
}

func runServer(parent context.Context, a *app) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	shutdown := apperrors.NewGracefulShutdownHandler()
	shutdown.RegisterShutdownFunc(func() error {
		a.logger.Info("Shutdown signal received")
		cancel()
		return nil
	})
	shutdown.Start()
	defer shutdown.Stop()

	svc, err := a.backupService(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	archives, err := a.archiveManager(ctx)
	if err != nil {
		a.logger.WithField("error", err.Error()).Warn("Archive storage unavailable, archive routes are disabled")
		archives = nil
	}

	client := whatsapp.NewClient(whatsapp.ClientConfig{
		BaseURL: a.config.WhatsApp.APIBaseURL,
		Timeout: a.config.WhatsApp.Timeout,
	}, a.logger)
	notifier := whatsapp.NewNotifier(a.store, client, a.config.WhatsApp.DefaultRegion, a.logger)

	server := httpapi.NewServer(httpapi.Config{
		Address:         a.config.Server.Address,
		ReadTimeout:     a.config.Server.ReadTimeout,
		WriteTimeout:    a.config.Server.WriteTimeout,
		JWTSecret:       a.config.Auth.JWTSecret,
		Issuer:          a.config.Auth.Issuer,
		MaxRestoreBytes: a.config.Server.MaxRestoreBytes,
		AllowedOrigins:  a.config.Server.AllowedOrigins,
	}, httpapi.Deps{
		Store:    a.store,
		Backup:   svc,
		Archives: archives,
		Notifier: notifier,
		Logger:   a.logger,
	})

	a.logger.WithField("address", a.config.Server.Address).Info("Starting HTTP server")
	return server.ListenAndServe(ctx, a.config.Server.ShutdownTimeout)
}
