// Package backup exports and restores the café's business data.
//
// A snapshot (Payload) carries every business collection together with the
// uploaded files those records reference, base64 encoded. Restoring a
// snapshot replaces all business tables in a single transaction.
//
// Core Components:
//
// - Exporter: reads the store and collects referenced uploads
// - Importer: validates a payload and replaces the store contents
// - Uploads: locates upload roots and reads or writes files inside them
// - Service: the logged and measured entry point used by the API and CLI
//
// Example usage:
//
//	uploads := backup.NewUploads(cfg.Uploads.Roots, cfg.Uploads.DefaultRoot, logger)
//	svc := backup.NewService(sqlStore, uploads, nil, logger)
//
//	payload, err := svc.Export(ctx)
//	if err != nil {
//		return fmt.Errorf("export failed: %w", err)
//	}
//
//	summary, err := svc.Restore(ctx, raw)
//	if err != nil {
//		return fmt.Errorf("restore failed: %w", err)
//	}
//
// Files are written before the database transaction starts and are not
// removed if the transaction later fails.
package backup
