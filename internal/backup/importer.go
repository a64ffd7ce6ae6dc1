package backup

import (
	"context"
	"fmt"

	"cafe-pos/internal/logging"
	"cafe-pos/internal/store"
)

// deleteOrder is the order tables are cleared in after the order children
var deleteOrder = []store.Table{
	store.Orders,
	store.MenuItems,
	store.DiningTables,
	store.Users,
	store.Settings,
	store.WhatsAppLogs,
	store.WhatsAppSettings,
}

// Importer replaces the store contents with a snapshot
type Importer struct {
	store   store.Store
	uploads *Uploads
	logger  *logging.Logger
}

// NewImporter creates an importer writing to s
func NewImporter(s store.Store, uploads *Uploads, logger *logging.Logger) *Importer {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Importer{store: s, uploads: uploads, logger: logger}
}

// RestoreBackup parses raw and restores it
func (i *Importer) RestoreBackup(ctx context.Context, raw []byte) (*RestoreSummary, error) {
	p, err := ParsePayload(raw)
	if err != nil {
		return nil, err
	}
	return i.Restore(ctx, p)
}

// Restore writes the payload's files and then replaces every business
// table inside one transaction. Files already written are kept if the
// transaction fails.
func (i *Importer) Restore(ctx context.Context, p *Payload) (*RestoreSummary, error) {
	if p == nil {
		return nil, NewValidationError("invalid backup file: type must be "+PayloadType, nil)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Version > PayloadVersion {
		i.logger.WithField("version", p.Version).Warn("Backup was written by a newer format version, restoring known fields only")
	}

	written, err := i.uploads.Restore(ctx, p.Files)
	if err != nil {
		return nil, err
	}

	counts := p.Counts()
	counts.Files = written

	err = i.store.WithTx(ctx, func(tx store.Tx) error {
		if err := clearTables(ctx, tx); err != nil {
			return err
		}
		return insertData(ctx, tx, p.Data)
	})
	if err != nil {
		return nil, NewTransactionError("restore transaction failed", err)
	}

	i.logger.WithFields(map[string]interface{}{
		"users":  counts.Users,
		"orders": counts.Orders,
		"files":  counts.Files,
	}).Info("Backup restored")

	return &RestoreSummary{Restored: counts}, nil
}

func clearTables(ctx context.Context, tx store.Tx) error {
	orderIDs, err := tx.ListIDs(ctx, store.Orders)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}
	if len(orderIDs) > 0 {
		if _, err := tx.DeleteByOrderIDs(ctx, store.OrderItems, orderIDs); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		if _, err := tx.DeleteByOrderIDs(ctx, store.Payments, orderIDs); err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
	}

	for _, t := range deleteOrder {
		if _, err := tx.DeleteAll(ctx, t); err != nil {
			return fmt.Errorf("delete %s: %w", t.Name, err)
		}
	}
	return nil
}

func insertData(ctx context.Context, tx store.Tx, data Data) error {
	if data.Settings != nil {
		if _, err := tx.Insert(ctx, store.Settings, data.Settings.Without("tenantId")); err != nil {
			return fmt.Errorf("insert settings: %w", err)
		}
	}

	steps := []struct {
		table store.Table
		recs  []store.Record
		strip bool
	}{
		{store.Users, data.Users, true},
		{store.MenuItems, data.MenuItems, true},
		{store.DiningTables, data.Tables, true},
		{store.Orders, data.Orders, true},
		{store.OrderItems, data.OrderItems, false},
		{store.Payments, data.Payments, true},
	}
	for _, step := range steps {
		recs := step.recs
		if step.strip {
			recs = stripTenant(recs)
		}
		if _, err := tx.InsertMany(ctx, step.table, recs); err != nil {
			return fmt.Errorf("insert %s: %w", step.table.Name, err)
		}
	}

	if data.WhatsAppSettings != nil {
		if _, err := tx.Insert(ctx, store.WhatsAppSettings, data.WhatsAppSettings.Without("tenantId")); err != nil {
			return fmt.Errorf("insert whatsapp settings: %w", err)
		}
	}
	return nil
}

func stripTenant(recs []store.Record) []store.Record {
	out := make([]store.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Without("tenantId")
	}
	return out
}
