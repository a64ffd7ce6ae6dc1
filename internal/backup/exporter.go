package backup

import (
	"context"
	"time"

	"cafe-pos/internal/logging"
	"cafe-pos/internal/store"
)

// Exporter builds snapshots from the store and the uploads directory
type Exporter struct {
	store   store.Reader
	uploads *Uploads
	logger  *logging.Logger
	now     func() time.Time
}

// NewExporter creates an exporter reading from r
func NewExporter(r store.Reader, uploads *Uploads, logger *logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Exporter{
		store:   r,
		uploads: uploads,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateBackup reads every business collection plus the referenced uploads.
// It never writes; a missing upload is logged and left out.
func (e *Exporter) CreateBackup(ctx context.Context) (*Payload, error) {
	data, err := e.readData(ctx)
	if err != nil {
		return nil, err
	}

	refs := UploadReferences(data)
	files, skipped := e.uploads.Collect(ctx, refs)
	if len(skipped) > 0 {
		e.logger.WithField("skipped", len(skipped)).Warn("Some uploads were not included in the backup")
	}

	p := &Payload{
		Type:      PayloadType,
		Version:   PayloadVersion,
		CreatedAt: e.now().UTC(),
		Tenant:    nil,
		Data:      data,
		Files:     files,
	}
	p.Data.ensureCollections()
	return p, nil
}

func (e *Exporter) readData(ctx context.Context) (Data, error) {
	var (
		data Data
		err  error
	)

	if data.Settings, err = e.store.FindFirst(ctx, store.Settings); err != nil {
		return Data{}, readError(store.Settings, err)
	}
	if data.Users, err = e.store.FindAll(ctx, store.Users); err != nil {
		return Data{}, readError(store.Users, err)
	}
	if data.MenuItems, err = e.store.FindAll(ctx, store.MenuItems); err != nil {
		return Data{}, readError(store.MenuItems, err)
	}
	if data.Tables, err = e.store.FindAll(ctx, store.DiningTables); err != nil {
		return Data{}, readError(store.DiningTables, err)
	}
	if data.Orders, err = e.store.FindAll(ctx, store.Orders); err != nil {
		return Data{}, readError(store.Orders, err)
	}

	if orderIDs := store.IDs(data.Orders); len(orderIDs) > 0 {
		if data.OrderItems, err = e.store.FindByOrderIDs(ctx, store.OrderItems, orderIDs); err != nil {
			return Data{}, readError(store.OrderItems, err)
		}
		if data.Payments, err = e.store.FindByOrderIDs(ctx, store.Payments, orderIDs); err != nil {
			return Data{}, readError(store.Payments, err)
		}
	}

	if data.WhatsAppSettings, err = e.store.FindFirst(ctx, store.WhatsAppSettings); err != nil {
		return Data{}, readError(store.WhatsAppSettings, err)
	}

	data.ensureCollections()
	return data, nil
}

func readError(t store.Table, err error) error {
	return NewDatabaseError("failed to read "+t.Name, err).WithContext("table", t.Name)
}

// UploadReferences lists the distinct /uploads/ paths referenced by data in
// the order they are first seen
func UploadReferences(data Data) []string {
	seen := make(map[string]bool)
	var refs []string

	add := func(rec store.Record, key string) {
		if rec == nil {
			return
		}
		p, ok := NormalizeUploadPath(rec.String(key))
		if !ok || seen[p] {
			return
		}
		seen[p] = true
		refs = append(refs, p)
	}

	for _, key := range []string{"logoUrl", "appIconUrl", "ogImageUrl"} {
		add(data.Settings, key)
	}
	for _, item := range data.MenuItems {
		add(item, "imageUrl")
	}
	for _, table := range data.Tables {
		add(table, "qrCode")
	}
	for _, payment := range data.Payments {
		add(payment, "paymentProof")
	}

	return refs
}
