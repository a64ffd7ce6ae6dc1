package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cafe-pos/internal/errors"
	"cafe-pos/internal/logging"
	"cafe-pos/internal/metrics"
	"cafe-pos/internal/settings"
	"cafe-pos/internal/store"
)

// Delivery statuses recorded in whatsapp_logs
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Sender delivers a message and returns the provider message id
type Sender interface {
	Send(ctx context.Context, cfg settings.WhatsAppSettings, msg Message) (string, error)
}

// Result describes one notification attempt
type Result struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Notifier sends order notifications and records every attempt
type Notifier struct {
	store  store.Store
	sender Sender
	region string
	logger *logging.Logger
}

// NewNotifier creates a notifier. region is the default phone region.
func NewNotifier(s store.Store, sender Sender, region string, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Notifier{store: s, sender: sender, region: region, logger: logger}
}

// NotifyNewOrder tells the admin phone about a new order
func (n *Notifier) NotifyNewOrder(ctx context.Context, order store.Record) (Result, error) {
	cfg, err := settings.GetOrInitWhatsApp(ctx, n.store)
	if err != nil {
		return Result{}, err
	}
	if reason := skipReason(cfg); reason != "" {
		return Result{Status: StatusSkipped, Reason: reason}, nil
	}
	if !cfg.NotifyOnNewOrder {
		return Result{Status: StatusSkipped, Reason: "new order notifications disabled"}, nil
	}
	if cfg.AdminPhone == "" {
		return Result{Status: StatusSkipped, Reason: "no admin phone"}, nil
	}

	to, err := NormalizePhone(cfg.AdminPhone, n.region)
	if err != nil {
		return n.record(ctx, order, cfg.AdminPhone, TypeText, nil, err)
	}

	currency := ""
	if s, err := settings.GetOrInit(ctx, n.store); err == nil {
		currency = s.Currency
	}
	view := newOrderView(order, currency)

	var msg Message
	if cfg.OrderTemplate != "" {
		msg = NewTemplateMessage(to, cfg.OrderTemplate, cfg.TemplateLanguage, view.OrderNumber, view.Customer, view.Total)
	} else {
		body, err := render(newOrderText, view)
		if err != nil {
			return Result{}, err
		}
		msg = NewTextMessage(to, body)
	}

	return n.deliver(ctx, cfg, order, msg)
}

// NotifyOrderStatus tells the customer their order changed status
func (n *Notifier) NotifyOrderStatus(ctx context.Context, order store.Record) (Result, error) {
	cfg, err := settings.GetOrInitWhatsApp(ctx, n.store)
	if err != nil {
		return Result{}, err
	}
	if reason := skipReason(cfg); reason != "" {
		return Result{Status: StatusSkipped, Reason: reason}, nil
	}
	if !cfg.NotifyOnStatusChange {
		return Result{Status: StatusSkipped, Reason: "status notifications disabled"}, nil
	}

	phone := order.String("customerPhone")
	if phone == "" {
		return Result{Status: StatusSkipped, Reason: "order has no customer phone"}, nil
	}
	to, err := NormalizePhone(phone, n.region)
	if err != nil {
		return n.record(ctx, order, phone, TypeText, nil, err)
	}

	body, err := render(statusText, newOrderView(order, ""))
	if err != nil {
		return Result{}, err
	}
	return n.deliver(ctx, cfg, order, NewTextMessage(to, body))
}

// SendTest sends a free-form text message regardless of the notify flags
func (n *Notifier) SendTest(ctx context.Context, phone, text string) (Result, error) {
	cfg, err := settings.GetOrInitWhatsApp(ctx, n.store)
	if err != nil {
		return Result{}, err
	}
	if !cfg.Configured() {
		return Result{Status: StatusSkipped, Reason: "WhatsApp is not configured"}, nil
	}

	to, err := NormalizePhone(phone, n.region)
	if err != nil {
		return Result{}, errors.NewAppError(errors.ErrorTypeValidation, err.Error(), err)
	}
	if text == "" {
		text = "Test message from Cafe POS"
	}
	return n.deliver(ctx, cfg, nil, NewTextMessage(to, text))
}

func skipReason(cfg settings.WhatsAppSettings) string {
	switch {
	case !cfg.Enabled:
		return "WhatsApp notifications disabled"
	case !cfg.Configured():
		return "WhatsApp is not configured"
	default:
		return ""
	}
}

func (n *Notifier) deliver(ctx context.Context, cfg settings.WhatsAppSettings, order store.Record, msg Message) (Result, error) {
	id, err := n.sender.Send(ctx, cfg, msg)
	if err != nil {
		return n.record(ctx, order, msg.To, msg.Type, msg, err)
	}

	res, logErr := n.record(ctx, order, msg.To, msg.Type, msg, nil, id)
	if logErr == nil {
		n.logger.WithFields(map[string]interface{}{"to": msg.To, "message_id": id}).Info("WhatsApp message sent")
	}
	return res, logErr
}

// record writes a whatsapp_logs row for the attempt. The send error is
// reported in the Result, not returned.
func (n *Notifier) record(ctx context.Context, order store.Record, to, msgType string, msg any, sendErr error, providerID ...string) (Result, error) {
	res := Result{Status: StatusSent}
	row := store.Record{
		"recipient":   to,
		"messageType": msgType,
		"status":      StatusSent,
		"createdAt":   time.Now().UTC(),
	}
	if len(providerID) > 0 && providerID[0] != "" {
		res.MessageID = providerID[0]
		row["providerMessageId"] = providerID[0]
	}
	if order != nil {
		if id, ok := order.Int64("id"); ok {
			row["orderId"] = id
		}
	}
	if msg != nil {
		if raw, err := json.Marshal(msg); err == nil {
			row["payload"] = string(raw)
		}
	}
	if sendErr != nil {
		res = Result{Status: StatusFailed, Reason: sendErr.Error()}
		row["status"] = StatusFailed
		row["error"] = sendErr.Error()
		n.logger.WithFields(map[string]interface{}{"to": to, "error": sendErr.Error()}).Warn("WhatsApp message failed")
	}
	metrics.WhatsAppMessages.WithLabelValues(res.Status).Inc()

	err := n.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Insert(ctx, store.WhatsAppLogs, row)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("failed to record whatsapp log: %w", err)
	}
	return res, nil
}
