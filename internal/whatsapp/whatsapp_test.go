package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cafe-pos/internal/errors"
	"cafe-pos/internal/logging"
	"cafe-pos/internal/settings"
	"cafe-pos/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		region  string
		want    string
		wantErr bool
	}{
		{"local mobile", "0812-3456-7890", "ID", "6281234567890", false},
		{"default region", "0812 3456 7890", "", "6281234567890", false},
		{"international plus", "+1 650-253-0000", "ID", "16502530000", false},
		{"double zero prefix", "0016502530000", "ID", "16502530000", false},
		{"empty", "  ", "ID", "", true},
		{"garbage", "call me", "ID", "", true},
		{"too short", "123", "ID", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.region)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessagePayloads(t *testing.T) {
	raw, err := json.Marshal(NewTextMessage("628123", "hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"messaging_product": "whatsapp",
		"recipient_type": "individual",
		"to": "628123",
		"type": "text",
		"text": {"preview_url": false, "body": "hello"}
	}`, string(raw))

	raw, err = json.Marshal(NewTemplateMessage("628123", "new_order", "id", "ORD-1", "Budi"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"messaging_product": "whatsapp",
		"recipient_type": "individual",
		"to": "628123",
		"type": "template",
		"template": {
			"name": "new_order",
			"language": {"code": "id"},
			"components": [{"type": "body", "parameters": [
				{"type": "text", "text": "ORD-1"},
				{"type": "text", "text": "Budi"}
			]}]
		}
	}`, string(raw))
}

func TestRenderNewOrder(t *testing.T) {
	order := store.Record{"id": 5, "tableId": 3, "customerName": "Budi", "total": 56000.0, "notes": "less sugar"}
	body, err := render(newOrderText, newOrderView(order, "IDR"))
	require.NoError(t, err)
	assert.Equal(t, "New order #5 at table 3\nCustomer: Budi\nTotal: IDR 56000.00\nNotes: less sugar", body)
}

func testConfig() settings.WhatsAppSettings {
	return settings.WhatsAppSettings{Enabled: true, AccessToken: "tok", PhoneNumberID: "12345", APIVersion: "v19.0"}
}

func fastRetry() errors.RetryConfig {
	return errors.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestClient_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v19.0/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var msg Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "628123", msg.To)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.1"}]}`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, Retry: fastRetry()}, logging.NewNopLogger())
	id, err := c.Send(context.Background(), testConfig(), NewTextMessage("628123", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "wamid.1", id)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.3"}]}`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, Retry: fastRetry()}, logging.NewNopLogger())
	id, err := c.Send(context.Background(), testConfig(), NewTextMessage("628123", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "wamid.3", id)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, Retry: fastRetry()}, logging.NewNopLogger())
	_, err := c.Send(context.Background(), testConfig(), NewTextMessage("628123", "hi"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypePermission, errors.GetErrorType(err))
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RequiresConfiguration(t *testing.T) {
	c := NewClient(ClientConfig{}, logging.NewNopLogger())
	_, err := c.Send(context.Background(), settings.WhatsAppSettings{}, NewTextMessage("1", "x"))
	assert.Error(t, err)
}

type fakeSender struct {
	sent []Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, _ settings.WhatsAppSettings, msg Message) (string, error) {
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return "", f.err
	}
	return "wamid.fake", nil
}

func seedWhatsApp(t *testing.T, rec store.Record) *store.MemoryStore {
	t.Helper()
	m := store.NewMemoryStore()
	base := store.Record{"id": 1, "enabled": true, "accessToken": "tok", "phoneNumberId": "123", "adminPhone": "081234567890", "notifyOnNewOrder": true}
	for k, v := range rec {
		base[k] = v
	}
	require.NoError(t, m.Seed(store.WhatsAppSettings, base))
	return m
}

func TestNotifier_NotifyNewOrder(t *testing.T) {
	ctx := context.Background()
	m := seedWhatsApp(t, nil)
	sender := &fakeSender{}
	n := NewNotifier(m, sender, "ID", logging.NewNopLogger())

	res, err := n.NotifyNewOrder(ctx, store.Record{"id": 9, "orderNumber": "ORD-9", "total": 10.0})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, res.Status)
	assert.Equal(t, "wamid.fake", res.MessageID)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "6281234567890", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Text.Body, "ORD-9")

	logs, err := m.FindAll(ctx, store.WhatsAppLogs)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, StatusSent, logs[0].String("status"))
	assert.Equal(t, "wamid.fake", logs[0].String("providerMessageId"))
	id, _ := logs[0].Int64("orderId")
	assert.Equal(t, int64(9), id)
}

func TestNotifier_UsesTemplateWhenConfigured(t *testing.T) {
	m := seedWhatsApp(t, store.Record{"orderTemplate": "new_order", "templateLanguage": "en"})
	sender := &fakeSender{}
	n := NewNotifier(m, sender, "ID", logging.NewNopLogger())

	_, err := n.NotifyNewOrder(context.Background(), store.Record{"id": 1, "orderNumber": "ORD-1"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, TypeTemplate, sender.sent[0].Type)
	assert.Equal(t, "new_order", sender.sent[0].Template.Name)
}

func TestNotifier_SkipsWhenDisabled(t *testing.T) {
	m := seedWhatsApp(t, store.Record{"enabled": false})
	sender := &fakeSender{}
	n := NewNotifier(m, sender, "ID", logging.NewNopLogger())

	res, err := n.NotifyNewOrder(context.Background(), store.Record{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Empty(t, sender.sent)
	assert.Equal(t, 0, m.Count(store.WhatsAppLogs))
}

func TestNotifier_RecordsFailures(t *testing.T) {
	m := seedWhatsApp(t, store.Record{"notifyOnStatusChange": true})
	sender := &fakeSender{err: errors.NewHTTPStatusError(400, "bad recipient")}
	n := NewNotifier(m, sender, "ID", logging.NewNopLogger())

	res, err := n.NotifyOrderStatus(context.Background(), store.Record{"id": 2, "customerPhone": "081234567890", "status": "ready"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "bad recipient")

	logs, err := m.FindAll(context.Background(), store.WhatsAppLogs)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, StatusFailed, logs[0].String("status"))
	assert.Contains(t, logs[0].String("error"), "bad recipient")
}

func TestNotifier_SendTest(t *testing.T) {
	m := seedWhatsApp(t, store.Record{"enabled": false})
	sender := &fakeSender{}
	n := NewNotifier(m, sender, "ID", logging.NewNopLogger())

	res, err := n.SendTest(context.Background(), "+6281234567890", "")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, res.Status, "test messages ignore the enabled flag")
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Test message from Cafe POS", sender.sent[0].Text.Body)

	_, err = n.SendTest(context.Background(), "nope", "hi")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeValidation, errors.GetErrorType(err))
}
