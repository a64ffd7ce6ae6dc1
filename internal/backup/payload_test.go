package backup

import (
	"encoding/json"
	"testing"
	"time"

	"cafe-pos/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload_RejectsWrongType(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty body", ""},
		{"null", "null"},
		{"not json", "{oops"},
		{"array", "[]"},
		{"missing type", `{"version":1,"data":{}}`},
		{"other tag", `{"type":"other","version":1,"data":{}}`},
		{"type not a string", `{"type":1}`},
		{"case differs", `{"type":"CMS-BACKUP"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tt.raw))
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestParsePayload_ToleratesMissingFields(t *testing.T) {
	p, err := ParsePayload([]byte(`{"type":"cms-backup"}`))
	require.NoError(t, err)

	assert.Equal(t, PayloadVersion, p.Version)
	assert.Nil(t, p.Tenant)
	assert.Nil(t, p.Data.Settings)
	assert.Nil(t, p.Data.WhatsAppSettings)
	assert.NotNil(t, p.Data.Users)
	assert.Empty(t, p.Data.Users)
	assert.Empty(t, p.Data.MenuItems)
	assert.Empty(t, p.Data.Tables)
	assert.Empty(t, p.Data.Orders)
	assert.Empty(t, p.Data.OrderItems)
	assert.Empty(t, p.Data.Payments)
	assert.NotNil(t, p.Files)
	assert.Empty(t, p.Files)
}

func TestParsePayload_NormalisesShapes(t *testing.T) {
	raw := `{
		"type": "cms-backup",
		"version": 2,
		"createdAt": "2024-05-01T10:00:00.000Z",
		"tenant": "acme",
		"data": {
			"settings": [1, 2],
			"users": {"id": 1},
			"menuItems": [{"id": 1, "price": 12.5}, 7, null, "x"],
			"orders": null,
			"whatsappSettings": {"enabled": true}
		},
		"files": [
			{"path": "/uploads/a.png", "contentBase64": "aGk="},
			{"path": "", "contentBase64": "aGk="},
			{"path": "/uploads/b.png"},
			{"path": 5, "contentBase64": "aGk="},
			"junk"
		]
	}`

	p, err := ParsePayload([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, 2, p.Version)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), p.CreatedAt)
	assert.Nil(t, p.Tenant)
	assert.Nil(t, p.Data.Settings)
	assert.Empty(t, p.Data.Users)
	require.Len(t, p.Data.MenuItems, 1)
	assert.Equal(t, json.Number("12.5"), p.Data.MenuItems[0]["price"])
	assert.Empty(t, p.Data.Orders)
	assert.Equal(t, true, p.Data.WhatsAppSettings["enabled"])
	assert.Equal(t, []File{{Path: "/uploads/a.png", ContentBase64: "aGk="}}, p.Files)
}

func TestPayload_EncodeEmitsEmptyArrays(t *testing.T) {
	p := &Payload{Type: PayloadType, Version: PayloadVersion}

	out, err := p.Encode()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	data := decoded["data"].(map[string]interface{})

	assert.Nil(t, decoded["tenant"])
	assert.Nil(t, data["settings"])
	assert.Equal(t, []interface{}{}, data["users"])
	assert.Equal(t, []interface{}{}, data["payments"])
	assert.Equal(t, []interface{}{}, decoded["files"])
}

func TestPayload_Counts(t *testing.T) {
	p := &Payload{
		Data: Data{
			Settings:   store.Record{"id": 1},
			Users:      []store.Record{{"id": 1}, {"id": 2}},
			OrderItems: []store.Record{{"id": 1}},
		},
		Files: []File{{Path: "/uploads/a", ContentBase64: "YQ=="}},
	}

	c := p.Counts()
	assert.Equal(t, 1, c.Settings)
	assert.Equal(t, 2, c.Users)
	assert.Equal(t, 1, c.OrderItems)
	assert.Equal(t, 0, c.WhatsAppSettings)
	assert.Equal(t, 1, c.Files)
	assert.Len(t, c.Map(), 9)
	assert.Equal(t, "settings", c.Map()[0].Name)
}

func TestPayload_Validate(t *testing.T) {
	p := &Payload{Type: PayloadType, Files: []File{{Path: "/uploads/ok.png"}, {Path: "/etc/passwd"}}}
	err := p.Validate()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	p.Files = p.Files[:1]
	assert.NoError(t, p.Validate())

	p.Files = []File{{Path: `\uploads\menu\latte.jpg`}}
	assert.NoError(t, p.Validate(), "windows separators are normalised")

	p.Type = "other"
	assert.True(t, IsValidationError(p.Validate()))
}
