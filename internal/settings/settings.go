// Package settings exposes typed access to the singleton settings rows.
// Both accessors create the row with defaults the first time it is read.
package settings

import (
	"context"
	"fmt"
	"time"

	"cafe-pos/internal/store"
)

// Defaults applied when the settings row does not exist yet
const (
	DefaultCafeName   = "My Cafe"
	DefaultCurrency   = "IDR"
	DefaultColor      = "#6b4226"
	DefaultAPIVersion = "v19.0"
	DefaultLanguage   = "id"
)

// Settings is the café branding and pricing configuration
type Settings struct {
	ID            int64     `json:"id"`
	CafeName      string    `json:"cafeName"`
	Address       string    `json:"address,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Currency      string    `json:"currency"`
	TaxRate       float64   `json:"taxRate"`
	ServiceCharge float64   `json:"serviceCharge"`
	LogoURL       string    `json:"logoUrl,omitempty"`
	AppIconURL    string    `json:"appIconUrl,omitempty"`
	OGImageURL    string    `json:"ogImageUrl,omitempty"`
	PrimaryColor  string    `json:"primaryColor,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// WhatsAppSettings configures the WhatsApp Cloud API integration
type WhatsAppSettings struct {
	ID                   int64  `json:"id"`
	Enabled              bool   `json:"enabled"`
	AccessToken          string `json:"-"`
	PhoneNumberID        string `json:"phoneNumberId"`
	BusinessAccountID    string `json:"businessAccountId,omitempty"`
	APIVersion           string `json:"apiVersion"`
	AdminPhone           string `json:"adminPhone,omitempty"`
	OrderTemplate        string `json:"orderTemplate,omitempty"`
	TemplateLanguage     string `json:"templateLanguage,omitempty"`
	NotifyOnNewOrder     bool   `json:"notifyOnNewOrder"`
	NotifyOnStatusChange bool   `json:"notifyOnStatusChange"`
}

// Configured reports whether messages can be sent at all
func (w WhatsAppSettings) Configured() bool {
	return w.AccessToken != "" && w.PhoneNumberID != ""
}

// GetOrInit returns the settings row, inserting defaults if there is none
func GetOrInit(ctx context.Context, s store.Store) (Settings, error) {
	rec, err := getOrInit(ctx, s, store.Settings, func(now time.Time) store.Record {
		return store.Record{
			"cafeName":      DefaultCafeName,
			"currency":      DefaultCurrency,
			"taxRate":       0.0,
			"serviceCharge": 0.0,
			"primaryColor":  DefaultColor,
			"createdAt":     now,
			"updatedAt":     now,
		}
	})
	if err != nil {
		return Settings{}, err
	}
	return fromRecord(rec), nil
}

// GetOrInitWhatsApp returns the WhatsApp settings row, inserting a disabled
// default if there is none
func GetOrInitWhatsApp(ctx context.Context, s store.Store) (WhatsAppSettings, error) {
	rec, err := getOrInit(ctx, s, store.WhatsAppSettings, func(now time.Time) store.Record {
		return store.Record{
			"enabled":              false,
			"apiVersion":           DefaultAPIVersion,
			"templateLanguage":     DefaultLanguage,
			"notifyOnNewOrder":     true,
			"notifyOnStatusChange": false,
			"createdAt":            now,
			"updatedAt":            now,
		}
	})
	if err != nil {
		return WhatsAppSettings{}, err
	}
	return whatsAppFromRecord(rec), nil
}

func getOrInit(ctx context.Context, s store.Store, t store.Table, defaults func(time.Time) store.Record) (store.Record, error) {
	rec, err := s.FindFirst(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", t.Name, err)
	}
	if rec != nil {
		return rec, nil
	}

	// another request may have created the row since the read above
	err = s.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.FindFirst(ctx, t)
		if err != nil {
			return err
		}
		if existing != nil {
			rec = existing
			return nil
		}

		rec = defaults(time.Now().UTC())
		id, err := tx.Insert(ctx, t, rec)
		if err != nil {
			return err
		}
		rec["id"] = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise %s: %w", t.Name, err)
	}
	return rec, nil
}

func fromRecord(r store.Record) Settings {
	id, _ := r.Int64("id")
	return Settings{
		ID:            id,
		CafeName:      r.String("cafeName"),
		Address:       r.String("address"),
		Phone:         r.String("phone"),
		Currency:      r.String("currency"),
		TaxRate:       r.Float64("taxRate"),
		ServiceCharge: r.Float64("serviceCharge"),
		LogoURL:       r.String("logoUrl"),
		AppIconURL:    r.String("appIconUrl"),
		OGImageURL:    r.String("ogImageUrl"),
		PrimaryColor:  r.String("primaryColor"),
		UpdatedAt:     r.Time("updatedAt"),
	}
}

func whatsAppFromRecord(r store.Record) WhatsAppSettings {
	id, _ := r.Int64("id")
	return WhatsAppSettings{
		ID:                   id,
		Enabled:              r.Bool("enabled"),
		AccessToken:          r.String("accessToken"),
		PhoneNumberID:        r.String("phoneNumberId"),
		BusinessAccountID:    r.String("businessAccountId"),
		APIVersion:           r.String("apiVersion"),
		AdminPhone:           r.String("adminPhone"),
		OrderTemplate:        r.String("orderTemplate"),
		TemplateLanguage:     r.String("templateLanguage"),
		NotifyOnNewOrder:     r.Bool("notifyOnNewOrder"),
		NotifyOnStatusChange: r.Bool("notifyOnStatusChange"),
	}
}
