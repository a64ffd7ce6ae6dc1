package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cafe-pos/internal/store"
)

const (
	// PayloadType is the tag every snapshot must carry
	PayloadType = "cms-backup"
	// PayloadVersion is the snapshot format written by this build
	PayloadVersion = 1
	// UploadsPrefix is the URL prefix of upload references
	UploadsPrefix = "/uploads/"
)

// Payload is a complete snapshot of business data and referenced files
type Payload struct {
	Type      string       `json:"type"`
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"createdAt"`
	Tenant    store.Record `json:"tenant"`
	Data      Data         `json:"data"`
	Files     []File       `json:"files"`
}

// Data holds the entity collections of a snapshot
type Data struct {
	Settings         store.Record   `json:"settings"`
	Users            []store.Record `json:"users"`
	MenuItems        []store.Record `json:"menuItems"`
	Tables           []store.Record `json:"tables"`
	Orders           []store.Record `json:"orders"`
	OrderItems       []store.Record `json:"orderItems"`
	Payments         []store.Record `json:"payments"`
	WhatsAppSettings store.Record   `json:"whatsappSettings"`
}

// File is one uploaded file carried inside a snapshot
type File struct {
	Path          string `json:"path"`
	ContentBase64 string `json:"contentBase64"`
}

// Counts holds per-collection record counts
type Counts struct {
	Settings         int `json:"settings" yaml:"settings"`
	Users            int `json:"users" yaml:"users"`
	MenuItems        int `json:"menuItems" yaml:"menuItems"`
	Tables           int `json:"tables" yaml:"tables"`
	Orders           int `json:"orders" yaml:"orders"`
	OrderItems       int `json:"orderItems" yaml:"orderItems"`
	Payments         int `json:"payments" yaml:"payments"`
	WhatsAppSettings int `json:"whatsappSettings" yaml:"whatsappSettings"`
	Files            int `json:"files" yaml:"files"`
}

// RestoreSummary is returned by a successful restore
type RestoreSummary struct {
	Restored Counts `json:"restored"`
}

// Counts reports how many records and files the payload carries
func (p *Payload) Counts() Counts {
	c := Counts{
		Users:      len(p.Data.Users),
		MenuItems:  len(p.Data.MenuItems),
		Tables:     len(p.Data.Tables),
		Orders:     len(p.Data.Orders),
		OrderItems: len(p.Data.OrderItems),
		Payments:   len(p.Data.Payments),
		Files:      len(p.Files),
	}
	if p.Data.Settings != nil {
		c.Settings = 1
	}
	if p.Data.WhatsAppSettings != nil {
		c.WhatsAppSettings = 1
	}
	return c
}

// Map returns the counts keyed by their JSON names, in display order
func (c Counts) Map() []CountEntry {
	return []CountEntry{
		{"settings", c.Settings},
		{"users", c.Users},
		{"menuItems", c.MenuItems},
		{"tables", c.Tables},
		{"orders", c.Orders},
		{"orderItems", c.OrderItems},
		{"payments", c.Payments},
		{"whatsappSettings", c.WhatsAppSettings},
		{"files", c.Files},
	}
}

// CountEntry is one named count
type CountEntry struct {
	Name  string
	Count int
}

// ensureCollections replaces nil collections with empty ones so they
// serialise as [] rather than null
func (d *Data) ensureCollections() {
	for _, c := range []*[]store.Record{&d.Users, &d.MenuItems, &d.Tables, &d.Orders, &d.OrderItems, &d.Payments} {
		if *c == nil {
			*c = []store.Record{}
		}
	}
}

// Encode serialises the payload as indented JSON
func (p *Payload) Encode() ([]byte, error) {
	p.Data.ensureCollections()
	if p.Files == nil {
		p.Files = []File{}
	}
	return json.MarshalIndent(p, "", "  ")
}

// Validate checks the invariants a restore relies on: the type tag and that
// every file lives under /uploads/. Traversal inside /uploads/ is caught
// later by Uploads.Restore.
func (p *Payload) Validate() error {
	if p.Type != PayloadType {
		return NewValidationError("invalid backup file: type must be "+PayloadType, nil)
	}
	var errs ValidationErrors
	for i, f := range p.Files {
		if _, ok := NormalizeUploadPath(f.Path); !ok {
			errs.Add(fmt.Sprintf("files[%d].path", i), "must start with "+UploadsPrefix, f.Path)
		}
	}
	if errs.HasErrors() {
		return NewValidationError("invalid backup file: "+errs.Error(), errs)
	}
	return nil
}

type rawPayload struct {
	Type      json.RawMessage `json:"type"`
	Version   json.RawMessage `json:"version"`
	CreatedAt json.RawMessage `json:"createdAt"`
	Tenant    json.RawMessage `json:"tenant"`
	Data      json.RawMessage `json:"data"`
	Files     json.RawMessage `json:"files"`
}

type rawData struct {
	Settings         json.RawMessage `json:"settings"`
	Users            json.RawMessage `json:"users"`
	MenuItems        json.RawMessage `json:"menuItems"`
	Tables           json.RawMessage `json:"tables"`
	Orders           json.RawMessage `json:"orders"`
	OrderItems       json.RawMessage `json:"orderItems"`
	Payments         json.RawMessage `json:"payments"`
	WhatsAppSettings json.RawMessage `json:"whatsappSettings"`
}

// ParsePayload decodes raw JSON into a typed Payload or rejects it.
// Only a missing body, malformed JSON or a wrong type tag are errors; every
// other field falls back to an empty value so snapshots from older or newer
// writers still load.
func ParsePayload(raw []byte) (*Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, NewValidationError("backup payload is required", nil)
	}

	var top rawPayload
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, NewValidationError("backup payload is not a valid JSON object", err)
	}

	var tag string
	if err := json.Unmarshal(top.Type, &tag); err != nil || tag != PayloadType {
		return nil, NewValidationError("invalid backup file: type must be "+PayloadType, nil).
			WithContext("type", strings.TrimSpace(string(top.Type)))
	}

	p := &Payload{
		Type:    PayloadType,
		Version: PayloadVersion,
		Tenant:  decodeRecord(top.Tenant),
		Files:   decodeFiles(top.Files),
	}

	var version json.Number
	if err := json.Unmarshal(top.Version, &version); err == nil {
		if v, err := version.Int64(); err == nil {
			p.Version = int(v)
		}
	}

	var createdAt string
	if err := json.Unmarshal(top.CreatedAt, &createdAt); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			p.CreatedAt = t.UTC()
		}
	}

	var data rawData
	if err := json.Unmarshal(top.Data, &data); err == nil {
		p.Data = Data{
			Settings:         decodeRecord(data.Settings),
			Users:            decodeRecords(data.Users),
			MenuItems:        decodeRecords(data.MenuItems),
			Tables:           decodeRecords(data.Tables),
			Orders:           decodeRecords(data.Orders),
			OrderItems:       decodeRecords(data.OrderItems),
			Payments:         decodeRecords(data.Payments),
			WhatsAppSettings: decodeRecord(data.WhatsAppSettings),
		}
	}
	p.Data.ensureCollections()

	return p, nil
}

func newDecoder(raw json.RawMessage) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec
}

// decodeRecord returns nil unless raw is a JSON object
func decodeRecord(raw json.RawMessage) store.Record {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var rec map[string]any
	if err := newDecoder(raw).Decode(&rec); err != nil {
		return nil
	}
	return store.Record(rec)
}

// decodeRecords returns the object elements of a JSON array, or an empty slice
func decodeRecords(raw json.RawMessage) []store.Record {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []store.Record{}
	}

	recs := make([]store.Record, 0, len(items))
	for _, item := range items {
		if rec := decodeRecord(item); rec != nil {
			recs = append(recs, rec)
		}
	}
	return recs
}

// decodeFiles keeps entries that have both a path and content
func decodeFiles(raw json.RawMessage) []File {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []File{}
	}

	files := make([]File, 0, len(items))
	for _, item := range items {
		var entry struct {
			Path          any `json:"path"`
			ContentBase64 any `json:"contentBase64"`
		}
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		path, _ := entry.Path.(string)
		content, _ := entry.ContentBase64.(string)
		if path == "" || content == "" {
			continue
		}
		files = append(files, File{Path: path, ContentBase64: content})
	}
	return files
}
