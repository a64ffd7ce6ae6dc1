package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Kind is the storage type of a column
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
	KindText
	KindTime
)

// Column describes one column of a table
type Column struct {
	Name     string
	Kind     Kind
	Required bool
	// References is "table.column" for foreign keys
	References string
	// OnDelete is the referential action, empty for RESTRICT
	OnDelete string
}

// Table describes a persisted entity collection
type Table struct {
	Name    string
	Columns []Column
}

func idColumn() Column        { return Column{Name: "id", Kind: KindInt, Required: true} }
func tenantColumn() Column    { return Column{Name: "tenantId", Kind: KindString} }
func createdColumn() Column   { return Column{Name: "createdAt", Kind: KindTime} }
func updatedColumn() Column   { return Column{Name: "updatedAt", Kind: KindTime} }
func str(name string) Column  { return Column{Name: name, Kind: KindString} }
func text(name string) Column { return Column{Name: name, Kind: KindText} }

var (
	Settings = Table{Name: "settings", Columns: []Column{
		idColumn(), tenantColumn(),
		str("cafeName"), text("address"), str("phone"), str("currency"),
		{Name: "taxRate", Kind: KindFloat}, {Name: "serviceCharge", Kind: KindFloat},
		text("logoUrl"), text("appIconUrl"), text("ogImageUrl"), str("primaryColor"),
		createdColumn(), updatedColumn(),
	}}

	Users = Table{Name: "users", Columns: []Column{
		idColumn(), tenantColumn(),
		str("username"), str("name"), str("passwordHash"), str("role"),
		{Name: "isActive", Kind: KindBool},
		createdColumn(), updatedColumn(),
	}}

	MenuItems = Table{Name: "menu_items", Columns: []Column{
		idColumn(), tenantColumn(),
		str("name"), text("description"), str("category"),
		{Name: "price", Kind: KindFloat}, text("imageUrl"),
		{Name: "isAvailable", Kind: KindBool}, {Name: "sortOrder", Kind: KindInt},
		createdColumn(), updatedColumn(),
	}}

	DiningTables = Table{Name: "dining_tables", Columns: []Column{
		idColumn(), tenantColumn(),
		str("name"), {Name: "capacity", Kind: KindInt}, text("qrCode"), str("status"),
		createdColumn(), updatedColumn(),
	}}

	Orders = Table{Name: "orders", Columns: []Column{
		idColumn(), tenantColumn(),
		{Name: "tableId", Kind: KindInt, References: "dining_tables.id", OnDelete: "SET NULL"},
		str("orderNumber"), str("customerName"), str("customerPhone"), str("status"),
		{Name: "subtotal", Kind: KindFloat}, {Name: "tax", Kind: KindFloat}, {Name: "total", Kind: KindFloat},
		text("notes"),
		createdColumn(), updatedColumn(),
	}}

	OrderItems = Table{Name: "order_items", Columns: []Column{
		idColumn(),
		{Name: "orderId", Kind: KindInt, Required: true, References: "orders.id"},
		{Name: "menuItemId", Kind: KindInt, References: "menu_items.id", OnDelete: "SET NULL"},
		str("name"), {Name: "quantity", Kind: KindInt}, {Name: "unitPrice", Kind: KindFloat},
		text("notes"),
		createdColumn(),
	}}

	Payments = Table{Name: "payments", Columns: []Column{
		idColumn(), tenantColumn(),
		{Name: "orderId", Kind: KindInt, Required: true, References: "orders.id"},
		str("method"), {Name: "amount", Kind: KindFloat}, str("status"), text("paymentProof"),
		{Name: "paidAt", Kind: KindTime},
		createdColumn(),
	}}

	WhatsAppSettings = Table{Name: "whatsapp_settings", Columns: []Column{
		idColumn(), tenantColumn(),
		{Name: "enabled", Kind: KindBool},
		text("accessToken"), str("phoneNumberId"), str("businessAccountId"), str("apiVersion"),
		str("adminPhone"), str("orderTemplate"), str("templateLanguage"),
		{Name: "notifyOnNewOrder", Kind: KindBool}, {Name: "notifyOnStatusChange", Kind: KindBool},
		createdColumn(), updatedColumn(),
	}}

	WhatsAppLogs = Table{Name: "whatsapp_logs", Columns: []Column{
		idColumn(), tenantColumn(),
		{Name: "orderId", Kind: KindInt},
		str("recipient"), str("messageType"), text("payload"), str("status"),
		str("providerMessageId"), text("error"),
		createdColumn(),
	}}
)

// Catalog lists every table in creation order (parents first)
var Catalog = []Table{Settings, Users, MenuItems, DiningTables, Orders, OrderItems, Payments, WhatsAppSettings, WhatsAppLogs}

// Lookup finds a catalog table by name
func Lookup(name string) (Table, bool) {
	for _, t := range Catalog {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Column returns the named column
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table has the named column
func (t Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnNames returns the column names in declaration order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Normalize shapes a record for insertion: unknown keys are dropped, missing
// columns become nil, and values are coerced to the column kind.
func (t Table) Normalize(rec Record) (Record, error) {
	out := make(Record, len(t.Columns))
	for _, c := range t.Columns {
		v, err := coerce(c.Kind, rec[c.Name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, c.Name, err)
		}
		out[c.Name] = v
	}
	return out, nil
}

// Decode converts driver values of a scanned row into their column kinds
func (t Table) Decode(row map[string]any) (Record, error) {
	out := make(Record, len(row))
	for _, c := range t.Columns {
		raw, ok := row[c.Name]
		if !ok {
			continue
		}
		v, err := coerce(c.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, c.Name, err)
		}
		out[c.Name] = v
	}
	return out, nil
}

// CreateStatement renders the DDL for the given driver ("mysql" or "sqlite3")
func (t Table) CreateStatement(driver string) string {
	sqlite := driver == "sqlite3"

	var lines []string
	for _, c := range t.Columns {
		if c.Name == "id" {
			if sqlite {
				lines = append(lines, "`id` INTEGER PRIMARY KEY AUTOINCREMENT")
			} else {
				lines = append(lines, "`id` BIGINT NOT NULL AUTO_INCREMENT")
			}
			continue
		}
		null := "NULL"
		if c.Required {
			null = "NOT NULL"
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", quote(c.Name), columnType(c.Kind, sqlite), null))
	}

	if !sqlite {
		lines = append(lines, "PRIMARY KEY (`id`)")
	}

	for _, c := range t.Columns {
		if c.References == "" {
			continue
		}
		parts := strings.SplitN(c.References, ".", 2)
		fk := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			quote("fk_"+t.Name+"_"+c.Name), quote(c.Name), quote(parts[0]), quote(parts[1]))
		if c.OnDelete != "" {
			fk += " ON DELETE " + c.OnDelete
		}
		lines = append(lines, fk)
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", quote(t.Name), strings.Join(lines, ",\n  "))
	if !sqlite {
		stmt += " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	}
	return stmt
}

func columnType(k Kind, sqlite bool) string {
	switch k {
	case KindInt:
		if sqlite {
			return "INTEGER"
		}
		return "BIGINT"
	case KindFloat:
		if sqlite {
			return "REAL"
		}
		return "DOUBLE"
	case KindBool:
		if sqlite {
			return "BOOLEAN"
		}
		return "TINYINT(1)"
	case KindString:
		if sqlite {
			return "TEXT"
		}
		return "VARCHAR(191)"
	case KindTime:
		if sqlite {
			return "DATETIME"
		}
		return "DATETIME(3)"
	default:
		if sqlite {
			return "TEXT"
		}
		return "MEDIUMTEXT"
	}
}

func quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func coerce(k Kind, v any) (any, error) {
	switch k {
	case KindInt:
		return toInt64(v)
	case KindFloat:
		return toFloat64(v)
	case KindBool:
		return toBool(v)
	case KindTime:
		return toTime(v)
	default:
		return toString(v)
	}
}

// scalar unwraps driver bytes and reports whether v stands for NULL. An
// empty string counts as NULL.
func scalar(v any) (any, bool) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil || v == "" {
		return v, true
	}
	return v, false
}

func toInt64(v any) (any, error) {
	v, null := scalar(v)
	if null {
		return nil, nil
	}
	// cast truncates fractions, integer columns reject them instead
	if n, ok := v.(json.Number); ok {
		if _, err := n.Int64(); err != nil {
			f, err := n.Float64()
			if err != nil {
				return nil, err
			}
			v = f
		}
	}
	if f, ok := v.(float64); ok && f != math.Trunc(f) {
		return nil, fmt.Errorf("%v is not an integer", f)
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return nil, err
	}
	return i, nil
}

func toFloat64(v any) (any, error) {
	v, null := scalar(v)
	if null {
		return nil, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func toBool(v any) (any, error) {
	v, null := scalar(v)
	if null {
		return nil, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func toString(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v), nil
	}
	return s, nil
}

// toTime reads strings in any layout cast knows as UTC. Numbers are epoch
// milliseconds, as JavaScript clients send them.
func toTime(v any) (any, error) {
	v, null := scalar(v)
	if null {
		return nil, nil
	}
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case json.Number, float64, int64, int:
		ms, err := cast.ToInt64E(x)
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := cast.ToTimeInDefaultLocationE(v, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("unrecognised timestamp %q", cast.ToString(v))
	}
	return t.UTC(), nil
}
