package store

import (
	"time"
)

// Record is one row as a column name to value mapping. Keys use the
// camelCase column names of the catalog.
type Record map[string]any

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Without returns a copy of the record with the given keys removed
func (r Record) Without(keys ...string) Record {
	out := r.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// String returns the value as a string, or "" when absent or null
func (r Record) String(key string) string {
	v, err := toString(r[key])
	if err != nil || v == nil {
		return ""
	}
	return v.(string)
}

// Int64 returns the value as an integer and whether it was present and numeric
func (r Record) Int64(key string) (int64, bool) {
	v, err := toInt64(r[key])
	if err != nil || v == nil {
		return 0, false
	}
	return v.(int64), true
}

// Float64 returns the value as a float, or 0
func (r Record) Float64(key string) float64 {
	v, err := toFloat64(r[key])
	if err != nil || v == nil {
		return 0
	}
	return v.(float64)
}

// Bool returns the value as a bool, or false
func (r Record) Bool(key string) bool {
	v, err := toBool(r[key])
	if err != nil || v == nil {
		return false
	}
	return v.(bool)
}

// Time returns the value as a time, or the zero time
func (r Record) Time(key string) time.Time {
	v, err := toTime(r[key])
	if err != nil || v == nil {
		return time.Time{}
	}
	return v.(time.Time)
}
