package documents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fields is a document as a map of JSON-compatible values. Timestamps written
// by the store are time.Time.
type Fields map[string]any

// ToFields converts a JSON-tagged struct into Fields. Integral numbers come
// back as int64, others as float64.
func ToFields(v any) (Fields, error) {
	if f, ok := v.(Fields); ok {
		return f, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return Fields(fromJSONNumbers(out).(map[string]any)), nil
}

// FromFields decodes f into dst, a pointer to a JSON-tagged struct.
func FromFields(f Fields, dst any) error {
	b, err := json.Marshal(map[string]any(f))
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func fromJSONNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = fromJSONNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = fromJSONNumbers(e)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	}
	return v
}

// Int64 reads a numeric field regardless of its stored width.
func (f Fields) Int64(key string) (int64, bool) {
	n, ok := toFloat(f[key])
	return int64(n), ok
}

// Time reads a timestamp field. Values written by the memory store are
// time.Time, values decoded from Mongo may still be primitive.DateTime, and
// values that went through JSON are RFC 3339 strings.
func (f Fields) Time(key string) (time.Time, bool) {
	switch t := f[key].(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time().UTC(), true
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		return ts, err == nil
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
