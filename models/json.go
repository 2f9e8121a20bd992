package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONBlob stores an arbitrary JSON-serializable payload in a single
// column. Used for the invoice's retained original payload, a decision's
// top_matches/explanations, and an audit entry's payload.
type JSONBlob json.RawMessage

// Value implements the driver.Valuer interface.
func (j JSONBlob) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "null", nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface.
func (j *JSONBlob) Scan(value interface{}) error {
	if value == nil {
		*j = JSONBlob("null")
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = JSONBlob(append([]byte(nil), v...))
	case string:
		*j = JSONBlob(v)
	default:
		return errors.New("unsupported type for JSONBlob scan")
	}
	return nil
}

// MarshalJSON passes the stored bytes through unmodified.
func (j JSONBlob) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON stores the raw bytes unmodified.
func (j *JSONBlob) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}

// NewJSONBlob marshals v into a JSONBlob.
func NewJSONBlob(v interface{}) (JSONBlob, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSONBlob(b), nil
}

// StringSlice persists a small string array as a JSON array column.
// MySQL has no native array type; reason codes are ordered so a JSON
// array preserves that order exactly, unlike a joined VARCHAR.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for StringSlice scan")
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(s))
}
