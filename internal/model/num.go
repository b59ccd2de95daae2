// Package model defines the parcel, reference zone, and score types shared by
// the scoring pipeline.
package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Num is an optional float. A zero Num is absent, which is distinct from a
// present value of 0.
type Num struct {
	Value float64
	Valid bool
}

// Some returns a present Num.
func Some(v float64) Num {
	return Num{Value: v, Valid: true}
}

// None returns an absent Num.
func None() Num {
	return Num{}
}

// Or returns the value, or def when absent.
func (n Num) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Value
}

// MarshalJSON encodes an absent Num as null.
func (n Num) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// UnmarshalJSON accepts a number, a numeric string, or null.
func (n *Num) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = ParseNum(raw)
	return nil
}

// ParseNum converts a loosely-typed property value into a Num. Numbers and
// numeric strings are accepted; booleans, non-finite values, and anything
// else are absent.
func ParseNum(v any) Num {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return None()
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return None()
		}
		f = parsed
	default:
		return None()
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return None()
	}
	return Some(f)
}
