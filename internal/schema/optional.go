package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Optional is a value that is either disabled or enabled with a value.
// Disabled encodes as JSON null; an enabled empty string means "not yet filled".
type Optional[T comparable] struct {
	value   T
	enabled bool
}

func Some[T comparable](value T) Optional[T] {
	return Optional[T]{value: value, enabled: true}
}

func None[T comparable]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.enabled
}

func (o Optional[T]) Enabled() bool {
	return o.enabled
}

// OrZero returns the value, or the zero value when disabled.
func (o Optional[T]) OrZero() T {
	if !o.enabled {
		var zero T
		return zero
	}
	return o.value
}

// Equal treats all disabled values as equal regardless of what was stored before disabling.
func (o Optional[T]) Equal(other Optional[T]) bool {
	if o.enabled != other.enabled {
		return false
	}
	return !o.enabled || o.value == other.value
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.enabled {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*o = Optional[T]{value: value, enabled: true}
	return nil
}

// Number is a numeric field that also accepts numeric strings after trimming.
type Number float64

func (n Number) Float() float64 {
	return float64(n)
}

func (n Number) IsWhole() bool {
	return float64(n) == float64(int64(n))
}

func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(n))
}

func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		parsed, err := ParseNumber(raw)
		if err != nil {
			return err
		}
		*n = parsed
		return nil
	}
	var value float64
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return fmt.Errorf("number expected: %w", err)
	}
	*n = Number(value)
	return nil
}

// ParseNumber trims raw and parses it as a finite decimal number.
func ParseNumber(raw string) (Number, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("number expected, got empty value")
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || strings.ContainsAny(trimmed, "xXpP_") || strings.EqualFold(trimmed, "nan") || strings.Contains(strings.ToLower(trimmed), "inf") {
		return 0, fmt.Errorf("number expected, got %q", raw)
	}
	return Number(value), nil
}
