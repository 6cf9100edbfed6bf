package events

import (
	"fmt"
	"math"
)

func fieldString(fields map[string]any, key string, dst *string) error {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("field %q: want string, got %T", key, v)
	}
	*dst = s
	return nil
}

func fieldBool(fields map[string]any, key string, dst *bool) error {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("field %q: want bool, got %T", key, v)
	}
	*dst = b
	return nil
}

func fieldFloat(fields map[string]any, key string, dst *float64) error {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		*dst = n
	case float32:
		*dst = float64(n)
	case int:
		*dst = float64(n)
	case int64:
		*dst = float64(n)
	default:
		return fmt.Errorf("field %q: want number, got %T", key, v)
	}
	return nil
}

func fieldInt(fields map[string]any, key string, dst *int) error {
	var f float64
	if v, ok := fields[key]; !ok || v == nil {
		return nil
	}
	if err := fieldFloat(fields, key, &f); err != nil {
		return err
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("field %q: want integer, got %v", key, f)
	}
	*dst = int(f)
	return nil
}

func fieldLocation(fields map[string]any, key string, dst *Location) error {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("field %q: want table, got %T", key, v)
	}
	return dst.apply(m)
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
