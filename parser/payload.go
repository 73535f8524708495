// Package parser normalizes raw catalog payloads into canonical records and
// decides filtered-subset membership. The upstream API has no enforced
// schema, so every lookup is an ordered "try this key, then that" chain over
// a gjson tree, and every coercion degrades to absent instead of failing.
package parser

import (
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// firstField returns the first existing, non-null value among keys.
func firstField(v gjson.Result, keys ...string) (gjson.Result, bool) {
	for _, key := range keys {
		field := v.Get(key)
		if field.Exists() && field.Type != gjson.Null {
			return field, true
		}
	}
	return gjson.Result{}, false
}

// firstString returns the first key whose value renders to a non-empty string.
func firstString(v gjson.Result, keys ...string) string {
	for _, key := range keys {
		field := v.Get(key)
		if field.Exists() && field.Type != gjson.Null {
			if s := field.String(); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstInt returns the first key whose value coerces to an integer. A present
// but non-coercible value does not stop the chain.
func firstInt(v gjson.Result, keys ...string) *int64 {
	for _, key := range keys {
		field := v.Get(key)
		if !field.Exists() || field.Type == gjson.Null {
			continue
		}
		if n, ok := intValue(field); ok {
			return &n
		}
	}
	return nil
}

// intValue coerces a scalar best-effort. gjson's own Int() cannot distinguish
// "0" from garbage, so coercion goes through cast to keep absence explicit.
func intValue(v gjson.Result) (int64, bool) {
	if !v.Exists() || v.Type == gjson.Null {
		return 0, false
	}
	n, err := cast.ToInt64E(v.Value())
	if err != nil {
		return 0, false
	}
	return n, true
}

func floatValue(v gjson.Result) (float64, bool) {
	if !v.Exists() || v.Type == gjson.Null {
		return 0, false
	}
	f, err := cast.ToFloat64E(v.Value())
	if err != nil {
		return 0, false
	}
	return f, true
}

// money resolves the first coercible monetary field among keys. Values are
// minor currency units (kopecks) and convert to major units.
func money(v gjson.Result, keys ...string) *float64 {
	for _, key := range keys {
		field := v.Get(key)
		if !field.Exists() || field.Type == gjson.Null {
			continue
		}
		if minor, ok := floatValue(field); ok {
			major := minor / 100.0
			return &major
		}
	}
	return nil
}

// Identifier extracts the catalog identifier from a product payload.
func Identifier(p gjson.Result) (int64, bool) {
	if id := firstInt(p, "id", "nmId"); id != nil {
		return *id, true
	}
	return 0, false
}
