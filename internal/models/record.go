package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Record is a resource as returned by the backend. The backend is the source of truth,
// so the console keeps records loosely typed and lets the entity schema interpret them.
type Record map[string]any

// Clone returns a shallow copy so callers can mutate without touching list state.
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

// ID returns the identifier stored under field rendered as a string.
func (r Record) ID(field string) string {
	if field == "" {
		field = "id"
	}
	return Scalar(r[field])
}

// Text renders the value stored under key for display in tables and exports.
func (r Record) Text(key string) string {
	return Display(r[key])
}

// Bool interprets the value under key as a flag.
func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case json.Number:
		n, err := v.Int64()
		return err == nil && n != 0
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

// Scalar renders identifiers and plain values without decoration.
func Scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// Display renders nested references and collections in a human friendly way.
func Display(v any) string {
	switch val := v.(type) {
	case map[string]any:
		for _, key := range []string{"name", "title", "label", "course_code", "code", "id"} {
			if inner, ok := val[key]; ok && inner != nil {
				return Scalar(inner)
			}
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) == 0 {
			return ""
		}
		return Scalar(val[keys[0]])
	case Record:
		return Display(map[string]any(val))
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := Display(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	default:
		return Scalar(val)
	}
}
