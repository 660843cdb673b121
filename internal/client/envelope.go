package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

var totalPaths = []string{"total", "data.total", "meta.total", "pagination.total_count", "pagination.total"}

// lookup walks a dotted path through nested JSON objects.
func lookup(body json.RawMessage, path string) (json.RawMessage, bool) {
	current := body
	for _, key := range strings.Split(path, ".") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(current, &obj); err != nil {
			return nil, false
		}
		next, ok := obj[key]
		if !ok || isNull(next) {
			return nil, false
		}
		current = next
	}
	return current, true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// decode unmarshals raw into out keeping numbers as json.Number.
func decode(raw json.RawMessage, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

// normalizeList finds the item array using keys in order, then a top-level array.
func normalizeList[T any](body json.RawMessage, keys []string) ([]T, int, error) {
	var itemsRaw json.RawMessage
	for _, key := range keys {
		if raw, ok := lookup(body, key); ok && isArray(raw) {
			itemsRaw = raw
			break
		}
	}
	if itemsRaw == nil {
		if !isArray(body) {
			return nil, 0, ErrUnrecognizedEnvelope
		}
		itemsRaw = body
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(itemsRaw, &rawItems); err != nil {
		return nil, 0, fmt.Errorf("decode items: %w", err)
	}
	items := make([]T, 0, len(rawItems))
	for i, raw := range rawItems {
		var item T
		if err := decode(raw, &item); err != nil {
			return nil, 0, fmt.Errorf("decode item %d: %w", i, err)
		}
		items = append(items, item)
	}

	total := len(items)
	if isObject(body) {
		for _, path := range totalPaths {
			raw, ok := lookup(body, path)
			if !ok {
				continue
			}
			var n json.Number
			if err := decode(raw, &n); err != nil {
				continue
			}
			if v, err := n.Int64(); err == nil {
				total = int(v)
				break
			}
		}
	}
	return items, total, nil
}

// unwrapRecord strips data / {entity} envelopes from a single-record response.
func unwrapRecord(body json.RawMessage, entity string) json.RawMessage {
	for _, path := range []string{"data." + entity, "data", entity} {
		if raw, ok := lookup(body, path); ok && isObject(raw) {
			return raw
		}
	}
	return body
}

// errorMessage extracts the message field of a JSON error body.
func errorMessage(body []byte) string {
	if !isObject(body) {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	switch e := payload.Error.(type) {
	case string:
		return e
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	return ""
}
