package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordDisplay(t *testing.T) {
	rec := Record{
		"id":         float64(42),
		"name":       "Biology",
		"is_active":  true,
		"department": map[string]any{"id": 3, "name": "Sciences"},
		"courses":    []any{map[string]any{"course_code": "BIO101"}, map[string]any{"course_code": "BIO102"}},
		"tags":       []string{"lab", "core"},
		"credits":    json.Number("3"),
		"ratio":      1.5,
	}

	assert.Equal(t, "42", rec.ID(""))
	assert.Equal(t, "Biology", rec.Text("name"))
	assert.Equal(t, "Yes", rec.Text("is_active"))
	assert.Equal(t, "Sciences", rec.Text("department"))
	assert.Equal(t, "BIO101, BIO102", rec.Text("courses"))
	assert.Equal(t, "lab, core", rec.Text("tags"))
	assert.Equal(t, "3", rec.Text("credits"))
	assert.Equal(t, "1.5", rec.Text("ratio"))
	assert.Equal(t, "", rec.Text("missing"))
}

func TestRecordBool(t *testing.T) {
	rec := Record{"a": true, "b": "true", "c": json.Number("0"), "d": float64(1), "e": "nope"}
	assert.True(t, rec.Bool("a"))
	assert.True(t, rec.Bool("b"))
	assert.False(t, rec.Bool("c"))
	assert.True(t, rec.Bool("d"))
	assert.False(t, rec.Bool("e"))
	assert.False(t, rec.Bool("missing"))
}

func TestRecordCloneIsShallowCopy(t *testing.T) {
	rec := Record{"name": "Biology"}
	clone := rec.Clone()
	clone["name"] = "Physics"
	assert.Equal(t, "Biology", rec["name"])
	assert.Nil(t, Record(nil).Clone())
}

func TestListQueryNormalize(t *testing.T) {
	q := ListQuery{Search: "  bio ", Page: -2, PageSize: 500}.Normalize(25, 50)
	assert.Equal(t, ListQuery{Search: "bio", Page: 1, PageSize: 50}, q)

	q = ListQuery{}.Normalize(0, 0)
	assert.Equal(t, DefaultPageSize, q.PageSize)

	assert.Equal(t, 1, TotalPages(0, 10))
	assert.Equal(t, 3, TotalPages(21, 10))
}

func TestParseAction(t *testing.T) {
	action, ok := ParseAction("deactivate")
	assert.True(t, ok)
	assert.Equal(t, ActionDeactivate, action)

	_, ok = ParseAction("archive")
	assert.False(t, ok)
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(2*time.Minute)))
}
