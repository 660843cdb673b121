package manager

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
)

func TestOpenResetsToDefaults(t *testing.T) {
	form := NewEditForm(schema.Course(), nil)

	form.Open(models.Record{"id": json.Number("4"), "title": "Genetics", "credit_hours": json.Number("4"), "status": "inactive"})
	snap := form.Snapshot()
	assert.Equal(t, ModeEdit, snap.Mode)
	assert.Equal(t, "4", snap.TargetID)
	assert.Equal(t, int64(4), snap.Values["credit_hours"])
	assert.Equal(t, "inactive", snap.Values["status"])

	form.Open(nil)
	snap = form.Snapshot()
	assert.Equal(t, ModeCreate, snap.Mode)
	assert.Nil(t, snap.Values["title"])
	assert.Equal(t, int64(3), snap.Values["credit_hours"])
	assert.Equal(t, "active", snap.Values["status"])
	assert.Equal(t, []string{}, snap.Values["program_ids"])
}

func TestPrefillFollowsNestedReferences(t *testing.T) {
	form := NewEditForm(schema.Course(), nil)
	form.Open(models.Record{
		"id":       "c1",
		"programs": []any{map[string]any{"id": json.Number("1"), "name": "CS"}, map[string]any{"id": json.Number("2")}},
	})
	assert.Equal(t, []string{"1", "2"}, form.Snapshot().Values["program_ids"])
}

func TestSetCoercesByKind(t *testing.T) {
	form := NewEditForm(schema.Vendor(), nil)
	form.Open(nil)

	require.NoError(t, form.Set("contract_value", "1250.50"))
	require.NoError(t, form.Set("name", "  Campus Catering  "))
	require.NoError(t, form.Set("service_type", []string{"catering"}))
	assert.ErrorIs(t, form.Set("unknown", "x"), ErrUnknownField)

	values := form.Snapshot().Values
	assert.Equal(t, 1250.5, values["contract_value"])
	assert.Equal(t, "Campus Catering", values["name"])
	assert.Equal(t, "catering", values["service_type"])

	tf := NewEditForm(schema.Teacher(), nil)
	tf.Open(nil)
	require.NoError(t, tf.Set("specializations", []string{"research", "", "teaching"}))
	assert.Equal(t, []string{"research", "teaching"}, tf.Snapshot().Values["specializations"])
}

func TestValidationMessages(t *testing.T) {
	form := NewEditForm(schema.Vendor(), nil)
	form.Open(nil)
	require.NoError(t, form.SetAll(map[string]any{
		"name":           "Campus Catering",
		"service_type":   "laundry",
		"contact_person": "Jo",
		"email":          "jo@",
		"phone":          "0812345678",
		"contract_value": "lots",
	}))

	called := false
	err := form.Submit(context.Background(), func(context.Context, FormMode, string, models.Record) error {
		called = true
		return nil
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.False(t, called)
	assert.Equal(t, map[string]string{
		"service_type":   "Service type must be one of: catering, transport, stationery, maintenance, it_services",
		"email":          "Email must be a valid email address",
		"contract_value": "Contract value must be a number",
	}, validationErr.Fields)
}

func TestIntegerFieldRejectsFractions(t *testing.T) {
	form := NewEditForm(schema.Course(), nil)
	submit := func() map[string]string {
		err := form.Submit(context.Background(), func(context.Context, FormMode, string, models.Record) error { return nil })
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		return validationErr.Fields
	}

	form.Open(nil)
	require.NoError(t, form.Set("credit_hours", "3.5"))
	assert.Equal(t, "Credit hours must be a whole number", submit()["credit_hours"])

	require.NoError(t, form.Set("credit_hours", "three"))
	assert.Equal(t, "Credit hours must be a number", submit()["credit_hours"])

	require.NoError(t, form.Set("credit_hours", "4.0"))
	_, failed := submit()["credit_hours"]
	assert.False(t, failed)
}

func TestPrerequisiteMustDifferFromCourse(t *testing.T) {
	form := NewEditForm(schema.Prerequisite(), nil)
	form.Open(nil)
	require.NoError(t, form.SetAll(map[string]any{"course_id": "7", "prerequisite_course_id": "7"}))

	err := form.Submit(context.Background(), func(context.Context, FormMode, string, models.Record) error { return nil })
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Prerequisite course must differ from Course", validationErr.Fields["prerequisite_course_id"])

	require.NoError(t, form.Set("prerequisite_course_id", "3"))
	var got models.Record
	require.NoError(t, form.Submit(context.Background(), func(_ context.Context, mode FormMode, _ string, payload models.Record) error {
		assert.Equal(t, ModeCreate, mode)
		got = payload
		return nil
	}))
	assert.Equal(t, models.Record{"course_id": "7", "prerequisite_course_id": "3"}, got)
}

func TestSubmitClosedForm(t *testing.T) {
	form := NewEditForm(schema.Department(), nil)
	err := form.Submit(context.Background(), func(context.Context, FormMode, string, models.Record) error { return nil })
	assert.ErrorIs(t, err, ErrFormClosed)
}
