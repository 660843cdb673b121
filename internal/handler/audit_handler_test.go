package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-console/internal/models"
	appErrors "github.com/noah-isme/campus-admin-console/pkg/errors"
)

func TestAuditListRendersPayloadInline(t *testing.T) {
	h := newConsoleHarness(t)
	resourceID := "7"
	failure := "Department has programs"
	h.audit.entries = []models.AuditEntry{{
		ID:         "a-1",
		Actor:      "Registrar",
		Entity:     "department",
		Operation:  models.AuditOpDelete,
		ResourceID: &resourceID,
		Payload:    []byte(`{"name":"Biology"}`),
		Outcome:    models.AuditOutcomeFailure,
		Error:      &failure,
		CreatedAt:  time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC),
	}}
	cookie := h.login(t)

	w := h.get("/api/v1/console/audit?entity=department&outcome=failure&page=2&pageSize=500", cookie)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.AuditFilter{Entity: "department", Outcome: "failure", Page: 2, PageSize: 20}, h.audit.filter)
	var entries []AuditEntryResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "7", entries[0].ResourceID)
	assert.Equal(t, "Department has programs", entries[0].Error)
	assert.JSONEq(t, `{"name":"Biology"}`, string(entries[0].Payload))
}

func TestAuditListDisabled(t *testing.T) {
	h := newConsoleHarness(t)
	h.audit.err = appErrors.Clone(appErrors.ErrNotFound, "audit trail is disabled")
	cookie := h.login(t)

	w := h.get("/api/v1/console/audit", cookie)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "audit trail is disabled", decodeEnvelope(t, w).Error["message"])
}
