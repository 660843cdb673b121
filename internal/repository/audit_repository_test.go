package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-console/internal/models"
)

func newAuditRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var auditRowColumns = []string{"id", "session_id", "actor", "entity", "operation", "resource_id", "payload", "outcome", "error", "created_at"}

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO console_audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	resourceID := "12"
	entry := &models.AuditEntry{
		Actor:      "registrar",
		Entity:     "course",
		Operation:  models.AuditOpCreate,
		ResourceID: &resourceID,
		Payload:    []byte(`{"course_code":"CS-101"}`),
		Outcome:    models.AuditOutcomeSuccess,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM console_audit_logs WHERE entity = $1 AND outcome = $2")).
		WithArgs("vendor", models.AuditOutcomeFailure).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	rows := sqlmock.NewRows(auditRowColumns).
		AddRow("a-1", nil, "registrar", "vendor", models.AuditOpDelete, "7", nil, models.AuditOutcomeFailure, "409 Conflict", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM console_audit_logs WHERE entity = $1 AND outcome = $2 ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("vendor", models.AuditOutcomeFailure).
		WillReturnRows(rows)

	entries, total, err := repo.List(context.Background(), models.AuditFilter{Entity: "vendor", Outcome: models.AuditOutcomeFailure, Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, entries, 1)
	require.Equal(t, "7", *entries[0].ResourceID)
	require.Equal(t, "409 Conflict", *entries[0].Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	cutoff := time.Now().Add(-90 * 24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM console_audit_logs WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
