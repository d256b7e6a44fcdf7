package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectQuery("SELECT id, owner_id, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusFailed), "ocr timeout", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusFailed, "ocr timeout")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSoftDeleteReturnsDomainNotFoundForForeignOwner(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "other-owner", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), "other-owner", "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListVersionRecordsDecodesMetadata(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVersionRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "document_id", "version_number", "is_current", "parent_version_id",
		"metadata", "uploaded_by", "change_summary", "created_at",
	}).
		AddRow("v1", "doc-1", 1, false, "", []byte(`{"original":true}`), "owner-1", "", now).
		AddRow("v2", "doc-1", 2, true, "v1", []byte(`{"new_document_id":"doc-2"}`), "owner-1", "updated rent", now)

	mock.ExpectQuery("SELECT id, document_id, version_number").
		WithArgs("doc-1").
		WillReturnRows(rows)

	records, err := repo.ListByDocumentID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ListByDocumentID() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !records[0].Metadata.Original {
		t.Fatalf("expected original metadata on v1, got %+v", records[0].Metadata)
	}
	if records[1].Metadata.NewDocumentID != "doc-2" || !records[1].IsCurrent {
		t.Fatalf("v2 malformed: %+v", records[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInFilenameLockAcquiresLockAndCommits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVersionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(filenameLockKey("owner-1", "lease.pdf")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE document_versions").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InFilenameLock(context.Background(), "owner-1", "lease.pdf", func(tx ports.VersionTx) error {
		return tx.ClearCurrent(context.Background(), "doc-1")
	})
	if err != nil {
		t.Fatalf("InFilenameLock() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInFilenameLockRollsBackOnCallbackError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVersionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(filenameLockKey("owner-1", "lease.pdf")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	boom := errors.New("linking failed")
	err := repo.InFilenameLock(context.Background(), "owner-1", "lease.pdf", func(ports.VersionTx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertReminderIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReminderRepository(db)

	rem := &domain.Reminder{
		ID:          "rem-1",
		OwnerID:     "owner-1",
		DocumentID:  "doc-1",
		Title:       "Renew residence permit",
		DueAt:       time.Now().UTC().Add(720 * time.Hour),
		SourceField: "valid_until",
		Status:      domain.ReminderPending,
		CreatedAt:   time.Now().UTC(),
	}

	// Second derivation hits ON CONFLICT DO NOTHING: zero rows, no error.
	mock.ExpectExec("INSERT INTO reminders").
		WithArgs(rem.ID, rem.OwnerID, rem.DocumentID, rem.Title, rem.DueAt, rem.SourceField, string(rem.Status), rem.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Upsert(context.Background(), rem); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkSentReturnsNotFoundForUnknownReminder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReminderRepository(db)

	mock.ExpectExec("UPDATE reminders").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkSent(context.Background(), "missing")
	if err == nil || !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
