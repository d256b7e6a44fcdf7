package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/expatdesk/docvault/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	content_hash TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	thumbnail_path TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL,
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	classification_source TEXT NOT NULL DEFAULT '',
	fulfilled_requirement TEXT NOT NULL DEFAULT '',
	change_summary TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	processing_error TEXT NOT NULL DEFAULT '',
	extracted_text TEXT NOT NULL DEFAULT '',
	extracted_fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	language TEXT NOT NULL DEFAULT '',
	similar_to JSONB NOT NULL DEFAULT '[]'::jsonb,
	deleted_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_documents_owner_filename ON documents(owner_id, filename) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS document_versions (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	version_number INT NOT NULL,
	is_current BOOLEAN NOT NULL DEFAULT FALSE,
	parent_version_id TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	uploaded_by TEXT NOT NULL DEFAULT '',
	change_summary TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (document_id, version_number)
);

CREATE INDEX IF NOT EXISTS idx_document_versions_document ON document_versions(document_id);

CREATE TABLE IF NOT EXISTS reminders (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	document_id TEXT NOT NULL REFERENCES documents(id),
	title TEXT NOT NULL,
	due_at TIMESTAMPTZ NOT NULL,
	source_field TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (document_id, source_field)
);

CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(due_at) WHERE status = 'pending';
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const documentColumns = `id, owner_id, filename, mime_type, size_bytes, content_hash, storage_path, thumbnail_path,
document_type, tags, confidence, classification_source, fulfilled_requirement, change_summary, status,
processing_error, extracted_text, extracted_fields, language, similar_to, deleted_at, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	tagsJSON, err := json.Marshal(emptyIfNilTags(doc.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	fieldsJSON, err := json.Marshal(emptyIfNilFields(doc.ExtractedFields))
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}
	similarJSON, err := json.Marshal(emptyIfNilMatches(doc.SimilarTo))
	if err != nil {
		return fmt.Errorf("marshal similar matches: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, owner_id, filename, mime_type, size_bytes, content_hash, storage_path, thumbnail_path,
	document_type, tags, confidence, classification_source, fulfilled_requirement, change_summary, status,
	processing_error, extracted_text, extracted_fields, language, similar_to, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
`,
		doc.ID, doc.OwnerID, doc.Filename, doc.MimeType, doc.SizeBytes, doc.ContentHash, doc.StoragePath,
		doc.ThumbnailPath, string(doc.Type), tagsJSON, doc.Confidence, doc.ClassificationSource,
		doc.FulfilledRequirement, doc.ChangeSummary, string(doc.Status), doc.ProcessingError,
		doc.ExtractedText, fieldsJSON, doc.Language, similarJSON, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1 AND deleted_at IS NULL
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, ownerID string, filter domain.DocumentFilter) ([]domain.Document, error) {
	query := `
SELECT ` + documentColumns + `
FROM documents
WHERE owner_id = $1 AND deleted_at IS NULL`
	args := []any{ownerID}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND document_type = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (r *DocumentRepository) FindByNameAndSize(ctx context.Context, ownerID, filename string, sizeBytes int64) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_id = $1 AND filename = $2 AND size_bytes = $3 AND deleted_at IS NULL
`, ownerID, filename, sizeBytes)
	if err != nil {
		return nil, fmt.Errorf("find by name and size: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (r *DocumentRepository) FindLatestByFilename(ctx context.Context, ownerID, filename, excludeID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_id = $1 AND filename = $2 AND id <> $3 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT 1
`, ownerID, filename, excludeID)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find latest by filename: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) ListCompletedByType(ctx context.Context, ownerID string, docType domain.DocumentType, excludeID string) ([]domain.Document, error) {
	query := `
SELECT ` + documentColumns + `
FROM documents
WHERE owner_id = $1 AND id <> $2 AND status = 'completed' AND deleted_at IS NULL`
	args := []any{ownerID, excludeID}
	if docType != "" {
		args = append(args, string(docType))
		query += fmt.Sprintf(" AND document_type = $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completed by type: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, processing_error = $3, updated_at = $4
WHERE id = $1 AND deleted_at IS NULL
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRow(res, "update document status", id)
}

func (r *DocumentRepository) SaveProcessingResult(ctx context.Context, id string, cls domain.Classification, extraction domain.Extraction, thumbnailPath string) error {
	tagsJSON, err := json.Marshal(emptyIfNilTags(cls.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	fieldsJSON, err := json.Marshal(emptyIfNilFields(extraction.Fields))
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET document_type = $2, tags = $3, confidence = $4, classification_source = $5,
	extracted_text = $6, extracted_fields = $7, language = $8, thumbnail_path = $9, updated_at = $10
WHERE id = $1 AND deleted_at IS NULL
`, id, string(cls.Type), tagsJSON, cls.Confidence, cls.Source,
		extraction.Text, fieldsJSON, extraction.Language, thumbnailPath, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save processing result: %w", err)
	}
	return requireRow(res, "save processing result", id)
}

func (r *DocumentRepository) SaveSimilarMatches(ctx context.Context, id string, matches []domain.SimilarMatch) error {
	similarJSON, err := json.Marshal(emptyIfNilMatches(matches))
	if err != nil {
		return fmt.Errorf("marshal similar matches: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET similar_to = $2, updated_at = $3
WHERE id = $1 AND deleted_at IS NULL
`, id, similarJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save similar matches: %w", err)
	}
	return requireRow(res, "save similar matches", id)
}

func (r *DocumentRepository) SoftDelete(ctx context.Context, ownerID, id string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET deleted_at = $3, updated_at = $3
WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
`, id, ownerID, now)
	if err != nil {
		return fmt.Errorf("soft delete document: %w", err)
	}
	return requireRow(res, "soft delete document", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var docType, status string
	var tagsRaw, fieldsRaw, similarRaw []byte
	var deletedAt sql.NullTime

	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.Filename, &doc.MimeType, &doc.SizeBytes, &doc.ContentHash,
		&doc.StoragePath, &doc.ThumbnailPath, &docType, &tagsRaw, &doc.Confidence,
		&doc.ClassificationSource, &doc.FulfilledRequirement, &doc.ChangeSummary, &status,
		&doc.ProcessingError, &doc.ExtractedText, &fieldsRaw, &doc.Language, &similarRaw, &deletedAt,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tagsRaw, &doc.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal(fieldsRaw, &doc.ExtractedFields); err != nil {
		return nil, fmt.Errorf("unmarshal extracted fields: %w", err)
	}
	if err := json.Unmarshal(similarRaw, &doc.SimilarTo); err != nil {
		return nil, fmt.Errorf("unmarshal similar matches: %w", err)
	}
	doc.Type = domain.DocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	if deletedAt.Valid {
		t := deletedAt.Time
		doc.DeletedAt = &t
	}
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var out []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, errors.New(id))
	}
	return nil
}

func emptyIfNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func emptyIfNilFields(fields map[string]string) map[string]string {
	if fields == nil {
		return map[string]string{}
	}
	return fields
}

func emptyIfNilMatches(matches []domain.SimilarMatch) []domain.SimilarMatch {
	if matches == nil {
		return []domain.SimilarMatch{}
	}
	return matches
}
