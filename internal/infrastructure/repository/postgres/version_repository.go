package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
)

type VersionRepository struct {
	db *sql.DB
}

func NewVersionRepository(db *sql.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

const versionColumns = `id, document_id, version_number, is_current, parent_version_id, metadata, uploaded_by, change_summary, created_at`

func (r *VersionRepository) ListByDocumentID(ctx context.Context, documentID string) ([]domain.VersionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+versionColumns+`
FROM document_versions
WHERE document_id = $1
ORDER BY version_number ASC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list version records: %w", err)
	}
	defer rows.Close()
	return collectVersionRecords(rows)
}

// InFilenameLock runs fn inside a transaction holding a per-(owner, filename)
// advisory lock, serializing concurrent linking of the same filename. The lock
// releases with the transaction.
func (r *VersionRepository) InFilenameLock(ctx context.Context, ownerID, filename string, fn func(tx ports.VersionTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, filenameLockKey(ownerID, filename)); err != nil {
		return fmt.Errorf("acquire filename lock: %w", err)
	}

	if err := fn(&versionTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version tx: %w", err)
	}
	return nil
}

func filenameLockKey(ownerID, filename string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ownerID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(filename))
	return int64(h.Sum64())
}

type versionTx struct {
	tx *sql.Tx
}

func (t *versionTx) FindLatestByFilename(ctx context.Context, ownerID, filename, excludeID string) (*domain.Document, error) {
	row := t.tx.QueryRowContext(ctx, `
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

func (t *versionTx) ListByDocumentID(ctx context.Context, documentID string) ([]domain.VersionRecord, error) {
	rows, err := t.tx.QueryContext(ctx, `
SELECT `+versionColumns+`
FROM document_versions
WHERE document_id = $1
ORDER BY version_number ASC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list version records: %w", err)
	}
	defer rows.Close()
	return collectVersionRecords(rows)
}

func (t *versionTx) Create(ctx context.Context, record *domain.VersionRecord) error {
	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("marshal version metadata: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
INSERT INTO document_versions (
	id, document_id, version_number, is_current, parent_version_id, metadata, uploaded_by, change_summary, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		record.ID, record.DocumentID, record.VersionNumber, record.IsCurrent, record.ParentVersionID,
		metadataJSON, record.UploadedBy, record.ChangeSummary, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert version record: %w", err)
	}
	return nil
}

func (t *versionTx) ClearCurrent(ctx context.Context, documentID string) error {
	_, err := t.tx.ExecContext(ctx, `
UPDATE document_versions
SET is_current = FALSE
WHERE document_id = $1 AND is_current
`, documentID)
	if err != nil {
		return fmt.Errorf("clear current version: %w", err)
	}
	return nil
}

func collectVersionRecords(rows *sql.Rows) ([]domain.VersionRecord, error) {
	var out []domain.VersionRecord
	for rows.Next() {
		var rec domain.VersionRecord
		var metadataRaw []byte
		err := rows.Scan(
			&rec.ID, &rec.DocumentID, &rec.VersionNumber, &rec.IsCurrent, &rec.ParentVersionID,
			&metadataRaw, &rec.UploadedBy, &rec.ChangeSummary, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan version record: %w", err)
		}
		if err := json.Unmarshal(metadataRaw, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal version metadata: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate version records: %w", err)
	}
	return out, nil
}
