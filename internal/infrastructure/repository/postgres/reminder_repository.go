package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/expatdesk/docvault/internal/core/domain"
)

type ReminderRepository struct {
	db *sql.DB
}

func NewReminderRepository(db *sql.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Upsert inserts a reminder unless one already exists for the same
// (document, source field). Re-derivation after reprocessing stays idempotent.
func (r *ReminderRepository) Upsert(ctx context.Context, reminder *domain.Reminder) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO reminders (id, owner_id, document_id, title, due_at, source_field, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (document_id, source_field) DO NOTHING
`,
		reminder.ID, reminder.OwnerID, reminder.DocumentID, reminder.Title, reminder.DueAt,
		reminder.SourceField, string(reminder.Status), reminder.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert reminder: %w", err)
	}
	return nil
}

func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner_id, document_id, title, due_at, source_field, status, created_at
FROM reminders
WHERE status = 'pending' AND due_at <= $1
ORDER BY due_at ASC
`, now)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	var out []domain.Reminder
	for rows.Next() {
		var rem domain.Reminder
		var status string
		err := rows.Scan(
			&rem.ID, &rem.OwnerID, &rem.DocumentID, &rem.Title, &rem.DueAt,
			&rem.SourceField, &status, &rem.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		rem.Status = domain.ReminderStatus(status)
		out = append(out, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return out, nil
}

func (r *ReminderRepository) MarkSent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE reminders
SET status = 'sent'
WHERE id = $1 AND status = 'pending'
`, id)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark reminder sent: rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "mark reminder sent", errors.New(id))
	}
	return nil
}
