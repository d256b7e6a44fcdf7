package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
)

// DefaultLeadDays is how far ahead of a document date the reminder fires.
const DefaultLeadDays = 30

// dateFields are the extracted field names that carry an actionable date.
var dateFields = []string{
	"expiry_date",
	"valid_until",
	"due_date",
	"end_date",
	"renewal_date",
}

// dateLayouts covers the formats the extraction service emits.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
}

// Deriver turns date-bearing extracted fields into pending reminders, one per
// (document, field). Re-derivation is idempotent through the repository.
type Deriver struct {
	repo     ports.ReminderRepository
	leadDays int
	now      func() time.Time
	logger   *slog.Logger
}

func NewDeriver(repo ports.ReminderRepository, leadDays int, logger *slog.Logger) *Deriver {
	if leadDays <= 0 {
		leadDays = DefaultLeadDays
	}
	return &Deriver{
		repo:     repo,
		leadDays: leadDays,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

func (d *Deriver) Derive(ctx context.Context, doc *domain.Document) (int, error) {
	created := 0
	for _, field := range dateFields {
		raw, ok := doc.ExtractedFields[field]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		when, err := parseDate(raw)
		if err != nil {
			d.logger.Debug("unparseable date field skipped",
				"document_id", doc.ID, "field", field, "value", raw)
			continue
		}
		if when.Before(d.now()) {
			// Already past; no point reminding.
			continue
		}

		dueAt := when.AddDate(0, 0, -d.leadDays)
		if dueAt.Before(d.now()) {
			dueAt = d.now()
		}

		rem := &domain.Reminder{
			ID:          uuid.NewString(),
			OwnerID:     doc.OwnerID,
			DocumentID:  doc.ID,
			Title:       reminderTitle(doc, field, when),
			DueAt:       dueAt,
			SourceField: field,
			Status:      domain.ReminderPending,
			CreatedAt:   d.now(),
		}
		if err := d.repo.Upsert(ctx, rem); err != nil {
			return created, fmt.Errorf("upsert reminder for %s: %w", field, err)
		}
		created++
	}
	return created, nil
}

func parseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", raw)
}

func reminderTitle(doc *domain.Document, field string, when time.Time) string {
	label := strings.ReplaceAll(string(doc.Type), "_", " ")
	switch field {
	case "expiry_date", "valid_until":
		return fmt.Sprintf("%s expires on %s (%s)", label, when.Format("2006-01-02"), doc.Filename)
	case "renewal_date":
		return fmt.Sprintf("%s renewal on %s (%s)", label, when.Format("2006-01-02"), doc.Filename)
	default:
		return fmt.Sprintf("%s due on %s (%s)", label, when.Format("2006-01-02"), doc.Filename)
	}
}
