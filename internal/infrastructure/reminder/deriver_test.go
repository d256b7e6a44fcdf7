package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/expatdesk/docvault/internal/core/domain"
)

type reminderRepoFake struct {
	upserts []domain.Reminder
	sent    []string
	due     []domain.Reminder
	listErr error
}

func (f *reminderRepoFake) Upsert(_ context.Context, rem *domain.Reminder) error {
	f.upserts = append(f.upserts, *rem)
	return nil
}

func (f *reminderRepoFake) ListDue(_ context.Context, _ time.Time) ([]domain.Reminder, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.due, nil
}

func (f *reminderRepoFake) MarkSent(_ context.Context, id string) error {
	f.sent = append(f.sent, id)
	return nil
}

type notifierFake struct {
	notified []string
	err      error
}

func (f *notifierFake) Notify(_ context.Context, rem domain.Reminder) error {
	if f.err != nil {
		return f.err
	}
	f.notified = append(f.notified, rem.ID)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDoc(fields map[string]string) *domain.Document {
	return &domain.Document{
		ID:              "doc-1",
		OwnerID:         "owner-1",
		Filename:        "permit.pdf",
		Type:            domain.TypeResidencePermit,
		ExtractedFields: fields,
	}
}

func TestDeriveCreatesReminderAheadOfExpiry(t *testing.T) {
	repo := &reminderRepoFake{}
	deriver := NewDeriver(repo, 30, quietLogger())
	expiry := time.Now().UTC().AddDate(0, 6, 0)

	count, err := deriver.Derive(context.Background(), testDoc(map[string]string{
		"valid_until": expiry.Format("2006-01-02"),
	}))
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if count != 1 || len(repo.upserts) != 1 {
		t.Fatalf("expected one reminder, got %d", count)
	}

	rem := repo.upserts[0]
	if rem.SourceField != "valid_until" || rem.Status != domain.ReminderPending {
		t.Fatalf("unexpected reminder: %+v", rem)
	}
	wantDue := expiry.AddDate(0, 0, -30)
	if rem.DueAt.Format("2006-01-02") != wantDue.Format("2006-01-02") {
		t.Fatalf("due %s, want %s", rem.DueAt, wantDue)
	}
	if rem.Title == "" || rem.OwnerID != "owner-1" {
		t.Fatalf("reminder missing title or owner: %+v", rem)
	}
}

func TestDeriveClampsNearTermDateToNow(t *testing.T) {
	repo := &reminderRepoFake{}
	deriver := NewDeriver(repo, 30, quietLogger())
	soon := time.Now().UTC().AddDate(0, 0, 5)

	count, err := deriver.Derive(context.Background(), testDoc(map[string]string{
		"expiry_date": soon.Format("2006-01-02"),
	}))
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reminder, got %d", count)
	}
	if repo.upserts[0].DueAt.After(time.Now().UTC().Add(time.Minute)) {
		t.Fatalf("near-term date must clamp due to now, got %s", repo.upserts[0].DueAt)
	}
}

func TestDeriveSkipsPastAndUnparseableDates(t *testing.T) {
	repo := &reminderRepoFake{}
	deriver := NewDeriver(repo, 30, quietLogger())

	count, err := deriver.Derive(context.Background(), testDoc(map[string]string{
		"expiry_date": "2019-01-01",
		"due_date":    "sometime next year",
		"end_date":    "",
	}))
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if count != 0 || len(repo.upserts) != 0 {
		t.Fatalf("expected no reminders, got %d", count)
	}
}

func TestDeriveParsesEuropeanDateFormat(t *testing.T) {
	repo := &reminderRepoFake{}
	deriver := NewDeriver(repo, 30, quietLogger())
	expiry := time.Now().UTC().AddDate(1, 0, 0)

	count, err := deriver.Derive(context.Background(), testDoc(map[string]string{
		"valid_until": expiry.Format("02.01.2006"),
	}))
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reminder from dd.mm.yyyy date, got %d", count)
	}
}

func TestSweepMarksSentOnlyAfterDelivery(t *testing.T) {
	repo := &reminderRepoFake{due: []domain.Reminder{
		{ID: "rem-1", DocumentID: "doc-1"},
		{ID: "rem-2", DocumentID: "doc-2"},
	}}
	notifier := &notifierFake{}
	dispatcher := NewDispatcher(repo, notifier, quietLogger())

	dispatcher.Sweep(context.Background())
	if len(notifier.notified) != 2 || len(repo.sent) != 2 {
		t.Fatalf("expected both reminders delivered and marked, got %v / %v", notifier.notified, repo.sent)
	}
}

func TestSweepLeavesUndeliveredPending(t *testing.T) {
	repo := &reminderRepoFake{due: []domain.Reminder{{ID: "rem-1"}}}
	notifier := &notifierFake{err: errors.New("smtp down")}
	dispatcher := NewDispatcher(repo, notifier, quietLogger())

	dispatcher.Sweep(context.Background())
	if len(repo.sent) != 0 {
		t.Fatalf("failed delivery must not mark sent, got %v", repo.sent)
	}
}
