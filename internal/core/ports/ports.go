package ports

import (
	"context"
	"io"
	"time"

	"github.com/expatdesk/docvault/internal/core/domain"
)

// DocumentRepository persists and reads document state. All reads exclude
// soft-deleted rows.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, ownerID string, filter domain.DocumentFilter) ([]domain.Document, error)
	FindByNameAndSize(ctx context.Context, ownerID, filename string, sizeBytes int64) ([]domain.Document, error)
	FindLatestByFilename(ctx context.Context, ownerID, filename, excludeID string) (*domain.Document, error)
	ListCompletedByType(ctx context.Context, ownerID string, docType domain.DocumentType, excludeID string) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveProcessingResult(ctx context.Context, id string, cls domain.Classification, extraction domain.Extraction, thumbnailPath string) error
	SaveSimilarMatches(ctx context.Context, id string, matches []domain.SimilarMatch) error
	SoftDelete(ctx context.Context, ownerID, id string) error
}

// VersionTx is the view of version state available inside one linking
// transaction. The transaction holds a per-(owner, filename) advisory lock,
// so reads through it are serialized against concurrent uploads of the same
// filename.
type VersionTx interface {
	FindLatestByFilename(ctx context.Context, ownerID, filename, excludeID string) (*domain.Document, error)
	ListByDocumentID(ctx context.Context, documentID string) ([]domain.VersionRecord, error)
	Create(ctx context.Context, record *domain.VersionRecord) error
	ClearCurrent(ctx context.Context, documentID string) error
}

// VersionRepository persists version-chain records.
type VersionRepository interface {
	ListByDocumentID(ctx context.Context, documentID string) ([]domain.VersionRecord, error)
	InFilenameLock(ctx context.Context, ownerID, filename string, fn func(tx VersionTx) error) error
}

// ReminderRepository persists derived reminders. Upsert is idempotent per
// (document, source field).
type ReminderRepository interface {
	Upsert(ctx context.Context, reminder *domain.Reminder) error
	ListDue(ctx context.Context, now time.Time) ([]domain.Reminder, error)
	MarkSent(ctx context.Context, id string) error
}

// ObjectStorage stores raw document bytes and issues download references.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignURL(ctx context.Context, key string) (string, error)
}

// MessageQueue publishes/consumes upload events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// Extractor runs OCR/text extraction against a stored document.
type Extractor interface {
	Extract(ctx context.Context, doc *domain.Document) (domain.Extraction, error)
}

// Thumbnailer renders a preview image for a stored document. Returns the
// stored thumbnail key, or "" when the format is unsupported.
type Thumbnailer interface {
	Generate(ctx context.Context, doc *domain.Document) (string, error)
}

// ReminderDeriver turns extracted date fields into scheduled reminders.
// Failures must never affect the document's processing status.
type ReminderDeriver interface {
	Derive(ctx context.Context, doc *domain.Document) (int, error)
}

// ReminderNotifier delivers a due reminder. Fire-and-forget semantics.
type ReminderNotifier interface {
	Notify(ctx context.Context, reminder domain.Reminder) error
}

// ProcessObserver receives pipeline telemetry. Implementations must not
// block; a nil observer disables reporting.
type ProcessObserver interface {
	ObserveQueueLag(lag time.Duration)
	RecordVersionLink()
	RecordRemindersDerived(count int)
}
