package ports

import (
	"context"
	"io"

	"github.com/expatdesk/docvault/internal/core/domain"
)

// UploadCommand is the inbound request to ingest one document.
type UploadCommand struct {
	OwnerID              string
	Filename             string
	MimeType             string
	Body                 io.Reader
	ExplicitType         domain.DocumentType
	RequirementID        int64
	FulfilledRequirement string
	ChangeSummary        string
}

// UploadReceipt is returned synchronously; version fields are an advisory
// preview of the link the background pipeline will create.
type UploadReceipt struct {
	Document *domain.Document   `json:"document"`
	Version  domain.VersionLink `json:"version"`
}

// DocumentIngestor is the inbound contract for the synchronous upload path.
type DocumentIngestor interface {
	Upload(ctx context.Context, cmd UploadCommand) (*UploadReceipt, error)
}

// DocumentProcessor is the inbound contract for background processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentQueryService is the inbound read/maintenance surface.
type DocumentQueryService interface {
	List(ctx context.Context, ownerID string, filter domain.DocumentFilter) ([]domain.DocumentListItem, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Document, error)
	Versions(ctx context.Context, ownerID, id string) ([]domain.VersionRecord, error)
	Similar(ctx context.Context, ownerID, id string, threshold float64) ([]domain.SimilarMatch, error)
	Delete(ctx context.Context, ownerID, id string) error
}
