package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
)

// QueryUseCase is the read/maintenance surface over the vault.
type QueryUseCase struct {
	repo     ports.DocumentRepository
	versions ports.VersionRepository
	storage  ports.ObjectStorage
	dups     *DuplicateDetector
	logger   *slog.Logger
}

func NewQueryUseCase(
	repo ports.DocumentRepository,
	versions ports.VersionRepository,
	storage ports.ObjectStorage,
	dups *DuplicateDetector,
	logger *slog.Logger,
) *QueryUseCase {
	return &QueryUseCase{
		repo:     repo,
		versions: versions,
		storage:  storage,
		dups:     dups,
		logger:   logger,
	}
}

func (uc *QueryUseCase) List(ctx context.Context, ownerID string, filter domain.DocumentFilter) ([]domain.DocumentListItem, error) {
	docs, err := uc.repo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	items := make([]domain.DocumentListItem, 0, len(docs))
	for _, doc := range docs {
		item := domain.DocumentListItem{Document: doc}

		url, err := uc.storage.PresignURL(ctx, doc.StoragePath)
		if err != nil {
			uc.logger.Warn("presign failed", "document_id", doc.ID, "error", err)
		} else {
			item.DownloadURL = url
		}

		records, err := uc.versions.ListByDocumentID(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("list version records: %w", err)
		}
		item.VersionCount = len(records)
		for _, rec := range records {
			// A mirror record marks this document as a non-original revision.
			if rec.Metadata.ParentDocumentID != "" {
				item.VersionNumber = rec.VersionNumber
			}
		}

		items = append(items, item)
	}
	return items, nil
}

func (uc *QueryUseCase) Get(ctx context.Context, ownerID, id string) (*domain.Document, error) {
	doc, err := uc.ownedDocument(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (uc *QueryUseCase) Versions(ctx context.Context, ownerID, id string) ([]domain.VersionRecord, error) {
	if _, err := uc.ownedDocument(ctx, ownerID, id); err != nil {
		return nil, err
	}
	records, err := uc.versions.ListByDocumentID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list version records: %w", err)
	}
	return records, nil
}

func (uc *QueryUseCase) Similar(ctx context.Context, ownerID, id string, threshold float64) ([]domain.SimilarMatch, error) {
	doc, err := uc.ownedDocument(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return uc.dups.DetectSimilar(ctx, ownerID, doc.ID, doc.Filename, doc.ExtractedText, doc.Type, threshold)
}

func (uc *QueryUseCase) Delete(ctx context.Context, ownerID, id string) error {
	if err := uc.repo.SoftDelete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("soft delete document: %w", err)
	}
	return nil
}

// ownedDocument loads a document and hides other owners' documents behind
// not-found rather than leaking their existence.
func (uc *QueryUseCase) ownedDocument(ctx context.Context, ownerID, id string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "load document", errors.New(id))
	}
	return doc, nil
}
