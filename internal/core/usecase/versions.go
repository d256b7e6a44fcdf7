package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
)

// VersionChainManager links re-uploads of a filename into a revision chain.
// The first document with a given name is the chain's anchor; a later upload
// of the same name with different content becomes the next version. All
// reads and writes happen under a per-(owner, filename) advisory lock, so
// two concurrent uploads of a brand-new filename cannot both become "the
// first" of that name.
type VersionChainManager struct {
	versions ports.VersionRepository
}

func NewVersionChainManager(versions ports.VersionRepository) *VersionChainManager {
	return &VersionChainManager{versions: versions}
}

// Peek reports, without writing anything, the link the background pipeline
// will create for this upload. Used to enrich the synchronous response.
func (m *VersionChainManager) Peek(ctx context.Context, ownerID, filename, newContentHash, newDocumentID string) (domain.VersionLink, error) {
	var link domain.VersionLink
	err := m.versions.InFilenameLock(ctx, ownerID, filename, func(tx ports.VersionTx) error {
		anchor, next, err := m.resolveAnchor(ctx, tx, ownerID, filename, newContentHash, newDocumentID)
		if err != nil || anchor == nil {
			return err
		}
		link = domain.VersionLink{Linked: true, ParentDocumentID: anchor.ID, VersionNumber: next}
		return nil
	})
	return link, err
}

// Link records the new document as the next version of the most recent
// non-deleted document with the same filename, if one exists with different
// content. The anchor's first version record is synthesized retroactively.
func (m *VersionChainManager) Link(ctx context.Context, ownerID, filename, newContentHash, newDocumentID, changeSummary string) (domain.VersionLink, error) {
	var link domain.VersionLink
	err := m.versions.InFilenameLock(ctx, ownerID, filename, func(tx ports.VersionTx) error {
		anchor, next, err := m.resolveAnchor(ctx, tx, ownerID, filename, newContentHash, newDocumentID)
		if err != nil || anchor == nil {
			return err
		}

		records, err := tx.ListByDocumentID(ctx, anchor.ID)
		if err != nil {
			return fmt.Errorf("list anchor versions: %w", err)
		}

		now := time.Now().UTC()
		var parentID string
		if len(records) == 0 {
			original := &domain.VersionRecord{
				ID:            uuid.NewString(),
				DocumentID:    anchor.ID,
				VersionNumber: 1,
				IsCurrent:     false,
				Metadata:      domain.VersionMetadata{Original: true},
				UploadedBy:    ownerID,
				CreatedAt:     now,
			}
			if err := tx.Create(ctx, original); err != nil {
				return fmt.Errorf("synthesize original version: %w", err)
			}
			parentID = original.ID
		} else {
			for _, rec := range records {
				if rec.IsCurrent {
					parentID = rec.ID
				}
			}
			if err := tx.ClearCurrent(ctx, anchor.ID); err != nil {
				return fmt.Errorf("clear current flag: %w", err)
			}
		}

		anchorRecord := &domain.VersionRecord{
			ID:              uuid.NewString(),
			DocumentID:      anchor.ID,
			VersionNumber:   next,
			IsCurrent:       true,
			ParentVersionID: parentID,
			Metadata:        domain.VersionMetadata{NewDocumentID: newDocumentID},
			UploadedBy:      ownerID,
			ChangeSummary:   changeSummary,
			CreatedAt:       now,
		}
		if err := tx.Create(ctx, anchorRecord); err != nil {
			return fmt.Errorf("create anchor version record: %w", err)
		}

		// Mirror on the new document so the chain is readable from either
		// side without joining through a mapping table.
		mirror := &domain.VersionRecord{
			ID:              uuid.NewString(),
			DocumentID:      newDocumentID,
			VersionNumber:   next,
			IsCurrent:       true,
			ParentVersionID: parentID,
			Metadata:        domain.VersionMetadata{ParentDocumentID: anchor.ID},
			UploadedBy:      ownerID,
			ChangeSummary:   changeSummary,
			CreatedAt:       now,
		}
		if err := tx.Create(ctx, mirror); err != nil {
			return fmt.Errorf("create mirror version record: %w", err)
		}

		link = domain.VersionLink{Linked: true, ParentDocumentID: anchor.ID, VersionNumber: next}
		return nil
	})
	return link, err
}

// resolveAnchor finds the chain anchor and the version number the new upload
// would take. A nil anchor means no link: either the filename is genuinely
// new or the latest upload has identical content.
func (m *VersionChainManager) resolveAnchor(ctx context.Context, tx ports.VersionTx, ownerID, filename, newContentHash, newDocumentID string) (*domain.Document, int, error) {
	anchor, err := tx.FindLatestByFilename(ctx, ownerID, filename, newDocumentID)
	if err != nil {
		return nil, 0, fmt.Errorf("find latest by filename: %w", err)
	}
	if anchor == nil || anchor.ContentHash == newContentHash {
		return nil, 0, nil
	}

	records, err := tx.ListByDocumentID(ctx, anchor.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("list anchor versions: %w", err)
	}
	next := 2
	for _, rec := range records {
		if rec.VersionNumber >= next {
			next = rec.VersionNumber + 1
		}
	}
	return anchor, next, nil
}
