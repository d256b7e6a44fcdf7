package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/expatdesk/docvault/internal/core/classify"
	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
)

// MaxUploadBytes is the default bound on a single upload; deployments tune
// it through the configured limit passed to NewUploadUseCase.
const MaxUploadBytes = 10 << 20

var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/heic":      true,
	"image/heif":      true,
}

// UploadUseCase is the synchronous half of the ingestion orchestrator:
// validate, hash, reject exact duplicates, store bytes, classify from the
// filename, insert the row in processing state and hand off to the queue.
type UploadUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	dups     *DuplicateDetector
	chain    *VersionChainManager
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	dups *DuplicateDetector,
	chain *VersionChainManager,
	maxUploadBytes int64,
	logger *slog.Logger,
) *UploadUseCase {
	if maxUploadBytes <= 0 {
		maxUploadBytes = MaxUploadBytes
	}
	return &UploadUseCase{
		repo:     repo,
		storage:  storage,
		queue:    queue,
		dups:     dups,
		chain:    chain,
		maxBytes: maxUploadBytes,
		logger:   logger,
	}
}

func (uc *UploadUseCase) Upload(ctx context.Context, cmd ports.UploadCommand) (*ports.UploadReceipt, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(cmd.Body, uc.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("empty file"))
	}
	if int64(len(raw)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("file exceeds %d bytes", uc.maxBytes))
	}

	digest := sha256.Sum256(raw)
	contentHash := hex.EncodeToString(digest[:])

	existing, err := uc.dups.CheckExactDuplicate(ctx, cmd.OwnerID, cmd.Filename, int64(len(raw)), contentHash)
	if err != nil {
		return nil, fmt.Errorf("exact duplicate check: %w", err)
	}
	if existing != nil {
		return nil, &domain.DuplicateError{
			ExistingID:       existing.ID,
			ExistingFilename: existing.Filename,
		}
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", cmd.OwnerID, id, sanitizeFilename(cmd.Filename))
	mimeType := normalizeMime(cmd.MimeType)

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw), int64(len(raw)), mimeType); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	inferred := classify.Classify(cmd.Filename, "")
	cls := domain.ResolveClassification(cmd.RequirementID, cmd.ExplicitType, inferred)

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:                   id,
		OwnerID:              cmd.OwnerID,
		Filename:             cmd.Filename,
		MimeType:             mimeType,
		SizeBytes:            int64(len(raw)),
		ContentHash:          contentHash,
		StoragePath:          storageKey,
		Type:                 cls.Type,
		Tags:                 cls.Tags,
		Confidence:           cls.Confidence,
		ClassificationSource: cls.Source,
		FulfilledRequirement: cmd.FulfilledRequirement,
		ChangeSummary:        cmd.ChangeSummary,
		Status:               domain.StatusProcessing,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		// Compensate the blob write; the failure to clean up is logged,
		// never surfaced as a secondary error.
		if delErr := uc.storage.Delete(ctx, storageKey); delErr != nil {
			uc.logger.Error("compensating blob delete failed", "key", storageKey, "error", delErr)
		}
		return nil, fmt.Errorf("create document record: %w", err)
	}

	link, err := uc.chain.Peek(ctx, cmd.OwnerID, cmd.Filename, contentHash, id)
	if err != nil {
		// Advisory preview only; the real link happens in the background.
		uc.logger.Warn("version link preview failed", "document_id", id, "error", err)
		link = domain.VersionLink{}
	}

	if err := uc.queue.PublishDocumentUploaded(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	return &ports.UploadReceipt{Document: doc, Version: link}, nil
}

func validateCommand(cmd ports.UploadCommand) error {
	if strings.TrimSpace(cmd.OwnerID) == "" {
		return domain.WrapError(domain.ErrUnauthorized, "validate upload", errors.New("owner id is required"))
	}
	if strings.TrimSpace(cmd.Filename) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("filename is required"))
	}
	if !allowedMimeTypes[normalizeMime(cmd.MimeType)] {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("unsupported mime type %q", cmd.MimeType))
	}
	if cmd.ExplicitType != "" && !domain.ValidDocumentType(cmd.ExplicitType) {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("unknown document type %q", cmd.ExplicitType))
	}
	return nil
}

func normalizeMime(mimeType string) string {
	parsed, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return parsed
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
