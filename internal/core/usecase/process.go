package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/expatdesk/docvault/internal/core/classify"
	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
)

// ProcessUseCase is the background half of the ingestion orchestrator. It
// runs exactly once per accepted upload: extraction, re-classification,
// thumbnail, version linking, persistence, then the advisory side effects.
// The document ends in completed or failed; nothing after the completed
// transition can revert it.
type ProcessUseCase struct {
	repo        ports.DocumentRepository
	extractor   ports.Extractor
	thumbnailer ports.Thumbnailer
	chain       *VersionChainManager
	dups        *DuplicateDetector
	reminders   ports.ReminderDeriver
	observer    ports.ProcessObserver
	threshold   float64
	logger      *slog.Logger
}

func NewProcessUseCase(
	repo ports.DocumentRepository,
	extractor ports.Extractor,
	thumbnailer ports.Thumbnailer,
	chain *VersionChainManager,
	dups *DuplicateDetector,
	reminders ports.ReminderDeriver,
	similarityThreshold float64,
	logger *slog.Logger,
) *ProcessUseCase {
	return &ProcessUseCase{
		repo:        repo,
		extractor:   extractor,
		thumbnailer: thumbnailer,
		chain:       chain,
		dups:        dups,
		reminders:   reminders,
		threshold:   similarityThreshold,
		logger:      logger,
	}
}

// SetObserver attaches pipeline telemetry. A nil observer disables it.
func (uc *ProcessUseCase) SetObserver(observer ports.ProcessObserver) {
	uc.observer = observer
}

func (uc *ProcessUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	// The processing state is the single-execution gate: a redelivered event
	// for an already-finalized document must not double-create version
	// records or reminders.
	if doc.Status != domain.StatusProcessing {
		uc.logger.Info("skipping already finalized document",
			"document_id", documentID, "status", doc.Status)
		return nil
	}
	if uc.observer != nil {
		uc.observer.ObserveQueueLag(time.Since(doc.CreatedAt))
	}

	cls, err := uc.runPipeline(ctx, doc)
	if err != nil {
		uc.markFailed(ctx, documentID, err)
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusCompleted, ""); err != nil {
		err = fmt.Errorf("set status=completed: %w", err)
		uc.markFailed(ctx, documentID, err)
		return err
	}

	uc.runAdvisory(ctx, doc, cls)
	return nil
}

func (uc *ProcessUseCase) runPipeline(ctx context.Context, doc *domain.Document) (domain.Classification, error) {
	extraction, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("extract document text: %w", err)
	}
	extraction.Text = truncateOnRuneBoundary(extraction.Text, domain.ExtractedTextLimit)

	cls := uc.finalClassification(doc, extraction.Text)

	thumbnailPath, err := uc.thumbnailer.Generate(ctx, doc)
	if err != nil {
		// Best-effort: a missing preview never fails the document.
		uc.logger.Warn("thumbnail generation failed", "document_id", doc.ID, "error", err)
		thumbnailPath = ""
	}

	link, err := uc.chain.Link(ctx, doc.OwnerID, doc.Filename, doc.ContentHash, doc.ID, doc.ChangeSummary)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("link version chain: %w", err)
	}
	if link.Linked && uc.observer != nil {
		uc.observer.RecordVersionLink()
	}

	if err := uc.repo.SaveProcessingResult(ctx, doc.ID, cls, extraction, thumbnailPath); err != nil {
		return domain.Classification{}, fmt.Errorf("save processing result: %w", err)
	}

	doc.ExtractedText = extraction.Text
	doc.ExtractedFields = extraction.Fields
	return cls, nil
}

// finalClassification re-runs inference with the extracted text unless the
// upload carried an override. The higher-confidence result of the
// filename-only and filename+text passes wins: OCR noise must not downgrade
// a confident filename match.
func (uc *ProcessUseCase) finalClassification(doc *domain.Document, extractedText string) domain.Classification {
	current := domain.Classification{
		Type:       doc.Type,
		Tags:       doc.Tags,
		Confidence: doc.Confidence,
		Source:     doc.ClassificationSource,
	}
	if current.IsOverride() {
		return current
	}

	nameOnly := classify.Classify(doc.Filename, "")
	withText := classify.Classify(doc.Filename, extractedText)
	if withText.Confidence >= nameOnly.Confidence {
		return withText
	}
	return nameOnly
}

// runAdvisory performs the post-completion side effects. Their failures are
// swallowed and logged; the document stays completed.
func (uc *ProcessUseCase) runAdvisory(ctx context.Context, doc *domain.Document, cls domain.Classification) {
	count, err := uc.reminders.Derive(ctx, doc)
	if err != nil {
		uc.logger.Warn("reminder derivation failed", "document_id", doc.ID, "error", err)
	} else if count > 0 {
		if uc.observer != nil {
			uc.observer.RecordRemindersDerived(count)
		}
		uc.logger.Info("reminders derived", "document_id", doc.ID, "count", count)
	}

	matches, err := uc.dups.DetectSimilar(ctx, doc.OwnerID, doc.ID, doc.Filename, doc.ExtractedText, cls.Type, uc.threshold)
	if err != nil {
		uc.logger.Warn("similarity search failed", "document_id", doc.ID, "error", err)
		return
	}
	if len(matches) == 0 {
		return
	}
	if err := uc.repo.SaveSimilarMatches(ctx, doc.ID, matches); err != nil {
		uc.logger.Warn("saving similarity matches failed", "document_id", doc.ID, "error", err)
	}
}

// truncateOnRuneBoundary caps s at limit bytes without splitting a rune;
// extracted text is multi-locale and a byte-offset cut can produce invalid
// UTF-8 that Postgres rejects.
func truncateOnRuneBoundary(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// markFailed is best-effort: when even the failure write fails, the document
// stays in processing and the error is only logged.
func (uc *ProcessUseCase) markFailed(ctx context.Context, documentID string, processErr error) {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, processErr.Error()); err != nil {
		uc.logger.Error("failed-status write failed; document left in processing",
			"document_id", documentID, "process_error", processErr, "status_error", err)
	}
}
