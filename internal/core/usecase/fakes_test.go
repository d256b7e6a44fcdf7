package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

// repoFake is an in-memory DocumentRepository shared by the usecase tests.
type repoFake struct {
	docs map[string]*domain.Document

	createErr error
	statusErr error
	// statusErrOn limits statusErr to one transition; empty means every one.
	statusErrOn domain.DocumentStatus
	saveErr     error
	getErr      error

	statusCalls  []statusCall
	savedCls     map[string]domain.Classification
	savedSimilar map[string][]domain.SimilarMatch
}

func newRepoFake() *repoFake {
	return &repoFake{
		docs:         map[string]*domain.Document{},
		savedCls:     map[string]domain.Classification{},
		savedSimilar: map[string][]domain.SimilarMatch{},
	}
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.docs[id]
	if !ok || doc.DeletedAt != nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *repoFake) List(_ context.Context, ownerID string, filter domain.DocumentFilter) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.OwnerID != ownerID || doc.DeletedAt != nil {
			continue
		}
		if filter.Type != "" && doc.Type != filter.Type {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *repoFake) FindByNameAndSize(_ context.Context, ownerID, filename string, sizeBytes int64) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.OwnerID == ownerID && doc.DeletedAt == nil && doc.Filename == filename && doc.SizeBytes == sizeBytes {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *repoFake) FindLatestByFilename(_ context.Context, ownerID, filename, excludeID string) (*domain.Document, error) {
	var latest *domain.Document
	for _, doc := range f.docs {
		if doc.OwnerID != ownerID || doc.DeletedAt != nil || doc.Filename != filename || doc.ID == excludeID {
			continue
		}
		if latest == nil || doc.CreatedAt.After(latest.CreatedAt) {
			latest = doc
		}
	}
	if latest == nil {
		return nil, nil
	}
	copyDoc := *latest
	return &copyDoc, nil
}

func (f *repoFake) ListCompletedByType(_ context.Context, ownerID string, docType domain.DocumentType, excludeID string) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.OwnerID != ownerID || doc.DeletedAt != nil || doc.ID == excludeID {
			continue
		}
		if doc.Status != domain.StatusCompleted {
			continue
		}
		if docType != "" && doc.Type != docType {
			continue
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if f.statusErr != nil && (f.statusErrOn == "" || f.statusErrOn == status) {
		return f.statusErr
	}
	if doc, ok := f.docs[id]; ok {
		doc.Status = status
		doc.ProcessingError = errMessage
	}
	return nil
}

func (f *repoFake) SaveProcessingResult(_ context.Context, id string, cls domain.Classification, extraction domain.Extraction, thumbnailPath string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedCls[id] = cls
	if doc, ok := f.docs[id]; ok {
		doc.Type = cls.Type
		doc.Tags = cls.Tags
		doc.Confidence = cls.Confidence
		doc.ClassificationSource = cls.Source
		doc.ExtractedText = extraction.Text
		doc.ExtractedFields = extraction.Fields
		doc.Language = extraction.Language
		doc.ThumbnailPath = thumbnailPath
	}
	return nil
}

func (f *repoFake) SaveSimilarMatches(_ context.Context, id string, matches []domain.SimilarMatch) error {
	f.savedSimilar[id] = matches
	return nil
}

func (f *repoFake) SoftDelete(_ context.Context, ownerID, id string) error {
	doc, ok := f.docs[id]
	if !ok || doc.OwnerID != ownerID || doc.DeletedAt != nil {
		return domain.WrapError(domain.ErrDocumentNotFound, "soft delete", errors.New(id))
	}
	now := time.Now().UTC()
	doc.DeletedAt = &now
	return nil
}

// versionRepoFake backs the chain manager; its lock closure reads documents
// through the shared repoFake exactly like the postgres implementation reads
// the documents table inside the locking transaction.
type versionRepoFake struct {
	docs      *repoFake
	records   []domain.VersionRecord
	lockCalls int
	lockErr   error
}

func newVersionRepoFake(docs *repoFake) *versionRepoFake {
	return &versionRepoFake{docs: docs}
}

func (f *versionRepoFake) ListByDocumentID(_ context.Context, documentID string) ([]domain.VersionRecord, error) {
	var out []domain.VersionRecord
	for _, rec := range f.records {
		if rec.DocumentID == documentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *versionRepoFake) InFilenameLock(ctx context.Context, _, _ string, fn func(tx ports.VersionTx) error) error {
	if f.lockErr != nil {
		return f.lockErr
	}
	f.lockCalls++
	return fn(&versionTxFake{repo: f})
}

type versionTxFake struct {
	repo *versionRepoFake
}

func (t *versionTxFake) FindLatestByFilename(ctx context.Context, ownerID, filename, excludeID string) (*domain.Document, error) {
	return t.repo.docs.FindLatestByFilename(ctx, ownerID, filename, excludeID)
}

func (t *versionTxFake) ListByDocumentID(ctx context.Context, documentID string) ([]domain.VersionRecord, error) {
	return t.repo.ListByDocumentID(ctx, documentID)
}

func (t *versionTxFake) Create(_ context.Context, record *domain.VersionRecord) error {
	t.repo.records = append(t.repo.records, *record)
	return nil
}

func (t *versionTxFake) ClearCurrent(_ context.Context, documentID string) error {
	for i := range t.repo.records {
		if t.repo.records[i].DocumentID == documentID {
			t.repo.records[i].IsCurrent = false
		}
	}
	return nil
}

type storageFake struct {
	saved     map[string]string
	deleted   []string
	saveErr   error
	deleteErr error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: map[string]string{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader, _ int64, _ string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.saved[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, key)
	delete(f.saved, key)
	return nil
}

func (f *storageFake) PresignURL(_ context.Context, key string) (string, error) {
	return "https://blob.test/" + key, nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentUploaded(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentUploaded(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type extractorFake struct {
	extraction domain.Extraction
	err        error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (domain.Extraction, error) {
	if f.err != nil {
		return domain.Extraction{}, f.err
	}
	return f.extraction, nil
}

type thumbnailerFake struct {
	path string
	err  error
}

func (f *thumbnailerFake) Generate(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

type deriverFake struct {
	count int
	calls int
	err   error
}

func (f *deriverFake) Derive(context.Context, *domain.Document) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

type observerFake struct {
	lags      []time.Duration
	links     int
	reminders int
}

func (f *observerFake) ObserveQueueLag(lag time.Duration) {
	f.lags = append(f.lags, lag)
}

func (f *observerFake) RecordVersionLink() {
	f.links++
}

func (f *observerFake) RecordRemindersDerived(count int) {
	f.reminders += count
}
