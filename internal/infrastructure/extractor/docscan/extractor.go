package docscan

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
)

// minNativeTextLen is the threshold below which a PDF text layer is treated
// as absent (scanned PDF) and the document goes to OCR instead.
const minNativeTextLen = 64

// Extractor loads stored document bytes and produces text, structured fields
// and a language guess. Digital PDFs are read natively; everything else goes
// through the OCR service.
type Extractor struct {
	storage ports.ObjectStorage
	client  *Client
	logger  *slog.Logger
}

func NewExtractor(storage ports.ObjectStorage, client *Client, logger *slog.Logger) *Extractor {
	return &Extractor{storage: storage, client: client, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (domain.Extraction, error) {
	rc, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open stored document: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("read stored document: %w", err)
	}

	if doc.MimeType == "application/pdf" {
		if text, ok := e.nativePDFText(content); ok {
			return e.enrichNativeText(ctx, doc, text, content)
		}
	}

	return e.client.ExtractBytes(ctx, doc.Filename, doc.MimeType, content)
}

// nativePDFText pulls the embedded text layer out of a digital PDF. Scanned
// PDFs have no usable layer and fall through to OCR.
func (e *Extractor) nativePDFText(content []byte) (string, bool) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		e.logger.Debug("pdf parse failed, deferring to ocr", "error", err)
		return "", false
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		e.logger.Debug("pdf text layer unreadable, deferring to ocr", "error", err)
		return "", false
	}
	raw, err := io.ReadAll(textReader)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(string(raw))
	if len(text) < minNativeTextLen {
		return "", false
	}
	return text, true
}

// enrichNativeText still asks the service for structured fields and language,
// but keeps the native text if the service is unavailable.
func (e *Extractor) enrichNativeText(ctx context.Context, doc *domain.Document, text string, content []byte) (domain.Extraction, error) {
	remote, err := e.client.ExtractBytes(ctx, doc.Filename, doc.MimeType, content)
	if err != nil {
		e.logger.Warn("field extraction unavailable, keeping native pdf text",
			"document_id", doc.ID, "error", err)
		return domain.Extraction{Text: text}, nil
	}
	out := remote
	if strings.TrimSpace(out.Text) == "" {
		out.Text = text
	}
	return out, nil
}
