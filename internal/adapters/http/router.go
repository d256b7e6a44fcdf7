package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
	"github.com/expatdesk/docvault/internal/observability/metrics"
)

const serviceName = "api"

type Options struct {
	SimilarityThreshold float64
	MaxUploadBytes      int64
	RateLimitRPS        float64
	RateLimitBurst      int
	Metrics             *metrics.HTTPServerMetrics
}

type Router struct {
	ingest  ports.DocumentIngestor
	queries ports.DocumentQueryService
	opts    Options
}

func NewRouter(ingest ports.DocumentIngestor, queries ports.DocumentQueryService, opts Options) *Router {
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = 0.5
	}
	return &Router{ingest: ingest, queries: queries, opts: opts}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.opts.Metrics != nil {
		mux.Handle("/metrics", rt.opts.Metrics.Handler())
	}
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/", rt.documentSubtree)

	var handler http.Handler = mux
	if rt.opts.RateLimitRPS > 0 {
		handler = ownerRateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, rt.opts.Metrics)
	}
	handler = accessLogMiddleware(handler)
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	if rt.opts.MaxUploadBytes > 0 {
		// Multipart overhead on top of the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes+64<<10)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	cmd := ports.UploadCommand{
		OwnerID:              ownerID,
		Filename:             fileHeader.Filename,
		MimeType:             fileHeader.Header.Get("Content-Type"),
		Body:                 file,
		ExplicitType:         domain.DocumentType(r.FormValue("document_type")),
		FulfilledRequirement: r.FormValue("fulfilled_requirement"),
		ChangeSummary:        r.FormValue("change_summary"),
	}
	if raw := r.FormValue("requirement_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "requirement_id must be an integer"})
			return
		}
		cmd.RequirementID = id
	}

	receipt, err := rt.ingest.Upload(r.Context(), cmd)
	if err != nil {
		rt.recordUploadFailure(err)
		writeError(w, err)
		return
	}

	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordUpload(serviceName, "accepted", receipt.Document.SizeBytes)
		rt.opts.Metrics.RecordClassification(serviceName,
			receipt.Document.ClassificationSource, string(receipt.Document.Type))
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

func (rt *Router) recordUploadFailure(err error) {
	if rt.opts.Metrics == nil {
		return
	}
	outcome := "error"
	switch {
	case domain.IsKind(err, domain.ErrDuplicate):
		outcome = "duplicate"
	case domain.IsKind(err, domain.ErrInvalidInput):
		outcome = "rejected"
	}
	rt.opts.Metrics.RecordUpload(serviceName, outcome, 0)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	filter := domain.DocumentFilter{
		Type:   domain.DocumentType(r.URL.Query().Get("type")),
		Status: domain.DocumentStatus(r.URL.Query().Get("status")),
	}
	if filter.Type != "" && !domain.ValidDocumentType(filter.Type) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown document type"})
		return
	}

	items, err := rt.queries.List(r.Context(), ownerID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": items})
}

func (rt *Router) documentSubtree(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		rt.getDocument(w, r, ownerID, id)
	case sub == "" && r.Method == http.MethodDelete:
		rt.deleteDocument(w, r, ownerID, id)
	case sub == "versions" && r.Method == http.MethodGet:
		rt.getVersions(w, r, ownerID, id)
	case sub == "similar" && r.Method == http.MethodGet:
		rt.getSimilar(w, r, ownerID, id)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request, ownerID, id string) {
	doc, err := rt.queries.Get(r.Context(), ownerID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, ownerID, id string) {
	if err := rt.queries.Delete(r.Context(), ownerID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getVersions(w http.ResponseWriter, r *http.Request, ownerID, id string) {
	records, err := rt.queries.Versions(r.Context(), ownerID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.VersionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": records})
}

func (rt *Router) getSimilar(w http.ResponseWriter, r *http.Request, ownerID, id string) {
	threshold := rt.opts.SimilarityThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "threshold must be in (0, 1]"})
			return
		}
		threshold = parsed
	}

	matches, err := rt.queries.Similar(r.Context(), ownerID, id, threshold)
	if err != nil {
		writeError(w, err)
		return
	}
	if matches == nil {
		matches = []domain.SimilarMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"similar": matches})
}

func writeError(w http.ResponseWriter, err error) {
	var dup *domain.DuplicateError
	if errors.As(err, &dup) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                "byte-identical document already exists",
			"existing_document_id": dup.ExistingID,
			"existing_filename":    dup.ExistingFilename,
		})
		return
	}
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
