package domain

import (
	"fmt"
	"sort"
	"time"
)

// VersionRecord is one entry in a document's revision history. Records are
// dual-written: the anchor document and the newly uploaded document each get
// a record for the same version number, cross-referencing each other through
// Metadata, so the chain is readable from either side without a join.
type VersionRecord struct {
	ID              string          `json:"id"`
	DocumentID      string          `json:"document_id"`
	VersionNumber   int             `json:"version_number"`
	IsCurrent       bool            `json:"is_current"`
	ParentVersionID string          `json:"parent_version_id,omitempty"`
	Metadata        VersionMetadata `json:"metadata"`
	UploadedBy      string          `json:"uploaded_by"`
	ChangeSummary   string          `json:"change_summary,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// VersionMetadata carries either "this is the original" or cross-links to the
// counterpart document in the dual-write pair.
type VersionMetadata struct {
	Original         bool   `json:"original,omitempty"`
	NewDocumentID    string `json:"new_document_id,omitempty"`
	ParentDocumentID string `json:"parent_document_id,omitempty"`
}

// VersionLink reports the outcome of a version-chain linking attempt.
type VersionLink struct {
	Linked           bool   `json:"version_linked"`
	ParentDocumentID string `json:"parent_document_id,omitempty"`
	VersionNumber    int    `json:"version_number,omitempty"`
}

// CheckChainInvariants validates one anchor's records: exactly one is_current
// and version numbers gapless ascending from 1. Callable after every chain
// mutation to guard regressions.
func CheckChainInvariants(records []VersionRecord) error {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]VersionRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].VersionNumber < sorted[j].VersionNumber
	})

	current := 0
	for i, rec := range sorted {
		if rec.VersionNumber != i+1 {
			return fmt.Errorf("version chain gap: expected version %d, got %d", i+1, rec.VersionNumber)
		}
		if rec.IsCurrent {
			current++
		}
	}
	if current != 1 {
		return fmt.Errorf("version chain has %d current records, want exactly 1", current)
	}
	return nil
}
