package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
)

const (
	matchTypeContent  = "content"
	matchTypeFilename = "filename"

	minMeaningfulWordLen = 3
)

// DuplicateDetector decides whether an incoming file is an exact duplicate
// (hard reject) and surfaces near-duplicate suggestions (advisory only).
type DuplicateDetector struct {
	repo ports.DocumentRepository
}

func NewDuplicateDetector(repo ports.DocumentRepository) *DuplicateDetector {
	return &DuplicateDetector{repo: repo}
}

// CheckExactDuplicate returns the already-stored document when the owner has
// a non-deleted document with identical filename, size and content hash.
// Re-uploading byte-identical content must never create a second row.
func (d *DuplicateDetector) CheckExactDuplicate(ctx context.Context, ownerID, filename string, sizeBytes int64, contentHash string) (*domain.Document, error) {
	candidates, err := d.repo.FindByNameAndSize(ctx, ownerID, filename, sizeBytes)
	if err != nil {
		return nil, fmt.Errorf("find by name and size: %w", err)
	}
	for i := range candidates {
		if candidates[i].ContentHash == contentHash {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// DetectSimilar ranks the owner's completed documents by text overlap with
// the given document. Candidates share the inferred type (or all types when
// unknown). Scores below threshold are dropped.
func (d *DuplicateDetector) DetectSimilar(ctx context.Context, ownerID, excludeID, filename, extractedText string, docType domain.DocumentType, threshold float64) ([]domain.SimilarMatch, error) {
	if docType == domain.TypeOther {
		docType = ""
	}
	candidates, err := d.repo.ListCompletedByType(ctx, ownerID, docType, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list similarity candidates: %w", err)
	}

	words := meaningfulWords(extractedText)
	matches := make([]domain.SimilarMatch, 0, len(candidates))
	for _, candidate := range candidates {
		score, matchType := similarity(words, filename, candidate)
		if score < threshold {
			continue
		}
		matches = append(matches, domain.SimilarMatch{
			DocumentID: candidate.ID,
			Filename:   candidate.Filename,
			Score:      score,
			MatchType:  matchType,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

func similarity(words map[string]struct{}, filename string, candidate domain.Document) (float64, string) {
	candidateWords := meaningfulWords(candidate.ExtractedText)
	if len(words) > 0 && len(candidateWords) > 0 {
		return jaccard(words, candidateWords), matchTypeContent
	}
	return jaccard(meaningfulWords(filename), meaningfulWords(candidate.Filename)), matchTypeFilename
}

// meaningfulWords lowercases and keeps words of at least three characters;
// shorter tokens are mostly OCR noise and stop words.
func meaningfulWords(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, token := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r >= 0x80)
	}) {
		if len([]rune(token)) >= minMeaningfulWordLen {
			words[token] = struct{}{}
		}
	}
	return words
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for word := range a {
		if _, ok := b[word]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
