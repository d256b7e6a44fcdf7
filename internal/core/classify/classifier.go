// Package classify infers a document type from its filename and extracted
// text. Classification is pure and deterministic: identical input always
// yields identical output, which lets the pipeline re-run it once OCR text
// becomes available and compare confidences.
package classify

import (
	"sort"
	"strings"

	"github.com/expatdesk/docvault/internal/core/domain"
)

const (
	// InferredConfidenceCap keeps inferred classifications below certainty;
	// only caller overrides reach 1.0.
	InferredConfidenceCap = 0.95

	// NoMatchConfidence is assigned when no rule fires.
	NoMatchConfidence = 0.30

	matchCountBoost    = 0.03
	filenameMatchBoost = 0.05
)

// travelImplied lists types whose documents are also travel-relevant.
var travelImplied = map[domain.DocumentType]bool{
	domain.TypePassport:        true,
	domain.TypePassportPhotos:  true,
	domain.TypeResidencePermit: true,
	domain.TypeVisa:            true,
}

type ruleMatch struct {
	rule          Rule
	matchCount    int
	longestLen    int
	filenameMatch bool
}

// Classify maps a filename plus optional extracted text to a document type,
// tag set and confidence. Filename matches weigh more than content matches
// since OCR output is noisy.
func Classify(fileName, extractedText string) domain.Classification {
	lowerName := strings.ToLower(fileName)
	lowerText := strings.ToLower(extractedText)
	combined := lowerName + "\n" + lowerText

	var winner *ruleMatch
	for _, rule := range rules {
		match, fired := evaluate(rule, lowerName, combined)
		if !fired {
			continue
		}
		if winner == nil || betterMatch(match, *winner) {
			m := match
			winner = &m
		}
	}

	if winner == nil {
		return domain.Classification{
			Type:       domain.TypeOther,
			Tags:       []string{},
			Confidence: NoMatchConfidence,
			Source:     domain.SourceInferred,
		}
	}

	return domain.Classification{
		Type:       winner.rule.Type,
		Tags:       deriveTags(winner.rule),
		Confidence: score(*winner),
		Source:     domain.SourceInferred,
	}
}

func evaluate(rule Rule, lowerName, combined string) (ruleMatch, bool) {
	for _, guard := range rule.Exclude {
		if strings.Contains(combined, guard) {
			return ruleMatch{}, false
		}
	}

	match := ruleMatch{rule: rule}
	for _, pattern := range rule.Patterns {
		if !strings.Contains(combined, pattern) {
			continue
		}
		match.matchCount++
		if len(pattern) > match.longestLen {
			match.longestLen = len(pattern)
		}
		if strings.Contains(lowerName, pattern) {
			match.filenameMatch = true
		}
	}
	return match, match.matchCount > 0
}

// betterMatch orders fired rules: explicit priority first, then pattern
// specificity. Generic patterns are deliberately substrings of specific
// ones, so the longer match must win the tie.
func betterMatch(a, b ruleMatch) bool {
	if a.rule.Priority != b.rule.Priority {
		return a.rule.Priority > b.rule.Priority
	}
	return a.longestLen > b.longestLen
}

func score(m ruleMatch) float64 {
	confidence := m.rule.Confidence
	confidence += float64(m.matchCount-1) * matchCountBoost
	if m.filenameMatch {
		confidence += filenameMatchBoost
	}
	if confidence > InferredConfidenceCap {
		confidence = InferredConfidenceCap
	}
	return confidence
}

func deriveTags(rule Rule) []string {
	seen := make(map[string]struct{}, len(rule.Tags)+1)
	out := make([]string, 0, len(rule.Tags)+1)
	add := func(tag string) {
		if !AllowedTag(tag) {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	for _, tag := range rule.Tags {
		add(tag)
	}
	if travelImplied[rule.Type] {
		add("travel")
	}
	sort.Strings(out)
	return out
}
