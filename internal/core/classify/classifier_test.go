package classify

import (
	"reflect"
	"testing"

	"github.com/expatdesk/docvault/internal/core/domain"
)

func TestClassifyResidencePermitBeatsPassport(t *testing.T) {
	got := Classify("scan_residence permit 2026.pdf", "passport number P1234 residence permit valid until 2027")
	if got.Type != domain.TypeResidencePermit {
		t.Fatalf("expected residence_permit, got %s", got.Type)
	}
}

func TestClassifyPassportPhotosBeatsPassport(t *testing.T) {
	got := Classify("passport photos biometric.jpg", "")
	if got.Type != domain.TypePassportPhotos {
		t.Fatalf("expected passport_photos, got %s", got.Type)
	}
}

func TestClassifyPlainPassport(t *testing.T) {
	got := Classify("reisepass_scan.pdf", "")
	if got.Type != domain.TypePassport {
		t.Fatalf("expected passport, got %s", got.Type)
	}
	if !containsTag(got.Tags, "travel") {
		t.Fatalf("expected implied travel tag, got %v", got.Tags)
	}
	if !containsTag(got.Tags, "identity") {
		t.Fatalf("expected identity tag, got %v", got.Tags)
	}
}

func TestClassifyLeaseAsRentalContract(t *testing.T) {
	got := Classify("lease.pdf", "rental agreement between landlord and tenant, mietvertrag")
	if got.Type != domain.TypeRentalContract {
		t.Fatalf("expected rental_contract, got %s", got.Type)
	}
	if got.Confidence < 0.85 {
		t.Fatalf("expected confidence >= 0.85, got %v", got.Confidence)
	}
	if !containsTag(got.Tags, "housing") || !containsTag(got.Tags, "contract") {
		t.Fatalf("expected housing+contract tags, got %v", got.Tags)
	}
}

func TestClassifyInsuranceSuppressedByVaccination(t *testing.T) {
	got := Classify("impfpass.pdf", "krankenversicherung vaccination record impfung")
	if got.Type != domain.TypeVaccination {
		t.Fatalf("expected vaccination, got %s", got.Type)
	}
}

func TestClassifyNoMatchDefaultsToOther(t *testing.T) {
	got := Classify("IMG_20260817_093210.heic", "")
	if got.Type != domain.TypeOther {
		t.Fatalf("expected other, got %s", got.Type)
	}
	if got.Confidence != NoMatchConfidence {
		t.Fatalf("expected default confidence %v, got %v", NoMatchConfidence, got.Confidence)
	}
	if len(got.Tags) != 0 {
		t.Fatalf("expected no tags, got %v", got.Tags)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	first := Classify("kontoauszug_januar.pdf", "kontoauszug saldo 1.234,56 eur")
	second := Classify("kontoauszug_januar.pdf", "kontoauszug saldo 1.234,56 eur")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("classification is not deterministic: %+v vs %+v", first, second)
	}
}

func TestClassifyConfidenceNeverReachesOne(t *testing.T) {
	got := Classify("residence permit aufenthaltstitel.pdf", "residence permit aufenthaltserlaubnis niederlassungserlaubnis blaue karte")
	if got.Confidence > InferredConfidenceCap {
		t.Fatalf("inferred confidence %v exceeds cap %v", got.Confidence, InferredConfidenceCap)
	}
}

func TestClassifyFilenameMatchBoostsConfidence(t *testing.T) {
	fromName := Classify("mietvertrag.pdf", "")
	fromText := Classify("scan001.pdf", "mietvertrag")
	if fromName.Confidence <= fromText.Confidence {
		t.Fatalf("expected filename match to score higher: name=%v text=%v", fromName.Confidence, fromText.Confidence)
	}
}

func TestClassifyTagsStayInsideVocabulary(t *testing.T) {
	inputs := []struct{ name, text string }{
		{"lease.pdf", "mietvertrag"},
		{"passport.pdf", ""},
		{"gehaltsabrechnung.pdf", "lohnabrechnung brutto netto"},
		{"steuerbescheid.pdf", "steuer finanzamt"},
		{"random.bin", "nothing recognizable"},
	}
	for _, input := range inputs {
		got := Classify(input.name, input.text)
		for _, tag := range got.Tags {
			if !AllowedTag(tag) {
				t.Fatalf("tag %q for %q is outside the allowed vocabulary", tag, input.name)
			}
		}
	}
}

func TestLoadRulesRejectsUnknownTag(t *testing.T) {
	raw := []byte("vocabulary: [finance]\nrules:\n  - type: payslip\n    confidence: 0.8\n    patterns: [payslip]\n    tags: [bogus]\n")
	if _, err := loadRules(raw); err == nil {
		t.Fatalf("expected error for tag outside vocabulary")
	}
}

func containsTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
