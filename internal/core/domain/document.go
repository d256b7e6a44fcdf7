package domain

import "time"

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

type DocumentType string

const (
	TypePassport                DocumentType = "passport"
	TypePassportPhotos          DocumentType = "passport_photos"
	TypeResidencePermit         DocumentType = "residence_permit"
	TypeVisa                    DocumentType = "visa"
	TypeRegistrationCertificate DocumentType = "registration_certificate"
	TypeBirthCertificate        DocumentType = "birth_certificate"
	TypeMarriageCertificate     DocumentType = "marriage_certificate"
	TypeDiploma                 DocumentType = "diploma"
	TypeEmploymentContract      DocumentType = "employment_contract"
	TypePayslip                 DocumentType = "payslip"
	TypeBankStatement           DocumentType = "bank_statement"
	TypeRentalContract          DocumentType = "rental_contract"
	TypeUtilityBill             DocumentType = "utility_bill"
	TypeInsurance               DocumentType = "insurance"
	TypeVaccination             DocumentType = "vaccination"
	TypeTaxDocument             DocumentType = "tax_document"
	TypePhoto                   DocumentType = "photo"
	TypeOther                   DocumentType = "other"
)

// ExtractedTextLimit bounds how much extracted text is persisted per document.
const ExtractedTextLimit = 50_000

var knownTypes = map[DocumentType]bool{
	TypePassport: true, TypePassportPhotos: true, TypeResidencePermit: true,
	TypeVisa: true, TypeRegistrationCertificate: true, TypeBirthCertificate: true,
	TypeMarriageCertificate: true, TypeDiploma: true, TypeEmploymentContract: true,
	TypePayslip: true, TypeBankStatement: true, TypeRentalContract: true,
	TypeUtilityBill: true, TypeInsurance: true, TypeVaccination: true,
	TypeTaxDocument: true, TypePhoto: true, TypeOther: true,
}

// ValidDocumentType reports whether t names a member of the fixed type set.
func ValidDocumentType(t DocumentType) bool {
	return knownTypes[t]
}

type Document struct {
	ID                   string            `json:"id"`
	OwnerID              string            `json:"owner_id"`
	Filename             string            `json:"filename"`
	MimeType             string            `json:"mime_type"`
	SizeBytes            int64             `json:"size_bytes"`
	ContentHash          string            `json:"content_hash"`
	StoragePath          string            `json:"storage_path"`
	ThumbnailPath        string            `json:"thumbnail_path,omitempty"`
	Type                 DocumentType      `json:"document_type"`
	Tags                 []string          `json:"tags,omitempty"`
	Confidence           float64           `json:"confidence"`
	ClassificationSource string            `json:"classification_source,omitempty"`
	FulfilledRequirement string            `json:"fulfilled_requirement,omitempty"`
	ChangeSummary        string            `json:"change_summary,omitempty"`
	Status               DocumentStatus    `json:"status"`
	ProcessingError      string            `json:"processing_error,omitempty"`
	ExtractedText        string            `json:"-"`
	ExtractedFields      map[string]string `json:"extracted_fields,omitempty"`
	Language             string            `json:"language,omitempty"`
	SimilarTo            []SimilarMatch    `json:"similar_to,omitempty"`
	DeletedAt            *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// SimilarMatch is an advisory suggestion that another document may be a
// duplicate or older revision. It never blocks an upload.
type SimilarMatch struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Score      float64 `json:"score"`
	MatchType  string  `json:"match_type"`
}

// Extraction is the payload produced by the OCR/extraction collaborator.
type Extraction struct {
	Text     string
	Fields   map[string]string
	Language string
}

// DocumentListItem annotates a document with derived read-model fields.
type DocumentListItem struct {
	Document
	DownloadURL   string `json:"download_url,omitempty"`
	VersionCount  int    `json:"version_count"`
	VersionNumber int    `json:"version_number,omitempty"`
}

// DocumentFilter narrows list queries. Zero values mean "no filter".
type DocumentFilter struct {
	Type   DocumentType
	Status DocumentStatus
}
