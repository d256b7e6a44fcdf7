package domain

// Classification is the result of typing a document, either inferred from
// its content or imposed by a caller override.
type Classification struct {
	Type       DocumentType `json:"document_type"`
	Tags       []string     `json:"tags"`
	Confidence float64      `json:"confidence"`
	Source     string       `json:"source"`
}

const (
	SourceIDMapping = "id_mapping"
	SourceExplicit  = "explicit"
	SourceInferred  = "inferred"
)

// requirementTypeMap binds stable checklist requirement ids to document
// types. A mapped id is the strongest classification signal there is.
var requirementTypeMap = map[int64]DocumentType{
	1:  TypePassport,
	2:  TypePassportPhotos,
	3:  TypeVisa,
	4:  TypeResidencePermit,
	5:  TypeBirthCertificate,
	6:  TypeMarriageCertificate,
	7:  TypeDiploma,
	8:  TypeEmploymentContract,
	9:  TypeRentalContract,
	10: TypeRegistrationCertificate,
	11: TypeInsurance,
	12: TypeVaccination,
	13: TypeBankStatement,
	14: TypePayslip,
	15: TypeTaxDocument,
	16: TypeUtilityBill,
}

// MappedRequirementType resolves a stable requirement id to a document type.
func MappedRequirementType(requirementID int64) (DocumentType, bool) {
	t, ok := requirementTypeMap[requirementID]
	return t, ok
}

// ResolveClassification applies the three-tier override precedence:
// requirement-id mapping beats an explicit caller-supplied type, which beats
// the inferred result. Overrides carry maximum confidence.
func ResolveClassification(requirementID int64, explicitType DocumentType, inferred Classification) Classification {
	if mapped, ok := MappedRequirementType(requirementID); ok {
		return Classification{
			Type:       mapped,
			Tags:       inferred.Tags,
			Confidence: 1.0,
			Source:     SourceIDMapping,
		}
	}
	if explicitType != "" {
		return Classification{
			Type:       explicitType,
			Tags:       inferred.Tags,
			Confidence: 1.0,
			Source:     SourceExplicit,
		}
	}
	out := inferred
	out.Source = SourceInferred
	return out
}

// IsOverride reports whether the classification bypassed inference; an
// overridden document is never re-classified by the background pipeline.
func (c Classification) IsOverride() bool {
	return c.Source == SourceIDMapping || c.Source == SourceExplicit
}
