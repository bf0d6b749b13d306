package model

import (
	"time"
)

// AttestationType identifies which insurance certificate was uploaded.
type AttestationType string

const (
	TypeDecennale AttestationType = "decennale"
	TypeRCPro     AttestationType = "rc_pro"
)

// Valid reports whether t is one of the two recognized attestation types.
func (t AttestationType) Valid() bool {
	return t == TypeDecennale || t == TypeRCPro
}

// Sibling returns the other attestation type.
func (t AttestationType) Sibling() AttestationType {
	if t == TypeDecennale {
		return TypeRCPro
	}
	return TypeDecennale
}

// FieldStatus is the outcome of comparing one extracted field against the
// quote reference.
type FieldStatus string

const (
	StatusConsistent   FieldStatus = "consistent"
	StatusIncomplete   FieldStatus = "incomplete"
	StatusInconsistent FieldStatus = "inconsistent"
	StatusUnavailable  FieldStatus = "unavailable"
)

// Severity is the three-color confidence verdict, ordered red > amber > green.
type Severity string

const (
	SeverityGreen Severity = "green"
	SeverityAmber Severity = "amber"
	SeverityRed   Severity = "red"
)

// AttestationExtraction holds the structured fields pulled out of an uploaded
// attestation document by the extraction oracle. Absent fields stay empty
// strings, they are never inferred. Readable is false when the document could
// not be read at all.
type AttestationExtraction struct {
	Category          string `json:"type_attestation"`
	CompanyName       string `json:"nom_entreprise"`
	Siret             string `json:"siret"`
	Address           string `json:"adresse"`
	Insurer           string `json:"assureur"`
	ContractNumber    string `json:"numero_contrat"`
	CoverageStart     string `json:"date_debut_validite"`
	CoverageEnd       string `json:"date_fin_validite"`
	CoveredActivities string `json:"activites_couvertes"`
	Readable          bool   `json:"readable"`
}

// QuoteReference is the read-only company/project snapshot already extracted
// from the renovation quote. It is treated as ground truth for comparison.
type QuoteReference struct {
	CompanyName  string `json:"nom_entreprise"`
	Siret        string `json:"siret"`
	Address      string `json:"adresse"`
	WorkCategory string `json:"categorie_travaux"`
}

// AttestationComparison carries the five per-field statuses plus the global
// coherence derived from them. GlobalCoherence is always recomputed from the
// five fields, never stored independently.
type AttestationComparison struct {
	Name            FieldStatus `json:"nom_entreprise"`
	Siret           FieldStatus `json:"siret"`
	Address         FieldStatus `json:"adresse"`
	Validity        FieldStatus `json:"validite"`
	Activity        FieldStatus `json:"activites"`
	GlobalCoherence FieldStatus `json:"coherence_globale"`
}

// AttestationResult is the outcome of one attestation analysis. A re-analysis
// of the same type replaces the whole result in place.
type AttestationResult struct {
	Extraction AttestationExtraction `json:"extraction"`
	Comparison AttestationComparison `json:"comparison"`
	Score      Severity              `json:"score"`
	ArchiveURL string                `json:"archive_url,omitempty"`
	AnalyzedAt time.Time             `json:"analyzed_at"`
}

// Analysis is the shared record for one quote analysis: at most one result per
// attestation type plus the overall level-2 verdict across both.
type Analysis struct {
	ID        string             `json:"id"`
	Tenant    string             `json:"tenant"`
	Decennale *AttestationResult `json:"decennale,omitempty"`
	RCPro     *AttestationResult `json:"rc_pro,omitempty"`
	Overall   Severity           `json:"overall_level2_score,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Result returns the stored result for the given type, nil if not analyzed.
func (a *Analysis) Result(t AttestationType) *AttestationResult {
	switch t {
	case TypeDecennale:
		return a.Decennale
	case TypeRCPro:
		return a.RCPro
	}
	return nil
}

// SetResult upserts the result for the given type.
func (a *Analysis) SetResult(t AttestationType, r *AttestationResult) {
	switch t {
	case TypeDecennale:
		a.Decennale = r
	case TypeRCPro:
		a.RCPro = r
	}
}

// Clone returns a deep copy so callers never share sub-records with the store.
func (a *Analysis) Clone() *Analysis {
	out := *a
	if a.Decennale != nil {
		dec := *a.Decennale
		out.Decennale = &dec
	}
	if a.RCPro != nil {
		rc := *a.RCPro
		out.RCPro = &rc
	}
	return &out
}
