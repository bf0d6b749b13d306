package service

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/julienmessagingme/newdevis-sub000/model"
)

// normalizeText lowercases and strips every non-alphanumeric rune. Accented
// letters count as alphanumeric so French names survive normalization.
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripSpaces removes all whitespace, for SIRET/SIREN digit strings.
func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// jaccard computes character-set Jaccard similarity of two strings: size of
// the rune-set intersection over size of the union.
func jaccard(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	setA := make(map[rune]struct{})
	for _, r := range a {
		setA[r] = struct{}{}
	}
	setB := make(map[rune]struct{})
	for _, r := range b {
		setB[r] = struct{}{}
	}
	intersection := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// CompareNames checks the insured company name against the quote's company
// name. Equal or substring-contained normalized names are consistent; near
// misses fall back to Jaccard similarity thresholds.
func CompareNames(extracted, reference string) model.FieldStatus {
	// Emptiness is judged after normalization so a punctuation-only value
	// counts as missing rather than vacuously matching everything.
	ne := normalizeText(extracted)
	nr := normalizeText(reference)
	if ne == "" {
		return model.StatusIncomplete
	}
	if nr == "" {
		return model.StatusUnavailable
	}

	if ne == nr || strings.Contains(ne, nr) || strings.Contains(nr, ne) {
		return model.StatusConsistent
	}

	switch sim := jaccard(ne, nr); {
	case sim > 0.70:
		return model.StatusConsistent
	case sim > 0.40:
		return model.StatusIncomplete
	default:
		return model.StatusInconsistent
	}
}

// CompareSirets checks the establishment identifier. Two SIRETs sharing the
// same 9-digit SIREN prefix identify different establishments of the same
// legal entity, which is not an anomaly.
func CompareSirets(extracted, reference string) model.FieldStatus {
	e := stripSpaces(extracted)
	r := stripSpaces(reference)
	if e == "" {
		return model.StatusIncomplete
	}
	if r == "" {
		return model.StatusUnavailable
	}
	if e == r {
		return model.StatusConsistent
	}
	if len(e) >= 9 && len(r) >= 9 && e[:9] == r[:9] {
		return model.StatusConsistent
	}
	return model.StatusInconsistent
}

var postalCodeRe = regexp.MustCompile(`\b\d{5}\b`)

// CompareAddresses checks the insured address against the quote address.
// When overall similarity is too low, a matching 5-digit postal code is still
// enough to call the addresses consistent.
func CompareAddresses(extracted, reference string) model.FieldStatus {
	// Postal codes survive normalization, so a normalized-empty side really
	// has nothing to compare against.
	ne := normalizeText(extracted)
	nr := normalizeText(reference)
	if ne == "" {
		return model.StatusIncomplete
	}
	if nr == "" {
		return model.StatusUnavailable
	}

	switch sim := jaccard(ne, nr); {
	case sim > 0.50:
		return model.StatusConsistent
	case sim > 0.30:
		return model.StatusIncomplete
	}

	pe := postalCodeRe.FindString(extracted)
	pr := postalCodeRe.FindString(reference)
	if pe != "" && pe == pr {
		return model.StatusConsistent
	}
	return model.StatusInconsistent
}

// dateLayouts are tried in order when parsing coverage end dates.
var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	time.RFC3339,
	"2 January 2006",
	"January 2, 2006",
}

var frenchMonths = map[string]time.Month{
	"janvier": time.January, "fevrier": time.February, "février": time.February,
	"mars": time.March, "avril": time.April, "mai": time.May, "juin": time.June,
	"juillet": time.July, "aout": time.August, "août": time.August,
	"septembre": time.September, "octobre": time.October,
	"novembre": time.November, "decembre": time.December, "décembre": time.December,
}

// parseCoverageDate tries the known layouts, then a French "15 mars 2027"
// form. ok is false when nothing matches.
func parseCoverageDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 3 {
		if month, ok := frenchMonths[fields[1]]; ok {
			day, errD := time.Parse("2", fields[0])
			year, errY := time.Parse("2006", fields[2])
			if errD == nil && errY == nil {
				return time.Date(year.Year(), month, day.Day(), 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	return time.Time{}, false
}

// CompareValidity evaluates the attestation's coverage end date against now.
// An expired coverage is inconsistent; an unparseable or absent date only
// means the period could not be confirmed.
func CompareValidity(coverageEnd string, now time.Time) model.FieldStatus {
	raw := strings.TrimSpace(coverageEnd)
	if raw == "" {
		return model.StatusIncomplete
	}
	end, ok := parseCoverageDate(raw)
	if !ok {
		return model.StatusIncomplete
	}
	if end.After(now) {
		return model.StatusConsistent
	}
	return model.StatusInconsistent
}

// activityKeywords maps quote work categories to the coverage wordings that
// confirm them. Keys and keywords are matched after normalization.
var activityKeywords = map[string][]string{
	"toiture":     {"toiture", "couverture", "charpente", "zinguerie"},
	"maçonnerie":  {"maçonnerie", "maconnerie", "mur", "béton", "beton"},
	"plomberie":   {"plomberie", "sanitaire", "chauffage"},
	"électricité": {"électricité", "electricite", "électrique", "electrique"},
	"menuiserie":  {"menuiserie", "fenêtre", "fenetre", "porte"},
	"peinture":    {"peinture", "revêtement", "revetement", "décoration", "decoration"},
	"isolation":   {"isolation", "thermique", "calorifuge"},
	"chauffage":   {"chauffage", "climatisation", "ventilation"},
	"carrelage":   {"carrelage", "faïence", "faience", "dallage"},
	"façade":      {"façade", "facade", "ravalement", "enduit"},
}

// allTradesPhrases are generic wordings that cover every work category.
var allTradesPhrases = []string{
	"tous corps d'état",
	"tous corps d etat",
	"tous travaux",
	"multiservices",
	"bâtiment général",
	"batiment general",
}

// CompareActivities checks whether the covered-activities wording confirms the
// quote's work category. No match on a non-empty wording is incomplete, not
// inconsistent: the coverage cannot be confirmed but is not necessarily wrong.
func CompareActivities(coveredActivities, workCategory string) model.FieldStatus {
	covered := normalizeText(coveredActivities)
	if covered == "" {
		return model.StatusIncomplete
	}

	keywords := activityKeywords[normalizeText(workCategory)]
	if len(keywords) == 0 && strings.TrimSpace(workCategory) != "" {
		// Unmapped category: the category wording itself is the keyword.
		keywords = []string{workCategory}
	}
	for _, kw := range keywords {
		if k := normalizeText(kw); k != "" && strings.Contains(covered, k) {
			return model.StatusConsistent
		}
	}
	for _, phrase := range allTradesPhrases {
		if strings.Contains(covered, normalizeText(phrase)) {
			return model.StatusConsistent
		}
	}
	return model.StatusIncomplete
}

// CompareExtraction runs the five field comparators against the quote
// reference and derives the global coherence.
func CompareExtraction(ext model.AttestationExtraction, ref model.QuoteReference, now time.Time) model.AttestationComparison {
	cmp := model.AttestationComparison{
		Name:     CompareNames(ext.CompanyName, ref.CompanyName),
		Siret:    CompareSirets(ext.Siret, ref.Siret),
		Address:  CompareAddresses(ext.Address, ref.Address),
		Validity: CompareValidity(ext.CoverageEnd, now),
		Activity: CompareActivities(ext.CoveredActivities, ref.WorkCategory),
	}
	cmp.GlobalCoherence = AggregateCoherence(cmp.Name, cmp.Siret, cmp.Address, cmp.Validity, cmp.Activity)
	return cmp
}

// AggregateCoherence reduces field statuses into one global status. Rules
// apply in order: any inconsistent field wins; then at least 3 consistent
// fields; then more than 2 incomplete fields; anything left is consistent.
func AggregateCoherence(statuses ...model.FieldStatus) model.FieldStatus {
	consistent, incomplete := 0, 0
	for _, s := range statuses {
		switch s {
		case model.StatusInconsistent:
			return model.StatusInconsistent
		case model.StatusConsistent:
			consistent++
		case model.StatusIncomplete:
			incomplete++
		}
	}
	if consistent >= 3 {
		return model.StatusConsistent
	}
	if incomplete > 2 {
		return model.StatusIncomplete
	}
	return model.StatusConsistent
}

// ScoreCoherence maps a global coherence status to a severity. The mapping is
// total: every status reaches a score.
func ScoreCoherence(global model.FieldStatus) model.Severity {
	switch global {
	case model.StatusInconsistent:
		return model.SeverityRed
	case model.StatusConsistent:
		return model.SeverityGreen
	default:
		return model.SeverityAmber
	}
}

var severityRank = map[model.Severity]int{
	model.SeverityGreen: 0,
	model.SeverityAmber: 1,
	model.SeverityRed:   2,
}

// WorstSeverity returns the more severe of two scores under red > amber > green.
func WorstSeverity(a, b model.Severity) model.Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// OverallVerdict reconciles the per-type scores present on an analysis into
// the level-2 verdict: worst of both when both types were analyzed, the single
// score otherwise, empty when neither.
func OverallVerdict(a *model.Analysis) model.Severity {
	switch {
	case a.Decennale != nil && a.RCPro != nil:
		return WorstSeverity(a.Decennale.Score, a.RCPro.Score)
	case a.Decennale != nil:
		return a.Decennale.Score
	case a.RCPro != nil:
		return a.RCPro.Score
	}
	return ""
}
