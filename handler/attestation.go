package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/julienmessagingme/newdevis-sub000/middleware"
	"github.com/julienmessagingme/newdevis-sub000/model"
	"github.com/julienmessagingme/newdevis-sub000/pkg/logger"
	"github.com/julienmessagingme/newdevis-sub000/service"
)

// maxDocumentSize caps decoded attestation payloads at 10 MiB.
const maxDocumentSize = 10 << 20

// documentArchive is the slice of ArchiveService the handler needs, kept
// narrow so tests can record archive traffic.
type documentArchive interface {
	StoreDocument(ctx context.Context, objectName string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, objectName string) (string, error)
	RemoveDocument(ctx context.Context, objectName string) error
}

type AttestationHandler struct {
	extractor service.Extractor
	archive   documentArchive // nil disables archiving
	store     *service.AnalysisStore
	now       func() time.Time
}

func NewAttestationHandler(extractor service.Extractor, archive *service.ArchiveService) *AttestationHandler {
	h := &AttestationHandler{
		extractor: extractor,
		store:     service.GetAnalysisStore(),
		now:       time.Now,
	}
	if archive != nil {
		h.archive = archive
	}
	return h
}

// archiveObjectName places each attestation document under its tenant and
// analysis so deletion can find everything an analysis produced.
func archiveObjectName(tenant, analysisID string, typ model.AttestationType) string {
	return fmt.Sprintf("%s/%s/%s/attestation", tenant, analysisID, typ)
}

// VerifyRequest is the contract for one attestation upload.
type VerifyRequest struct {
	AnalysisID      string                `json:"analysisId"`
	AttestationType model.AttestationType `json:"attestationType"`
	FileBase64      string                `json:"fileBase64"`
	MimeType        string                `json:"mimeType"`
	QuoteInfo       *model.QuoteReference `json:"quoteInfo"`
}

type VerifyResponse struct {
	Success            bool                        `json:"success"`
	Extraction         model.AttestationExtraction `json:"extraction"`
	Comparison         model.AttestationComparison `json:"comparison"`
	Score              model.Severity              `json:"score"`
	OverallLevel2Score model.Severity              `json:"overallLevel2Score"`
	ArchiveURL         string                      `json:"archiveUrl,omitempty"`
	Message            string                      `json:"message"`
}

// Verify runs the full attestation-to-quote consistency check: validate the
// request, extract the document, compare against the quote reference, merge
// into the analysis record and reconcile with the sibling attestation type.
func (h *AttestationHandler) Verify(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if _, err := uuid.Parse(req.AnalysisID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "analysisId must be a valid UUID"})
		return
	}
	if !req.AttestationType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "attestationType must be 'decennale' or 'rc_pro'"})
		return
	}
	if req.FileBase64 == "" || req.MimeType == "" || req.QuoteInfo == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileBase64, mimeType and quoteInfo are required"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.FileBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileBase64 is not valid base64"})
		return
	}
	if len(data) > maxDocumentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Document exceeds the 10 MiB limit"})
		return
	}

	ctx := context.WithValue(c.Request.Context(), logger.AnalysisIDKey, req.AnalysisID)

	// The oracle never fails: unreadable documents come back as the empty
	// extraction and cascade into incomplete/unavailable statuses.
	extraction := h.extractor.Extract(ctx, data, req.MimeType)

	comparison := service.CompareExtraction(extraction, *req.QuoteInfo, h.now())
	score := service.ScoreCoherence(comparison.GlobalCoherence)

	result := &model.AttestationResult{
		Extraction: extraction,
		Comparison: comparison,
		Score:      score,
		AnalyzedAt: h.now(),
	}

	if h.archive != nil {
		objectName := archiveObjectName(tenant, req.AnalysisID, req.AttestationType)
		if err := h.archive.StoreDocument(ctx, objectName, data, req.MimeType); err != nil {
			// Archiving is best-effort, the verdict does not depend on it.
			logger.Warn(ctx, "failed to archive attestation document", "error", err)
		} else if url, err := h.archive.PresignedURL(ctx, objectName); err == nil {
			result.ArchiveURL = url
		}
	}

	analysis, err := h.store.Merge(req.AnalysisID, tenant, req.AttestationType, result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist analysis: " + err.Error()})
		return
	}

	logger.Info(ctx, "attestation verified",
		"attestation_type", req.AttestationType,
		"score", score,
		"overall_score", analysis.Overall,
		"global_coherence", comparison.GlobalCoherence,
	)

	c.JSON(http.StatusOK, VerifyResponse{
		Success:            true,
		Extraction:         extraction,
		Comparison:         comparison,
		Score:              score,
		OverallLevel2Score: analysis.Overall,
		ArchiveURL:         result.ArchiveURL,
		Message:            verdictMessage(score, comparison, extraction),
	})
}

// fieldLabels in display order, for verdict messages.
var fieldLabels = []struct {
	label  string
	status func(model.AttestationComparison) model.FieldStatus
}{
	{"nom de l'entreprise", func(c model.AttestationComparison) model.FieldStatus { return c.Name }},
	{"SIRET", func(c model.AttestationComparison) model.FieldStatus { return c.Siret }},
	{"adresse", func(c model.AttestationComparison) model.FieldStatus { return c.Address }},
	{"période de validité", func(c model.AttestationComparison) model.FieldStatus { return c.Validity }},
	{"activités couvertes", func(c model.AttestationComparison) model.FieldStatus { return c.Activity }},
}

// fieldsWithStatus lists the labels of fields matching any of the given statuses.
func fieldsWithStatus(cmp model.AttestationComparison, statuses ...model.FieldStatus) []string {
	var out []string
	for _, f := range fieldLabels {
		got := f.status(cmp)
		for _, s := range statuses {
			if got == s {
				out = append(out, f.label)
				break
			}
		}
	}
	return out
}

// verdictMessage builds the user-facing explanation. A red verdict always
// names at least one inconsistent field, an amber verdict the fields that
// could not be confirmed.
func verdictMessage(score model.Severity, cmp model.AttestationComparison, ext model.AttestationExtraction) string {
	switch score {
	case model.SeverityRed:
		fields := fieldsWithStatus(cmp, model.StatusInconsistent)
		return "Incohérence détectée : " + strings.Join(fields, ", ")
	case model.SeverityAmber:
		if !ext.Readable {
			return "Document illisible, vérification impossible"
		}
		fields := fieldsWithStatus(cmp, model.StatusIncomplete, model.StatusUnavailable)
		return "Vérification incomplète : " + strings.Join(fields, ", ")
	default:
		return "Attestation cohérente avec le devis"
	}
}

// GetAnalysis returns the merged analysis record for both attestation types.
func (h *AttestationHandler) GetAnalysis(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Analysis id must be a valid UUID"})
		return
	}

	analysis := h.store.Get(id)
	if analysis == nil || analysis.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// DeleteAnalysis removes an analysis record.
func (h *AttestationHandler) DeleteAnalysis(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Analysis id must be a valid UUID"})
		return
	}

	analysis := h.store.Get(id)
	if analysis == nil || analysis.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}

	h.store.Delete(id)

	// Drop the archived documents alongside the record, best-effort.
	if h.archive != nil {
		ctx := c.Request.Context()
		for _, typ := range []model.AttestationType{model.TypeDecennale, model.TypeRCPro} {
			if analysis.Result(typ) == nil {
				continue
			}
			if err := h.archive.RemoveDocument(ctx, archiveObjectName(tenant, id, typ)); err != nil {
				logger.Warn(ctx, "failed to remove archived document",
					"attestation_type", typ,
					"error", err,
				)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Analysis deleted"})
}
