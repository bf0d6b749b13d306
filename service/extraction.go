package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/julienmessagingme/newdevis-sub000/config"
	"github.com/julienmessagingme/newdevis-sub000/model"
	"github.com/julienmessagingme/newdevis-sub000/pkg/logger"
)

// Extractor turns raw attestation document bytes into a structured record.
//
// Implementations must never fail: when the document is unreadable or the
// upstream call errors, they return the empty extraction with Readable=false
// so that downstream comparison degrades to incomplete/unavailable statuses
// instead of crashing the verification.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) model.AttestationExtraction
}

// AnthropicExtractor implements Extractor with a vision-capable Claude model.
type AnthropicExtractor struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewAnthropicExtractor creates an extractor backed by the Anthropic API.
func NewAnthropicExtractor(cfg *config.AnthropicConfig) *AnthropicExtractor {
	return &AnthropicExtractor{
		client:    sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

const extractionPrompt = `Ce document est une attestation d'assurance (décennale ou responsabilité civile professionnelle) fournie avec un devis de travaux.

Extrais les informations suivantes et réponds UNIQUEMENT avec un objet JSON, sans aucun texte autour :
{
  "type_attestation": "decennale" | "rc_pro" | "other",
  "nom_entreprise": "nom de l'entreprise assurée",
  "siret": "SIRET ou SIREN de l'entreprise assurée",
  "adresse": "adresse de l'entreprise assurée",
  "assureur": "nom de la compagnie d'assurance",
  "numero_contrat": "numéro du contrat ou de la police",
  "date_debut_validite": "date de début de couverture telle qu'écrite",
  "date_fin_validite": "date de fin de couverture telle qu'écrite",
  "activites_couvertes": "texte libre des activités couvertes",
  "readable": true
}

Laisse une chaîne vide pour toute information absente du document, n'invente rien. Mets "readable": false si le document est illisible.`

// Extract sends the document to the model and parses the structured record
// out of its response. Any upstream failure yields the empty unreadable
// extraction rather than an error.
func (e *AnthropicExtractor) Extract(ctx context.Context, data []byte, mimeType string) model.AttestationExtraction {
	encoded := base64.StdEncoding.EncodeToString(data)

	var docBlock sdk.ContentBlockParamUnion
	if mimeType == "application/pdf" {
		docBlock = sdk.NewDocumentBlock(sdk.Base64PDFSourceParam{Data: encoded})
	} else {
		docBlock = sdk.NewImageBlockBase64(mimeType, encoded)
	}

	msg, err := e.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(e.model),
		MaxTokens: e.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(docBlock, sdk.NewTextBlock(extractionPrompt)),
		},
	})
	if err != nil {
		logger.Warn(ctx, "extraction call failed, treating document as unreadable", "error", err)
		return model.AttestationExtraction{}
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	ext, err := parseExtraction(text.String())
	if err != nil {
		logger.Warn(ctx, "extraction response unparseable, treating document as unreadable", "error", err)
		return model.AttestationExtraction{}
	}
	return ext
}

// parseExtraction pulls the JSON object out of the model response, tolerating
// prose or code fences around it.
func parseExtraction(text string) (model.AttestationExtraction, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return model.AttestationExtraction{}, fmt.Errorf("no JSON object in response")
	}

	var ext model.AttestationExtraction
	if err := json.Unmarshal([]byte(text[start:end+1]), &ext); err != nil {
		return model.AttestationExtraction{}, fmt.Errorf("failed to parse extraction JSON: %w", err)
	}
	return ext, nil
}
