// Package extract turns free-form bank SMS text into ledger submissions using
// a Gemini model.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/normalize"
)

// DefaultModelName is the Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// ErrNotFinancial is returned for messages that do not describe a transaction
// (OTPs, promotions, balance alerts).
var ErrNotFinancial = errors.New("message is not a financial transaction")

// Result is one extracted submission.
type Result struct {
	Payload        normalize.Payload
	Categorization normalize.Categorization
}

// Extractor provides an interface for SMS extraction.
// This interface enables mocking in the job handlers.
type Extractor interface {
	Extract(ctx context.Context, sms string) (*Result, error)
}

// Generator is the part of the genai client used here; *genai.Models
// satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor is the Gemini-backed Extractor.
type GeminiExtractor struct {
	gen        Generator
	model      string
	validator  *CategoryValidator
	ownerPhone string
}

// NewGeminiExtractor creates an extractor that calls gen with model.
func NewGeminiExtractor(gen Generator, model string, validator *CategoryValidator, ownerPhone string) *GeminiExtractor {
	if model == "" {
		model = DefaultModelName
	}
	if validator == nil {
		validator = NewCategoryValidator(DefaultCategories)
	}
	return &GeminiExtractor{
		gen:        gen,
		model:      model,
		validator:  validator,
		ownerPhone: ownerPhone,
	}
}

// NewGeminiClient creates the genai client the same way for every binary.
func NewGeminiClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return client, nil
}

// Extract sends the SMS to the model and maps its JSON answer to a submission.
func (e *GeminiExtractor) Extract(ctx context.Context, sms string) (*Result, error) {
	sms = strings.TrimSpace(sms)
	if sms == "" {
		return nil, fmt.Errorf("Extract: empty message")
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildSMSPrompt(e.validator.Names())},
				{Text: "SMS:\n" + sms},
			},
		},
	}

	resp, err := e.gen.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Extract: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("Extract: empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("Extract: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	result, err := transformModelOutput(parsed, sms)
	if err != nil {
		return nil, fmt.Errorf("Extract: %w", err)
	}

	category, ok := e.validator.Canonical(result.Categorization.Category)
	if !ok {
		log := logger.FromContext(ctx)
		log.Warn().
			Str("category", result.Categorization.Category).
			Msg("Model returned unknown category, using Uncategorized")
	}
	result.Categorization.Category = category
	result.Payload.OwnerPhone = e.ownerPhone

	return result, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
