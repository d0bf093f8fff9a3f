package extract

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-assistant/internal/logger"
)

// MockGenerator is a mock implementation of Generator for testing.
type MockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *MockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, model, contents, config)
	}
	return textResponse("{}"), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestGeminiExtractor_Extract(t *testing.T) {
	var gotModel string
	var gotPrompt string
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			for _, p := range contents[0].Parts {
				gotPrompt += p.Text
			}
			return textResponse("```json\n" + `{
				"is_financial": true,
				"amount": 75,
				"direction": "debit",
				"currency": "INR",
				"description": "Lunch at canteen",
				"counterparty": "a@upi",
				"medium": "UPI",
				"date": "2026-10-16",
				"time": "13:05",
				"category": "food & dining",
				"flavor": "essential"
			}` + "\n```"), nil
		},
	}

	sms := "Rs.75.00 debited from A/c XX1234 to a@upi on 16-10-26 13:05"
	e := NewGeminiExtractor(gen, "", nil, "+910000000000")

	got, err := e.Extract(context.Background(), sms)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if gotModel != DefaultModelName {
		t.Errorf("model = %q, want %q", gotModel, DefaultModelName)
	}
	if !strings.Contains(gotPrompt, sms) || !strings.Contains(gotPrompt, "Food & Dining") {
		t.Error("Expected the prompt to carry the SMS and the category list")
	}

	p := got.Payload
	if p.Amount != "75" || p.Direction != "debit" || p.Currency != "INR" || p.Counterparty != "a@upi" {
		t.Errorf("Payload = %+v", p)
	}
	if p.EventDate != "2026-10-16" || p.EventTime != "13:05" || p.RawText != sms || p.OwnerPhone != "+910000000000" {
		t.Errorf("Payload temporal/raw fields = %+v", p)
	}
	if got.Categorization.Category != "Food & Dining" || got.Categorization.Flavor != "essential" {
		t.Errorf("Categorization = %+v", got.Categorization)
	}
}

func TestGeminiExtractor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		genErr  error
		wantErr error
	}{
		{name: "not financial", resp: `{"is_financial": false}`, wantErr: ErrNotFinancial},
		{name: "model failure", genErr: errors.New("quota"), wantErr: nil},
		{name: "missing amount", resp: `{"direction": "debit", "description": "x"}`},
		{name: "amount as string", resp: `{"amount": "75", "direction": "debit", "description": "x"}`},
		{name: "not json", resp: "sorry, I cannot help"},
		{name: "empty", resp: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &MockGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					if tt.genErr != nil {
						return nil, tt.genErr
					}
					return textResponse(tt.resp), nil
				},
			}

			_, err := NewGeminiExtractor(gen, "test-model", nil, "").Extract(context.Background(), "some sms")
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGeminiExtractor_UnknownCategory(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&buf))
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(`{"amount": 10, "direction": "credit", "description": "refund", "category": "Crypto"}`), nil
		},
	}

	got, err := NewGeminiExtractor(gen, "", nil, "").Extract(ctx, "refund of Rs 10")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got.Categorization.Category != "Uncategorized" {
		t.Errorf("Category = %q, want Uncategorized", got.Categorization.Category)
	}
	if !strings.Contains(buf.String(), "unknown category") {
		t.Error("Expected unknown category warning")
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"chatter around", "Here you go: {\"a\":1} hope it helps", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.input); got != tt.want {
				t.Errorf("cleanModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCategoryValidator(t *testing.T) {
	v := NewCategoryValidator([]string{"Groceries", " Rent ", ""})

	if got, ok := v.Canonical("  groceries"); !ok || got != "Groceries" {
		t.Errorf("Canonical(groceries) = %q, %v", got, ok)
	}
	if got, ok := v.Canonical("Yachts"); ok || got != "Uncategorized" {
		t.Errorf("Canonical(Yachts) = %q, %v", got, ok)
	}
	if len(v.Names()) != 2 {
		t.Errorf("Names() = %v, want 2 entries", v.Names())
	}
}
