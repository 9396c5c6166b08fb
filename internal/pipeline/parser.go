package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ReceiptParser extracts structured data from receipt image bytes. An error
// return is the explicit "no result" signal; a non-nil ReceiptData may
// still fail validation.
type ReceiptParser interface {
	Parse(ctx context.Context, imageBytes []byte) (*ReceiptData, error)
}

// GeminiParser parses receipts with a Gemini vision model.
type GeminiParser struct {
	model string
}

// NewGeminiParser creates a parser using the given model name.
func NewGeminiParser(model string) *GeminiParser {
	return &GeminiParser{model: model}
}

const receiptPrompt = `You are an expert receipt parser.
Extract data from the receipt image into a strict JSON object.
Identify:
1. Merchant name (store).
2. Date (YYYY-MM-DD format).
3. Total amount (as a number).
4. Currency (PLN, EUR, USD, etc.).
5. List of items (name, price, quantity, category).

Assign a category to each item (e.g., Food, Fast Food, Snacks, Transport, Utilities, Entertainment, Health, Other).

Return ONLY valid raw JSON. Do NOT wrap the response in code fences.
Structure:
{
    "merchant_name": "Store Name",
    "date": "2024-01-01",
    "total_amount": 123.45,
    "currency": "PLN",
    "items": [
        {"name": "Milk", "price": 3.50, "quantity": 1, "category": "Food"}
    ]
}`

// Parse sends the image to Gemini and decodes the JSON response.
func (p *GeminiParser) Parse(ctx context.Context, imageBytes []byte) (*ReceiptData, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("parse receipt: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: receiptPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "image/jpeg",
						Data:     imageBytes,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("parse receipt: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("parse receipt: empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, fmt.Errorf("parse receipt: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	return transformModelOutput(raw), nil
}

// cleanModelJSON strips Markdown fences and surrounding junk the model
// sometimes emits despite instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
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

	// Extra safety: keep only from the first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

var _ ReceiptParser = (*GeminiParser)(nil)
