package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// scanTimeout bounds the single model call; the adapter never retries.
const scanTimeout = 30 * time.Second

// pingTimeout bounds the health probe call
const pingTimeout = 10 * time.Second

// billScanPrompt is the prompt used for extracting structured bill data
const billScanPrompt = `You are analyzing a bill or receipt image. Carefully read all text in the image and extract the following information as JSON:

{
  "shop_name": "name of the shop/restaurant/business",
  "shop_type": "type of business (e.g., restaurant, grocery, pharmacy, retail)",
  "location": "address or location if visible",
  "total_price": final total as a number (e.g., 450.50),
  "currency": "ISO currency code (USD, EUR, INR, ...)",
  "tax_amount": total tax as a number if shown,
  "menu": [
    {"item": "item name", "quantity": numeric quantity, "price": numeric price per item}
  ]
}

Important:
- Extract only what is visible in the image; use null for missing fields
- All prices must be plain numbers with no currency symbols
- The total is usually at the bottom, labeled TOTAL, Grand Total or Amount Due
- If the image is not a bill/receipt or is too blurry to read, return exactly {"unreadable": true}
- Return ONLY valid JSON, no markdown code blocks, no extra text`

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client          *genai.Client
	model           *genai.GenerativeModel
	defaultCurrency string
}

// NewGemini creates a new Gemini Scanner instance. defaultCurrency is
// applied to drafts where the model omits a currency code.
func NewGemini(apiKey, modelName, defaultCurrency string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:          client,
		model:           client.GenerativeModel(modelName),
		defaultCurrency: defaultCurrency,
	}, nil
}

// ScanBill analyzes a bill and extracts a Draft
func (g *Gemini) ScanBill(ctx context.Context, imageData []byte, contentType string) (*Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	// Convert PDF/HEIC/JPEG input to PNG before handing it to the model
	pngData, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, &ParseError{Kind: ErrUnreadable, Err: err}
	}

	parts := []genai.Part{
		genai.ImageData("png", pngData),
		genai.Text(billScanPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, &ParseError{Kind: ErrUnreachable, Err: err}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ParseError{Kind: ErrInvalidResponse, Err: fmt.Errorf("empty response from model")}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return decodeDraft(responseText.String(), g.defaultCurrency)
}

// Ping verifies the Gemini API is reachable with a minimal count-tokens
// request, the cheapest authenticated call the API offers
func (g *Gemini) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := g.model.CountTokens(ctx, genai.Text("ping")); err != nil {
		return fmt.Errorf("gemini unreachable: %w", err)
	}
	return nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
