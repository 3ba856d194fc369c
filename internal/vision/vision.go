// Package vision extracts structured receipt data from photos and scans
// using the Gemini API. It produces the raw JSON payload that the
// normalizer turns into a canonical receipt, plus an optional focused
// second pass that re-reads quantities and tax rates only.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"fhartmann/bonscan/internal/models"
	"fhartmann/bonscan/internal/reconerror"
)

var log = logrus.New()

// SetLogger allows setting a configured logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Extractor reads a receipt image and returns the model's JSON payload.
type Extractor interface {
	// Extract runs the primary pass and returns the raw JSON document.
	Extract(ctx context.Context, imagePath string) ([]byte, error)
	// ExtractFocused runs the focused second pass and returns override
	// rows carrying only product name, quantity and tax rate.
	ExtractFocused(ctx context.Context, imagePath string) ([]models.FocusedOverrideRow, error)
	Close() error
}

const primaryPrompt = `You are reading a photo of a German retail receipt (Kassenbon).
Transcribe it into a single JSON object with these fields:
  merchant: {name, address: {street, city, postal_code, country}}
  purchase_date_time: ISO 8601 timestamp
  currency: ISO code, usually "EUR"
  payment_method: "CASH", "CARD" or "OTHER"
  items: array of {product_name, quantity, unit_price_gross, tax_rate,
                   line_gross, line_type, line_index}
  totals: {total_net, total_tax, total_gross}
  raw_content: the complete receipt text, one line per printed line,
               preserving blank lines
All amounts are decimal numbers in euros. tax_rate is a fraction
(0.07 or 0.19). line_index is the zero-based index of the item's line
in raw_content. Respond with the JSON object only.`

const focusedPrompt = `Look again at this photo of a German retail receipt.
For every purchased article, report ONLY how many units were bought and
which tax rate applies. Pay close attention to multiplier lines such as
"2 x 1,09" printed near the article name.
Respond with a JSON array of {product_name, quantity, tax_rate} objects
and nothing else.`

// GeminiExtractor talks to the Gemini API.
type GeminiExtractor struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration

	// Prompt overrides; empty means the built-in prompts.
	PrimaryPrompt string
	FocusedPrompt string
}

// NewGeminiExtractor creates an extractor for the given model name. The
// API key comes from the environment.
func NewGeminiExtractor(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	// JSON-only output is enforced through the prompts and validated on
	// every response; the pinned client version has no JSON response mode.
	model := client.GenerativeModel(modelName)
	return &GeminiExtractor{client: client, model: model, timeout: timeout}, nil
}

// Close releases the underlying API client.
func (g *GeminiExtractor) Close() error {
	return g.client.Close()
}

// Extract runs the primary transcription pass on the image.
func (g *GeminiExtractor) Extract(ctx context.Context, imagePath string) ([]byte, error) {
	prompt := g.PrimaryPrompt
	if prompt == "" {
		prompt = primaryPrompt
	}
	text, err := g.generate(ctx, imagePath, prompt)
	if err != nil {
		return nil, err
	}
	payload := []byte(StripFences(text))
	if !json.Valid(payload) {
		return nil, &reconerror.PayloadError{Stage: "vision", Err: fmt.Errorf("response is not valid JSON")}
	}
	return payload, nil
}

// ExtractFocused runs the focused quantity/tax-rate pass on the image.
func (g *GeminiExtractor) ExtractFocused(ctx context.Context, imagePath string) ([]models.FocusedOverrideRow, error) {
	prompt := g.FocusedPrompt
	if prompt == "" {
		prompt = focusedPrompt
	}
	text, err := g.generate(ctx, imagePath, prompt)
	if err != nil {
		return nil, err
	}
	var rows []models.FocusedOverrideRow
	if err := json.Unmarshal([]byte(StripFences(text)), &rows); err != nil {
		return nil, fmt.Errorf("error parsing focused response: %w", err)
	}
	return rows, nil
}

func (g *GeminiExtractor) generate(ctx context.Context, imagePath, prompt string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("error reading image %s: %w", imagePath, err)
	}
	mimeType, err := MIMEType(imagePath)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	log.WithFields(logrus.Fields{
		"image": filepath.Base(imagePath),
		"mime":  mimeType,
	}).Debug("Sending image to Gemini")

	resp, err := g.model.GenerateContent(ctx, genai.Blob{MIMEType: mimeType, Data: data}, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini API")
	}
	return fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]), nil
}

// MIMEType maps a file extension to the MIME type the Gemini API expects
// for inline document data.
func MIMEType(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".png":
		return "image/png", nil
	case ".webp":
		return "image/webp", nil
	case ".heic":
		return "image/heic", nil
	case ".pdf":
		return "application/pdf", nil
	default:
		return "", fmt.Errorf("unsupported file format: %s", filepath.Ext(path))
	}
}

// StripFences removes a surrounding markdown code fence from a model
// response, tolerating a language tag after the opening backticks.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		first := strings.TrimSpace(trimmed[:idx])
		if first == "json" || first == "" {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
