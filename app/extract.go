package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/samouzou/verza/app/config"
	"github.com/samouzou/verza/app/models"
)

const (
	openaiChatURL        = "https://api.openai.com/v1/chat/completions"
	extractorTimeout     = 60 * time.Second
	extractorTemperature = 0
)

const extractPrompt = `You are an expert contract analyst. Extract the following from the contract text:
- brand: the brand or counterparty name in the contract
- amount: the payment amount specified in the contract, as a number
- dueDate: the payment due date in ISO 8601 format (YYYY-MM-DD)
Respond with the extracted fields only.`

const summarizePrompt = `You are an expert contract analyst. Summarize the key terms of the contract below for a creator in plain language: deliverables, payment terms, usage rights, exclusivity, and termination clauses. Keep it under 200 words.`

// ExtractedDetails is the fixed output schema of a contract extraction.
type ExtractedDetails struct {
	Brand   string  `json:"brand"`
	Amount  float64 `json:"amount"`
	DueDate string  `json:"dueDate"`
}

// Extractor sends contract text to the model provider and validates the
// structured response. It performs no stored-state side effects.
type Extractor struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewExtractor(cfg config.OpenAIConfig) *Extractor {
	return &Extractor{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: openaiChatURL,
		client:  &http.Client{Timeout: extractorTimeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// extractSchema pins the response to the {brand, amount, dueDate} shape.
var extractSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "contract_details",
		"strict": true,
		"schema": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"brand", "amount", "dueDate"},
			"properties": map[string]any{
				"brand":   map[string]any{"type": "string"},
				"amount":  map[string]any{"type": "number"},
				"dueDate": map[string]any{"type": "string"},
			},
		},
	},
}

// Extract parses unstructured contract text into structured terms. Any
// transport failure or schema violation surfaces as an extraction error;
// there are no retries and no partial results.
func (e *Extractor) Extract(ctx context.Context, contractText string) (ExtractedDetails, error) {
	if contractText == "" {
		return ExtractedDetails{}, validationErrorf("contract text is required")
	}

	content, err := e.complete(ctx, extractPrompt, contractText, extractSchema)
	if err != nil {
		return ExtractedDetails{}, err
	}

	// Decode loosely first so a string-typed amount is reported as a schema
	// violation rather than a generic unmarshal failure.
	var raw struct {
		Brand   string          `json:"brand"`
		Amount  json.RawMessage `json:"amount"`
		DueDate string          `json:"dueDate"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return ExtractedDetails{}, extractionError("model returned malformed JSON", err)
	}
	if raw.Brand == "" {
		return ExtractedDetails{}, extractionError("model response missing brand", nil)
	}
	if len(raw.Amount) == 0 {
		return ExtractedDetails{}, extractionError("model response missing amount", nil)
	}

	details := ExtractedDetails{Brand: raw.Brand, DueDate: raw.DueDate}
	if err := json.Unmarshal(raw.Amount, &details.Amount); err != nil {
		return ExtractedDetails{}, extractionError(fmt.Sprintf("amount is not numeric: %s", raw.Amount), err)
	}
	if details.Amount < 0 {
		return ExtractedDetails{}, extractionError(fmt.Sprintf("amount is negative: %v", details.Amount), nil)
	}
	if _, err := time.Parse(models.DueDateLayout, details.DueDate); err != nil {
		return ExtractedDetails{}, extractionError(fmt.Sprintf("dueDate %q is not an ISO 8601 calendar date", details.DueDate), err)
	}

	return details, nil
}

// Summarize produces a plain-language summary of the contract terms.
func (e *Extractor) Summarize(ctx context.Context, contractText string) (string, error) {
	if contractText == "" {
		return "", validationErrorf("contract text is required")
	}
	return e.complete(ctx, summarizePrompt, contractText, nil)
}

func (e *Extractor) complete(ctx context.Context, system, user string, responseFormat any) (string, error) {
	if e.apiKey == "" {
		return "", gatewayError("OPENAI_API_KEY not set", nil)
	}

	body, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    extractorTemperature,
		ResponseFormat: responseFormat,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", gatewayError("model call failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", gatewayError("failed to read model response", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", gatewayError("model returned unreadable response", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("model call failed with status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = fmt.Sprintf("%s: %s", msg, parsed.Error.Message)
		}
		return "", gatewayError(msg, nil)
	}
	if len(parsed.Choices) == 0 {
		return "", extractionError("model returned no choices", nil)
	}
	if refusal := parsed.Choices[0].Message.Refusal; refusal != "" {
		return "", extractionError("model refused: "+refusal, nil)
	}
	return parsed.Choices[0].Message.Content, nil
}
