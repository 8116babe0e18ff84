package scan

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Extractor converts receipt text or images into structured line items
type Extractor interface {
	ExtractFromText(ctx context.Context, text, correction string) (*Extraction, error)
	ExtractFromImages(ctx context.Context, images [][]byte, correction string) (*Extraction, error)
}

// OpenAIExtractor implements Extractor against the OpenAI chat API, using the
// JSON-object response format for both the text and the vision path.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIExtractor creates an extractor backed by the OpenAI API
func NewOpenAIExtractor(apiKey, model string, logger *zap.Logger) *OpenAIExtractor {
	return &OpenAIExtractor{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// ExtractFromText structures previously extracted receipt text
func (e *OpenAIExtractor) ExtractFromText(ctx context.Context, text, correction string) (*Extraction, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   4096,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: extractionSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildTextPrompt(text, correction),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("Text extraction call failed", zap.Error(err))
		return nil, fmt.Errorf("text extraction failed: %w", err)
	}

	return e.parseResponse(resp)
}

// ExtractFromImages structures line items straight from receipt images
func (e *OpenAIExtractor) ExtractFromImages(ctx context.Context, images [][]byte, correction string) (*Extraction, error) {
	contentParts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: buildVisionPrompt(correction),
		},
	}

	for i, img := range images {
		contentParts = append(contentParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(img)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
		e.logger.Debug("Added image to vision request",
			zap.Int("page", i+1),
			zap.Int("size_bytes", len(img)))
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   4096,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: extractionSystemPrompt,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: contentParts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("Vision extraction call failed", zap.Error(err))
		return nil, fmt.Errorf("vision extraction failed: %w", err)
	}

	return e.parseResponse(resp)
}

// parseResponse decodes the model's JSON. Malformed output is an extraction
// failure the caller can cascade on, never a panic.
func (e *OpenAIExtractor) parseResponse(resp openai.ChatCompletionResponse) (*Extraction, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}

	content := resp.Choices[0].Message.Content
	var extraction Extraction
	if err := json.Unmarshal([]byte(content), &extraction); err != nil {
		e.logger.Error("Failed to parse model response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	if len(extraction.LineItems) == 0 {
		return nil, fmt.Errorf("model returned no line items")
	}
	return &extraction, nil
}
