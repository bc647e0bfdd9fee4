// Package vision extracts catalog fields from a photo of a collectible.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"labelagent/internal/item"
	"labelagent/internal/logger"
	"labelagent/internal/pricing"
)

// Extractor turns a photo into catalog fields for a category.
type Extractor interface {
	Extract(ctx context.Context, img []byte, filename string, c item.Category) (item.Fields, error)
}

// ChatClient is the part of the OpenAI client used for extraction.
//
//go:generate mockgen -package=vision_test -destination=mock_chat_client_test.go -source=vision.go ChatClient
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var (
	inputCostPer1K  = decimal.RequireFromString("0.00015")
	outputCostPer1K = decimal.RequireFromString("0.0006")
	thousand        = decimal.NewFromInt(1000)
)

// OpenAI is an Extractor backed by a chat completion model with image input.
type OpenAI struct {
	client ChatClient
	model  string
	maxPx  int
	log    *logger.Entry
}

type Option func(*OpenAI)

func WithModel(model string) Option {
	return func(o *OpenAI) {
		if model != "" {
			o.model = model
		}
	}
}

func WithMaxImagePx(px int) Option {
	return func(o *OpenAI) {
		if px > 0 {
			o.maxPx = px
		}
	}
}

func WithChatClient(c ChatClient) Option {
	return func(o *OpenAI) { o.client = c }
}

// NewOpenAI creates an extractor using apiKey. httpClient may be nil.
func NewOpenAI(apiKey string, httpClient openai.HTTPDoer, opts ...Option) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	o := &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  "gpt-4o-mini",
		maxPx:  1024,
		log:    logger.GetLogger().WithComponent("vision"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OpenAI) Extract(ctx context.Context, img []byte, filename string, c item.Category) (item.Fields, error) {
	jpg, err := Prepare(img, o.maxPx)
	if err != nil {
		return nil, err
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpg)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: Prompt(c)},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto}},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("vision completion: %w", err)
	}
	o.logUsage(filename, resp.Usage)

	var raw string
	if len(resp.Choices) > 0 {
		raw = resp.Choices[0].Message.Content
	}
	parsed, err := ParseFields(raw)
	if err != nil {
		o.log.WithError(err).WithFields(logger.Fields{"file": filename, "raw": truncate(raw, 500)}).Warn("unparseable model output")
	}
	return Finalize(parsed, filename, c), nil
}

func (o *OpenAI) logUsage(filename string, u openai.Usage) {
	in := decimal.NewFromInt(int64(u.PromptTokens)).Div(thousand).Mul(inputCostPer1K)
	out := decimal.NewFromInt(int64(u.CompletionTokens)).Div(thousand).Mul(outputCostPer1K)
	o.log.WithFields(logger.Fields{
		"file":              filename,
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
		"est_cost_usd":      in.Add(out).StringFixed(6),
	}).Info("vision usage")
}

// ParseFields reads the model's JSON object, tolerating markdown fences and
// non-string values.
func ParseFields(raw string) (item.Fields, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.Trim(s, "`")
		s = strings.TrimSpace(s)
		if strings.HasPrefix(strings.ToLower(s), "json") {
			s = strings.TrimSpace(s[4:])
		}
	}
	if s == "" {
		return item.Fields{}, nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return item.Fields{}, fmt.Errorf("parsing fields: %w", err)
	}
	out := make(item.Fields, len(data))
	for k, v := range data {
		switch x := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = strings.TrimSpace(x)
		default:
			out[k] = fmt.Sprint(x)
		}
	}
	// cards were historically priced under "Final Price"
	if out[item.PriceKey] == "" && out["Final Price"] != "" {
		out[item.PriceKey] = out["Final Price"]
	}
	return out, nil
}

// Finalize restricts fields to the schema of c, guards the price and names
// unrecognized items after the uploaded file.
func Finalize(fields item.Fields, filename string, c item.Category) item.Fields {
	out := fields.Normalize(c)
	described := false
	for k, v := range out {
		if k != item.PriceKey && v != "" {
			described = true
			break
		}
	}
	out[item.PriceKey] = pricing.EnforcePrice(out[item.PriceKey], c)
	if !described {
		name := c.String()
		if name != "" {
			name = strings.ToUpper(name[:1]) + name[1:]
		}
		out[item.TitleKey(c)] = fmt.Sprintf("Unrecognized %s (%s)", name, filename)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
