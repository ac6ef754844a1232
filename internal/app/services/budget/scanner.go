package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/logging"
)

// Scanner turns a receipt image into a parsed receipt. The result has no
// owner or id.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, image []byte, mime string) (receipt.Receipt, error)
}

// Generator is the part of the GenAI models API the scanner calls.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// DefaultGenAIModel is used when no model is configured.
const DefaultGenAIModel = "gemini-2.0-flash"

const scanPrompt = `Read this shop receipt. Reply with JSON only:
{"store": string, "date": "YYYY-MM-DD", "currency": ISO 4217 code,
 "total": number, "lines": [{"description": string, "amount": number}],
 "text": the receipt text as printed}.
Use an empty string or 0 for anything you cannot read.`

// GenAIScanner reads receipts with a Gemini vision model.
type GenAIScanner struct {
	models Generator
	model  string
	log    *logging.Logger
}

// NewGenAIScanner creates a Gemini API client for apiKey.
func NewGenAIScanner(ctx context.Context, apiKey, model string, log *logging.Logger) (*GenAIScanner, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("genai api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewGenAIScannerWith(client.Models, model, log), nil
}

// NewGenAIScannerWith wraps an existing models client.
func NewGenAIScannerWith(models Generator, model string, log *logging.Logger) *GenAIScanner {
	if model == "" {
		model = DefaultGenAIModel
	}
	if log == nil {
		log = logging.NewDefault("genai-scanner")
	}
	return &GenAIScanner{models: models, model: model, log: log}
}

func (s *GenAIScanner) Name() string { return "genai" }

func (s *GenAIScanner) Scan(ctx context.Context, image []byte, mime string) (receipt.Receipt, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(scanPrompt),
			genai.NewPartFromBytes(image, mime),
		}, genai.RoleUser),
	}
	resp, err := s.models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   receiptSchema,
	})
	if err != nil {
		return receipt.Receipt{}, fmt.Errorf("genai generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return receipt.Receipt{}, fmt.Errorf("genai returned no content")
	}
	return decodeScan(text)
}

var receiptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"store":    {Type: genai.TypeString},
		"date":     {Type: genai.TypeString},
		"currency": {Type: genai.TypeString},
		"total":    {Type: genai.TypeNumber},
		"text":     {Type: genai.TypeString},
		"lines": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"description": {Type: genai.TypeString},
					"amount":      {Type: genai.TypeNumber},
				},
			},
		},
	},
}

type scanReply struct {
	Store    string          `json:"store"`
	Date     string          `json:"date"`
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Text     string          `json:"text"`
	Lines    []struct {
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
	} `json:"lines"`
}

func decodeScan(text string) (receipt.Receipt, error) {
	text = strings.TrimSuffix(strings.TrimPrefix(text, "```json"), "```")
	var reply scanReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &reply); err != nil {
		return receipt.Receipt{}, fmt.Errorf("decode genai reply: %w", err)
	}
	out := receipt.Receipt{
		Store:    strings.TrimSpace(reply.Store),
		Currency: strings.ToUpper(strings.TrimSpace(reply.Currency)),
		Total:    reply.Total,
		RawText:  strings.TrimSpace(reply.Text),
		Lines:    make([]receipt.Line, 0, len(reply.Lines)),
	}
	if date, err := logbook.ParseDate(reply.Date); err == nil {
		out.PurchasedOn = date
	}
	for _, l := range reply.Lines {
		desc := strings.TrimSpace(l.Description)
		if desc == "" {
			continue
		}
		out.Lines = append(out.Lines, receipt.Line{Description: desc, Amount: l.Amount})
	}
	if out.Total.IsZero() {
		out.Total = out.LinesTotal()
	}
	return out, nil
}
