package budget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/logging"
)

// FieldMap holds the JSONPath expressions that locate receipt fields in an
// OCR response. Text is run through ParseText and the structured fields,
// when present, take precedence over what the text yields. LineDescription
// and LineAmount are evaluated against each element selected by Lines.
type FieldMap struct {
	Text            string `json:"text" yaml:"text"`
	Store           string `json:"store" yaml:"store"`
	Date            string `json:"date" yaml:"date"`
	Total           string `json:"total" yaml:"total"`
	Currency        string `json:"currency" yaml:"currency"`
	Lines           string `json:"lines" yaml:"lines"`
	LineDescription string `json:"line_description" yaml:"line_description"`
	LineAmount      string `json:"line_amount" yaml:"line_amount"`
}

// DefaultFieldMap expects {"text": "..."}.
var DefaultFieldMap = FieldMap{Text: "$.text"}

// HTTPScanner posts the image to a generic OCR endpoint.
type HTTPScanner struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	fields   FieldMap
	log      *logging.Logger
}

// NewHTTPScanner constructs a scanner for endpoint. An empty field map uses
// DefaultFieldMap.
func NewHTTPScanner(client *http.Client, endpoint, apiKey string, fields FieldMap, log *logging.Logger) (*HTTPScanner, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("ocr endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse ocr endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logging.NewDefault("ocr-http-scanner")
	}
	if fields == (FieldMap{}) {
		fields = DefaultFieldMap
	}
	return &HTTPScanner{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		fields:   fields,
		log:      log,
	}, nil
}

func (s *HTTPScanner) Name() string { return "http" }

func (s *HTTPScanner) Scan(ctx context.Context, image []byte, mime string) (receipt.Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint.String(), bytes.NewReader(image))
	if err != nil {
		return receipt.Receipt{}, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", mime)
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return receipt.Receipt{}, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return receipt.Receipt{}, fmt.Errorf("ocr status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var doc any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return receipt.Receipt{}, fmt.Errorf("decode ocr response: %w", err)
	}
	return s.extract(doc)
}

func (s *HTTPScanner) extract(doc any) (receipt.Receipt, error) {
	var out receipt.Receipt
	if v, ok := lookup(s.fields.Text, doc); ok {
		text, isString := v.(string)
		if !isString {
			return receipt.Receipt{}, fmt.Errorf("ocr field %q is not text", s.fields.Text)
		}
		out = ParseText(text)
	}

	if v, ok := lookup(s.fields.Store, doc); ok {
		if str := strings.TrimSpace(toString(v)); str != "" {
			out.Store = str
		}
	}
	if v, ok := lookup(s.fields.Date, doc); ok {
		if date, err := logbook.ParseDate(toString(v)); err == nil {
			out.PurchasedOn = date
		}
	}
	if v, ok := lookup(s.fields.Currency, doc); ok {
		if code := strings.ToUpper(strings.TrimSpace(toString(v))); code != "" {
			out.Currency = code
		}
	}
	if s.fields.Lines != "" {
		if raw, err := jsonpath.Get(s.fields.Lines, doc); err == nil {
			if list, isList := raw.([]any); isList {
				lines := make([]receipt.Line, 0, len(list))
				for _, item := range list {
					desc, _ := lookup(s.fields.LineDescription, item)
					amt, _ := lookup(s.fields.LineAmount, item)
					d, ok := toDecimal(amt)
					name := strings.TrimSpace(toString(desc))
					if !ok || name == "" {
						continue
					}
					lines = append(lines, receipt.Line{Description: name, Amount: d})
				}
				out.Lines = lines
			}
		}
	}
	if v, ok := lookup(s.fields.Total, doc); ok {
		if d, ok := toDecimal(v); ok {
			out.Total = d
		}
	}
	if out.Lines == nil {
		out.Lines = []receipt.Line{}
	}
	if out.Total.IsZero() {
		out.Total = out.LinesTotal()
	}
	return out, nil
}

// lookup evaluates path against doc. Single-element results are unwrapped.
func lookup(path string, doc any) (any, bool) {
	if path == "" || doc == nil {
		return nil, false
	}
	v, err := jsonpath.Get(path, doc)
	if err != nil || v == nil {
		return nil, false
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil, false
		}
		v = list[0]
	}
	return v, true
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		return parseAmount(strings.TrimLeft(strings.TrimSpace(t), "$€£"))
	default:
		return decimal.Zero, false
	}
}
