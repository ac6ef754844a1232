package budget

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/R3E-Network/souschef/internal/logging"
)

type fakeGenerator struct {
	reply    string
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: f.reply}}},
		}},
	}, nil
}

func TestGenAIScanner(t *testing.T) {
	gen := &fakeGenerator{reply: "```json\n" + `{"store":" Corner Market ","date":"2024-03-09","currency":"eur",
		"total":0,"lines":[{"description":"Milk","amount":1.29},{"description":"","amount":9},{"description":"Bread","amount":"2.50"}],
		"text":"Corner Market ..."}` + "\n```"}
	scanner := NewGenAIScannerWith(gen, "", logging.Discard())

	r, err := scanner.Scan(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, DefaultGenAIModel, gen.model)
	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.Len(t, gen.contents, 1)
	require.Len(t, gen.contents[0].Parts, 2)
	require.NotNil(t, gen.contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/jpeg", gen.contents[0].Parts[1].InlineData.MIMEType)

	assert.Equal(t, "Corner Market", r.Store)
	assert.Equal(t, "2024-03-09", r.PurchasedOn)
	assert.Equal(t, "EUR", r.Currency)
	require.Len(t, r.Lines, 2)
	assert.True(t, r.Total.Equal(dec("3.79")), r.Total.String())
}

func TestGenAIScannerErrors(t *testing.T) {
	scanner := NewGenAIScannerWith(&fakeGenerator{err: errors.New("quota")}, "m", nil)
	_, err := scanner.Scan(context.Background(), []byte{1}, "image/png")
	assert.ErrorContains(t, err, "quota")

	scanner = NewGenAIScannerWith(&fakeGenerator{reply: "not json"}, "m", nil)
	_, err = scanner.Scan(context.Background(), []byte{1}, "image/png")
	assert.Error(t, err)

	_, err = NewGenAIScanner(context.Background(), " ", "", nil)
	assert.Error(t, err)
}

func TestHTTPScannerStructuredFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "image/png" || string(body) != "png" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"result":{"merchant":"Bakery","date":"2024-02-01","currency":"gbp",
			"items":[{"name":"Rye","price":3.2},{"name":"Bun","price":"0.80"}],
			"text":"ignored\nTOTAL 9.99"}}`)
	}))
	defer srv.Close()

	scanner, err := NewHTTPScanner(srv.Client(), srv.URL, "key", FieldMap{
		Text:            "$.result.text",
		Store:           "$.result.merchant",
		Date:            "$.result.date",
		Currency:        "$.result.currency",
		Lines:           "$.result.items",
		LineDescription: "$.name",
		LineAmount:      "$.price",
	}, logging.Discard())
	require.NoError(t, err)

	r, err := scanner.Scan(context.Background(), []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Bakery", r.Store)
	assert.Equal(t, "2024-02-01", r.PurchasedOn)
	assert.Equal(t, "GBP", r.Currency)
	require.Len(t, r.Lines, 2)
	assert.True(t, r.Lines[0].Amount.Equal(dec("3.2")))
	assert.True(t, r.Total.Equal(dec("9.99")), "text total is kept when no total path is mapped")
}

func TestHTTPScannerDefaultsAndFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"text":"Deli\nSoup 4.00\nTOTAL 4.00"}`)
	}))
	defer srv.Close()

	scanner, err := NewHTTPScanner(nil, srv.URL, "", FieldMap{}, nil)
	require.NoError(t, err)
	r, err := scanner.Scan(context.Background(), []byte("x"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "Deli", r.Store)
	assert.True(t, r.Total.Equal(dec("4")))

	failing, err := NewHTTPScanner(nil, srv.URL+"?fail=1", "", FieldMap{}, nil)
	require.NoError(t, err)
	_, err = failing.Scan(context.Background(), []byte("x"), "image/jpeg")
	assert.ErrorContains(t, err, "502")

	_, err = NewHTTPScanner(nil, "", "", FieldMap{}, nil)
	assert.Error(t, err)
}
