package invoice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"orderdesk/backend/internal/domain"
)

func renderRequest() domain.InvoiceRenderRequest {
	return domain.InvoiceRenderRequest{
		OrderID: "ord-test",
		Items: []domain.InvoiceRenderLine{
			{Name: "Widget (A)", Quantity: 2, SellingPrice: decimal.NewFromFloat(9.00)},
		},
	}
}

func TestLocalRendererProducesPDF(t *testing.T) {
	doc, err := LocalRenderer{}.Render(context.Background(), renderRequest())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF-1.4")) {
		t.Fatalf("expected a PDF header, got %q", doc[:min(16, len(doc))])
	}
	if !bytes.Contains(doc, []byte(`Widget \(A\) x2`)) {
		t.Fatalf("expected escaped item line in document")
	}
}

func TestHTTPRendererDecodesDocument(t *testing.T) {
	want := []byte("%PDF-1.4 fake")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domain.InvoiceRenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.OrderID != "ord-test" {
			t.Errorf("unexpected order id %s", req.OrderID)
		}
		_ = json.NewEncoder(w).Encode(domain.InvoiceRenderResponse{
			DocumentBase64: base64.StdEncoding.EncodeToString(want),
		})
	}))
	defer srv.Close()

	doc, err := NewHTTPRenderer(srv.URL).Render(context.Background(), renderRequest())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(doc, want) {
		t.Fatalf("expected decoded document, got %q", doc)
	}
}

func TestHTTPRendererFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200 status", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "down", http.StatusInternalServerError)
		}},
		{"bad base64", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(domain.InvoiceRenderResponse{DocumentBase64: "!!not-base64!!"})
		}},
		{"empty document", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(domain.InvoiceRenderResponse{DocumentBase64: ""})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			if _, err := NewHTTPRenderer(srv.URL).Render(context.Background(), renderRequest()); err == nil {
				t.Fatalf("expected render failure")
			}
		})
	}
}
