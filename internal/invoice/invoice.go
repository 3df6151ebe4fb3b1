// Package invoice produces the PDF document attached to an order. Rendering
// is delegated to an external renderer service when one is configured; the
// local renderer keeps the server self-contained otherwise.
package invoice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"orderdesk/backend/internal/domain"
)

type Renderer interface {
	Render(ctx context.Context, req domain.InvoiceRenderRequest) ([]byte, error)
}

type HTTPRenderer struct {
	url    string
	client *http.Client
}

func NewHTTPRenderer(url string) *HTTPRenderer {
	return &HTTPRenderer{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, req domain.InvoiceRenderRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invoice renderer returned status %d", resp.StatusCode)
	}

	var rendered domain.InvoiceRenderResponse
	if err := json.NewDecoder(resp.Body).Decode(&rendered); err != nil {
		return nil, err
	}

	doc, err := base64.StdEncoding.DecodeString(rendered.DocumentBase64)
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("invoice renderer returned an empty document")
	}
	return doc, nil
}

// LocalRenderer emits a minimal single-page PDF with one text line per order
// item. It exists so invoices still work with no renderer service configured.
type LocalRenderer struct{}

func (LocalRenderer) Render(_ context.Context, req domain.InvoiceRenderRequest) ([]byte, error) {
	var content bytes.Buffer
	content.WriteString("BT /F1 12 Tf 50 780 Td 16 TL\n")
	content.WriteString(fmt.Sprintf("(Invoice %s) Tj T*\n", pdfEscape(req.OrderID)))
	for _, line := range req.Items {
		content.WriteString(fmt.Sprintf("(%s x%d @ %s) Tj T*\n",
			pdfEscape(line.Name), line.Quantity, pdfEscape(line.SellingPrice.StringFixed(2))))
	}
	content.WriteString("ET")

	var doc bytes.Buffer
	doc.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, 5)
	writeObj := func(body string) {
		offsets = append(offsets, doc.Len())
		doc.WriteString(body)
	}
	writeObj("1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n")
	writeObj("2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj\n")
	writeObj("3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >> endobj\n")
	writeObj(fmt.Sprintf("4 0 obj << /Length %d >> stream\n%s\nendstream endobj\n", content.Len(), content.String()))
	writeObj("5 0 obj << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> endobj\n")

	xrefAt := doc.Len()
	doc.WriteString(fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1))
	for _, off := range offsets {
		doc.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	doc.WriteString(fmt.Sprintf("trailer << /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefAt))

	return doc.Bytes(), nil
}

func pdfEscape(s string) string {
	var out bytes.Buffer
	for _, r := range s {
		switch r {
		case '(', ')', '\\':
			out.WriteByte('\\')
			out.WriteRune(r)
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
