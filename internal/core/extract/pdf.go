package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
)

// pdfStrategy extracts PDF text through docconv and falls back to the pure-Go
// reader when docconv cannot run (its PDF path shells out to pdftotext, which
// may be absent on the host).
type pdfStrategy struct{}

func (p *pdfStrategy) Extract(ctx context.Context, data []byte) (string, string, error) {
	text, _, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err == nil && strings.TrimSpace(text) != "" {
		return text, "pdf", nil
	}

	native, nerr := extractPDFNative(data)
	if nerr != nil {
		if err != nil {
			return "", "", fmt.Errorf("pdf conversion failed: %v; native reader: %w", err, nerr)
		}
		return "", "", fmt.Errorf("pdf conversion produced no text; native reader: %w", nerr)
	}
	return native, "pdf-native", nil
}

// extractPDFNative walks every page with github.com/ledongthuc/pdf, skipping
// pages that fail individually.
func extractPDFNative(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("no extractable text; the document may be scanned or image-based")
	}
	return out, nil
}
