package extract

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv"
)

// docStrategy handles legacy Word files through docconv's OLE compound-file
// path.
type docStrategy struct{}

func (d *docStrategy) Extract(ctx context.Context, data []byte) (string, string, error) {
	text, _, err := docconv.ConvertDoc(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("doc conversion failed: %w", err)
	}
	return text, "doc", nil
}

// docxStrategy handles modern Word XML files through docconv's zip/XML path.
type docxStrategy struct{}

func (d *docxStrategy) Extract(ctx context.Context, data []byte) (string, string, error) {
	text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("docx conversion failed: %w", err)
	}
	return text, "docx", nil
}
