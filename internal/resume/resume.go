// Package resume extracts plain text from uploaded resume files so the
// profile fields can be prefilled instead of typed by hand.
package resume

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	mimePDF  = "application/pdf"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

func ExtractText(mime string, data []byte) (string, error) {
	switch mime {
	case "text/plain":
		return string(data), nil
	case mimePDF:
		return pdfText(data)
	case mimeDocx:
		return docxText(data)
	default:
		return "", fmt.Errorf("unsupported resume type: %s", mime)
	}
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, _ := page.GetPlainText(nil)
		b.WriteString(text)
	}
	return b.String(), nil
}

func docxText(data []byte) (string, error) {
	d, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	defer d.Close()
	return d.Editable().GetContent(), nil
}
