// Package pdfextract pulls plain text out of PDF bytes, one line per text row.
package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrEmptyPDF = errors.New("empty pdf")

// ExtractPages returns the text of every page in order. Rows on a page are
// separated by newlines so callers can chunk on line boundaries.
func ExtractPages(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPDF
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return plainText(reader)
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, t := range row.Content {
				if s := strings.TrimSpace(t.S); s != "" {
					words = append(words, s)
				}
			}
			if len(words) > 0 {
				lines = append(lines, strings.Join(words, " "))
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages, nil
}

// ExtractText joins all pages with blank lines. A PDF without extractable
// text yields an empty string and no error.
func ExtractText(data []byte) (string, error) {
	pages, err := ExtractPages(data)
	if err != nil {
		return "", err
	}
	nonEmpty := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n"), nil
}

// plainText is the fallback when row layout cannot be recovered.
func plainText(reader *pdf.Reader) ([]string, error) {
	r, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf text failed: %w", err)
	}
	return []string{string(out)}, nil
}
