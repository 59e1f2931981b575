// Package pdf extracts plain text from PDF documents held in memory.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// DefaultPageCap is the maximum number of pages read from one document.
const DefaultPageCap = 200

// ErrNoText is returned when a document parsed but yielded no text.
var ErrNoText = errors.New("no extractable text")

// ExtractText returns the text runs of every page, pages separated by a space.
// Malformed documents make the library panic; those panics become errors.
func ExtractText(data []byte) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := reader.NumPage()
	if pages > DefaultPageCap {
		pages = DefaultPageCap
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		pageText(&b, reader, i)
	}

	text := strings.Join(strings.Fields(b.String()), " ")
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// pageText appends one page; a page that panics is skipped.
func pageText(b *strings.Builder, reader *pdflib.Reader, i int) {
	defer func() { _ = recover() }()
	page := reader.Page(i)
	if page.V.IsNull() {
		return
	}
	for _, item := range page.Content().Text {
		b.WriteString(item.S)
	}
	b.WriteString(" ")
}
