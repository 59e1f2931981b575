package search

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-mbox"
	"github.com/jhillyerd/enmime"
	"github.com/richardlehane/mscfb"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/unicode"

	"honeyseeker/search/pdf"
)

// Document is one archive entry handed to an extractor: the bytes as stored
// (BOM removed) and the same bytes decoded with the resolved charset.
type Document struct {
	Name string
	Raw  []byte
	Text string
}

// Extractor defines the interface for extracting markup-free text from an entry
type Extractor interface {
	// ExtractText returns the plain text of doc
	ExtractText(doc Document) (string, error)
}

// ExtractorRegistry holds extractors keyed by entry extension
type ExtractorRegistry struct {
	extractors map[string]Extractor
}

// NewExtractorRegistry creates a new registry with built-in extractors
func NewExtractorRegistry() *ExtractorRegistry {
	reg := &ExtractorRegistry{
		extractors: make(map[string]Extractor),
	}
	reg.registerBuiltIns()
	return reg
}

func (r *ExtractorRegistry) registerBuiltIns() {
	// Books and generic markup
	r.Register("fb2", &XMLExtractor{})
	r.Register("xml", &XMLExtractor{})

	// Web formats
	r.Register("html", &HTMLExtractor{})
	r.Register("htm", &HTMLExtractor{})

	// Email formats
	r.Register("eml", &EMLExtractor{})
	r.Register("mbox", &MBOXExtractor{})

	// Binary document formats
	r.Register("pdf", &PDFExtractor{})
	r.Register("doc", &DOCExtractor{})
}

// Register adds or replaces the extractor for an extension (without dot)
func (r *ExtractorRegistry) Register(ext string, e Extractor) {
	r.extractors[normalizeExt(ext)] = e
}

// GetExtractor returns the extractor for a given file extension (without dot)
func (r *ExtractorRegistry) GetExtractor(ext string) (Extractor, bool) {
	e, ok := r.extractors[normalizeExt(ext)]
	return e, ok
}

// ForEntry picks the extractor by the extension of an entry name. Entries
// without a registered extension are treated as XML.
func (r *ExtractorRegistry) ForEntry(name string) Extractor {
	if e, ok := r.GetExtractor(filepath.Ext(name)); ok {
		return e
	}
	return r.extractors["xml"]
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// XMLExtractor concatenates the text nodes of an XML document (fb2 included)
type XMLExtractor struct{}

// ExtractText implements the Extractor interface for XML files. The decoded
// text is parsed, so the prologue's encoding attribute is not applied again.
func (e *XMLExtractor) ExtractText(doc Document) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(doc.Text))
	dec.Strict = true
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var b strings.Builder
	depth, roots, nodes := 0, 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return "", fmt.Errorf("failed to parse XML: second root element <%s>", t.Name.Local)
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 {
				if strings.TrimSpace(string(t)) != "" {
					return "", errors.New("failed to parse XML: text outside the root element")
				}
				continue
			}
			// text nodes are kept as is, one space between them
			if nodes > 0 {
				b.WriteByte(' ')
			}
			b.Write(t)
			nodes++
		}
	}
	if roots == 0 {
		return "", errors.New("failed to parse XML: no root element")
	}
	return strings.TrimSpace(b.String()), nil
}

// HTMLExtractor extracts visible text from .html files
type HTMLExtractor struct{}

// ExtractText implements the Extractor interface for HTML files
func (e *HTMLExtractor) ExtractText(doc Document) (string, error) {
	return htmlText(doc.Text), nil
}

func htmlText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			if isHiddenElement(z) {
				skip++
			}
		case html.EndTagToken:
			if isHiddenElement(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				appendField(&b, string(z.Text()))
			}
		}
	}
}

func isHiddenElement(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style", "head":
		return true
	}
	return false
}

// EMLExtractor extracts text from .eml files (MIME messages)
type EMLExtractor struct{}

// ExtractText implements the Extractor interface for EML files
func (e *EMLExtractor) ExtractText(doc Document) (string, error) {
	return emlText(doc.Raw)
}

func emlText(data []byte) (string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse EML: %w", err)
	}

	// Prefer plain text, fallback to HTML if plain text is empty
	text := env.Text
	if strings.TrimSpace(text) == "" && env.HTML != "" {
		text = htmlText(env.HTML)
	}
	var b strings.Builder
	if subject := env.GetHeader("Subject"); subject != "" {
		appendField(&b, subject)
	}
	appendField(&b, text)
	return b.String(), nil
}

// MBOXExtractor extracts text from .mbox files (collections of MIME messages)
type MBOXExtractor struct{}

// ExtractText implements the Extractor interface for MBOX files
func (e *MBOXExtractor) ExtractText(doc Document) (string, error) {
	reader := mbox.NewReader(bytes.NewReader(doc.Raw))
	var b strings.Builder
	messages := 0
	for {
		msg, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("failed to read mbox: %w", err)
		}
		content, err := io.ReadAll(msg)
		if err != nil {
			continue
		}
		text, err := emlText(content)
		if err != nil {
			continue
		}
		messages++
		appendField(&b, text)
	}
	if messages == 0 {
		return "", errors.New("no messages in mbox")
	}
	return b.String(), nil
}

// PDFExtractor extracts text from .pdf files
type PDFExtractor struct{}

// ExtractText implements the Extractor interface for PDF files
func (e *PDFExtractor) ExtractText(doc Document) (string, error) {
	return pdf.ExtractText(doc.Raw)
}

// Streams of a Word 97 compound file that commonly carry body text
var docTextStreams = map[string]bool{
	"WordDocument": true,
	"1Table":       true,
	"0Table":       true,
}

// DOCExtractor salvages text from legacy .doc (OLE compound) files
type DOCExtractor struct {
	// MaxBytes caps how much of the text streams is read; 0 means 2MB.
	MaxBytes int64
}

// ExtractText implements the Extractor interface for DOC files
func (e *DOCExtractor) ExtractText(doc Document) (string, error) {
	cf, err := mscfb.New(bytes.NewReader(doc.Raw))
	if err != nil {
		return "", fmt.Errorf("failed to open compound file: %w", err)
	}

	maxBytes := e.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 2 * 1024 * 1024
	}

	var b strings.Builder
	var total int64
	for ent, err := cf.Next(); err == nil; ent, err = cf.Next() {
		if total >= maxBytes {
			break
		}
		if !docTextStreams[ent.Name] {
			continue
		}
		data, _ := io.ReadAll(io.LimitReader(ent, maxBytes-total))
		total += int64(len(data))
		if len(data) == 0 {
			continue
		}
		if s, ok := salvageUTF16(data); ok {
			appendField(&b, s)
		} else {
			appendField(&b, salvageASCII(data))
		}
	}
	return CleanContent(b.String()), nil
}

// salvageUTF16 decodes data as UTF-16LE and accepts it when most of the
// result is printable.
func salvageUTF16(data []byte) (string, bool) {
	if len(data) < 2 {
		return "", false
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data[:len(data)&^1])
	if err != nil || !utf8.Valid(out) {
		return "", false
	}
	s := string(out)
	printable, all := 0, 0
	for _, r := range s {
		all++
		if r == '\t' || r == '\n' || r == '\r' || (r >= 0x20 && r != utf8.RuneError && r < 0xE000) {
			printable++
		}
	}
	if all == 0 || printable*10 < all*8 {
		return "", false
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == utf8.RuneError || r >= 0xE000 {
			return ' '
		}
		return r
	}, s), true
}

func salvageASCII(data []byte) string {
	buf := make([]rune, 0, len(data))
	for _, c := range data {
		if c == 0x09 || c == 0x0a || c == 0x0d || (c >= 0x20 && c <= 0x7e) {
			buf = append(buf, rune(c))
		} else {
			buf = append(buf, ' ')
		}
	}
	return string(buf)
}

// appendField adds s to b separated by one space, ignoring blank values
func appendField(b *strings.Builder, s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(s)
}
