package search

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

const (
	// DetectPrefixSize is how many leading bytes feed detection and the prologue scan.
	DetectPrefixSize = 4096

	// DefaultConfidenceThreshold is the minimum detector confidence that
	// overrides a declared charset or the UTF-8 fallback.
	DefaultConfidenceThreshold = 50

	minEncodingNameLength = 3
	xmlPrologueMarker     = "<?xml"
	encodingAttr          = "encoding="
	fallbackCharset       = "utf-8"
)

// Candidate is one statistically detected charset, confidence in 0..100.
type Candidate struct {
	Name       string
	Confidence int
}

// DetectFunc ranks charset candidates for a byte prefix, highest confidence first.
type DetectFunc func(data []byte) []Candidate

// DetectCandidates runs chardet over data and returns every result ranked by confidence.
func DetectCandidates(data []byte) []Candidate {
	if len(data) == 0 {
		return nil
	}
	results, err := chardet.NewTextDetector().DetectAll(data)
	if err != nil {
		return nil
	}
	out := make([]Candidate, 0, len(results))
	for _, r := range results {
		out = append(out, Candidate{Name: r.Charset, Confidence: r.Confidence})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

type byteOrderMark struct {
	mark    []byte
	charset string
}

// Longer marks first: the UTF-32LE mark starts with the UTF-16LE one.
var byteOrderMarks = []byteOrderMark{
	{[]byte{0xFF, 0xFE, 0x00, 0x00}, "utf-32le"},
	{[]byte{0x00, 0x00, 0xFE, 0xFF}, "utf-32be"},
	{[]byte{0xEF, 0xBB, 0xBF}, "utf-8"},
	{[]byte{0xFF, 0xFE}, "utf-16le"},
	{[]byte{0xFE, 0xFF}, "utf-16be"},
}

// StripBOM removes a leading byte-order mark and reports the charset it names.
func StripBOM(data []byte) ([]byte, string) {
	for _, b := range byteOrderMarks {
		if bytes.HasPrefix(data, b.mark) {
			return data[len(b.mark):], b.charset
		}
	}
	return data, ""
}

var charsetAliases = map[string]string{
	"gb-18030": "gb18030",
	"utf-32":   "utf-32be",
}

// LookupCharset resolves a charset name to a decoder and its canonical
// lower-case name. Unknown or unsupported names report ok=false.
func LookupCharset(name string) (enc encoding.Encoding, canonical string, ok bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, "", false
	}
	if alias, found := charsetAliases[key]; found {
		key = alias
	}

	switch key {
	case "utf-32le":
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), key, true
	case "utf-32be":
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), key, true
	}

	if e, err := htmlindex.Get(key); err == nil && e != encoding.Replacement {
		if n, err := htmlindex.Name(e); err == nil {
			return e, n, true
		}
		return e, key, true
	}
	if e, err := ianaindex.IANA.Encoding(key); err == nil && e != nil {
		n, err := ianaindex.IANA.Name(e)
		if err != nil {
			n = key
		}
		return e, strings.ToLower(n), true
	}
	return nil, "", false
}

// DeclaredCharset looks for the encoding attribute of an XML prologue. The
// prefix is decoded as UTF-8 first, then with each candidate in rank order;
// the first decoding that starts with "<?xml" and yields a supported name of
// at least three characters wins. It returns the canonical name or "".
func DeclaredCharset(prefix []byte, candidates []Candidate) string {
	tried := map[string]bool{}
	order := []encoding.Encoding{unicode.UTF8}
	tried[fallbackCharset] = true
	for _, c := range candidates {
		enc, canonical, ok := LookupCharset(c.Name)
		if !ok || tried[canonical] {
			continue
		}
		tried[canonical] = true
		order = append(order, enc)
	}

	for _, enc := range order {
		text, err := enc.NewDecoder().Bytes(prefix)
		if err != nil {
			continue
		}
		if name, ok := encodingAttribute(string(text)); ok {
			if _, canonical, ok := LookupCharset(name); ok {
				return canonical
			}
		}
	}
	return ""
}

// encodingAttribute extracts the quoted value following encoding= in a prologue.
func encodingAttribute(text string) (string, bool) {
	if !strings.HasPrefix(text, xmlPrologueMarker) {
		return "", false
	}
	i := strings.Index(text, encodingAttr)
	if i < 0 {
		return "", false
	}
	start := i + len(encodingAttr) + 1 // skip the opening quote
	if start > len(text) {
		return "", false
	}
	end := strings.IndexAny(text[start:], `"'`)
	if end < 0 {
		return "", false
	}
	name := strings.TrimSpace(text[start : start+end])
	if len(name) < minEncodingNameLength {
		return "", false
	}
	return name, true
}

// Resolution is the outcome of charset resolution for one entry.
type Resolution struct {
	Charset  string
	Encoding encoding.Encoding
	Declared string
	Top      *Candidate // first supported candidate, canonical name
	Mismatch bool
}

// Reconcile chooses between a declared charset and ranked candidates.
// Unsupported candidate names are skipped. The result is a canonical name.
// When the top confidence is shared, a candidate naming the declared charset wins.
func Reconcile(declared string, candidates []Candidate, threshold int) Resolution {
	res := Resolution{Declared: declared}
	for _, c := range candidates {
		_, canonical, ok := LookupCharset(c.Name)
		if !ok {
			continue
		}
		if res.Top == nil {
			res.Top = &Candidate{Name: canonical, Confidence: c.Confidence}
			if declared == "" || canonical == declared {
				break
			}
			continue
		}
		// among equally confident candidates the declared charset ranks first
		if c.Confidence < res.Top.Confidence {
			break
		}
		if canonical == declared {
			res.Top.Name = canonical
			break
		}
	}

	switch {
	case declared == "":
		if res.Top != nil && res.Top.Confidence >= threshold {
			res.Charset = res.Top.Name
		} else {
			res.Charset = fallbackCharset
		}
	case res.Top == nil || res.Top.Name == declared:
		res.Charset = declared
	default:
		res.Mismatch = true
		if res.Top.Confidence >= threshold {
			res.Charset = res.Top.Name
		} else {
			res.Charset = declared
		}
	}

	enc, canonical, ok := LookupCharset(res.Charset)
	if !ok {
		enc, canonical, _ = LookupCharset(fallbackCharset)
	}
	res.Encoding = enc
	res.Charset = canonical
	return res
}

// CharsetResolver determines the decoding charset of entry bytes.
type CharsetResolver struct {
	detect    DetectFunc
	threshold int
	logger    *slog.Logger
}

// NewCharsetResolver creates a resolver. A nil detect uses chardet.
func NewCharsetResolver(detect DetectFunc, threshold int, logger *slog.Logger) *CharsetResolver {
	if detect == nil {
		detect = DetectCandidates
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CharsetResolver{detect: detect, threshold: threshold, logger: logger}
}

// Resolve picks the charset for body, which must already have its BOM removed.
// bomCharset is the charset named by that BOM, if any; it ranks first.
// Disagreement between declared and detected charsets is logged once.
func (r *CharsetResolver) Resolve(entry string, body []byte, bomCharset string) Resolution {
	prefix := body
	if len(prefix) > DetectPrefixSize {
		prefix = prefix[:DetectPrefixSize]
	}

	candidates := r.detect(prefix)
	if bomCharset != "" {
		candidates = append([]Candidate{{Name: bomCharset, Confidence: 100}}, candidates...)
	}
	if len(candidates) > 0 {
		if _, _, ok := LookupCharset(candidates[0].Name); !ok {
			r.logger.Warn("unsupported encoding detected", "entry", entry, "charset", candidates[0].Name)
		}
	}

	res := Reconcile(DeclaredCharset(prefix, candidates), candidates, r.threshold)
	if res.Mismatch {
		r.logger.Warn("encoding mismatch",
			"entry", entry,
			"declared", res.Declared,
			"detected", res.Top.Name,
			"confidence", res.Top.Confidence,
			"using", res.Charset,
		)
	}
	return res
}

// Decode converts body to text with the resolved charset. Undecodable
// sequences become U+FFFD.
func (r Resolution) Decode(body []byte) (string, error) {
	enc := r.Encoding
	if enc == nil {
		enc = unicode.UTF8
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode as %s: %w", r.Charset, err)
	}
	return string(out), nil
}
