package config

import (
	"slices"
	"strings"
)

// DefaultDocumentTypes is what gets searched inside archives unless configured otherwise
var DefaultDocumentTypes = []string{"fb2"}

// SupportedDocumentTypes defines the entry extensions the engine has extractors for
var SupportedDocumentTypes = []string{
	"fb2", "xml",
	"html", "htm",
	"eml", "mbox",
	"pdf", "doc",
}

const (
	DefaultArchiveExtension    = ".zip"
	DefaultConfidenceThreshold = 50
	DefaultContextSize         = 300
)

// IsSupportedType checks if an entry extension (with or without dot) can be searched
func IsSupportedType(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return slices.Contains(SupportedDocumentTypes, ext)
}

// NormalizeDocumentTypes lower-cases, strips dots and drops unknown or duplicate types.
// An empty result falls back to the defaults.
func NormalizeDocumentTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
		if !IsSupportedType(t) || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return slices.Clone(DefaultDocumentTypes)
	}
	return out
}

// NormalizeArchiveExtension makes sure the extension starts with a dot
func NormalizeArchiveExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return DefaultArchiveExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// GetFileTypeDescription returns a human-readable description of searched entry types
func GetFileTypeDescription(types []string) string {
	return strings.Join(NormalizeDocumentTypes(types), ", ")
}
