package search

import (
	"archive/zip"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ArchiveWalker lists the archive files of a single folder in natural order
type ArchiveWalker struct {
	folder    string
	extension string
	logger    *slog.Logger
}

// NewArchiveWalker creates a walker for archives ending in extension (case-insensitive)
func NewArchiveWalker(folder, extension string, logger *slog.Logger) *ArchiveWalker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveWalker{
		folder:    folder,
		extension: strings.ToLower(extension),
		logger:    logger,
	}
}

// isArchiveName checks the archive extension case-insensitively
func (w *ArchiveWalker) isArchiveName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), w.extension)
}

// Archives returns archive names from startArchive onwards in traversal order.
// The start archive itself is included. An empty startArchive starts at the
// first archive. A missing folder is a warning, not an error.
func (w *ArchiveWalker) Archives(startArchive string, dir Direction) ([]string, error) {
	info, err := os.Stat(w.folder)
	if err != nil || !info.IsDir() {
		w.logger.Warn("folder not exists or not a folder", "folder", w.folder)
		return nil, nil
	}

	entries, err := os.ReadDir(w.folder)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", w.folder, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if w.isArchiveName(e.Name()) {
			names = append(names, e.Name())
		}
	}

	SortNames(names, dir)
	return resumeFrom(names, startArchive, false), nil
}

// Path returns the absolute location of an archive name
func (w *ArchiveWalker) Path(name string) string {
	return filepath.Join(w.folder, name)
}

// EntryWalker selects the document entries of one open archive
type EntryWalker struct {
	suffixes []string
}

// NewEntryWalker creates an entry walker for the given document types (without dot)
func NewEntryWalker(documentTypes []string) *EntryWalker {
	ew := &EntryWalker{suffixes: make([]string, 0, len(documentTypes))}
	for _, t := range documentTypes {
		ew.suffixes = append(ew.suffixes, "."+strings.TrimPrefix(t, "."))
	}
	return ew
}

// IsDocument checks the entry name suffix. Case-sensitive.
func (ew *EntryWalker) IsDocument(name string) bool {
	for _, s := range ew.suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Entries returns the document entries of zr from startEntry onwards in
// traversal order. When skipCurrent is set, startEntry itself is excluded.
// If startEntry is not present nothing is returned.
func (ew *EntryWalker) Entries(zr *zip.Reader, startEntry string, skipCurrent bool, dir Direction) []*zip.File {
	byName := make(map[string]*zip.File, len(zr.File))
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !ew.IsDocument(f.Name) {
			continue
		}
		// first entry wins on duplicate names
		if _, dup := byName[f.Name]; dup {
			continue
		}
		byName[f.Name] = f
		names = append(names, f.Name)
	}

	SortNames(names, dir)
	names = resumeFrom(names, startEntry, skipCurrent)

	files := make([]*zip.File, 0, len(names))
	for _, n := range names {
		files = append(files, byName[n])
	}
	return files
}

// resumeFrom drops every name before start. An empty start keeps all names.
func resumeFrom(names []string, start string, skipStart bool) []string {
	if start == "" {
		return names
	}
	for i, n := range names {
		if n == start {
			if skipStart {
				return names[i+1:]
			}
			return names[i:]
		}
	}
	return nil
}
