package search

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
)

// Cursor is the persisted resume position. Empty fields mean "from the start".
type Cursor struct {
	Archive string
	Entry   string
}

// IsZero reports whether the cursor points nowhere
func (c Cursor) IsZero() bool {
	return c.Archive == "" && c.Entry == ""
}

// SearchResult represents the first entry that matched during one search step.
// The zero value is the empty result returned when the scan is exhausted.
type SearchResult struct {
	Archive     string
	Entry       string
	Encounters  []Encounter
	FullRawText string
	Charset     string
	Size        uint64
}

// IsEmpty reports whether the step found nothing
func (r SearchResult) IsEmpty() bool {
	return len(r.Encounters) == 0
}

// Cursor returns the position of the result
func (r SearchResult) Cursor() Cursor {
	return Cursor{Archive: r.Archive, Entry: r.Entry}
}

// StopFlag is a single-shot cancellation signal shared with a running step.
// The engine consumes it at the next entry boundary.
type StopFlag struct {
	requested atomic.Bool
}

// Request asks the running step to stop
func (f *StopFlag) Request() {
	f.requested.Store(true)
}

// Requested reports whether a stop is pending
func (f *StopFlag) Requested() bool {
	return f.requested.Load()
}

// Consume clears a pending stop and reports whether there was one
func (f *StopFlag) Consume() bool {
	return f.requested.CompareAndSwap(true, false)
}

// Request describes one search step
type Request struct {
	Folder      string
	Cursor      Cursor
	Query       string
	Direction   Direction
	SkipCurrent bool
	Stop        *StopFlag
}

// ProgressFunc is an optional callback to report progress like: stage, archive, entry
type ProgressFunc func(stage, archive, entry string)

// Engine runs resumable search steps over a folder of archives. It keeps no
// state between steps; one step at a time per engine.
type Engine struct {
	logger         *slog.Logger
	detect         DetectFunc
	threshold      int
	contextSize    int
	extension      string
	documentTypes  []string
	skipUnreadable bool
	registry       *ExtractorRegistry
	onProgress     ProgressFunc
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger for progress and warnings
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDetector replaces the statistical charset detector
func WithDetector(detect DetectFunc) Option {
	return func(e *Engine) {
		e.detect = detect
	}
}

// WithConfidenceThreshold sets the detector confidence that overrides a declared charset
func WithConfidenceThreshold(threshold int) Option {
	return func(e *Engine) {
		e.threshold = threshold
	}
}

// WithContextSize sets the encounter window width in characters
func WithContextSize(size int) Option {
	return func(e *Engine) {
		if size >= 0 {
			e.contextSize = size
		}
	}
}

// WithArchiveExtension sets the archive file extension, matched case-insensitively
func WithArchiveExtension(ext string) Option {
	return func(e *Engine) {
		if ext != "" {
			e.extension = ext
		}
	}
}

// WithDocumentTypes sets the entry suffixes (without dot) that are searched
func WithDocumentTypes(types ...string) Option {
	return func(e *Engine) {
		if len(types) > 0 {
			e.documentTypes = types
		}
	}
}

// WithSkipUnreadable turns archive and entry read failures into warnings
func WithSkipUnreadable(skip bool) Option {
	return func(e *Engine) {
		e.skipUnreadable = skip
	}
}

// WithExtractorRegistry replaces the built-in extractors
func WithExtractorRegistry(reg *ExtractorRegistry) Option {
	return func(e *Engine) {
		if reg != nil {
			e.registry = reg
		}
	}
}

// WithProgress sets a progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.onProgress = fn
	}
}

// NewEngine creates a new search engine instance
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:        slog.Default(),
		threshold:     DefaultConfidenceThreshold,
		contextSize:   DefaultContextSize,
		extension:     ".zip",
		documentTypes: []string{"fb2"},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewExtractorRegistry()
	}
	return e
}

// Search runs one step: archives and entries are visited in natural order from
// the request cursor, and the first entry with at least one match is returned.
// An exhausted scan returns an empty result and no error. Failures are always
// *SearchError.
func (e *Engine) Search(ctx context.Context, req Request) (SearchResult, error) {
	matcher, err := NewPatternMatcher(req.Query, e.contextSize)
	if err != nil {
		return SearchResult{}, &SearchError{
			Kind:    KindInvalidQuery,
			Archive: req.Cursor.Archive,
			Entry:   req.Cursor.Entry,
			Err:     err,
		}
	}

	if req.SkipCurrent {
		e.logger.Info("continue search", "archive", req.Cursor.Archive, "entry", req.Cursor.Entry, "direction", req.Direction)
	} else {
		e.logger.Info("start search", "archive", req.Cursor.Archive, "entry", req.Cursor.Entry, "direction", req.Direction)
	}

	s := &step{
		Engine:   e,
		ctx:      ctx,
		req:      req,
		matcher:  matcher,
		resolver: NewCharsetResolver(e.detect, e.threshold, e.logger),
		entries:  NewEntryWalker(e.documentTypes),
	}

	walker := NewArchiveWalker(req.Folder, e.extension, e.logger)
	archives, err := walker.Archives(req.Cursor.Archive, req.Direction)
	if err != nil {
		return SearchResult{}, archiveIOError(req.Cursor.Archive, req.Cursor.Entry, err)
	}

	entry := req.Cursor.Entry
	for _, name := range archives {
		res, err := s.scanArchive(walker.Path(name), name, entry)
		if err != nil {
			return SearchResult{}, err
		}
		if !res.IsEmpty() {
			e.logger.Info("found", "archive", res.Archive, "entry", res.Entry, "encounters", len(res.Encounters))
			return res, nil
		}
		// the entry cursor only applies to the first archive visited
		entry = ""
	}

	e.logger.Info("end of search")
	return SearchResult{}, nil
}

// step holds what one Search call shares across archives
type step struct {
	*Engine
	ctx      context.Context
	req      Request
	matcher  *PatternMatcher
	resolver *CharsetResolver
	entries  *EntryWalker
}

func (s *step) progress(stage, archive, entry string) {
	if s.onProgress != nil {
		s.onProgress(stage, archive, entry)
	}
}

// interrupted checks the stop flag and the context before an entry
func (s *step) interrupted(archive, entry string) error {
	if s.req.Stop != nil && s.req.Stop.Consume() {
		return &SearchError{Kind: KindInterrupted, Archive: archive, Entry: entry, Err: ErrInterrupted}
	}
	if err := s.ctx.Err(); err != nil {
		return &SearchError{Kind: KindInterrupted, Archive: archive, Entry: entry, Err: err}
	}
	return nil
}

// scanArchive opens one archive, visits its entries, and closes it on every path
func (s *step) scanArchive(path, name, startEntry string) (SearchResult, error) {
	s.logger.Info("process archive", "archive", name)
	s.progress("archive", name, "")

	zr, err := zip.OpenReader(path)
	if err != nil {
		if s.skipUnreadable {
			s.logger.Warn("skip unreadable archive", "archive", name, "error", err)
			return SearchResult{}, nil
		}
		return SearchResult{}, archiveIOError(name, startEntry, fmt.Errorf("open archive: %w", err))
	}
	defer zr.Close()

	skipCurrent := s.req.SkipCurrent && startEntry != ""
	for _, f := range s.entries.Entries(&zr.Reader, startEntry, skipCurrent, s.req.Direction) {
		if err := s.interrupted(name, f.Name); err != nil {
			return SearchResult{}, err
		}

		res, err := s.scanEntry(name, f)
		if err != nil {
			if s.skipUnreadable {
				s.logger.Warn("skip unreadable entry", "archive", name, "entry", f.Name, "error", err)
				continue
			}
			return SearchResult{}, archiveIOError(name, f.Name, err)
		}
		if !res.IsEmpty() {
			return res, nil
		}
	}
	return SearchResult{}, nil
}

// scanEntry runs charset resolution, extraction and matching on one entry
func (s *step) scanEntry(archive string, f *zip.File) (SearchResult, error) {
	s.logger.Info("read entry", "archive", archive, "entry", f.Name)
	s.progress("entry", archive, f.Name)

	data, err := readEntry(f)
	if err != nil {
		return SearchResult{}, err
	}

	body, bomCharset := StripBOM(data)
	resolution := s.resolver.Resolve(f.Name, body, bomCharset)
	decoded, err := resolution.Decode(body)
	if err != nil {
		return SearchResult{}, err
	}
	raw := JoinLines(decoded)

	stripped, err := s.registry.ForEntry(f.Name).ExtractText(Document{Name: f.Name, Raw: body, Text: raw})
	if err != nil {
		s.logger.Warn("document parse failed", "archive", archive, "entry", f.Name, "error", err)
		stripped = ""
	}

	encounters, err := s.matcher.Match(stripped, raw)
	if err != nil {
		return SearchResult{}, fmt.Errorf("match: %w", err)
	}
	if len(encounters) == 0 {
		return SearchResult{}, nil
	}
	return SearchResult{
		Archive:     archive,
		Entry:       f.Name,
		Encounters:  encounters,
		FullRawText: raw,
		Charset:     resolution.Charset,
		Size:        f.UncompressedSize64,
	}, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	return data, nil
}
