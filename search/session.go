package search

import (
	"context"
	"sync"
)

// Session is the caller side of the engine: it owns the cursor and the query
// and remembers whether the cursor points at an entry that already matched.
type Session struct {
	engine *Engine

	mu     sync.Mutex
	folder string
	cursor Cursor
	query  string
	active bool
}

// NewSession creates an idle session starting at cursor
func NewSession(engine *Engine, folder string, cursor Cursor, query string) *Session {
	return &Session{engine: engine, folder: folder, cursor: cursor, query: query}
}

// Next runs one search step in dir and updates the cursor from its outcome:
// a match moves the cursor there; an interruption moves it to the entry that
// was about to be read so it is evaluated again; an exhausted scan or a
// failure leaves it alone.
func (s *Session) Next(ctx context.Context, dir Direction, stop *StopFlag) (SearchResult, error) {
	s.mu.Lock()
	req := Request{
		Folder:      s.folder,
		Cursor:      s.cursor,
		Query:       s.query,
		Direction:   dir,
		SkipCurrent: s.active,
		Stop:        stop,
	}
	s.mu.Unlock()

	res, err := s.engine.Search(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil && !res.IsEmpty():
		s.cursor = res.Cursor()
		s.active = true
	case err == nil:
		s.active = false
	case IsInterrupted(err):
		if archive, entry, ok := Position(err); ok {
			s.cursor = Cursor{Archive: archive, Entry: entry}
		}
		s.active = false
	}
	return res, err
}

// Cursor returns the current position
func (s *Session) Cursor() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// SetCursor moves the position by hand; the next step re-evaluates it
func (s *Session) SetCursor(c Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = c
	s.active = false
}

// ResumeAfter moves to c and treats it as already matched, so the next step
// starts past it. Used to restore a session saved while active.
func (s *Session) ResumeAfter(c Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = c
	s.active = !c.IsZero()
}

// Query returns the current search expression
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// SetQuery replaces the search expression
func (s *Session) SetQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
}

// Folder returns the archive folder
func (s *Session) Folder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folder
}

// SetFolder switches the archive folder and returns to idle
func (s *Session) SetFolder(folder string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folder = folder
	s.active = false
}

// Active reports whether the cursor points at an entry that already matched
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
