package search

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionWalksAllMatches(t *testing.T) {
	dir := bookFolder(t)
	s := NewSession(newTestEngine(&logRecorder{}), dir, Cursor{}, "дуб")
	ctx := context.Background()
	assert.False(t, s.Active())

	res, err := s.Next(ctx, Forward, nil)
	require.NoError(t, err)
	assert.Equal(t, Cursor{Archive: "book1.zip", Entry: "2.fb2"}, res.Cursor())
	assert.Equal(t, res.Cursor(), s.Cursor())
	assert.True(t, s.Active())

	res, err = s.Next(ctx, Forward, nil)
	require.NoError(t, err)
	assert.Equal(t, Cursor{Archive: "book2.zip", Entry: "1.fb2"}, s.Cursor())
	assert.True(t, s.Active())

	res, err = s.Next(ctx, Forward, nil)
	require.NoError(t, err)
	assert.True(t, res.IsEmpty())
	assert.False(t, s.Active())
	assert.Equal(t, Cursor{Archive: "book2.zip", Entry: "1.fb2"}, s.Cursor())

	// idle again: the cursor entry is evaluated once more
	res, err = s.Next(ctx, Forward, nil)
	require.NoError(t, err)
	assert.Equal(t, Cursor{Archive: "book2.zip", Entry: "1.fb2"}, res.Cursor())
}

func TestSessionChangesDirection(t *testing.T) {
	dir := bookFolder(t)
	s := NewSession(newTestEngine(&logRecorder{}), dir, Cursor{}, "дуб")
	ctx := context.Background()

	_, err := s.Next(ctx, Forward, nil)
	require.NoError(t, err)
	_, err = s.Next(ctx, Forward, nil)
	require.NoError(t, err)

	res, err := s.Next(ctx, Backward, nil)
	require.NoError(t, err)
	assert.Equal(t, Cursor{Archive: "book1.zip", Entry: "2.fb2"}, res.Cursor())
}

func TestSessionInterruptReevaluatesEntry(t *testing.T) {
	dir := bookFolder(t)
	s := NewSession(newTestEngine(&logRecorder{}), dir, Cursor{Archive: "book1.zip", Entry: "2.fb2"}, "дуб")
	ctx := context.Background()

	stop := &StopFlag{}
	stop.Request()
	_, err := s.Next(ctx, Forward, stop)
	require.Error(t, err)
	assert.True(t, IsInterrupted(err))
	assert.Equal(t, Cursor{Archive: "book1.zip", Entry: "2.fb2"}, s.Cursor())
	assert.False(t, s.Active())

	res, err := s.Next(ctx, Forward, stop)
	require.NoError(t, err)
	assert.Equal(t, Cursor{Archive: "book1.zip", Entry: "2.fb2"}, res.Cursor())
}

func TestSessionIOErrorKeepsCursor(t *testing.T) {
	dir := bookFolder(t)
	s := NewSession(newTestEngine(&logRecorder{}), dir, Cursor{}, "дуб")
	ctx := context.Background()

	_, err := s.Next(ctx, Forward, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "book1a.zip"), []byte("broken"), 0o644))
	_, err = s.Next(ctx, Forward, nil)
	require.Error(t, err)
	assert.False(t, IsInterrupted(err))
	assert.Equal(t, Cursor{Archive: "book1.zip", Entry: "2.fb2"}, s.Cursor())
	assert.True(t, s.Active())
}

func TestSessionInvalidQueryKeepsState(t *testing.T) {
	dir := bookFolder(t)
	rec := &logRecorder{}
	s := NewSession(newTestEngine(rec), dir, Cursor{Archive: "book1.zip"}, "[")

	_, err := s.Next(context.Background(), Forward, nil)
	require.ErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, Cursor{Archive: "book1.zip"}, s.Cursor())
	assert.Zero(t, rec.count(slog.LevelInfo, "start search"))
}

func TestSessionSetters(t *testing.T) {
	dir := bookFolder(t)
	s := NewSession(newTestEngine(&logRecorder{}), dir, Cursor{}, "дуб")

	s.ResumeAfter(Cursor{Archive: "book1.zip", Entry: "2.fb2"})
	assert.True(t, s.Active())

	res, err := s.Next(context.Background(), Forward, nil)
	require.NoError(t, err)
	assert.Equal(t, Cursor{Archive: "book2.zip", Entry: "1.fb2"}, res.Cursor())

	s.SetCursor(Cursor{Archive: "book1.zip", Entry: "2.fb2"})
	assert.False(t, s.Active())

	s.ResumeAfter(Cursor{})
	assert.False(t, s.Active())

	s.ResumeAfter(Cursor{Archive: "book1.zip", Entry: "2.fb2"})
	s.SetFolder(dir)
	assert.False(t, s.Active())
	assert.Equal(t, dir, s.Folder())

	s.SetQuery("цепь")
	assert.Equal(t, "цепь", s.Query())
}
