package search

import (
	"archive/zip"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name string
	body []byte
}

// writeZip creates dir/name holding entries in the given order
func writeZip(tb testing.TB, dir, name string, entries ...zipEntry) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(tb, err)

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(tb, err)
		_, err = w.Write(e.body)
		require.NoError(tb, err)
	}
	require.NoError(tb, zw.Close())
	require.NoError(tb, f.Close())
	return path
}

// fb2Doc builds a small FictionBook document declaring utf-8
func fb2Doc(genre, text string) []byte {
	return []byte(`<?xml version="1.0" encoding="utf-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0">
<description><title-info><genre>` + genre + `</genre><book-title>Тестовая книга</book-title></title-info></description>
<body><section>
<p>` + text + `</p>
</section></body>
</FictionBook>
`)
}

// bookFolder lays out the two-archive library used across engine and session tests
func bookFolder(tb testing.TB) string {
	tb.Helper()
	dir := tb.TempDir()
	writeZip(tb, dir, "book1.zip",
		zipEntry{"1.fb2", fb2Doc("prose", "Жили-были дед да баба, и была у них курочка Ряба.")},
		zipEntry{"2.fb2", fb2Doc("prose", "У лукоморья дуб зелёный, златая цепь на дубе том.")},
	)
	writeZip(tb, dir, "book2.zip",
		zipEntry{"1.fb2", fb2Doc("poetry", "Старый дуб стоял у дороги.")},
	)
	return dir
}

func utf8Detector([]byte) []Candidate {
	return []Candidate{{Name: "UTF-8", Confidence: 100}}
}

// logRecorder is a slog.Handler that keeps every record
type logRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *logRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (h *logRecorder) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *logRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *logRecorder) WithGroup(string) slog.Handler      { return h }

func (h *logRecorder) count(level slog.Level, msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

func (h *logRecorder) countLevel(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}
