package logging

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-03-01T10:00:00.000Z","level":"DEBUG","msg":"search_started","term":"json","sort":"popularity"}
{"time":"2026-03-01T10:00:00.010Z","level":"INFO","msg":"index_unavailable","path":"/data/index"}
not json at all
{"time":"2026-03-01T10:00:00.020Z","level":"WARN","msg":"index_corrupted","path":"/data/index"}
{"time":"2026-03-01T10:00:00.030Z","level":"ERROR","msg":"search_failed","code":"ERR_503_SEARCH_FAILED"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "search.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseLine(t *testing.T) {
	entry := ParseLine(`{"time":"2026-03-01T10:00:00.000Z","level":"DEBUG","msg":"search_started","term":"json"}`)

	require.True(t, entry.IsValid)
	assert.Equal(t, "DEBUG", entry.Level)
	assert.Equal(t, "search_started", entry.Msg)
	assert.Equal(t, map[string]any{"term": "json"}, entry.Attrs)
	assert.Equal(t, 2026, entry.Time.Year())
}

func TestParseLine_NotJSON(t *testing.T) {
	entry := ParseLine("plain text")

	assert.False(t, entry.IsValid)
	assert.Equal(t, "plain text", entry.Raw)
}

func TestViewer_Tail_LastLines(t *testing.T) {
	// Given: a log with five lines
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	// When: tailing two
	entries, err := v.Tail(path, 2)

	// Then: only the final two lines come back, in file order
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "index_corrupted", entries[0].Msg)
	assert.Equal(t, "search_failed", entries[1].Msg)
}

func TestViewer_Tail_Filters(t *testing.T) {
	path := writeLog(t, sampleLog)

	tests := []struct {
		name string
		cfg  ViewerConfig
		want []string
	}{
		{"level warn keeps invalid lines", ViewerConfig{Level: "warn"}, []string{"", "index_corrupted", "search_failed"}},
		{"pattern", ViewerConfig{Pattern: regexp.MustCompile(`/data/index`)}, []string{"index_unavailable", "index_corrupted"}},
		{"none", ViewerConfig{}, []string{"search_started", "index_unavailable", "", "index_corrupted", "search_failed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.NoColor = true
			entries, err := NewViewer(tt.cfg, &bytes.Buffer{}).Tail(path, 50)
			require.NoError(t, err)

			var got []string
			for _, e := range entries {
				got = append(got, e.Msg)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestViewer_Tail_MissingFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})

	_, err := v.Tail(filepath.Join(t.TempDir(), "missing.log"), 10)

	assert.Error(t, err)
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	entry := ParseLine(`{"time":"2026-03-01T10:00:00.123Z","level":"INFO","msg":"search_complete","sort":"recency","count":3}`)

	assert.Equal(t, "10:00:00.123 INFO  search_complete count=3 sort=recency", v.FormatEntry(entry))
	assert.Equal(t, "raw", v.FormatEntry(ParseLine("raw")))
}

func TestViewer_Print(t *testing.T) {
	buf := &bytes.Buffer{}
	v := NewViewer(ViewerConfig{NoColor: true}, buf)

	v.Print([]LogEntry{ParseLine("one"), ParseLine("two")})

	assert.Equal(t, "one\ntwo\n", buf.String())
}

func TestViewer_Follow_SeesAppendedLines(t *testing.T) {
	// Given: an existing log being followed
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan LogEntry, 10)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// When: a new line is appended after following starts
	time.Sleep(3 * followInterval)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = fmt.Fprintln(f, `{"time":"2026-03-01T10:00:01Z","level":"INFO","msg":"search_complete"}`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: only the new line is delivered
	select {
	case entry := <-entries:
		assert.Equal(t, "search_complete", entry.Msg)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for appended entry")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, entries)
}
