package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kariantti/NuGetGallery/internal/search"
	"github.com/kariantti/NuGetGallery/internal/store"
)

func newPlainWriter() (*Writer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewWithColor(buf, false), buf
}

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	w, buf := newPlainWriter()

	// When: printing a status message
	w.Status("🔍", "Opening index...")

	// Then: output contains icon and message
	assert.Equal(t, "🔍 Opening index...\n", buf.String())
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	w, buf := newPlainWriter()

	w.Status("", "detail")

	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_Levels(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		icon  string
		msg   string
	}{
		{"success", func(w *Writer) { w.Successf("wrote %s", "config") }, "✅", "wrote config"},
		{"warning", func(w *Writer) { w.Warningf("%d stale", 2) }, "⚠️", "2 stale"},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "disk") }, "❌", "failed: disk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, buf := newPlainWriter()

			tt.write(w)

			assert.Contains(t, buf.String(), tt.icon)
			assert.Contains(t, buf.String(), tt.msg)
		})
	}
}

func TestWriter_Code_PrintsIndentedBlock(t *testing.T) {
	w, buf := newPlainWriter()

	w.Code("index:\n  path: .gallerysearch/index")

	assert.Equal(t, "\n  index:\n    path: .gallerysearch/index\n\n", buf.String())
}

func TestWriter_Results_ListsPackagesInOrder(t *testing.T) {
	// Given: a truncated result page
	w, buf := newPlainWriter()
	res := &search.Results{
		Count: 42,
		Packages: []*store.Package{
			{ID: "Newtonsoft.Json", Version: "13.0.3", Title: "Json.NET", Description: "Popular   JSON\nframework", DownloadCount: 3_200_000_000},
			{ID: "Dapper", Version: "2.1.35", Title: "Dapper", DownloadCount: 1},
		},
	}

	// When
	w.Results("json", search.SortPopularity, res)

	// Then
	out := buf.String()
	assert.Contains(t, out, `42 packages match "json" (showing 2, sorted by popularity)`)
	assert.Contains(t, out, "  1. Newtonsoft.Json 13.0.3  3.2B downloads")
	assert.Contains(t, out, "     Json.NET\n")
	assert.Contains(t, out, "     Popular JSON framework\n")
	assert.Contains(t, out, "  2. Dapper 2.1.35  1 download")
	// Title equal to the id is not repeated
	assert.Equal(t, 1, strings.Count(out, "Dapper\n")+strings.Count(out, "Dapper 2"))
	assert.Less(t, strings.Index(out, "Newtonsoft.Json"), strings.Index(out, "Dapper"))
}

func TestWriter_Results_Empty(t *testing.T) {
	w, buf := newPlainWriter()

	w.Results("nothing", search.SortRelevance, &search.Results{Packages: []*store.Package{}})

	assert.Equal(t, "🔍 No packages match \"nothing\"\n", buf.String())
}

func TestWriter_Results_CountOnly(t *testing.T) {
	w, buf := newPlainWriter()

	w.Results("json", search.SortRecency, &search.Results{Packages: []*store.Package{}, Count: 7})

	assert.Contains(t, buf.String(), `7 packages match "json" (showing 0, sorted by recency)`)
}

func TestWriter_JSON(t *testing.T) {
	w, buf := newPlainWriter()

	require.NoError(t, w.JSON(&search.Results{
		Packages: []*store.Package{{Key: 1, ID: "Serilog", Version: "3.1.1"}},
		Count:    1,
	}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(1), decoded["count"])
	pkgs, ok := decoded["packages"].([]any)
	require.True(t, ok)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "Serilog", pkgs[0].(map[string]any)["id"])
}

func TestFormatDownloads(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 downloads"},
		{1, "1 download"},
		{999, "999 downloads"},
		{1_000, "1K downloads"},
		{12_345, "12.3K downloads"},
		{2_500_000, "2.5M downloads"},
		{4_000_000_000, "4B downloads"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDownloads(tt.n))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate(" a\n b\t c ", 10))
	assert.Equal(t, "abcd…", truncate("abcdefghij", 5))
}

func TestNew_BufferIsNotATerminal(t *testing.T) {
	buf := &bytes.Buffer{}

	assert.False(t, IsTTY(buf))
	assert.False(t, ColorEnabled(buf))
	assert.False(t, IsTTY(nil))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestGetStyles_NoColorRendersPlain(t *testing.T) {
	s := GetStyles(true)

	assert.Equal(t, "Dapper", s.PackageID.Render("Dapper"))
	assert.Equal(t, "1.0.0", s.Version.Render("1.0.0"))
}
