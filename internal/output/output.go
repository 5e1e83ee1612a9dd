// Package output provides consistent CLI output formatting for search results
// and status messages.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kariantti/NuGetGallery/internal/search"
	"github.com/kariantti/NuGetGallery/internal/store"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer that colours output only when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return NewWithColor(out, ColorEnabled(out))
}

// NewWithColor creates a Writer with an explicit colour choice.
func NewWithColor(out io.Writer, useColor bool) *Writer {
	return &Writer{
		out:    out,
		styles: GetStyles(!useColor),
	}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.styles.Success.Render(msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.Error.Render(msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints a code block with indentation.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Results prints a ranked package list with a count header.
func (w *Writer) Results(term string, sort search.SortCriterion, res *search.Results) {
	if res == nil || res.Count == 0 {
		w.Status("🔍", fmt.Sprintf("No packages match %q", term))
		return
	}

	header := fmt.Sprintf("%d %s %q", res.Count, plural(res.Count, "package matches", "packages match"), term)
	if len(res.Packages) < res.Count {
		header += fmt.Sprintf(" (showing %d, sorted by %s)", len(res.Packages), sort)
	} else {
		header += fmt.Sprintf(" (sorted by %s)", sort)
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(header))
	_, _ = fmt.Fprintln(w.out)

	for i, p := range res.Packages {
		w.writePackage(i+1, p)
	}
}

func (w *Writer) writePackage(rank int, p *store.Package) {
	line := fmt.Sprintf("%3d. %s %s  %s",
		rank,
		w.styles.PackageID.Render(p.ID),
		w.styles.Version.Render(p.Version),
		w.styles.Downloads.Render(FormatDownloads(p.DownloadCount)))
	_, _ = fmt.Fprintln(w.out, line)

	if p.Title != "" && !strings.EqualFold(p.Title, p.ID) {
		_, _ = fmt.Fprintf(w.out, "     %s\n", p.Title)
	}
	if desc := truncate(p.Description, 100); desc != "" {
		_, _ = fmt.Fprintf(w.out, "     %s\n", w.styles.Dim.Render(desc))
	}
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatDownloads renders a download count in short form, e.g. "1.2M downloads".
func FormatDownloads(n int64) string {
	var s string
	switch {
	case n >= 1_000_000_000:
		s = fmt.Sprintf("%.1fB", float64(n)/1e9)
	case n >= 1_000_000:
		s = fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1_000:
		s = fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		s = fmt.Sprintf("%d", n)
	}
	s = strings.Replace(s, ".0", "", 1)
	return s + " " + plural(int(min(n, 2)), "download", "downloads")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// truncate collapses s to one line of at most limit runes.
func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit-1])) + "…"
}
