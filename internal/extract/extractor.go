// Package extract pulls episode metadata and the transcript body fragment
// out of archive wrapper documents.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Best-effort defaults. Extraction never fails outright; malformed
// documents get these and the run continues.
const (
	DefaultTitle   = "Unknown Episode"
	DefaultDateStr = "Unknown Date"
	SentinelYMD    = "00-01-01"
)

// bodyStartMarker is the legacy content opener used when the body div is
// missing from older repaired documents.
const bodyStartMarker = "Transcript of Episode #"

// Metadata is the episode identity recovered from one wrapper document.
type Metadata struct {
	Title   string
	DateStr string
	YMD     string
	Year    int
	Number  int
}

// Extractor locates the three wrapper markers (title, byline, body) and
// derives canonical episode fields from them. Patterns and date layouts
// are fixed at construction; an Extractor is safe for concurrent use.
type Extractor struct {
	title    *regexp.Regexp
	byline   *regexp.Regexp
	body     *regexp.Regexp
	year     *regexp.Regexp
	ordinal  *regexp.Regexp
	titleNum *regexp.Regexp
	layouts  []string
}

// New returns an Extractor with all patterns compiled.
func New() *Extractor {
	return &Extractor{
		title:   regexp.MustCompile(`<h1 class="post-title">(.*?)</h1>`),
		byline:  regexp.MustCompile(`(?s)<p class="byline">(.*?)</p>`),
		body:    regexp.MustCompile(`(?s)<div class="body textual">(.*?)</div>`),
		year:    regexp.MustCompile(`(\d{4})`),
		ordinal: regexp.MustCompile(`(\d+)(st|nd|rd|th)`),
		// First number right before "(", "Transcript", or the end of the
		// title; page titles put the episode number there.
		titleNum: regexp.MustCompile(`(\d+)\s*(?:\(|Transcript|$)`),
		layouts: []string{
			"January 02 2006",
			"Jan 02 2006",
			"Monday, January 02, 2006",
			"January 02, 2006",
			"Jan 02, 2006",
		},
	}
}

// Metadata extracts title, date, year, and episode number from html.
// keyNumber is the episode number recovered from the storage key; when it
// is zero the title is scanned as a fallback.
func (e *Extractor) Metadata(html string, keyNumber int) Metadata {
	meta := Metadata{
		Title:   DefaultTitle,
		DateStr: DefaultDateStr,
		YMD:     SentinelYMD,
		Number:  keyNumber,
	}

	if m := e.title.FindStringSubmatch(html); len(m) > 1 {
		meta.Title = strings.TrimSpace(m[1])
	}
	if m := e.byline.FindStringSubmatch(html); len(m) > 1 {
		meta.DateStr = strings.Join(strings.Fields(m[1]), " ")
	}

	meta.Year = e.extractYear(meta.DateStr)
	meta.YMD = e.parseYMD(meta.DateStr)

	if meta.Number == 0 {
		if m := e.titleNum.FindStringSubmatch(meta.Title); len(m) > 1 {
			meta.Number, _ = strconv.Atoi(m[1])
		}
	}
	return meta
}

// Body returns the transcript body fragment of html. When the body div is
// missing it falls back to the legacy content-start marker, then to the
// whole document. It never fails.
func (e *Extractor) Body(html string) string {
	if m := e.body.FindStringSubmatch(html); len(m) > 1 {
		return m[1]
	}
	if i := strings.Index(html, bodyStartMarker); i >= 0 {
		return html[i:]
	}
	return html
}

// extractYear pulls the first 4-digit token from the date string.
func (e *Extractor) extractYear(dateStr string) int {
	if m := e.year.FindStringSubmatch(dateStr); len(m) > 1 {
		year, _ := strconv.Atoi(m[1])
		return year
	}
	return 0
}

// parseYMD converts loose archive dates ("May 21st 2025", "Last edited
// Jan 3, 2007" bylines already reduced to their date part) into the
// canonical two-digit "06-01-02" form, or the sentinel when nothing parses.
func (e *Extractor) parseYMD(dateStr string) string {
	if dateStr == "" || dateStr == DefaultDateStr {
		return SentinelYMD
	}
	clean := e.ordinal.ReplaceAllString(dateStr, "$1")
	for _, layout := range e.layouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return t.Format("06-01-02")
		}
	}
	return SentinelYMD
}
