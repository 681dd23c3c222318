// Package e2e provides end-to-end tests; this file renders corpus episodes
// as archive wrapper documents.
package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layouts is the list of utterance header layouts exercised by the E2E
// archive, one per header pattern the segmenter recognizes: speaker with
// parenthesized timestamp, speaker with bracketed timestamp,
// timestamp-led, and a bold speaker label with no timestamp.
var Layouts = []string{"paren", "bracket", "timeled", "label"}

// LayoutFor returns the header layout used for the i-th episode of a
// show, rotating through Layouts.
func LayoutFor(i int) string {
	return Layouts[i%len(Layouts)]
}

// EpisodeHTML renders one corpus episode as a wrapper document using the
// given header layout. Timestamps advance per line except in the label
// layout, which never states one.
func EpisodeHTML(ep *CorpusEpisode, layout string) []byte {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	fmt.Fprintf(&b, "<h1 class=\"post-title\">%s %d (Transcript)</h1>\n", ep.ShowName, ep.Number)
	fmt.Fprintf(&b, "<p class=\"byline\">%s</p>\n", ep.Date)
	b.WriteString("<div class=\"body textual\">\n")
	for i, l := range ep.Lines {
		ts := fmt.Sprintf("%d:%02d", i, (i*17)%60)
		switch layout {
		case "bracket":
			fmt.Fprintf(&b, "<p>%s [%s]: %s</p>\n", l.Speaker, ts, l.Text)
		case "timeled":
			fmt.Fprintf(&b, "<p>%s - %s: %s</p>\n", ts, l.Speaker, l.Text)
		case "label":
			fmt.Fprintf(&b, "<p><strong>%s:</strong> %s</p>\n", l.Speaker, l.Text)
		default: // paren, the dominant archive form: header and text in separate paragraphs
			fmt.Fprintf(&b, "<p>%s (%s):</p>\n<p>%s</p>\n", l.Speaker, ts, l.Text)
		}
	}
	b.WriteString("</div>\n</body></html>\n")
	return []byte(b.String())
}

// WriteArchive writes every corpus episode into dir under its archive
// key, rotating header layouts across episodes.
func WriteArchive(dir string, c *Corpus) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := range c.Episodes {
		ep := &c.Episodes[i]
		name := fmt.Sprintf("%s_%d.html", ep.Prefix, ep.Number)
		if err := os.WriteFile(filepath.Join(dir, name), EpisodeHTML(ep, LayoutFor(ep.Number-1)), 0o644); err != nil {
			return err
		}
	}
	return nil
}
