// Package sanitize reduces raw transcript HTML to ordered plain-text blocks.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// paraMark separates blocks while tag replacement is still in progress.
// It is converted to a newline before the final split.
const paraMark = "__PARA__"

// Sanitizer converts wrapper-document HTML into trimmed text blocks.
// Markdown-ish inline markers (headings, bold, italic, links) survive;
// everything else is stripped. All patterns are compiled once at
// construction and the sanitizer is safe for concurrent use.
type Sanitizer struct {
	script     *regexp.Regexp
	style      *regexp.Regexp
	disclaimer *regexp.Regexp
	h1Open     *regexp.Regexp
	h2Open     *regexp.Regexp
	h3Open     *regexp.Regexp
	hClose     *regexp.Regexp
	bold       *regexp.Regexp
	italic     *regexp.Regexp
	anchor     *regexp.Regexp
	structural *regexp.Regexp
	noise      *regexp.Regexp
	anyTag     *regexp.Regexp
	entities   *strings.Replacer
}

// New returns a Sanitizer with all patterns compiled.
func New() *Sanitizer {
	return &Sanitizer{
		script: regexp.MustCompile(`(?is)<script.*?</script>`),
		style:  regexp.MustCompile(`(?is)<style.*?</style>`),
		// Boilerplate added by the transcription vendor; spans tag
		// boundaries, so it is removed before any tag handling.
		disclaimer: regexp.MustCompile(`(?is)\*?Please be advised this transcript is AI-generated.*?(?:ad-supported version of the show|approximate times|word for word)\.?\*?`),
		h1Open:     regexp.MustCompile(`(?i)<h1(?:\s[^>]*)?>`),
		h2Open:     regexp.MustCompile(`(?i)<h2(?:\s[^>]*)?>`),
		h3Open:     regexp.MustCompile(`(?i)<h3(?:\s[^>]*)?>`),
		hClose:     regexp.MustCompile(`(?i)</h[123]>`),
		bold:       regexp.MustCompile(`(?i)</?(?:b|strong)(?:\s[^>]*)?>`),
		italic:     regexp.MustCompile(`(?i)</?(?:i|em)(?:\s[^>]*)?>`),
		anchor:     regexp.MustCompile(`(?s)<a\s+(?:[^>]*?\s+)?href="([^"]*)"[^>]*>(.*?)</a>`),
		structural: regexp.MustCompile(`(?i)</?(?:p|br|div|tr|table|ul|ol|li|h1|h2|h3)[^>]*>`),
		noise:      regexp.MustCompile(`(?i)</?(?:span|font|o:p|st1:[^>]+|shape|path|lock|imagedata|v:[^>]+|w:[^>]+|m:[^>]+|style|script)[^>]*>`),
		anyTag:     regexp.MustCompile(`<[^>]+>`),
		entities: strings.NewReplacer(
			"&nbsp;", " ",
			"&amp;", "&",
			"&lt;", "<",
			"&gt;", ">",
			"&quot;", "\"",
			"&#39;", "'",
		),
	}
}

// Blocks reduces html to ordered, whitespace-normalized text blocks.
// Empty blocks are dropped; the relative order of all surviving text is
// preserved.
func (s *Sanitizer) Blocks(html string) []string {
	if html == "" {
		return nil
	}

	text := s.script.ReplaceAllString(html, "")
	text = s.style.ReplaceAllString(text, "")
	text = s.disclaimer.ReplaceAllString(text, "")

	// Headings keep their markdown prefix; the close tag only breaks.
	text = s.h1Open.ReplaceAllString(text, paraMark+"# ")
	text = s.h2Open.ReplaceAllString(text, paraMark+"## ")
	text = s.h3Open.ReplaceAllString(text, paraMark+"### ")
	text = s.hClose.ReplaceAllString(text, paraMark)

	text = s.bold.ReplaceAllString(text, "**")
	text = s.italic.ReplaceAllString(text, "*")

	text = s.anchor.ReplaceAllStringFunc(text, func(match string) string {
		sub := s.anchor.FindStringSubmatch(match)
		if len(sub) < 3 {
			return match
		}
		url, inner := sub[1], sub[2]
		if strings.HasPrefix(url, "/") || strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
			return fmt.Sprintf(" [%s](%s) ", inner, url)
		}
		return " " + inner + " "
	})

	text = s.structural.ReplaceAllString(text, paraMark)

	// Inline noise tags are deleted outright. Replacing them with a
	// space would split words that office exports wrap mid-token.
	text = s.noise.ReplaceAllString(text, "")

	// Any tag still standing separates words.
	text = s.anyTag.ReplaceAllString(text, " ")

	text = s.entities.Replace(text)

	text = strings.ReplaceAll(text, paraMark, "\n")

	var blocks []string
	for _, raw := range strings.Split(text, "\n") {
		block := strings.Join(strings.Fields(raw), " ")
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}
