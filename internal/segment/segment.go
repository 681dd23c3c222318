// Package segment attributes speaker and timestamp metadata to sanitized
// transcript blocks.
//
// The archive spans two decades of inconsistent authoring conventions, so
// there is no single grammar to parse. Instead a fixed priority list of
// header patterns is tried against each block; anything that matches none
// of them is a continuation of the open utterance, which guarantees no
// text is ever dropped even when attribution is wrong.
package segment

import (
	"regexp"
	"strings"

	"github.com/hyperjump/kikigaki/internal/models"
)

// headerMatch is the structured capture of one header pattern. The set
// flags state which parts of the carry-over state the match updates;
// unset parts carry over from earlier blocks.
type headerMatch struct {
	timestamp    string
	speaker      string
	text         string
	setTimestamp bool
	setSpeaker   bool
	ambiguous    bool // a speaker candidate was rejected by the heuristic
}

// matcher tries one header pattern against a block.
type matcher func(block string) (headerMatch, bool)

// Segmenter converts sanitized blocks into attributed utterances. All
// patterns are compiled at construction; a Segmenter is stateless between
// calls and safe for concurrent use.
type Segmenter struct {
	// guard recognizes already-normalized header lines so a second pass
	// over our own output never re-reads them as speaker metadata.
	guard    *regexp.Regexp
	matchers []matcher
}

// New returns a Segmenter with the header patterns in priority order:
// timestamp-led, speaker with bracketed timestamp, speaker with
// parenthesized timestamp, bare parenthesized timestamp, capitalized
// speaker label. First match wins.
func New() *Segmenter {
	timestampLed := regexp.MustCompile(`^(\d+:\d+(?::\d+)?)\s*(?:-\s*)?(.*)$`)
	bracketTS := regexp.MustCompile(`^(.+?)\s*\[(\d+:\d+(?::\d+)?)\s*\]\s*:?\s*(.*)$`)
	parenTS := regexp.MustCompile(`^(.+?)\s*\(\s*(\d+:\d+(?::\d+)?)\s*\)\s*:?\s*(.*)$`)
	parenOnly := regexp.MustCompile(`^\(\s*(\d+:\d+(?::\d+)?)\s*\)\s*:?\s*(.*)$`)
	speakerLabel := regexp.MustCompile(`^\*{0,2}([A-Z][a-zA-Z'.\-]+(?:\s+[A-Z][a-zA-Z'.\-]+)*)\*{0,2}\s*:\s*\*{0,2}\s*(.*)$`)

	return &Segmenter{
		guard: regexp.MustCompile(`^EP:\d+ Date:\d{2}-\d{2}-\d{2}\b`),
		matchers: []matcher{
			// Timestamp-led: "1:05:32 - Leo Laporte: text". The timestamp
			// always updates. The part before the first colon of the rest
			// becomes the speaker only when it looks like a name; otherwise
			// the whole rest is text under the carried-over speaker.
			func(block string) (headerMatch, bool) {
				m := timestampLed.FindStringSubmatch(block)
				if m == nil {
					return headerMatch{}, false
				}
				h := headerMatch{timestamp: m[1], setTimestamp: true}
				rest := m[2]
				if i := strings.Index(rest, ":"); i >= 0 {
					candidate := strings.TrimSpace(rest[:i])
					if plausibleSpeaker(candidate) {
						h.speaker = candidate
						h.setSpeaker = true
						h.text = strings.TrimSpace(rest[i+1:])
						return h, true
					}
					h.ambiguous = true
				}
				h.text = strings.TrimSpace(rest)
				return h, true
			},
			// "Leo Laporte [1:05:32]: text"
			func(block string) (headerMatch, bool) {
				m := bracketTS.FindStringSubmatch(block)
				if m == nil {
					return headerMatch{}, false
				}
				return headerMatch{
					speaker:      strings.TrimSpace(m[1]),
					timestamp:    strings.TrimSpace(m[2]),
					text:         strings.TrimSpace(m[3]),
					setTimestamp: true,
					setSpeaker:   true,
				}, true
			},
			// "Leo Laporte (1:05:32): text"
			func(block string) (headerMatch, bool) {
				m := parenTS.FindStringSubmatch(block)
				if m == nil {
					return headerMatch{}, false
				}
				return headerMatch{
					speaker:      strings.TrimSpace(m[1]),
					timestamp:    strings.TrimSpace(m[2]),
					text:         strings.TrimSpace(m[3]),
					setTimestamp: true,
					setSpeaker:   true,
				}, true
			},
			// "(1:05:32): text" with no speaker claim
			func(block string) (headerMatch, bool) {
				m := parenOnly.FindStringSubmatch(block)
				if m == nil {
					return headerMatch{}, false
				}
				return headerMatch{
					timestamp:    strings.TrimSpace(m[1]),
					text:         strings.TrimSpace(m[2]),
					setTimestamp: true,
				}, true
			},
			// "Leo Laporte: text", optionally wrapped in bold markers
			func(block string) (headerMatch, bool) {
				m := speakerLabel.FindStringSubmatch(block)
				if m == nil {
					return headerMatch{}, false
				}
				return headerMatch{
					speaker:    strings.TrimSpace(m[1]),
					text:       strings.TrimSpace(m[2]),
					setSpeaker: true,
				}, true
			},
		},
	}
}

// plausibleSpeaker reports whether candidate looks like a speaker name:
// short and free of sentence punctuation. Tuned against the archive; do
// not tighten it, misclassifications on both sides are known and accepted.
func plausibleSpeaker(candidate string) bool {
	return len(candidate) < 40 && !strings.ContainsAny(candidate, ".!?")
}

// Utterances runs the priority matcher over blocks and returns the
// attributed utterances in order. Timestamp and speaker persist across
// blocks until a later match replaces them. Blocks matching no pattern
// are appended to the open utterance.
func (s *Segmenter) Utterances(blocks []string) []models.Utterance {
	utts, _ := s.Scan(blocks)
	return utts
}

// Scan is Utterances plus a count of ambiguous headers: timestamp-led
// blocks whose speaker candidate the plausibility heuristic rejected.
// The text of those blocks is kept under carry-over attribution, so the
// count is a diagnostic, not a loss.
func (s *Segmenter) Scan(blocks []string) ([]models.Utterance, int) {
	var out []models.Utterance
	var ambiguous int
	var ts, speaker string       // carry-over state
	var attTS, attSpeaker string // attribution of the open buffer
	var buf []string

	flush := func() {
		if len(buf) == 0 {
			return
		}
		text := strings.Join(strings.Fields(strings.Join(buf, " ")), " ")
		buf = buf[:0]
		if text == "" {
			return
		}
		out = append(out, models.Utterance{Timestamp: attTS, Speaker: attSpeaker, Text: text})
	}

	for _, block := range blocks {
		if block == "" {
			continue
		}
		if s.guard.MatchString(block) {
			buf = append(buf, block)
			continue
		}
		matched := false
		for _, m := range s.matchers {
			h, ok := m(block)
			if !ok {
				continue
			}
			if h.ambiguous {
				ambiguous++
			}
			flush()
			if h.setTimestamp {
				ts = h.timestamp
			}
			if h.setSpeaker {
				speaker = h.speaker
			}
			attTS, attSpeaker = ts, speaker
			if h.text != "" {
				buf = append(buf, h.text)
			}
			matched = true
			break
		}
		if !matched {
			buf = append(buf, block)
		}
	}
	flush()
	return out, ambiguous
}

// Render joins utterance lines for one episode with blank lines, ready
// for the episode block.
func Render(utts []models.Utterance, number int, ymd string) string {
	lines := make([]string, len(utts))
	for i, u := range utts {
		lines[i] = u.Line(number, ymd)
	}
	return strings.Join(lines, "\n\n")
}

// Content segments blocks and renders the result in one step.
func (s *Segmenter) Content(blocks []string, number int, ymd string) string {
	return Render(s.Utterances(blocks), number, ymd)
}
