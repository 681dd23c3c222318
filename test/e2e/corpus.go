// Package e2e provides end-to-end tests with a multi-show corpus and multiple queries.
package e2e

import (
	"fmt"
	"strings"
	"time"
)

// CorpusLine is one attributed line of a synthetic episode.
type CorpusLine struct {
	Speaker string
	Text    string
}

// CorpusEpisode is one synthetic episode. Exactly one of its lines
// carries a signature phrase unique across the corpus, so queries can
// assert the correct episode is returned.
type CorpusEpisode struct {
	Prefix   string
	ShowName string
	Number   int
	Date     string // byline form, "January 02 2006"
	YMD      string
	Year     int
	Lines    []CorpusLine
}

// Key returns the episode locator in prefix/number form.
func (e *CorpusEpisode) Key() string {
	return fmt.Sprintf("%s/%d", e.Prefix, e.Number)
}

// QueryTestCase defines a query and the episode key(s) that must appear
// in search hits. Speaker, when set, is passed as a speaker filter.
type QueryTestCase struct {
	Query            string
	Speaker          string
	ExpectedEpisodes []string
	Description      string
}

// Corpus holds episodes and query test cases for E2E tests.
type Corpus struct {
	Episodes      []CorpusEpisode
	TestCases     []QueryTestCase
	TotalEpisodes int
	TotalQueries  int
}

// Episode returns the corpus episode with the given key.
func (c *Corpus) Episode(key string) (*CorpusEpisode, bool) {
	for i := range c.Episodes {
		if c.Episodes[i].Key() == key {
			return &c.Episodes[i], true
		}
	}
	return nil, false
}

// show describes one synthetic show: its archive prefix, display name,
// panel (first entry hosts), and the slice of topics its episodes cover.
type show struct {
	prefix string
	name   string
	panel  []string
	topics []topic
}

// topic carries a signature phrase and the discussion line that embeds
// it verbatim.
type topic struct {
	phrase string
	line   string
}

// BuildCorpus returns a corpus of 48 episodes across three shows, half
// dated 2024 and half 2025, with one query test case for every second
// topic plus speaker-filtered cases.
func BuildCorpus() *Corpus {
	episodes := buildEpisodes(corpusShows())
	cases := buildQueryTestCases(episodes)
	return &Corpus{
		Episodes:      episodes,
		TestCases:     cases,
		TotalEpisodes: len(episodes),
		TotalQueries:  len(cases),
	}
}

func corpusShows() []show {
	return []show{
		{
			prefix: "IM",
			name:   "Intelligent Machines",
			panel:  []string{"Leo Laporte", "Jeff Jarvis", "Mike Elgan", "Paris Martineau"},
			topics: []topic{
				{"transformer inference pricing", "Every cloud vendor is quietly rewriting transformer inference pricing this quarter."},
				{"humanoid warehouse robots", "Figure's humanoid warehouse robots did a full shift without a tether."},
				{"on-device speech models", "The new phones run on-device speech models with no network round trip."},
				{"synthetic training data", "Half the leaderboard gains this year trace back to synthetic training data."},
				{"robot vacuum lidar", "My robot vacuum lidar map leaked more floor plan than I expected."},
				{"neural codec avatars", "The neural codec avatars in that demo cleared the uncanny valley for me."},
				{"agentic coding tools", "Agentic coding tools merged three of my pull requests while I slept."},
				{"photonic accelerator startups", "Two photonic accelerator startups taped out within a week of each other."},
				{"edge inference thermals", "Edge inference thermals are the real ceiling, not the silicon."},
				{"open weights licensing", "The open weights licensing debate split the conference floor."},
				{"driverless taxi expansion", "Waymo's driverless taxi expansion now covers the entire peninsula."},
				{"emotion detection cameras", "Retailers keep installing emotion detection cameras nobody asked for."},
				{"grid scale batteries", "Grid scale batteries soaked up the entire solar surplus by noon."},
				{"quantum error correction", "The quantum error correction milestone is real but narrower than the headline."},
				{"brain computer typing", "The brain computer typing record doubled to ninety characters a minute."},
				{"datacenter water usage", "Datacenter water usage disclosures are finally showing up in filings."},
				{"smart glasses translation", "Live smart glasses translation worked in a noisy taqueria, which shocked me."},
				{"foundation model recalls", "We may see the first foundation model recalls under the new EU rules."},
				{"chip export controls", "The chip export controls added a third tier of restricted countries."},
				{"home assistant privacy", "The home assistant privacy settlement pays out about four dollars each."},
				{"autonomous farm tractors", "Autonomous farm tractors planted a county's worth of corn this season."},
				{"generative video watermarks", "Generative video watermarks survived every re-encode we threw at them."},
				{"robotaxi insurance rates", "Robotaxi insurance rates undercut human drivers for the first time."},
				{"acoustic side channels", "Acoustic side channels can recover keystrokes from a laptop microphone."},
			},
		},
		{
			prefix: "TWIG",
			name:   "This Week in Google",
			panel:  []string{"Leo Laporte", "Jeff Jarvis", "Paris Martineau"},
			topics: []topic{
				{"search antitrust remedies", "The search antitrust remedies hearing produced an actual divestiture list."},
				{"browser engine monoculture", "Browser engine monoculture got worse the moment that fork shut down."},
				{"link tax legislation", "The link tax legislation is back with the same drafting errors."},
				{"federated social protocols", "Federated social protocols finally agreed on a bridging standard."},
				{"ad auction transparency", "The ad auction transparency report contradicts the sworn testimony."},
				{"cookie deprecation reversal", "The cookie deprecation reversal buried six years of migration work."},
				{"municipal broadband wins", "Two more states struck down bans, so municipal broadband wins keep stacking."},
				{"creator payout formulas", "Nobody can reproduce the creator payout formulas from the published docs."},
				{"age verification mandates", "Age verification mandates are colliding with anonymous speech precedent."},
				{"platform interoperability rules", "The platform interoperability rules finally have a test suite."},
				{"newsroom AI disclosures", "Newsroom AI disclosures vary wildly between the big mastheads."},
				{"spectrum auction results", "The spectrum auction results tripled the congressional budget estimate."},
				{"right to repair scoring", "The right to repair scoring gave flagship phones their first passing grades."},
				{"data broker registry", "California's data broker registry deleted ten thousand stale entries."},
				{"subsea cable permits", "Subsea cable permits are the new chokepoint for cloud expansion."},
				{"election deepfake labels", "Election deepfake labels rolled out in forty languages this week."},
			},
		},
		{
			prefix: "SN",
			name:   "Security Now",
			panel:  []string{"Leo Laporte", "Steve Gibson"},
			topics: []topic{
				{"passkey sync attacks", "The passkey sync attacks only work when the cloud vault is already owned."},
				{"router botnet takedown", "The router botnet takedown sinkholed six hundred thousand devices."},
				{"certificate lifetime caps", "Certificate lifetime caps drop to forty seven days on the new schedule."},
				{"memory safe rewrites", "The memory safe rewrites eliminated an entire vulnerability class in the parser."},
				{"firmware supply chain", "The firmware supply chain advisory names four upstream build servers."},
				{"dns cache poisoning", "A dns cache poisoning variant resurfaced after fifteen quiet years."},
				{"ransomware payment bans", "Ransomware payment bans pushed negotiations fully offshore."},
				{"zero day brokers", "Zero day brokers doubled their exploit payouts for mobile chains."},
			},
		},
	}
}

var reactions = []string{
	"I want to dig into that after the break.",
	"Our chat room is already arguing about it.",
	"Put it on the list for the year end review.",
	"I filed that one under inevitable.",
	"We should get a guest on for that.",
}

func buildEpisodes(shows []show) []CorpusEpisode {
	var out []CorpusEpisode
	for _, s := range shows {
		for i, t := range s.topics {
			number := i + 1
			year := 2024
			if number > len(s.topics)/2 {
				year = 2025
			}
			d := time.Date(year, time.Month(1+(number-1)%12), 1+(number*3)%27, 0, 0, 0, 0, time.UTC)

			host := s.panel[0]
			voice := signatureSpeaker(s.panel, number)
			reactor := s.panel[len(s.panel)-1]
			if reactor == voice {
				reactor = host
			}

			out = append(out, CorpusEpisode{
				Prefix:   s.prefix,
				ShowName: s.name,
				Number:   number,
				Date:     d.Format("January 02 2006"),
				YMD:      d.Format("06-01-02"),
				Year:     year,
				Lines: []CorpusLine{
					{host, fmt.Sprintf("It's time for %s, episode %d.", s.name, number)},
					{voice, t.line},
					{reactor, reactions[(number-1)%len(reactions)]},
					{host, fmt.Sprintf("That's it for episode %d, see you next week.", number)},
				},
			})
		}
	}
	return out
}

// signatureSpeaker picks the panelist who delivers an episode's
// signature line, rotating over the non-host panel.
func signatureSpeaker(panel []string, number int) string {
	return panel[1+(number-1)%(len(panel)-1)]
}

func buildQueryTestCases(episodes []CorpusEpisode) []QueryTestCase {
	var cases []QueryTestCase

	// Every second topic becomes a phrase query targeting its episode.
	phrases := make(map[string]string) // phrase -> episode key
	for _, s := range corpusShows() {
		for i, t := range s.topics {
			if i%2 == 0 {
				phrases[t.phrase] = fmt.Sprintf("%s/%d", s.prefix, i+1)
			}
		}
	}
	for i := range episodes {
		ep := &episodes[i]
		for phrase, key := range phrases {
			if key != ep.Key() || !episodeSays(ep, phrase) {
				continue
			}
			cases = append(cases, QueryTestCase{
				Query:            phrase,
				ExpectedEpisodes: []string{key},
				Description:      fmt.Sprintf("query %q should surface %s", phrase, key),
			})
		}
	}

	// Speaker-filtered cases. Gibson delivers every SN signature line;
	// TWIG episode 8 rotates to Martineau.
	cases = append(cases,
		QueryTestCase{
			Query:            "dns cache poisoning",
			Speaker:          "Steve Gibson",
			ExpectedEpisodes: []string{"SN/6"},
			Description:      "speaker filter keeps the Gibson line on top",
		},
		QueryTestCase{
			Query:            "creator payout formulas",
			Speaker:          "Paris Martineau",
			ExpectedEpisodes: []string{"TWIG/8"},
			Description:      "speaker filter matches the Martineau line",
		},
	)
	return cases
}

// episodeSays reports whether any line of the episode contains phrase,
// ignoring case to match how queries are analyzed.
func episodeSays(ep *CorpusEpisode, phrase string) bool {
	for _, l := range ep.Lines {
		if lineSays(l, phrase) {
			return true
		}
	}
	return false
}

func lineSays(l CorpusLine, phrase string) bool {
	return strings.Contains(strings.ToLower(l.Text), strings.ToLower(phrase))
}
