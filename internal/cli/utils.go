// Package cli provides CLI output helpers for kikigaki.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/kikigaki/internal/models"
	"github.com/hyperjump/kikigaki/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d hits in %dms for %q\n\n", response.Total, response.QueryTime, response.Query)
	for _, hit := range response.Hits {
		writeOneHit(w, hit)
	}
}

func writeOneHit(w io.Writer, hit *models.SearchHit) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "[%s %d] Score: %.4f\n", hit.Prefix, hit.Number, hit.Score)
	if hit.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", utils.Truncate(hit.Title, 80))
	}
	if hit.Speaker != "" {
		if hit.Timestamp != "" {
			fmt.Fprintf(w, "Speaker: %s @ %s\n", hit.Speaker, hit.Timestamp)
		} else {
			fmt.Fprintf(w, "Speaker: %s\n", hit.Speaker)
		}
	}
	fmt.Fprintf(w, "Date: %s\n", hit.YMD)
	if hit.Fragment != "" {
		fmt.Fprintf(w, "\n%s\n", hit.Fragment)
	}
	fmt.Fprintln(w)
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteRunSummary writes the outcome of a processing run, including the
// chunk files it produced.
func WriteRunSummary(w io.Writer, sum *models.RunSummary, chunks []models.ChunkInfo) {
	elapsed := sum.Finished.Sub(sum.Started).Round(time.Millisecond)
	fmt.Fprintf(w, "\nRun %s finished in %s\n", sum.RunID, elapsed)
	fmt.Fprintf(w, "  prefixes:       %s\n", strings.Join(sum.Prefixes, ", "))
	fmt.Fprintf(w, "  parsed:         %d\n", sum.Parsed)
	fmt.Fprintf(w, "  reused:         %d\n", sum.Reused)
	fmt.Fprintf(w, "  failed:         %d\n", sum.Failed)
	fmt.Fprintf(w, "  date fallbacks: %d\n", sum.DateFallbacks)
	fmt.Fprintf(w, "  ambiguous:      %d\n", sum.Ambiguous)
	fmt.Fprintf(w, "  chunk files:    %d\n", sum.Chunks)
	if len(chunks) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, c := range chunks {
		fmt.Fprintf(w, "  %s  episodes %d-%d  %d words  %s\n",
			c.Name, c.Start, c.End, c.Words, utils.FormatBytes(c.Bytes))
	}
}

// WriteStatus writes the catalog summary shown by the status command.
// last may be nil when no run has been recorded yet.
func WriteStatus(w io.Writer, counts map[string]int, last *models.RunSummary, chunks []models.ChunkInfo) {
	prefixes := make([]string, 0, len(counts))
	for p := range counts {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	total := 0
	fmt.Fprintln(w, "Shows catalogued:")
	for _, p := range prefixes {
		fmt.Fprintf(w, "  %-8s %d episodes\n", p+":", counts[p])
		total += counts[p]
	}
	fmt.Fprintf(w, "  %-8s %d episodes\n", "total:", total)

	if last == nil {
		fmt.Fprintln(w, "\nNo runs recorded.")
		return
	}
	fmt.Fprintf(w, "\nLast run %s (finished %s)\n", last.RunID, last.Finished.Format(time.RFC3339))
	fmt.Fprintf(w, "  parsed %d, reused %d, failed %d, date fallbacks %d, ambiguous %d\n",
		last.Parsed, last.Reused, last.Failed, last.DateFallbacks, last.Ambiguous)
	if len(chunks) > 0 {
		fmt.Fprintln(w, "  chunks:")
		for _, c := range chunks {
			fmt.Fprintf(w, "    %s (%s, %d words)\n", c.Name, utils.FormatBytes(c.Bytes), c.Words)
		}
	}
}
