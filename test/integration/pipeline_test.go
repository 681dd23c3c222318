// Package integration provides end-to-end tests (requires real storage and indices).
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kikigaki/internal/catalog"
	"github.com/hyperjump/kikigaki/internal/config"
	"github.com/hyperjump/kikigaki/internal/models"
	"github.com/hyperjump/kikigaki/internal/pipeline"
	"github.com/hyperjump/kikigaki/internal/searchidx"
	"github.com/hyperjump/kikigaki/internal/server"
)

// testEnv wires the full component stack over a temp archive the way the
// process command does: catalog, utterance index, and pipeline.
type testEnv struct {
	cfg  *config.Config
	cat  *catalog.Catalog
	idx  *searchidx.Index
	pipe *pipeline.Pipeline
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Archive.Dir = filepath.Join(dir, "archive")
	cfg.Output.Dir = filepath.Join(dir, "processed")
	cfg.Storage.DatabasePath = filepath.Join(dir, "catalog.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "utterances.bleve")
	cfg.Process.Workers = 2
	if err := os.MkdirAll(cfg.Archive.Dir, 0o755); err != nil {
		t.Fatal(err)
	}

	cat, err := catalog.Open(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cat.Close() })

	idx, err := searchidx.Open(cfg.Storage.BleveIndexPath, cfg.Search.SpeakerBoost)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	return &testEnv{
		cfg:  cfg,
		cat:  cat,
		idx:  idx,
		pipe: pipeline.New(cfg, cat, pipeline.WithIndex(idx)),
	}
}

// writeEpisode writes one wrapper document into the archive. Each entry in
// lines is a speaker and an utterance; timestamps advance 30s per line.
func (e *testEnv) writeEpisode(t *testing.T, prefix string, number int, date string, lines [][2]string) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "<html><body>\n<h1 class=\"post-title\">Show %s %d (Transcript)</h1>\n<p class=\"byline\">%s</p>\n<div class=\"body textual\">\n", prefix, number, date)
	for i, l := range lines {
		fmt.Fprintf(&b, "<p>%s (0:%02d):</p>\n<p>%s</p>\n", l[0], i*30, l[1])
	}
	b.WriteString("</div>\n</body></html>")
	key := fmt.Sprintf("%s_%d.html", prefix, number)
	if err := os.WriteFile(filepath.Join(e.cfg.Archive.Dir, key), []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIntegration_ProcessAndSearch(t *testing.T) {
	env := newTestEnv(t)
	env.writeEpisode(t, "IM", 1, "March 03 2025", [][2]string{
		{"Leo Laporte", "Welcome back to the show."},
		{"Mike Elgan", "The humanoid robot demo stole the keynote."},
	})
	env.writeEpisode(t, "IM", 2, "March 10 2025", [][2]string{
		{"Leo Laporte", "Quantum accelerators are this week's obsession."},
		{"Jeff Jarvis", "I remain a quantum skeptic."},
	})
	env.writeEpisode(t, "TWIG", 1, "March 05 2025", [][2]string{
		{"Paris Martineau", "Antitrust news first."},
	})

	ctx := context.Background()
	sum, err := env.pipe.Run(ctx, pipeline.RunOptions{All: true})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Parsed != 3 || sum.Failed != 0 || sum.Chunks != 2 {
		t.Fatalf("summary = %+v, want 3 parsed across 2 chunks", sum)
	}

	data, err := os.ReadFile(filepath.Join(env.cfg.Output.Dir, "IM_Transcripts_1-2.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "EP:2 Date:25-03-10 TS:0:00 - Leo Laporte - Quantum accelerators are this week's obsession.") {
		t.Error("chunk missing expected utterance line")
	}

	resp, err := env.idx.Search(ctx, &models.SearchQuery{Query: "quantum skeptic", Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total < 1 {
		t.Fatalf("expected at least 1 hit, got %d", resp.Total)
	}
	hit := resp.Hits[0]
	if hit.Prefix != "IM" || hit.Number != 2 || hit.Speaker != "Jeff Jarvis" {
		t.Errorf("top hit = %+v", hit)
	}
	if hit.YMD != "25-03-10" || hit.Timestamp != "0:30" {
		t.Errorf("hit locator = %+v", hit)
	}

	// The prefix filter keeps the other show out of results.
	resp, err = env.idx.Search(ctx, &models.SearchQuery{Query: "news", Prefix: "IM", Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range resp.Hits {
		if h.Prefix != "IM" {
			t.Errorf("filtered search returned %s/%d", h.Prefix, h.Number)
		}
	}
}

func TestIntegration_RerunReusesCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.writeEpisode(t, "IM", 1, "June 02 2025", [][2]string{
		{"Leo Laporte", "A fresh batch of benchmark drama."},
	})

	ctx := context.Background()
	if _, err := env.pipe.Run(ctx, pipeline.RunOptions{Prefixes: []string{"IM"}}); err != nil {
		t.Fatal(err)
	}
	count, err := env.idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}

	// A second pipeline over the same catalog serves the episode from it
	// without touching the index.
	sum, err := pipeline.New(env.cfg, env.cat, pipeline.WithIndex(env.idx)).Run(ctx, pipeline.RunOptions{Prefixes: []string{"IM"}})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Parsed != 0 || sum.Reused != 1 {
		t.Fatalf("summary = %+v, want 1 reused", sum)
	}
	after, err := env.idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if after != count {
		t.Errorf("doc count changed on a reuse-only run: %d -> %d", count, after)
	}
}

func TestIntegration_ServerServesProcessedArchive(t *testing.T) {
	env := newTestEnv(t)
	env.writeEpisode(t, "IM", 7, "May 14 2025", [][2]string{
		{"Leo Laporte", "Edge inference is eating the datacenter."},
	})
	ctx := context.Background()
	if _, err := env.pipe.Run(ctx, pipeline.RunOptions{Prefixes: []string{"IM"}}); err != nil {
		t.Fatal(err)
	}

	srv := server.NewServer(env.cat, env.idx, &env.cfg.Server, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/v1/search?q=edge+inference")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", res.StatusCode)
	}
	var sr models.SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		t.Fatal(err)
	}
	if sr.Total < 1 || sr.Hits[0].Number != 7 {
		t.Fatalf("search response = %+v", sr)
	}

	res, err = http.Get(ts.URL + "/api/v1/episodes/IM/7")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("episode status = %d", res.StatusCode)
	}
	var ep models.EpisodeText
	if err := json.NewDecoder(res.Body).Decode(&ep); err != nil {
		t.Fatal(err)
	}
	if ep.Number != 7 || !strings.Contains(ep.Content, "Edge inference") {
		t.Fatalf("episode response = %+v", ep)
	}
}
