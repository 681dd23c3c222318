package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kikigaki/internal/catalog"
	"github.com/hyperjump/kikigaki/internal/config"
	"github.com/hyperjump/kikigaki/internal/models"
	"github.com/hyperjump/kikigaki/internal/searchidx"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func seedEpisode(t *testing.T, cat *catalog.Catalog, prefix string, number, year int, content string) *models.EpisodeText {
	t.Helper()
	ep := &models.EpisodeText{
		Prefix:  prefix,
		Number:  number,
		Title:   "Show " + prefix,
		DateStr: "January 01 2025",
		YMD:     "25-01-01",
		Year:    year,
		Content: content,
	}
	doc := &models.Document{
		Key:     prefix + "_1.html",
		Prefix:  prefix,
		Number:  number,
		Path:    "/archive/" + prefix,
		Size:    int64(len(content)),
		ModTime: time.Now(),
	}
	if err := cat.UpsertEpisode(context.Background(), ep, doc); err != nil {
		t.Fatalf("UpsertEpisode() error = %v", err)
	}
	return ep
}

func TestHandleHealth(t *testing.T) {
	cat := newTestCatalog(t)
	srv := NewServer(cat, nil, &config.ServerConfig{Port: 8080}, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "ok" {
		t.Errorf("status field: got %q, want ok", out.Status)
	}
}

func TestHandleStatus(t *testing.T) {
	cat := newTestCatalog(t)
	seedEpisode(t, cat, "IM", 1, 2025, "hello from episode one")
	seedEpisode(t, cat, "IM", 2, 2025, "hello from episode two")
	seedEpisode(t, cat, "TWIG", 5, 2024, "different show")

	sum := &models.RunSummary{
		RunID:    "run-1",
		Prefixes: []string{"IM", "TWIG"},
		Parsed:   3,
		Chunks:   2,
		Started:  time.Now().Add(-time.Minute),
		Finished: time.Now(),
	}
	if err := cat.RecordRun(context.Background(), sum); err != nil {
		t.Fatal(err)
	}
	infos := []models.ChunkInfo{
		{Prefix: "IM", Name: "IM_Transcripts_1-2.md", Start: 1, End: 2, Episodes: 2, Words: 8, Bytes: 100},
	}
	if err := cat.RecordChunks(context.Background(), "run-1", infos); err != nil {
		t.Fatal(err)
	}

	srv := NewServer(cat, nil, &config.ServerConfig{Port: 8080}, zap.NewNop())
	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Episodes int            `json:"episodes"`
		Shows    map[string]int `json:"shows"`
		LastRun  *struct {
			RunID string `json:"run_id"`
		} `json:"last_run"`
		LastRunChunks []struct {
			Name string `json:"name"`
		} `json:"last_run_chunks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Episodes != 3 {
		t.Errorf("episodes: got %d, want 3", out.Episodes)
	}
	if out.Shows["IM"] != 2 || out.Shows["TWIG"] != 1 {
		t.Errorf("shows: got %v", out.Shows)
	}
	if out.LastRun == nil || out.LastRun.RunID != "run-1" {
		t.Errorf("last_run: got %+v, want run-1", out.LastRun)
	}
	if len(out.LastRunChunks) != 1 || out.LastRunChunks[0].Name != "IM_Transcripts_1-2.md" {
		t.Errorf("last_run_chunks: got %v", out.LastRunChunks)
	}
}

func TestHandleStatus_emptyCatalog(t *testing.T) {
	cat := newTestCatalog(t)
	srv := NewServer(cat, nil, &config.ServerConfig{Port: 8080}, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Episodes int             `json:"episodes"`
		LastRun  json.RawMessage `json:"last_run"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Episodes != 0 {
		t.Errorf("episodes: got %d, want 0", out.Episodes)
	}
	if len(out.LastRun) != 0 {
		t.Errorf("last_run should be absent before any run, got %s", out.LastRun)
	}
}

func TestHandleListEpisodes(t *testing.T) {
	cat := newTestCatalog(t)
	seedEpisode(t, cat, "IM", 2, 2025, "episode two words here")
	seedEpisode(t, cat, "IM", 10, 2025, "episode ten")

	srv := NewServer(cat, nil, &config.ServerConfig{Port: 8080}, zap.NewNop())
	r := httptest.NewRequest(http.MethodGet, "/api/v1/episodes?prefix=IM", nil)
	w := httptest.NewRecorder()
	srv.handleListEpisodes(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Prefix   string `json:"prefix"`
		Count    int    `json:"count"`
		Episodes []struct {
			Number int `json:"number"`
			Words  int `json:"words"`
		} `json:"episodes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Prefix != "IM" || out.Count != 2 {
		t.Errorf("prefix/count: got %s/%d", out.Prefix, out.Count)
	}
	if len(out.Episodes) != 2 || out.Episodes[0].Number != 2 || out.Episodes[1].Number != 10 {
		t.Errorf("episodes: got %+v, want numbers [2 10]", out.Episodes)
	}
	if out.Episodes[0].Words != 4 {
		t.Errorf("words: got %d, want 4", out.Episodes[0].Words)
	}
}

func TestHandleListEpisodes_missingPrefix(t *testing.T) {
	cat := newTestCatalog(t)
	srv := NewServer(cat, nil, &config.ServerConfig{Port: 8080}, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/episodes", nil)
	w := httptest.NewRecorder()
	srv.handleListEpisodes(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleGetEpisode(t *testing.T) {
	cat := newTestCatalog(t)
	seedEpisode(t, cat, "IM", 7, 2025, "EP:7 Date:25-01-01 - hello")

	srv := NewServer(cat, nil, &config.ServerConfig{Port: 8080}, zap.NewNop())
	router := srv.Router()

	r := httptest.NewRequest(http.MethodGet, "/api/v1/episodes/IM/7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var ep models.EpisodeText
	if err := json.NewDecoder(w.Body).Decode(&ep); err != nil {
		t.Fatal(err)
	}
	if ep.Prefix != "IM" || ep.Number != 7 || ep.Content != "EP:7 Date:25-01-01 - hello" {
		t.Errorf("episode: got %+v", ep)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/episodes/IM/999", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing episode: got %d, want 404", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/episodes/IM/seven", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad number: got %d, want 400", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	cat := newTestCatalog(t)
	ix, err := searchidx.Open(filepath.Join(t.TempDir(), "utterances.bleve"), 2.0)
	if err != nil {
		t.Fatalf("searchidx.Open() error = %v", err)
	}
	defer func() { _ = ix.Close() }()

	ep := seedEpisode(t, cat, "IM", 1, 2025, "talking about firewalls")
	utts := []models.Utterance{
		{Speaker: "Leo Laporte", Timestamp: "0:00", Text: "Today we discuss firewalls in depth."},
	}
	if err := ix.IndexEpisode(context.Background(), ep, utts); err != nil {
		t.Fatalf("IndexEpisode() error = %v", err)
	}

	srv := NewServer(cat, ix, &config.ServerConfig{Port: 8080}, zap.NewNop())
	r := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=firewalls&limit=5", nil)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Total < 1 || len(out.Hits) < 1 {
		t.Fatalf("expected at least one hit, got %+v", out)
	}
	if out.Hits[0].Prefix != "IM" || out.Hits[0].Number != 1 {
		t.Errorf("hit locator: got %s %d", out.Hits[0].Prefix, out.Hits[0].Number)
	}
}

func TestHandleSearch_emptyQuery(t *testing.T) {
	cat := newTestCatalog(t)
	ix, err := searchidx.Open(filepath.Join(t.TempDir(), "utterances.bleve"), 2.0)
	if err != nil {
		t.Fatalf("searchidx.Open() error = %v", err)
	}
	defer func() { _ = ix.Close() }()

	srv := NewServer(cat, ix, &config.ServerConfig{Port: 8080}, zap.NewNop())
	r := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=%20%20", nil)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleSearch_indexNotEnabled(t *testing.T) {
	cat := newTestCatalog(t)
	srv := NewServer(cat, nil, &config.ServerConfig{Port: 8080}, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=anything", nil)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}
