package pack

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/kikigaki/internal/models"
)

func episode(num, year, words int) *models.EpisodeText {
	ep := &models.EpisodeText{
		Prefix:  "IM",
		Number:  num,
		Title:   fmt.Sprintf("Intelligent Machines %d", num),
		DateStr: fmt.Sprintf("January %02d %d", num, year),
		YMD:     fmt.Sprintf("%02d-01-%02d", year%100, num),
		Year:    year,
		Content: strings.TrimSpace(strings.Repeat("word ", words)),
	}
	if year == 0 {
		ep.DateStr = "Unknown Date"
		ep.YMD = "00-01-01"
	}
	return ep
}

func names(infos []models.ChunkInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Name
	}
	return out
}

func TestPack_splitsOnWordLimit(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "md", Limits{MaxWords: 250, MaxBytes: 1 << 30})

	eps := []*models.EpisodeText{episode(1, 2025, 200), episode(2, 2025, 200), episode(3, 2025, 200)}
	infos, err := p.Pack("IM", eps)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	want := []string{"IM_Transcripts_1-1.md", "IM_Transcripts_2-2.md", "IM_Transcripts_3-3.md"}
	if !reflect.DeepEqual(names(infos), want) {
		t.Fatalf("chunk names = %v, want %v", names(infos), want)
	}
	for i, info := range infos {
		if info.Episodes != 1 || info.Words != 200 {
			t.Errorf("chunk %d = %+v, want 1 episode of 200 words", i, info)
		}
		if _, err := os.Stat(filepath.Join(dir, info.Name)); err != nil {
			t.Errorf("chunk file %s not written: %v", info.Name, err)
		}
	}
}

func TestPack_fillsUpToWordLimit(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "md", Limits{MaxWords: 250, MaxBytes: 1 << 30})

	eps := []*models.EpisodeText{episode(1, 2025, 100), episode(2, 2025, 100), episode(3, 2025, 100)}
	infos, err := p.Pack("IM", eps)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	want := []string{"IM_Transcripts_1-2.md", "IM_Transcripts_3-3.md"}
	if !reflect.DeepEqual(names(infos), want) {
		t.Fatalf("chunk names = %v, want %v", names(infos), want)
	}
	if infos[0].Start != 1 || infos[0].End != 2 || infos[0].Episodes != 2 || infos[0].Words != 200 {
		t.Errorf("first chunk = %+v, want episodes 1-2 with 200 words", infos[0])
	}
	if infos[1].Start != 3 || infos[1].End != 3 || infos[1].Episodes != 1 {
		t.Errorf("second chunk = %+v, want episode 3 alone", infos[1])
	}
}

func TestPack_oversizedEpisodeGetsOwnChunk(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "md", Limits{MaxWords: 250, MaxBytes: 1 << 30})

	eps := []*models.EpisodeText{episode(1, 2025, 10), episode(2, 2025, 900), episode(3, 2025, 10)}
	infos, err := p.Pack("IM", eps)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("got %d chunks, want 3: %v", len(infos), names(infos))
	}
	for _, info := range infos {
		if info.Words > 250 && info.Episodes != 1 {
			t.Errorf("chunk %s exceeds the word limit with %d episodes", info.Name, info.Episodes)
		}
	}
	if infos[1].Words != 900 || infos[1].Episodes != 1 {
		t.Errorf("oversized chunk = %+v, want episode 2 alone with 900 words", infos[1])
	}
}

func TestPack_splitsOnByteLimit(t *testing.T) {
	dir := t.TempDir()
	eps := []*models.EpisodeText{episode(1, 2025, 50), episode(2, 2025, 50)}
	blockBytes := int64(len(eps[0].Block()))

	p := New(dir, "md", Limits{MaxWords: 1 << 20, MaxBytes: blockBytes + blockBytes/2})
	infos, err := p.Pack("IM", eps)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d chunks, want 2: %v", len(infos), names(infos))
	}
	for _, info := range infos {
		if info.Bytes > blockBytes+blockBytes/2 {
			t.Errorf("chunk %s has %d bytes, over the limit", info.Name, info.Bytes)
		}
	}
}

func TestPack_yearBound(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "md", Limits{MaxWords: 1 << 20, MaxBytes: 1 << 30, ByYear: true})

	eps := []*models.EpisodeText{episode(1, 2024, 10), episode(2, 2024, 10), episode(3, 2025, 10)}
	infos, err := p.Pack("IM", eps)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	want := []string{"IM_Transcripts_2024_1_2.md", "IM_Transcripts_2025_3_3.md"}
	if !reflect.DeepEqual(names(infos), want) {
		t.Fatalf("chunk names = %v, want %v", names(infos), want)
	}
	if infos[0].Year != 2024 || infos[1].Year != 2025 {
		t.Errorf("chunk years = %d, %d, want 2024, 2025", infos[0].Year, infos[1].Year)
	}
}

func TestPack_yearBoundDisabled(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "md", Limits{MaxWords: 1 << 20, MaxBytes: 1 << 30})

	eps := []*models.EpisodeText{episode(1, 2024, 10), episode(2, 2025, 10)}
	infos, err := p.Pack("IM", eps)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	want := []string{"IM_Transcripts_1-2.md"}
	if !reflect.DeepEqual(names(infos), want) {
		t.Fatalf("chunk names = %v, want %v", names(infos), want)
	}
}

func TestPack_unknownYearKeepsPlainName(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "md", Limits{MaxWords: 1 << 20, MaxBytes: 1 << 30, ByYear: true})

	eps := []*models.EpisodeText{episode(1, 0, 10), episode(2, 2025, 10)}
	infos, err := p.Pack("IM", eps)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	want := []string{"IM_Transcripts_1-1.md", "IM_Transcripts_2025_2_2.md"}
	if !reflect.DeepEqual(names(infos), want) {
		t.Fatalf("chunk names = %v, want %v", names(infos), want)
	}
}

func TestPack_contentIsConcatenatedBlocks(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "md", Limits{MaxWords: 1 << 20, MaxBytes: 1 << 30})

	eps := []*models.EpisodeText{episode(1, 2025, 5), episode(2, 2025, 5)}
	infos, err := p.Pack("IM", eps)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d chunks, want 1", len(infos))
	}
	got, err := os.ReadFile(filepath.Join(dir, infos[0].Name))
	if err != nil {
		t.Fatalf("read chunk: %v", err)
	}
	want := eps[0].Block() + eps[1].Block()
	if string(got) != want {
		t.Errorf("chunk content = %q, want %q", got, want)
	}
}

func TestPack_emptyInput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p := New(dir, "md", Limits{MaxWords: 100, MaxBytes: 100})

	infos, err := p.Pack("IM", nil)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if infos != nil {
		t.Errorf("got %v, want no chunks", infos)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("output directory should not be created for an empty run")
	}
}
