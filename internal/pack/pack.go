// Package pack accumulates episode texts into bounded chunk files.
//
// Episodes are appended in order to an open chunk until adding the next
// one would push the chunk past the word or byte limit, or, in
// year-bound mode, until the next episode's year differs from the
// chunk's. A chunk always holds at least one episode, so a single
// oversized episode becomes a chunk of its own rather than an error.
package pack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kikigaki/internal/models"
	"go.uber.org/zap"
)

// Limits bounds the size of a single chunk file.
type Limits struct {
	MaxWords int
	MaxBytes int64
	ByYear   bool
}

// Packer writes episode texts into chunk files under a fixed output
// directory. Limits are fixed at construction.
type Packer struct {
	outDir string
	ext    string
	limits Limits
	logger *zap.Logger // optional; when set, logs each written chunk
}

// PackerOption configures a Packer.
type PackerOption func(*Packer)

// WithLogger sets a logger for chunk write events.
func WithLogger(l *zap.Logger) PackerOption {
	return func(p *Packer) { p.logger = l }
}

// New creates a packer writing chunk files with extension ext (without
// the dot) into outDir.
func New(outDir, ext string, limits Limits, opts ...PackerOption) *Packer {
	p := &Packer{outDir: outDir, ext: ext, limits: limits}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// chunk is the accumulation state for the chunk currently being filled.
// year is the year of the chunk's first episode, recorded even when it
// is zero so that an unknown-date episode opening a chunk still pins
// the chunk to "no year".
type chunk struct {
	blocks   []string
	words    int
	bytes    int64
	start    int
	end      int
	year     int
	episodes int
}

// Pack writes episodes into chunk files and returns one ChunkInfo per
// written file, in write order. Episodes must already be sorted by
// ascending number; Pack preserves their order and never splits an
// episode across chunks. On a write error it returns the chunks
// flushed so far along with the error.
func (p *Packer) Pack(prefix string, episodes []*models.EpisodeText) ([]models.ChunkInfo, error) {
	if len(episodes) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var (
		infos []models.ChunkInfo
		cur   chunk
	)
	flush := func() error {
		info, err := p.write(prefix, &cur)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		cur = chunk{}
		return nil
	}

	for _, ep := range episodes {
		block := ep.Block()
		epWords := ep.Words()
		epBytes := int64(len(block))

		split := cur.words+epWords > p.limits.MaxWords || cur.bytes+epBytes > p.limits.MaxBytes
		if !split && p.limits.ByYear && cur.episodes > 0 && ep.Year != cur.year {
			split = true
		}
		if split && cur.episodes > 0 {
			if err := flush(); err != nil {
				return infos, err
			}
		}
		if cur.episodes == 0 {
			cur.start = ep.Number
			cur.year = ep.Year
		}
		cur.blocks = append(cur.blocks, block)
		cur.words += epWords
		cur.bytes += epBytes
		cur.end = ep.Number
		cur.episodes++
	}
	if cur.episodes > 0 {
		if err := flush(); err != nil {
			return infos, err
		}
	}
	return infos, nil
}

// write flushes one chunk to disk in a single create-write-close.
func (p *Packer) write(prefix string, c *chunk) (models.ChunkInfo, error) {
	name := p.chunkName(prefix, c)
	path := filepath.Join(p.outDir, name)
	if err := os.WriteFile(path, []byte(strings.Join(c.blocks, "")), 0o644); err != nil {
		return models.ChunkInfo{}, fmt.Errorf("write chunk %s: %w", name, err)
	}
	if p.logger != nil {
		p.logger.Info("chunk written",
			zap.String("file", name),
			zap.Int("episodes", c.episodes),
			zap.Int("words", c.words),
			zap.Int64("bytes", c.bytes))
	}
	return models.ChunkInfo{
		Prefix:   prefix,
		Name:     name,
		Start:    c.start,
		End:      c.end,
		Year:     c.year,
		Episodes: c.episodes,
		Words:    c.words,
		Bytes:    c.bytes,
	}, nil
}

// chunkName returns the file name for a chunk. Year-qualified names
// apply only in year-bound mode and only when the chunk's year is
// known; a chunk opened by an unknown-date episode keeps the plain
// range form.
func (p *Packer) chunkName(prefix string, c *chunk) string {
	if p.limits.ByYear && c.year > 0 {
		return fmt.Sprintf("%s_Transcripts_%d_%d_%d.%s", prefix, c.year, c.start, c.end, p.ext)
	}
	return fmt.Sprintf("%s_Transcripts_%d-%d.%s", prefix, c.start, c.end, p.ext)
}
