// Package pipeline drives a full processing run: scan the archive,
// normalize each document, and pack the results into chunk files.
// Parsing fans out across a worker pool; catalog writes, utterance
// indexing, and packing stay on the collecting side, so episode order
// and chunk boundaries never depend on worker scheduling.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kikigaki/internal/archive"
	"github.com/hyperjump/kikigaki/internal/catalog"
	"github.com/hyperjump/kikigaki/internal/config"
	"github.com/hyperjump/kikigaki/internal/extract"
	"github.com/hyperjump/kikigaki/internal/models"
	"github.com/hyperjump/kikigaki/internal/pack"
	"github.com/hyperjump/kikigaki/internal/sanitize"
	"github.com/hyperjump/kikigaki/internal/searchidx"
	"github.com/hyperjump/kikigaki/internal/segment"
)

// Pipeline owns the components of a processing run.
type Pipeline struct {
	cfg       *config.Config
	archive   *archive.Archive
	extractor *extract.Extractor
	sanitizer *sanitize.Sanitizer
	segmenter *segment.Segmenter
	packer    *pack.Packer
	catalog   *catalog.Catalog
	index     *searchidx.Index
	logger    *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithIndex enables utterance indexing during runs.
func WithIndex(ix *searchidx.Index) PipelineOption {
	return func(p *Pipeline) { p.index = ix }
}

// WithLogger sets the run logger.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// New assembles a pipeline from configuration. cat may be nil; runs
// then re-parse every document and record nothing.
func New(cfg *config.Config, cat *catalog.Catalog, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		archive:   archive.New(cfg.Archive.Dir),
		extractor: extract.New(),
		sanitizer: sanitize.New(),
		segmenter: segment.New(),
		catalog:   cat,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.packer = pack.New(cfg.Output.Dir, cfg.Output.Extension, pack.Limits{
		MaxWords: cfg.Chunks.MaxWords,
		MaxBytes: cfg.Chunks.MaxBytes,
		ByYear:   cfg.Chunks.ByYear,
	}, pack.WithLogger(p.logger))
	return p
}

// RunOptions selects the scope of one processing run.
type RunOptions struct {
	Prefixes []string // show prefixes to process; empty means the configured defaults
	All      bool     // process every prefix found in the archive
	Force    bool     // re-parse documents even when the catalog fingerprint matches
}

// Run executes one processing run and returns its summary. Per-document
// failures are counted and logged, never fatal; scan, pack, and catalog
// errors abort the run.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*models.RunSummary, error) {
	sum := &models.RunSummary{
		RunID:   uuid.New().String(),
		Started: time.Now(),
	}

	idx, err := p.archive.Scan()
	if err != nil {
		return nil, err
	}

	prefixes := opts.Prefixes
	switch {
	case opts.All:
		prefixes = idx.Prefixes()
	case len(prefixes) == 0:
		prefixes = p.cfg.Process.DefaultPrefixes
	}
	sum.Prefixes = prefixes

	p.logger.Info("run started",
		zap.String("run_id", sum.RunID),
		zap.Strings("prefixes", prefixes),
		zap.Int("documents", idx.Documents()),
		zap.Bool("by_year", p.cfg.Chunks.ByYear),
		zap.Int("workers", p.cfg.Process.Workers))

	var allChunks []models.ChunkInfo
	for _, prefix := range prefixes {
		docs := idx[prefix]
		if len(docs) == 0 {
			p.logger.Warn("no documents for prefix", zap.String("prefix", prefix))
			continue
		}
		eps, err := p.processPrefix(ctx, prefix, docs, opts.Force, sum)
		if err != nil {
			return sum, err
		}
		infos, err := p.packer.Pack(prefix, eps)
		if err != nil {
			return sum, fmt.Errorf("pack %s: %w", prefix, err)
		}
		sum.Chunks += len(infos)
		allChunks = append(allChunks, infos...)
	}

	sum.Finished = time.Now()
	if p.catalog != nil {
		if err := p.catalog.RecordChunks(ctx, sum.RunID, allChunks); err != nil {
			return sum, fmt.Errorf("record chunks: %w", err)
		}
		if err := p.catalog.RecordRun(ctx, sum); err != nil {
			return sum, fmt.Errorf("record run: %w", err)
		}
	}

	p.logger.Info("run finished",
		zap.String("run_id", sum.RunID),
		zap.Int("parsed", sum.Parsed),
		zap.Int("reused", sum.Reused),
		zap.Int("failed", sum.Failed),
		zap.Int("date_fallbacks", sum.DateFallbacks),
		zap.Int("ambiguous", sum.Ambiguous),
		zap.Int("chunks", sum.Chunks),
		zap.Duration("elapsed", sum.Finished.Sub(sum.Started)))
	return sum, nil
}

// docResult carries one processed document back to the collector.
type docResult struct {
	ep        *models.EpisodeText
	utts      []models.Utterance
	doc       *models.Document
	ambiguous int
	reused    bool
	err       error
}

// processPrefix normalizes one prefix's documents on the worker pool
// and returns the episodes sorted ascending by number.
func (p *Pipeline) processPrefix(ctx context.Context, prefix string, docs []*models.Document, force bool, sum *models.RunSummary) ([]*models.EpisodeText, error) {
	workers := p.cfg.Process.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan *models.Document)
	results := make(chan docResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				results <- p.processDoc(ctx, doc, force)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, doc := range docs {
			select {
			case jobs <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var eps []*models.EpisodeText
	for r := range results {
		switch {
		case r.err != nil:
			sum.Failed++
			p.logger.Warn("document failed", zap.String("key", r.doc.Key), zap.Error(r.err))
			continue
		case r.reused:
			sum.Reused++
		default:
			sum.Parsed++
			sum.Ambiguous += r.ambiguous
			if r.ep.YMD == extract.SentinelYMD {
				sum.DateFallbacks++
				p.logger.Debug("date fallback", zap.String("key", r.doc.Key), zap.String("date_str", r.ep.DateStr))
			}
			if p.catalog != nil {
				if err := p.catalog.UpsertEpisode(ctx, r.ep, r.doc); err != nil {
					p.logger.Warn("catalog write failed", zap.String("key", r.doc.Key), zap.Error(err))
				}
			}
			if p.index != nil {
				if err := p.index.IndexEpisode(ctx, r.ep, r.utts); err != nil {
					p.logger.Warn("utterance indexing failed", zap.String("key", r.doc.Key), zap.Error(err))
				}
			}
		}
		eps = append(eps, r.ep)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(eps, func(i, j int) bool { return eps[i].Number < eps[j].Number })
	p.logger.Info("prefix processed", zap.String("prefix", prefix), zap.Int("episodes", len(eps)))
	return eps, nil
}

// processDoc normalizes one document, serving it from the catalog when
// the source fingerprint still matches.
func (p *Pipeline) processDoc(ctx context.Context, doc *models.Document, force bool) docResult {
	if !force && p.catalog != nil {
		if ep, hit, err := p.catalog.Lookup(ctx, doc); err == nil && hit {
			return docResult{ep: ep, doc: doc, reused: true}
		}
	}

	raw, err := os.ReadFile(doc.Path)
	if err != nil {
		return docResult{doc: doc, err: fmt.Errorf("read document: %w", err)}
	}
	html := string(raw)

	meta := p.extractor.Metadata(html, doc.Number)
	blocks := p.sanitizer.Blocks(p.extractor.Body(html))
	utts, ambiguous := p.segmenter.Scan(blocks)

	ep := &models.EpisodeText{
		Prefix:  doc.Prefix,
		Number:  meta.Number,
		Title:   meta.Title,
		DateStr: meta.DateStr,
		YMD:     meta.YMD,
		Year:    meta.Year,
		Content: segment.Render(utts, meta.Number, meta.YMD),
	}
	return docResult{ep: ep, utts: utts, doc: doc, ambiguous: ambiguous}
}
