// Package searchidx provides a Bleve index over individual utterances,
// so a line can be located by speaker and wording and traced back to
// its episode and timestamp.
package searchidx

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kikigaki/internal/models"
	"github.com/hyperjump/kikigaki/pkg/utils"
)

const fragmentLen = 200

// utteranceDoc is the indexed form of one utterance.
type utteranceDoc struct {
	Prefix    string `json:"prefix"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Speaker   string `json:"speaker"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
	YMD       string `json:"ymd"`
}

// Index is a Bleve-backed utterance index.
type Index struct {
	index        bleve.Index
	speakerBoost float64
}

// Open opens or creates a Bleve index at path. An existing index is
// reused so unchanged episodes keep their entries across runs; remove
// the index directory to force a full rebuild after a mapping change.
func Open(path string, speakerBoost float64) (*Index, error) {
	if speakerBoost <= 0 {
		speakerBoost = 1
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so names
	// like "Gibson" match exactly.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("speaker", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("prefix", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("timestamp", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("ymd", keywordFieldMapping)
	im.AddDocumentMapping("utterance", docMapping)
	im.DefaultType = "utterance"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open utterance index: %w", openErr)
		}
		return &Index{index: index, speakerBoost: speakerBoost}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create utterance index: %w", err)
	}
	return &Index{index: index, speakerBoost: speakerBoost}, nil
}

// IndexEpisode replaces an episode's utterances in the index. Stale
// entries from an earlier parse are removed first, since the utterance
// count may have shrunk.
func (ix *Index) IndexEpisode(ctx context.Context, ep *models.EpisodeText, utts []models.Utterance) error {
	stale, err := ix.episodeDocIDs(ep.Prefix, ep.Number)
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		del := ix.index.NewBatch()
		for _, id := range stale {
			del.Delete(id)
		}
		if err := ix.index.Batch(del); err != nil {
			return fmt.Errorf("failed to drop stale utterances: %w", err)
		}
	}

	batch := ix.index.NewBatch()
	for i, u := range utts {
		id := fmt.Sprintf("%s:%d:%d", ep.Prefix, ep.Number, i)
		doc := utteranceDoc{
			Prefix:    ep.Prefix,
			Number:    ep.Number,
			Title:     ep.Title,
			Speaker:   u.Speaker,
			Timestamp: u.Timestamp,
			Text:      u.Text,
			YMD:       ep.YMD,
		}
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("failed to batch utterance %s: %w", id, err)
		}
	}
	if err := ix.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index utterances: %w", err)
	}
	return nil
}

// episodeDocIDs returns the IDs of all indexed utterances of one episode.
func (ix *Index) episodeDocIDs(prefix string, number int) ([]string, error) {
	eq := float64(number)
	inclusive := true
	numQuery := bleve.NewNumericRangeInclusiveQuery(&eq, &eq, &inclusive, &inclusive)
	numQuery.SetField("number")
	prefixQuery := bleve.NewTermQuery(prefix)
	prefixQuery.SetField("prefix")

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(numQuery, prefixQuery))
	req.Size = 10000
	results, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to look up episode utterances: %w", err)
	}
	ids := make([]string, len(results.Hits))
	for i, hit := range results.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Search runs a match query over utterance text, speaker, and title,
// with the speaker field boosted so queries naming a person rank that
// person's lines first. Prefix and speaker filters narrow the scope.
func (ix *Index) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	textQuery := bleve.NewMatchQuery(q.Query)
	textQuery.SetField("text")
	speakerQuery := bleve.NewMatchQuery(q.Query)
	speakerQuery.SetField("speaker")
	speakerQuery.SetBoost(ix.speakerBoost)
	titleQuery := bleve.NewMatchQuery(q.Query)
	titleQuery.SetField("title")

	var query blevequery.Query = bleve.NewDisjunctionQuery(textQuery, speakerQuery, titleQuery)

	var filters []blevequery.Query
	if q.Prefix != "" {
		f := bleve.NewTermQuery(q.Prefix)
		f.SetField("prefix")
		filters = append(filters, f)
	}
	if q.Speaker != "" {
		f := bleve.NewMatchQuery(q.Speaker)
		f.SetField("speaker")
		filters = append(filters, f)
	}
	if len(filters) > 0 {
		query = bleve.NewConjunctionQuery(append(filters, query)...)
	}

	req := bleve.NewSearchRequest(query)
	req.Size = q.Limit
	req.From = q.Offset
	req.Fields = []string{"*"}

	start := time.Now()
	results, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("utterance search failed: %w", err)
	}

	resp := &models.SearchResponse{
		Hits:      make([]*models.SearchHit, 0, len(results.Hits)),
		Total:     results.Total,
		QueryTime: time.Since(start).Milliseconds(),
		Query:     q.Query,
	}
	for _, hit := range results.Hits {
		resp.Hits = append(resp.Hits, &models.SearchHit{
			Prefix:    fieldString(hit.Fields, "prefix"),
			Number:    fieldInt(hit.Fields, "number"),
			Title:     fieldString(hit.Fields, "title"),
			Speaker:   fieldString(hit.Fields, "speaker"),
			Timestamp: fieldString(hit.Fields, "timestamp"),
			YMD:       fieldString(hit.Fields, "ymd"),
			Fragment:  utils.Truncate(fieldString(hit.Fields, "text"), fragmentLen),
			Score:     hit.Score,
		})
	}
	return resp, nil
}

// DocCount returns the number of indexed utterances.
func (ix *Index) DocCount() (uint64, error) {
	return ix.index.DocCount()
}

// Close closes the index.
func (ix *Index) Close() error {
	return ix.index.Close()
}

func fieldString(fields map[string]interface{}, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

// fieldInt reads a numeric field; Bleve returns stored numerics as float64.
func fieldInt(fields map[string]interface{}, key string) int {
	switch n := fields[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
