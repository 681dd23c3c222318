package models

// SearchHit locates one utterance matched by a query.
type SearchHit struct {
	Prefix    string  `json:"prefix"`
	Number    int     `json:"number"`
	Title     string  `json:"title"`
	Speaker   string  `json:"speaker,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	YMD       string  `json:"ymd"`
	Fragment  string  `json:"fragment,omitempty"`
	Score     float64 `json:"score"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Hits      []*SearchHit `json:"hits"`
	Total     uint64       `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
	Query     string       `json:"query"`
}
