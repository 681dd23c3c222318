package models

import "time"

// RunSummary aggregates the outcome of one processing run.
type RunSummary struct {
	RunID         string    `json:"run_id" db:"id"`
	Prefixes      []string  `json:"prefixes"`
	Parsed        int       `json:"parsed" db:"parsed"`
	Reused        int       `json:"reused" db:"reused"`
	Failed        int       `json:"failed" db:"failed"`
	DateFallbacks int       `json:"date_fallbacks" db:"date_fallbacks"`
	Ambiguous     int       `json:"ambiguous" db:"ambiguous"`
	Chunks        int       `json:"chunks" db:"chunks"`
	Started       time.Time `json:"started" db:"started"`
	Finished      time.Time `json:"finished" db:"finished"`
}

// ChunkInfo describes one written chunk file.
type ChunkInfo struct {
	Prefix   string `json:"prefix" db:"prefix"`
	Name     string `json:"name" db:"name"`
	Start    int    `json:"start" db:"start_number"`
	End      int    `json:"end" db:"end_number"`
	Year     int    `json:"year" db:"year"`
	Episodes int    `json:"episodes" db:"episodes"`
	Words    int    `json:"words" db:"words"`
	Bytes    int64  `json:"bytes" db:"bytes"`
}
