// Package models defines core data structures for archive documents,
// normalized episodes, and processing runs.
package models

import "time"

// Document is one transcript file discovered in the archive. The storage
// key encodes the show prefix and episode number (e.g. "SN_951.html").
type Document struct {
	Key     string    `json:"key"`
	Prefix  string    `json:"prefix"`
	Number  int       `json:"number"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}
