package models

import (
	"strconv"
	"strings"
)

// Utterance is one attributed span of transcript text. Timestamp and
// Speaker may be empty when the source never established them.
type Utterance struct {
	Timestamp string `json:"timestamp,omitempty"`
	Speaker   string `json:"speaker,omitempty"`
	Text      string `json:"text"`
}

// Line renders the utterance in its normalized one-line form:
//
//	EP:100 Date:25-01-01 TS:1:05:32 - Leo Laporte - Welcome to the show.
//
// Timestamp and speaker segments are omitted when empty; the bare "-"
// before the text is always present.
func (u Utterance) Line(number int, ymd string) string {
	var b strings.Builder
	b.WriteString("EP:")
	b.WriteString(strconv.Itoa(number))
	b.WriteString(" Date:")
	b.WriteString(ymd)
	if u.Timestamp != "" {
		b.WriteString(" TS:")
		b.WriteString(u.Timestamp)
	}
	b.WriteString(" -")
	if u.Speaker != "" {
		b.WriteString(" ")
		b.WriteString(u.Speaker)
		b.WriteString(" -")
	}
	b.WriteString(" ")
	b.WriteString(u.Text)
	return b.String()
}

// EpisodeText is the normalized form of one episode: metadata plus the
// utterance lines joined with blank lines.
type EpisodeText struct {
	Prefix  string `json:"prefix" db:"prefix"`
	Number  int    `json:"number" db:"number"`
	Title   string `json:"title" db:"title"`
	DateStr string `json:"date_str" db:"date_str"`
	YMD     string `json:"ymd" db:"ymd"`
	Year    int    `json:"year" db:"year"`
	Content string `json:"content" db:"content"`
}

// Block renders the episode as it appears inside a chunk file.
func (e *EpisodeText) Block() string {
	var b strings.Builder
	b.WriteString("# Episode: ")
	b.WriteString(e.Title)
	b.WriteString("\n**Date:** ")
	b.WriteString(e.DateStr)
	b.WriteString("\n\n")
	b.WriteString(e.Content)
	b.WriteString("\n\n---\n\n")
	return b.String()
}

// Words counts whitespace-separated words in Content. Header and
// separator text never count against the word limit.
func (e *EpisodeText) Words() int {
	return len(strings.Fields(e.Content))
}

// EpisodeMeta is a catalog listing row for one episode, without the
// normalized content.
type EpisodeMeta struct {
	Prefix  string `json:"prefix" db:"prefix"`
	Number  int    `json:"number" db:"number"`
	Title   string `json:"title" db:"title"`
	DateStr string `json:"date" db:"date_str"`
	YMD     string `json:"ymd" db:"ymd"`
	Year    int    `json:"year" db:"year"`
	Words   int    `json:"words" db:"words"`
}
