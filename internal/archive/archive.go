// Package archive locates transcript documents on disk. Storage keys
// follow the PREFIX_NUM.html convention, so the show prefix and episode
// number are recovered from the file name alone.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/hyperjump/kikigaki/internal/models"
)

// keyPattern matches storage keys like IM_123.html or TWIG_05.html.
var keyPattern = regexp.MustCompile(`^([A-Z0-9]+)_(\d+)\.html$`)

// ShowIndex groups archive documents by show prefix, each slice sorted
// ascending by episode number.
type ShowIndex map[string][]*models.Document

// Prefixes returns the prefixes present in the index, sorted.
func (idx ShowIndex) Prefixes() []string {
	out := make([]string, 0, len(idx))
	for p := range idx {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Documents returns the total document count across all prefixes.
func (idx ShowIndex) Documents() int {
	n := 0
	for _, docs := range idx {
		n += len(docs)
	}
	return n
}

// Archive is a flat directory of transcript documents.
type Archive struct {
	dir string
}

// New creates an archive rooted at dir.
func New(dir string) *Archive {
	return &Archive{dir: dir}
}

// Dir returns the archive root directory.
func (a *Archive) Dir() string {
	return a.dir
}

// ParseKey splits a storage key into show prefix and episode number.
// The key must be a bare file name, not a path.
func ParseKey(key string) (prefix string, number int, ok bool) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

// Scan reads the archive directory and builds a ShowIndex from every
// file whose name parses as a storage key. Other files are ignored.
// Files that vanish between listing and stat are skipped.
func (a *Archive) Scan() (ShowIndex, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("read archive directory: %w", err)
	}
	idx := make(ShowIndex)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		prefix, number, ok := ParseKey(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		idx[prefix] = append(idx[prefix], &models.Document{
			Key:     entry.Name(),
			Prefix:  prefix,
			Number:  number,
			Path:    filepath.Join(a.dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	for _, docs := range idx {
		sort.Slice(docs, func(i, j int) bool { return docs[i].Number < docs[j].Number })
	}
	return idx, nil
}
