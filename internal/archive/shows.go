package archive

import "strings"

// Resolver maps show display names to storage prefixes and back. The
// table is fixed at construction, usually from configuration.
type Resolver struct {
	byName   map[string]string
	byPrefix map[string]string
}

// NewResolver builds a resolver from a name-to-prefix table. Names are
// matched case-insensitively.
func NewResolver(shows map[string]string) *Resolver {
	r := &Resolver{
		byName:   make(map[string]string, len(shows)),
		byPrefix: make(map[string]string, len(shows)),
	}
	for name, prefix := range shows {
		r.byName[strings.ToLower(name)] = prefix
		r.byPrefix[prefix] = name
	}
	return r
}

// Prefix resolves a CLI argument to a show prefix. A known prefix is
// accepted in any case; otherwise the argument is looked up as a show
// name. Arguments matching neither resolve to their uppercase form so
// shows absent from the table can still be addressed by prefix.
func (r *Resolver) Prefix(arg string) string {
	upper := strings.ToUpper(strings.TrimSpace(arg))
	if _, ok := r.byPrefix[upper]; ok {
		return upper
	}
	if p, ok := r.byName[strings.ToLower(strings.TrimSpace(arg))]; ok {
		return p
	}
	return upper
}

// Name returns the display name for a prefix, or "" when the prefix is
// not in the table.
func (r *Resolver) Name(prefix string) string {
	return r.byPrefix[strings.ToUpper(prefix)]
}
