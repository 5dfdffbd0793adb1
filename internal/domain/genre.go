package domain

import "strings"

// GenreAll is the list filter value that disables genre filtering.
const GenreAll = "all"

// DefaultGenres is the catalog genre set used when none is configured.
var DefaultGenres = []string{
	"Action",
	"Drame",
	"Comédie",
	"SF",
	"Horreur",
	"Animation",
	"Romance",
	"Thriller",
	"Documentaire",
}

// GenreSet is the closed list of genres a movie may be filed under.
type GenreSet struct {
	names []string
	index map[string]struct{}
}

// NewGenreSet builds a set from names, dropping blanks and duplicates while keeping order.
func NewGenreSet(names []string) GenreSet {
	set := GenreSet{index: make(map[string]struct{}, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := set.index[name]; dup {
			continue
		}
		set.index[name] = struct{}{}
		set.names = append(set.names, name)
	}
	return set
}

// Contains reports whether genre is a member of the set. Matching is exact.
func (s GenreSet) Contains(genre string) bool {
	_, ok := s.index[genre]
	return ok
}

// Names returns a copy of the genres in configuration order.
func (s GenreSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of genres.
func (s GenreSet) Len() int {
	return len(s.names)
}
