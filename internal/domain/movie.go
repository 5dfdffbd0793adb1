package domain

import "time"

// DurationUnknown is stored when no runtime was supplied for a movie.
const DurationUnknown = "N/A"

// Movie represents a catalog entry as persisted by the store.
type Movie struct {
	ID          string
	Title       string
	Genre       string
	Year        int
	Description string
	Poster      string
	SourceLink  string
	EmbedID     string
	Duration    string
	Views       int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
