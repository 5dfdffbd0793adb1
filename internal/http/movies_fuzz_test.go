package httpserver

import (
	"net/url"
	"testing"
)

func FuzzBuildListFilter(f *testing.F) {
	seeds := []string{
		"search=Inception&genre=Action&limit=10",
		"limit=abc",
		"limit=200",
		"genre=all",
		"",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		values, err := url.ParseQuery(raw)
		if err != nil {
			return
		}
		filter, err := buildListFilter(values)
		if err == nil && filter.Limit < 0 {
			t.Fatalf("negative limit accepted: %d", filter.Limit)
		}
	})
}
