// Package db ships the SQL schema migrations with the binary.
package db

import (
	"embed"
	"io/fs"
	"sort"
)

//go:embed migrations/*.sql
var files embed.FS

// Migration is a single forward schema step.
type Migration struct {
	Name string
	SQL  string
}

// Up returns the forward migrations ordered by file name.
func Up() ([]Migration, error) {
	names, err := fs.Glob(files, "migrations/*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		payload, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{Name: name, SQL: string(payload)})
	}
	return migrations, nil
}
