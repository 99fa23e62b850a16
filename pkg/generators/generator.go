// Package generators turns merged conversation documents into secondary
// exports: a CSV index, an SMS Backup & Restore archive and a SQLite catalog.
package generators

import (
	"context"
	"path/filepath"

	"github.com/sw33tLie/gvmerge/pkg/entries"
	"github.com/sw33tLie/gvmerge/pkg/phonebook"
)

// LogsDir is the directory, relative to the output directory, holding the
// reports of a run.
const LogsDir = "logs"

// Generator exports merged entries. Generate receives the anchors of every
// merged group, already saved.
type Generator interface {
	Name() string
	Generate(ctx context.Context, merged []*entries.Entry) error
}

// Lookup resolves phone numbers to contacts without recording statistics.
type Lookup interface {
	Get(phoneNumber string) phonebook.Match
}

func lookup(l Lookup, number string) phonebook.Match {
	if l == nil {
		return phonebook.Match{}
	}
	return l.Get(number)
}

// relativePath returns path relative to root with forward slashes, or path
// itself when it is not below root.
func relativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
