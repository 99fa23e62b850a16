package generators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sw33tLie/gvmerge/internal/utils"
	"github.com/sw33tLie/gvmerge/pkg/entries"
	"github.com/sw33tLie/gvmerge/pkg/storage"
)

const CatalogName = "catalog.sqlite"

// Catalog records every merged conversation in a SQLite database that the
// stats command can query later.
type Catalog struct {
	outputDir string
	phoneBook Lookup
}

func NewCatalog(outputDir string, phoneBook Lookup) *Catalog {
	return &Catalog{outputDir: outputDir, phoneBook: phoneBook}
}

func (g *Catalog) Name() string { return "catalog" }

func (g *Catalog) Path() string {
	return filepath.Join(g.outputDir, LogsDir, CatalogName)
}

func (g *Catalog) Generate(ctx context.Context, merged []*entries.Entry) error {
	conversations := make([]storage.Conversation, 0, len(merged))
	for _, e := range merged {
		c, err := g.conversation(e)
		if err != nil {
			return err
		}
		conversations = append(conversations, c)
	}

	if err := os.MkdirAll(filepath.Dir(g.Path()), 0o755); err != nil {
		return err
	}
	db, err := storage.Open(g.Path())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", CatalogName, err)
	}
	defer db.Close()

	changes, err := db.UpsertConversations(ctx, conversations)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", CatalogName, err)
	}
	utils.Log.Debugf("Catalog %s: %d conversations written", g.Path(), len(changes))
	return nil
}

func (g *Catalog) conversation(e *entries.Entry) (storage.Conversation, error) {
	if e.Kind != entries.KindHTML {
		return storage.Conversation{}, fmt.Errorf("unable to catalog %q: %w", e.Name, entries.ErrUnsupported)
	}

	c := storage.Conversation{
		Key:         e.Key(),
		Action:      string(e.Action),
		Group:       e.IsGroupConversation(),
		FirstAt:     e.Timestamp,
		LastAt:      e.LastTimestamp,
		MediaCount:  len(e.Media),
		MergedCount: len(e.Merged),
	}
	if e.SavedPath != "" {
		c.Path = relativePath(g.outputDir, e.SavedPath)
		info, err := os.Stat(e.SavedPath)
		if err != nil {
			return storage.Conversation{}, err
		}
		c.FileSize = info.Size()
		c.MediaSize = mediaBytes(e)
	}

	for _, number := range e.PhoneNumbers {
		m := lookup(g.phoneBook, number)
		c.Participants = append(c.Participants, storage.Participant{
			PhoneNumber:   number,
			Name:          m.Name,
			MatchedNumber: m.Number,
			MatchLength:   m.Length,
		})
	}
	return c, nil
}
