package generators

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sw33tLie/gvmerge/internal/utils"
	"github.com/sw33tLie/gvmerge/pkg/entries"
)

const IndexName = "index.csv"

var indexHeaders = []string{
	"phone number (html)",
	"first date",
	"last date",
	"name (vcf)",
	"phone number (vcf)",
	"match length",
	"path",
	"file size",
	"media size",
}

const indexDateLayout = "2006-01-02T15:04:05.000Z"

// CSVIndex writes one row per participant of every merged conversation.
type CSVIndex struct {
	outputDir string
	phoneBook Lookup
}

func NewCSVIndex(outputDir string, phoneBook Lookup) *CSVIndex {
	return &CSVIndex{outputDir: outputDir, phoneBook: phoneBook}
}

func (g *CSVIndex) Name() string { return "csv index" }

func (g *CSVIndex) Path() string {
	return filepath.Join(g.outputDir, LogsDir, IndexName)
}

func (g *CSVIndex) Generate(ctx context.Context, merged []*entries.Entry) error {
	indexPath := g.Path()
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(indexPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(indexHeaders); err != nil {
		return err
	}

	for _, e := range merged {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := g.rows(e)
		if err != nil {
			return err
		}
		if err := w.WriteAll(rows); err != nil {
			return fmt.Errorf("failed to write %s: %w", IndexName, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", IndexName, err)
	}
	return f.Close()
}

func (g *CSVIndex) rows(e *entries.Entry) ([][]string, error) {
	utils.Log.Debugf("Saving entry %q to the csv index", e.Name)

	if e.Kind != entries.KindHTML {
		return nil, fmt.Errorf("unable to index %q: %w", e.Name, entries.ErrUnsupported)
	}

	var (
		relPath   string
		fileSize  int64
		mediaSize int64
	)
	if e.SavedPath != "" {
		relPath = relativePath(g.outputDir, e.SavedPath)

		info, err := os.Stat(e.SavedPath)
		if err != nil {
			return nil, err
		}
		fileSize = info.Size()
		mediaSize = mediaBytes(e)
	}

	rows := make([][]string, 0, len(e.PhoneNumbers))
	for _, number := range e.PhoneNumbers {
		m := lookup(g.phoneBook, number)
		rows = append(rows, []string{
			number,
			formatIndexDate(e.Timestamp),
			formatIndexDate(e.LastTimestamp),
			m.Name,
			m.Number,
			strconv.Itoa(m.Length),
			relPath,
			strconv.FormatInt(fileSize, 10),
			strconv.FormatInt(mediaSize, 10),
		})
	}
	return rows, nil
}

// mediaBytes sums the sizes of the saved media attached to e.
func mediaBytes(e *entries.Entry) int64 {
	var total int64
	for _, m := range e.Media {
		if m.SavedPath == "" {
			continue
		}
		if info, err := os.Stat(m.SavedPath); err == nil {
			total += info.Size()
		}
	}
	return total
}

func formatIndexDate(t time.Time) string {
	return t.UTC().Format(indexDateLayout)
}
