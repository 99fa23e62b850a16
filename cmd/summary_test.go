package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sw33tLie/gvmerge/pkg/entries"
	"github.com/sw33tLie/gvmerge/pkg/generators"
	"github.com/sw33tLie/gvmerge/pkg/merger"
)

func TestSortedCounts(t *testing.T) {
	got := sortedCounts(map[entries.Action]int{"Voicemail": 2, "Text": 5, "Missed": 1})
	want := "Missed: 1, Text: 5, Voicemail: 2"
	if got != want {
		t.Fatalf("sortedCounts()=%q want %q", got, want)
	}
	if got := sortedCounts(map[string]int{}); got != "" {
		t.Fatalf("sortedCounts(empty)=%q want empty", got)
	}
}

func TestPrintSummary(t *testing.T) {
	stats := &merger.RunStats{
		Files:          4,
		Entries:        3,
		Groups:         2,
		ByAction:       map[entries.Action]int{"Text": 2, "Voicemail": 1},
		Ignored:        map[string]int{merger.FilterMedia: 1},
		UnknownNumbers: 1,
	}
	index := generators.NewCSVIndex("out", nil)
	opts := merger.Options{OutputDir: "out", Generators: []generators.Generator{index}}

	var buf bytes.Buffer
	printSummary(&buf, stats, opts)
	out := buf.String()

	for _, want := range []string{"Merge complete", "Text: 2, Voicemail: 1", "media: 1", index.Path()} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary is missing %q:\n%s", want, out)
		}
	}
}
