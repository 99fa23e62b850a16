package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sw33tLie/gvmerge/pkg/merger"
)

var (
	primary = lipgloss.Color("#7C3AED")
	muted   = lipgloss.Color("#6B7280")
	warning = lipgloss.Color("#F59E0B")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(muted).
			Width(22)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(warning)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 2)
)

func summaryLine(label string, value interface{}) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(fmt.Sprint(value)))
}

// sortedCounts renders a count map as "a: 1, b: 2" in key order.
func sortedCounts[K ~string](counts map[K]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, counts[K(k)]))
	}
	return strings.Join(parts, ", ")
}

func printSummary(w io.Writer, stats *merger.RunStats, opts merger.Options) {
	lines := []string{
		titleStyle.Render("Merge complete"),
		summaryLine("Output", opts.OutputDir),
		summaryLine("Files", stats.Files),
		summaryLine("Entries merged", stats.Entries),
		summaryLine("Conversations", stats.Groups),
	}
	if len(stats.ByKind) > 0 {
		lines = append(lines, summaryLine("By kind", sortedCounts(stats.ByKind)))
	}
	if len(stats.ByAction) > 0 {
		lines = append(lines, summaryLine("By action", sortedCounts(stats.ByAction)))
	}
	if len(stats.ByFormat) > 0 {
		lines = append(lines, summaryLine("By format", sortedCounts(stats.ByFormat)))
	}
	if n := stats.IgnoredTotal(); n > 0 {
		lines = append(lines, summaryLine("Ignored entries", fmt.Sprintf("%d (%s)", n, sortedCounts(stats.Ignored))))
	}
	if len(stats.OrphanGroups) > 0 {
		lines = append(lines, summaryLine("Orphan conversations", sortedCounts(stats.OrphanGroups)))
	}
	lines = append(lines,
		summaryLine("Matched numbers", stats.MatchedNumbers),
		summaryLine("Written", humanize.Bytes(uint64(stats.BytesWritten))),
		summaryLine("Took", stats.Duration.Round(1e6)),
	)
	if stats.UnknownNumbers > 0 {
		lines = append(lines, summaryLine("Unknown numbers", warnStyle.Render(fmt.Sprint(stats.UnknownNumbers))))
	}
	for _, g := range opts.Generators {
		if p, ok := g.(interface{ Path() string }); ok {
			lines = append(lines, summaryLine(g.Name(), p.Path()))
		}
	}

	fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}
