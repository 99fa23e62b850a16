package phonebook

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

const (
	UnknownLogName = "unknown_numbers.csv"
	MatchedLogName = "matched_numbers.csv"
)

var matchedLogHeaders = []string{"phone number (html)", "phone number (vcf)", "match length", "name"}

// Stats accumulates which numbers were rendered with a resolved name and
// which stayed unknown during one run.
type Stats struct {
	// Matched maps a phone book number to the queried numbers that resolved
	// to it and the length of each match.
	Matched map[string]map[string]int
	Unknown map[string]struct{}
}

func newStats() *Stats {
	return &Stats{
		Matched: make(map[string]map[string]int),
		Unknown: make(map[string]struct{}),
	}
}

func (s *Stats) recordMatch(number, query string, length int) {
	if _, ok := s.Matched[number]; !ok {
		s.Matched[number] = make(map[string]int)
	}
	s.Matched[number][query] = length
}

func (s *Stats) recordUnknown(query string) {
	s.Unknown[query] = struct{}{}
}

// MatchedCount returns the number of distinct queried numbers that matched.
func (s *Stats) MatchedCount() int {
	n := 0
	for _, queries := range s.Matched {
		n += len(queries)
	}
	return n
}

func (s *Stats) UnknownNumbers() []string {
	out := make([]string, 0, len(s.Unknown))
	for n := range s.Unknown {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SaveLogs writes the unknown and matched number reports into dir.
func (p *PhoneBook) SaveLogs(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	unknown, err := os.Create(filepath.Join(dir, UnknownLogName))
	if err != nil {
		return err
	}
	defer unknown.Close()

	uw := csv.NewWriter(unknown)
	for _, n := range p.stats.UnknownNumbers() {
		if err := uw.Write([]string{n}); err != nil {
			return err
		}
	}
	uw.Flush()
	if err := uw.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", UnknownLogName, err)
	}

	matched, err := os.Create(filepath.Join(dir, MatchedLogName))
	if err != nil {
		return err
	}
	defer matched.Close()

	mw := csv.NewWriter(matched)
	if err := mw.Write(matchedLogHeaders); err != nil {
		return err
	}

	numbers := make([]string, 0, len(p.stats.Matched))
	for n := range p.stats.Matched {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)

	for _, number := range numbers {
		queries := p.stats.Matched[number]
		keys := make([]string, 0, len(queries))
		for q := range queries {
			keys = append(keys, q)
		}
		sort.Strings(keys)

		name := p.exact[number]
		for _, q := range keys {
			if err := mw.Write([]string{q, number, strconv.Itoa(queries[q]), name}); err != nil {
				return err
			}
		}
	}
	mw.Flush()
	if err := mw.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", MatchedLogName, err)
	}
	return nil
}
