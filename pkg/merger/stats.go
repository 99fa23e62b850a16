package merger

import (
	"time"

	"github.com/sw33tLie/gvmerge/pkg/entries"
)

// Names of the filters, used as keys of RunStats.Ignored and
// RunStats.OrphanGroups.
const (
	FilterCallLogs   = "call logs"
	FilterMedia      = "media"
	FilterVoicemails = "voicemails"
)

// RunStats is owned by a single Merge call.
type RunStats struct {
	Files   int
	Entries int
	Groups  int

	ByKind   map[entries.Kind]int
	ByAction map[entries.Action]int
	ByFormat map[entries.Format]int

	Ignored      map[string]int
	OrphanGroups map[string]int

	BytesWritten   int64
	MatchedNumbers int
	UnknownNumbers int
	Duration       time.Duration
}

func newRunStats() *RunStats {
	return &RunStats{
		ByKind:       make(map[entries.Kind]int),
		ByAction:     make(map[entries.Action]int),
		ByFormat:     make(map[entries.Format]int),
		Ignored:      make(map[string]int),
		OrphanGroups: make(map[string]int),
	}
}

func (s *RunStats) record(group []*entries.Entry) {
	for _, e := range group {
		s.Entries++
		s.ByKind[e.Kind]++
		s.ByAction[e.Action]++
		s.ByFormat[e.Format]++
	}
}

// IgnoredTotal is the number of entries dropped by filters.
func (s *RunStats) IgnoredTotal() int {
	n := 0
	for _, c := range s.Ignored {
		n += c
	}
	return n
}
