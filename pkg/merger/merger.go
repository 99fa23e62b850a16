// Package merger folds the classified files of a Google Voice export into
// one document per conversation.
package merger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sw33tLie/gvmerge/internal/utils"
	"github.com/sw33tLie/gvmerge/pkg/entries"
	"github.com/sw33tLie/gvmerge/pkg/generators"
	"github.com/sw33tLie/gvmerge/pkg/phonebook"
)

var (
	ErrOutputConflict      = errors.New("output directory already exists and is not empty")
	ErrPhoneNumberMismatch = errors.New("unexpected phone numbers during merge")
	ErrNoAnchor            = errors.New("unable to find the first entry")
)

// MergeError reports a conversation whose entries could not be folded.
type MergeError struct {
	Key string
	Err error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("failed to merge entries for %s: %s", e.Key, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// housekeeping files written by file managers next to the export.
var housekeeping = map[string]struct{}{
	"desktop.ini": {},
	".DS_Store":   {},
	"Thumbs.db":   {},
}

type Options struct {
	InputDir  string
	OutputDir string
	// Force removes an existing output directory instead of failing.
	Force bool

	IgnoreCallLogs         bool
	IgnoreOrphanCallLogs   bool
	IgnoreMedia            bool
	IgnoreVoicemails       bool
	IgnoreOrphanVoicemails bool

	// Generators run once every conversation was merged and saved.
	Generators []generators.Generator
}

type Merger struct {
	factory   *entries.Factory
	phoneBook *phonebook.PhoneBook
	opts      Options
}

func New(factory *entries.Factory, phoneBook *phonebook.PhoneBook, opts Options) *Merger {
	return &Merger{factory: factory, phoneBook: phoneBook, opts: opts}
}

// Merge runs the whole pipeline. Classification errors abort before anything
// is written; a group that fails to merge aborts the run, leaving the groups
// merged before it on disk.
func (m *Merger) Merge(ctx context.Context) (*RunStats, error) {
	start := time.Now()
	stats := newRunStats()

	utils.Log.Infof("Merging Google Voice calls from %q to %q", m.opts.InputDir, m.opts.OutputDir)

	if err := m.prepareOutput(); err != nil {
		return nil, err
	}

	files, err := m.listFiles()
	if err != nil {
		return nil, err
	}
	stats.Files = len(files)

	keys, groups, err := m.classify(files, stats)
	if err != nil {
		return nil, err
	}

	var merged []*entries.Entry
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		group := groups[key]
		if reason, orphan := m.orphan(group); orphan {
			utils.Log.Debugf("Skipping orphan %s for %s", reason, key)
			stats.OrphanGroups[reason]++
			continue
		}
		stats.record(group)

		utils.Log.Infof("Merging entries for %s", key)
		anchor, err := m.mergeGroup(key, group)
		if err != nil {
			return nil, &MergeError{Key: key, Err: err}
		}
		stats.Groups++
		stats.BytesWritten += savedBytes(anchor)
		merged = append(merged, anchor)
	}

	for _, g := range m.opts.Generators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		utils.Log.Infof("Generating %s", g.Name())
		if err := g.Generate(ctx, merged); err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", g.Name(), err)
		}
	}

	if m.phoneBook != nil {
		if err := m.phoneBook.SaveLogs(filepath.Join(m.opts.OutputDir, generators.LogsDir)); err != nil {
			return nil, fmt.Errorf("failed to save phone book logs: %w", err)
		}
		stats.MatchedNumbers = m.phoneBook.Stats().MatchedCount()
		stats.UnknownNumbers = len(m.phoneBook.Stats().Unknown)
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func (m *Merger) prepareOutput() error {
	if m.opts.InputDir == "" || m.opts.OutputDir == "" {
		return errors.New("input and output directories are required")
	}

	info, err := os.Stat(m.opts.InputDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("input %q is not a directory", m.opts.InputDir)
	}

	in, err := filepath.Abs(m.opts.InputDir)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(m.opts.OutputDir)
	if err != nil {
		return err
	}
	if in == out || strings.HasPrefix(in, out+string(filepath.Separator)) {
		return fmt.Errorf("output directory %q must not contain the input directory", m.opts.OutputDir)
	}

	existing, err := os.ReadDir(m.opts.OutputDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return err
	case len(existing) == 0:
		return nil
	case !m.opts.Force:
		return fmt.Errorf("%w: %q", ErrOutputConflict, m.opts.OutputDir)
	}

	utils.Log.Warnf("Removing existing output directory %q", m.opts.OutputDir)
	return os.RemoveAll(m.opts.OutputDir)
}

// listFiles returns the export files in lexical order.
func (m *Merger) listFiles() ([]string, error) {
	dirEntries, err := os.ReadDir(m.opts.InputDir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, d := range dirEntries {
		if d.IsDir() {
			continue
		}
		if _, skip := housekeeping[d.Name()]; skip {
			utils.Log.Debugf("Skipping %s", d.Name())
			continue
		}
		files = append(files, filepath.Join(m.opts.InputDir, d.Name()))
	}
	return files, nil
}

// classify parses every file, drops filtered entries and groups the rest by
// conversation key in discovery order.
func (m *Merger) classify(files []string, stats *RunStats) ([]string, map[string][]*entries.Entry, error) {
	var keys []string
	groups := make(map[string][]*entries.Entry)

	for _, f := range files {
		e, err := m.factory.Parse(f)
		if err != nil {
			return nil, nil, err
		}

		if filter, ignored := m.ignored(e); ignored {
			utils.Log.Debugf("Ignoring %s: %s", filter, e.Name)
			stats.Ignored[filter]++
			continue
		}

		key := e.Key()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], e)
	}
	return keys, groups, nil
}

func (m *Merger) ignored(e *entries.Entry) (string, bool) {
	switch {
	case m.opts.IgnoreCallLogs && e.Action.IsCallLog():
		return FilterCallLogs, true
	case m.opts.IgnoreVoicemails && e.Action == entries.ActionVoicemail:
		return FilterVoicemails, true
	case m.opts.IgnoreMedia && e.IsMedia():
		return FilterMedia, true
	}
	return "", false
}

// orphan reports whether the group only holds call logs or only voicemails
// and the matching option asks for such groups to be dropped.
func (m *Merger) orphan(group []*entries.Entry) (string, bool) {
	callLogs, voicemails := true, true
	for _, e := range group {
		if !e.Action.IsCallLog() {
			callLogs = false
		}
		if e.Action != entries.ActionVoicemail {
			voicemails = false
		}
	}
	switch {
	case m.opts.IgnoreOrphanCallLogs && callLogs:
		return FilterCallLogs, true
	case m.opts.IgnoreOrphanVoicemails && voicemails:
		return FilterVoicemails, true
	}
	return "", false
}

// mergeGroup folds a conversation in chronological order into its first
// document. Media is attached after every document was appended and saved
// before it is attached.
func (m *Merger) mergeGroup(key string, group []*entries.Entry) (*entries.Entry, error) {
	sorted := make([]*entries.Entry, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var (
		anchor *entries.Entry
		media  []*entries.Entry
	)
	for _, e := range sorted {
		if e.Key() != key || !utils.AreSlicesEqual(e.PhoneNumbers, sorted[0].PhoneNumbers) {
			return nil, fmt.Errorf("%w: expected=%s, actual=%s", ErrPhoneNumberMismatch, key, e.Key())
		}

		if e.IsMedia() {
			media = append(media, e)
			continue
		}

		if anchor == nil {
			utils.Log.Debugf("Found first entry: %s", e.Name)
			anchor = e
			continue
		}

		if err := anchor.Merge(e); err != nil {
			return nil, err
		}
	}

	if anchor == nil {
		return nil, ErrNoAnchor
	}

	for _, e := range media {
		if err := e.Save(m.opts.OutputDir); err != nil {
			return nil, err
		}
		if err := anchor.Merge(e); err != nil {
			return nil, err
		}
	}

	if err := anchor.Save(m.opts.OutputDir); err != nil {
		return nil, err
	}
	return anchor, nil
}

func savedBytes(anchor *entries.Entry) int64 {
	var total int64
	paths := []string{anchor.SavedPath}
	for _, e := range anchor.Media {
		paths = append(paths, e.SavedPath)
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}
