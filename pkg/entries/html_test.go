package entries

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sw33tLie/gvmerge/pkg/phonebook"
)

func parseEntry(t *testing.T, f *Factory, dir, name, content string) *Entry {
	t.Helper()
	e, err := f.Parse(writeFile(t, dir, name, content))
	if err != nil {
		t.Fatalf("Parse(%q): %v", name, err)
	}
	return e
}

func readSaved(t *testing.T, e *Entry) string {
	t.Helper()
	data, err := os.ReadFile(e.SavedPath)
	if err != nil {
		t.Fatalf("read saved %q: %v", e.SavedPath, err)
	}
	return string(data)
}

func TestFixIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	pb := testPhoneBook(t, phonebook.Record{Number: "+15551234567", Name: "Alice"})
	f := NewFactory(pb, FactoryOptions{})

	e := parseEntry(t, f, dir, "+15551234567 - Text - 2021-06-01T10_00_00Z.html",
		textDocument("x", textMessageHTML("+15551234567", "", "2021-06-01T10:00:00.000Z", "hi")))

	if err := e.fix(); err != nil {
		t.Fatalf("fix: %v", err)
	}
	first, err := e.doc.Html()
	if err != nil {
		t.Fatalf("Html: %v", err)
	}
	if err := e.fix(); err != nil {
		t.Fatalf("second fix: %v", err)
	}
	second, _ := e.doc.Html()
	if first != second {
		t.Fatalf("fix is not idempotent:\n%s\n---\n%s", first, second)
	}

	if n := e.doc.Find("style").Length(); n != 1 {
		t.Fatalf("expected a single stylesheet, got %d", n)
	}
	if e.doc.Find(".tags").Length() != 0 {
		t.Fatalf("labels were not removed")
	}
	if got := strings.TrimSpace(e.doc.Find("cite.sender .fn").Text()); got != "Alice" {
		t.Fatalf("expected the contact name to be filled in, got %q", got)
	}
	if pb.Stats().MatchedCount() != 1 {
		t.Fatalf("expected the match to be recorded, got %d", pb.Stats().MatchedCount())
	}
}

func TestFixKeepsExistingNames(t *testing.T) {
	dir := t.TempDir()
	pb := testPhoneBook(t, phonebook.Record{Number: "+15551234567", Name: "Alice"})
	e := parseEntry(t, NewFactory(pb, FactoryOptions{}), dir, "+15551234567 - Text - 2021-06-01T10_00_00Z.html",
		textDocument("x",
			textMessageHTML("+15551234567", "Ally", "2021-06-01T10:00:00.000Z", "hi"),
			sentMessageHTML("+15550000000", "2021-06-01T10:01:00.000Z", "hey")))

	if err := e.fix(); err != nil {
		t.Fatalf("fix: %v", err)
	}
	names := e.doc.Find("cite.sender .fn")
	if got := strings.TrimSpace(names.Eq(0).Text()); got != "Ally" {
		t.Fatalf("name from the export should win, got %q", got)
	}
	if got := strings.TrimSpace(names.Eq(1).Text()); got != Me {
		t.Fatalf("owner name should be kept, got %q", got)
	}
	if got := pb.Stats().UnknownNumbers(); len(got) != 1 || got[0] != "+15550000000" {
		t.Fatalf("unexpected unknown numbers %v", got)
	}
}

func TestMergeAppendsInOrder(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	f := NewFactory(nil, FactoryOptions{})

	first := parseEntry(t, f, dir, "+15551234567 - Text - 2021-06-01T10_00_00Z.html",
		textDocument("x", textMessageHTML("+15551234567", "Alice", "2021-06-01T10:00:00.000Z", "first")))
	second := parseEntry(t, f, dir, "+15551234567 - Text - 2021-06-02T10_00_00Z.html",
		textDocument("x", textMessageHTML("+15551234567", "Alice", "2021-06-02T10:00:00.000Z", "second")))

	if err := first.Merge(second); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !first.LastTimestamp.Equal(second.Timestamp) {
		t.Fatalf("LastTimestamp = %s, want %s", first.LastTimestamp, second.Timestamp)
	}
	if len(first.Merged) != 1 || first.Merged[0] != second.Name {
		t.Fatalf("unexpected merged list %v", first.Merged)
	}

	if err := first.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := filepath.Join(out, "+15551234567", "2021-06-01T10_00_00Z +15551234567.html")
	if first.SavedPath != want {
		t.Fatalf("SavedPath = %q, want %q", first.SavedPath, want)
	}

	saved := readSaved(t, first)
	i, j := strings.Index(saved, "first"), strings.Index(saved, "second")
	if i < 0 || j < 0 || i > j {
		t.Fatalf("messages out of order in:\n%s", saved)
	}
	if !strings.Contains(saved, "<hr/>") {
		t.Fatalf("expected a separator between documents")
	}
	if strings.Count(saved, "<style") != 1 {
		t.Fatalf("expected a single stylesheet in:\n%s", saved)
	}
}

func TestMergeMedia(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	f := NewFactory(nil, FactoryOptions{})

	doc := parseEntry(t, f, dir, "+15551234567 - Text - 2021-06-01T10_00_00Z.html",
		textDocument("x", textMessageHTML("+15551234567", "Alice", "2021-06-01T10:00:00.000Z",
			`look <img src="+15551234567 - Text - 2021-06-01T10_00_00Z-1-1" alt=""/>`)))
	image := parseEntry(t, f, dir, "+15551234567 - Text - 2021-06-01T10_00_00Z-1-1.jpg", "jpeg")

	if err := doc.Merge(image); !errors.Is(err, ErrUnsavedMedia) {
		t.Fatalf("expected ErrUnsavedMedia, got %v", err)
	}

	if err := image.Save(out); err != nil {
		t.Fatalf("Save media: %v", err)
	}
	if want := filepath.Join(out, "+15551234567", MediaDir, image.Name); image.SavedPath != want {
		t.Fatalf("media SavedPath = %q, want %q", image.SavedPath, want)
	}
	if err := doc.Merge(image); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := doc.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved := readSaved(t, doc)
	if !strings.Contains(saved, `src="media/+15551234567 - Text - 2021-06-01T10_00_00Z-1-1.jpg"`) {
		t.Fatalf("image was not attached:\n%s", saved)
	}
	if len(doc.Media) != 1 {
		t.Fatalf("expected one attached media, got %d", len(doc.Media))
	}

	// The placeholder is gone, so a second copy has nowhere to go.
	again := parseEntry(t, f, dir, "+15551234567 - Text - 2021-06-01T10_00_00Z-2-1.jpg", "jpeg")
	if err := again.Save(out); err != nil {
		t.Fatalf("Save media: %v", err)
	}
	if err := doc.Merge(again); !errors.Is(err, ErrMissingPlaceholder) {
		t.Fatalf("expected ErrMissingPlaceholder, got %v", err)
	}
}

func TestMergeMediaOfEntryWithoutNumber(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	f := NewFactory(nil, FactoryOptions{})

	doc := parseEntry(t, f, dir, "- Text - 2021-06-01T10_00_00Z.html",
		textDocument("x", textMessageHTML("+15551234567", "Alice", "2021-06-01T10:00:00.000Z",
			`look <img src="- Text - 2021-06-01T10_00_00Z-1-1" alt=""/>`)))
	image := parseEntry(t, f, dir, "- Text - 2021-06-01T10_00_00Z-1-1.jpg", "jpeg")

	if image.Name == "- Text - 2021-06-01T10_00_00Z-1-1.jpg" {
		t.Fatalf("expected the missing number to be filled in, got %q", image.Name)
	}

	if err := image.Save(out); err != nil {
		t.Fatalf("Save media: %v", err)
	}
	if got := filepath.Base(image.SavedPath); got != "- Text - 2021-06-01T10_00_00Z-1-1.jpg" {
		t.Fatalf("media saved as %q, want the exported file name", got)
	}
	if err := doc.Merge(image); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := doc.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved := readSaved(t, doc); !strings.Contains(saved, `src="media/- Text - 2021-06-01T10_00_00Z-1-1.jpg"`) {
		t.Fatalf("image was not attached:\n%s", saved)
	}
}

func TestMergeVoicemailWithoutAudioElement(t *testing.T) {
	for _, ext := range []string{".mp3", ".amr"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			out := t.TempDir()
			f := NewFactory(nil, FactoryOptions{})

			doc := parseEntry(t, f, dir, "+15551234567 - Voicemail - 2021-06-01T10_00_00Z.html",
				callDocument("Voicemail from", "+15551234567", "", "2021-06-01T10:00:00.000Z", "(00:00:25)"))
			audio := parseEntry(t, f, dir, "+15551234567 - Voicemail - 2021-06-01T10_00_00Z"+ext, "audio")

			if err := audio.Save(out); err != nil {
				t.Fatalf("Save media: %v", err)
			}
			if err := doc.Merge(audio); err != nil {
				t.Fatalf("Merge: %v", err)
			}
			if doc.doc.Find("audio").Length() != 1 {
				t.Fatalf("expected an audio player before the duration")
			}
			if _, ok := doc.doc.Find("abbr.duration").Attr(claimedAttr); !ok {
				t.Fatalf("duration should be claimed")
			}
		})
	}
}

func TestMergeIntoMediaIsUnsupported(t *testing.T) {
	dir := t.TempDir()
	f := NewFactory(nil, FactoryOptions{})
	image := parseEntry(t, f, dir, "+15551234567 - Text - 2021-06-01T10_00_00Z-1-1.jpg", "jpeg")
	doc := parseEntry(t, f, dir, "+15551234567 - Text - 2021-06-01T10_00_00Z.html", textDocument("x"))

	if err := image.Merge(doc); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if err := image.Load(); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported from Load, got %v", err)
	}
}
