package entries

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sw33tLie/gvmerge/internal/utils"
	"github.com/sw33tLie/gvmerge/pkg/phonebook"
	xhtml "golang.org/x/net/html"
)

//go:embed templates/style.css
var stylesheet string

const (
	// styleMarker is the class of the stylesheet fix() installs. Its presence
	// means the document was already fixed.
	styleMarker = "gvmerge"
	// claimedAttr marks duration elements that already received a player.
	claimedAttr = "data-gvmerge-attached"

	timestampLayout = "2006-01-02T15_04_05Z"
)

func (e *Entry) ensureLoaded() error {
	if e.doc != nil {
		return nil
	}
	doc, err := loadDocument(e.SourcePath)
	if err != nil {
		return err
	}
	e.doc = doc
	return nil
}

func loadDocument(path string) (*goquery.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	return doc, nil
}

// Document returns the parsed document of an HTML entry.
func (e *Entry) Document() (*goquery.Document, error) {
	if err := e.Load(); err != nil {
		return nil, err
	}
	return e.doc, nil
}

// queryPhoneNumbers extracts the sorted phone numbers of the participants of
// a group conversation document.
func queryPhoneNumbers(doc *goquery.Document) []string {
	var numbers []string
	doc.Find(".participants .sender.vcard a").Each(func(_ int, a *goquery.Selection) {
		if n := telNumber(a); n != "" {
			numbers = append(numbers, n)
		}
	})
	return utils.SortedUnique(numbers)
}

func telNumber(a *goquery.Selection) string {
	href, ok := a.Attr("href")
	if !ok {
		return ""
	}
	idx := strings.Index(href, "tel:")
	if idx < 0 {
		return ""
	}
	return phonebook.Normalize(href[idx+len("tel:"):])
}

// fix normalizes the structure of the document once: it installs the merged
// stylesheet, strips the export labels and fills contact names into the
// participant headers.
func (e *Entry) fix() error {
	if err := e.ensureLoaded(); err != nil {
		return err
	}
	doc := e.doc

	if doc.Find("style." + styleMarker).Length() > 0 {
		return nil
	}

	utils.Log.Debugf("Fixing %q", e.Name)

	doc.Find("head style").Remove()
	head := doc.Find("head").First()
	if head.Length() == 0 {
		return fmt.Errorf("unable to get the head of %q", e.Name)
	}
	head.AppendHtml(`<style type="text/css" class="` + styleMarker + `">` + "\n" + stylesheet + `</style>`)

	doc.Find(".tags, .deletedStatusContainer").Remove()

	doc.Find(".participants .vcard a, cite.sender.vcard a, .contributor.vcard a").Each(func(_ int, a *goquery.Selection) {
		number := telNumber(a)
		if number == "" || e.resolver == nil {
			return
		}
		m := e.resolver.GetAndRecordMatch(number)
		if !m.Found() {
			return
		}
		fn := a.Find(".fn").First()
		if fn.Length() == 0 {
			a.AppendHtml(`<span class="fn">` + html.EscapeString(m.Name) + `</span>`)
			return
		}
		current := strings.TrimSpace(fn.Text())
		if current == "" || phonebook.Normalize(current) == number {
			fn.SetText(m.Name)
		}
	})

	return nil
}

func (e *Entry) mergeHTML(other *Entry) error {
	if err := e.fix(); err != nil {
		return err
	}
	if err := other.fix(); err != nil {
		return err
	}

	utils.Log.Debugf("Merging entry %q with %q", e.Name, other.Name)

	body := e.doc.Find("body").First()
	if body.Length() == 0 {
		return fmt.Errorf("unable to get the body of %q", e.Name)
	}
	otherBody := other.doc.Find("body").First()
	if otherBody.Length() == 0 {
		return fmt.Errorf("unable to get the body of %q", other.Name)
	}

	content, err := otherBody.Html()
	if err != nil {
		return fmt.Errorf("failed to render the body of %q: %w", other.Name, err)
	}

	body.AppendHtml("<hr/>")
	body.AppendHtml(content)
	return nil
}

// attachMedia replaces the placeholder of a saved media entry with an
// element pointing at its saved copy.
func (e *Entry) attachMedia(media *Entry) error {
	if media.SavedPath == "" {
		return fmt.Errorf("%w: %q", ErrUnsavedMedia, media.Name)
	}
	if err := e.fix(); err != nil {
		return err
	}

	utils.Log.Debugf("Attaching media %q to %q", media.Name, e.Name)

	// Documents reference the exported file name, which can differ from
	// media.Name when the factory had to fill in a missing number.
	src := media.RelativePath()
	name := media.sourceName()
	keys := []string{name, strings.TrimSuffix(name, filepath.Ext(name))}

	var selectors []string
	var element string
	switch media.Format {
	case FormatJPG, FormatGIF:
		selectors = []string{`img[src=%s]`}
		element = imageElement(src)
	case FormatMP3, FormatAMR:
		if media.Format == FormatAMR {
			utils.Log.Warnf("%s playback in HTML5 isn't currently supported (%q)", media.Format, media.Name)
		}
		selectors = []string{`audio[src=%s]`, `a[href=%s]`}
		element = audioElement(src)
	case FormatMP4, Format3GP:
		selectors = []string{`a.video[href=%s]`, `video[src=%s]`, `a[href=%s]`}
		element = videoElement(src)
	case FormatVCF:
		selectors = []string{`a.vcard[href=%s]`, `a[href=%s]`}
		element = vcardElement(src)
	default:
		return fmt.Errorf("unknown media format %q of %q", media.Format, media.Name)
	}

	if placeholder := e.findPlaceholder(selectors, keys); placeholder != nil {
		placeholder.ReplaceWithHtml(element)
		return nil
	}

	// Older voicemail exports carry no audio element, only the duration of
	// the recording.
	if (media.Format == FormatMP3 || media.Format == FormatAMR) && (media.Action == ActionVoicemail || media.Action == ActionRecorded) {
		duration := e.doc.Find("abbr.duration:not([" + claimedAttr + "])").First()
		if duration.Length() > 0 {
			duration.SetAttr(claimedAttr, "true")
			duration.BeforeHtml(element)
			return nil
		}
	}

	return fmt.Errorf("%w for %q in %q", ErrMissingPlaceholder, media.Name, e.Name)
}

func (e *Entry) findPlaceholder(selectors, keys []string) *goquery.Selection {
	for _, key := range keys {
		for _, s := range selectors {
			if sel := e.doc.Find(fmt.Sprintf(s, cssString(key))).First(); sel.Length() > 0 {
				return sel
			}
		}
	}
	return nil
}

var cssEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func cssString(s string) string {
	return `"` + cssEscaper.Replace(s) + `"`
}

func imageElement(src string) string {
	return fmt.Sprintf(`<img src="%s" alt="Image MMS Attachment" width="50%%"/>`, html.EscapeString(src))
}

func audioElement(src string) string {
	s := html.EscapeString(src)
	return fmt.Sprintf(`<audio controls="controls" src="%s"><a rel="enclosure" href="%s">Audio</a></audio>`, s, s)
}

func videoElement(src string) string {
	s := html.EscapeString(src)
	return fmt.Sprintf(`<video controls="controls" src="%s" width="50%%"><a rel="enclosure" href="%s">Video</a></video>`, s, s)
}

func vcardElement(src string) string {
	return fmt.Sprintf(`<a class="vcard" href="%s">Contact card</a>`, html.EscapeString(src))
}

// OutputName is the file name of the saved conversation document.
func (e *Entry) OutputName() string {
	return fmt.Sprintf("%s %s.html", e.Timestamp.UTC().Format(timestampLayout), e.Key())
}

func (e *Entry) saveHTML(outputDir string) error {
	if err := e.fix(); err != nil {
		return err
	}

	dir := filepath.Join(outputDir, e.Key())
	outputPath := filepath.Join(dir, e.OutputName())

	utils.Log.Debugf("Saving entry %q to %q", e.Name, outputPath)

	var buf bytes.Buffer
	if err := xhtml.Render(&buf, e.doc.Get(0)); err != nil {
		return fmt.Errorf("failed to render %q: %w", e.Name, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return err
	}

	e.SavedPath = outputPath
	return nil
}
