// Package entries classifies the files of a Google Voice export and merges
// them into per-conversation documents.
package entries

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sw33tLie/gvmerge/internal/utils"
	"github.com/sw33tLie/gvmerge/pkg/phonebook"
)

type Kind string

const (
	KindHTML  Kind = "HTML"
	KindMedia Kind = "Media"
)

type Action string

const (
	ActionReceived          Action = "Received"
	ActionPlaced            Action = "Placed"
	ActionMissed            Action = "Missed"
	ActionText              Action = "Text"
	ActionVoicemail         Action = "Voicemail"
	ActionRecorded          Action = "Recorded"
	ActionGroupConversation Action = "Group Conversation"
	ActionUnknown           Action = "Unknown"
)

var actions = map[string]Action{
	string(ActionReceived):          ActionReceived,
	string(ActionPlaced):            ActionPlaced,
	string(ActionMissed):            ActionMissed,
	string(ActionText):              ActionText,
	string(ActionVoicemail):         ActionVoicemail,
	string(ActionRecorded):          ActionRecorded,
	string(ActionGroupConversation): ActionGroupConversation,
}

func ParseAction(s string) (Action, bool) {
	a, ok := actions[strings.TrimSpace(s)]
	return a, ok
}

// IsCallLog reports whether the action describes a phone call without content.
func (a Action) IsCallLog() bool {
	return a == ActionReceived || a == ActionPlaced || a == ActionMissed
}

type Format string

const (
	FormatHTML Format = "html"
	FormatJPG  Format = "jpg"
	FormatGIF  Format = "gif"
	FormatMP3  Format = "mp3"
	FormatMP4  Format = "mp4"
	Format3GP  Format = "3gp"
	FormatAMR  Format = "amr"
	FormatVCF  Format = "vcf"
)

var formats = map[string]Format{
	".html": FormatHTML,
	".jpg":  FormatJPG,
	".gif":  FormatGIF,
	".mp3":  FormatMP3,
	".mp4":  FormatMP4,
	".3gp":  Format3GP,
	".amr":  FormatAMR,
	".vcf":  FormatVCF,
}

// ParseFormat maps a file extension (with the leading dot) to a format.
func ParseFormat(ext string) (Format, bool) {
	f, ok := formats[strings.ToLower(ext)]
	return f, ok
}

func (f Format) Kind() Kind {
	if f == FormatHTML {
		return KindHTML
	}
	return KindMedia
}

// UnknownNumber stands in for a phone number the export did not record.
const UnknownNumber = "Unknown"

// Resolver turns phone numbers into contact names while recording the match.
type Resolver interface {
	GetAndRecordMatch(phoneNumber string) phonebook.Match
}

// Entry is one exported file. HTML entries own a lazily parsed document and
// absorb other entries through Merge; media entries are only ever merge
// sources.
type Entry struct {
	Kind         Kind
	Action       Action
	Format       Format
	Name         string
	PhoneNumbers []string
	Timestamp    time.Time
	SourcePath   string
	SavedPath    string

	// LastTimestamp is the latest timestamp folded into this entry.
	LastTimestamp time.Time
	// Media lists the media entries attached to this document.
	Media []*Entry
	// Merged lists the names of the HTML entries appended to this document.
	Merged []string

	doc      *goquery.Document
	resolver Resolver
}

func newEntry(action Action, format Format, name string, phoneNumbers []string, timestamp time.Time, sourcePath string, resolver Resolver) (*Entry, error) {
	kind := format.Kind()
	if kind == KindHTML && action != ActionGroupConversation && len(phoneNumbers) == 0 {
		return nil, fmt.Errorf("unexpected empty phone numbers for %q", name)
	}

	return &Entry{
		Kind:          kind,
		Action:        action,
		Format:        format,
		Name:          name,
		PhoneNumbers:  utils.SortedUnique(phoneNumbers),
		Timestamp:     timestamp,
		LastTimestamp: timestamp,
		SourcePath:    sourcePath,
		resolver:      resolver,
	}, nil
}

// Key identifies the conversation the entry belongs to.
func (e *Entry) Key() string {
	return Key(e.PhoneNumbers)
}

// Key joins sorted phone numbers into a conversation key.
func Key(phoneNumbers []string) string {
	return strings.Join(phoneNumbers, ",")
}

func (e *Entry) IsMedia() bool { return e.Kind == KindMedia }

func (e *Entry) IsGroupConversation() bool {
	return e.Action == ActionGroupConversation
}

// Load parses the HTML document of the entry if it was not parsed yet.
func (e *Entry) Load() error {
	switch e.Kind {
	case KindHTML:
		return e.ensureLoaded()
	case KindMedia:
		return fmt.Errorf("load %q: %w", e.Name, ErrUnsupported)
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}
}

// Merge folds other into e. Only HTML entries can absorb other entries.
func (e *Entry) Merge(other *Entry) error {
	if e.Kind != KindHTML {
		return fmt.Errorf("merge %q into %q: %w", other.Name, e.Name, ErrUnsupported)
	}

	switch other.Kind {
	case KindHTML:
		if err := e.mergeHTML(other); err != nil {
			return err
		}
		e.Merged = append(e.Merged, other.Name)
	case KindMedia:
		if err := e.attachMedia(other); err != nil {
			return err
		}
		e.Media = append(e.Media, other)
	default:
		return fmt.Errorf("unknown entry kind %q", other.Kind)
	}

	if other.LastTimestamp.After(e.LastTimestamp) {
		e.LastTimestamp = other.LastTimestamp
	}
	return nil
}

// Save persists the entry below outputDir and records where it went.
func (e *Entry) Save(outputDir string) error {
	switch e.Kind {
	case KindHTML:
		return e.saveHTML(outputDir)
	case KindMedia:
		return e.saveMedia(outputDir)
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s %s %s [%s] %s", e.Kind, e.Action, e.Format, e.Key(), e.Timestamp.Format(time.RFC3339))
}
