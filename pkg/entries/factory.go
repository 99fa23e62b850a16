package entries

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sw33tLie/gvmerge/internal/utils"
	"github.com/sw33tLie/gvmerge/pkg/phonebook"
)

const (
	separator         = " - "
	groupConversation = "Group Conversation"
)

// FactoryOptions controls how forgiving the factory is.
type FactoryOptions struct {
	// TolerateMissingParticipants assigns UnknownNumber to group conversations
	// whose documents list no participants instead of failing.
	TolerateMissingParticipants bool
}

// Factory classifies exported files into entries.
type Factory struct {
	resolver Resolver
	opts     FactoryOptions
}

func NewFactory(resolver Resolver, opts FactoryOptions) *Factory {
	return &Factory{resolver: resolver, opts: opts}
}

// Parse classifies the file at path.
func (f *Factory) Parse(path string) (*Entry, error) {
	name := strings.TrimSpace(filepath.Base(path))

	utils.Log.Debugf("Processing %s", name)

	ext := filepath.Ext(name)
	format, ok := ParseFormat(ext)
	if !ok {
		return nil, &ClassificationError{Name: name, Err: fmt.Errorf("%w: %q", ErrUnknownFormat, ext)}
	}

	// Exports sometimes drop the phone number entirely ("- Text - ...").
	if strings.HasPrefix(name, "-") {
		utils.Log.Warnf("Missing phone number in %q, using %q", name, UnknownNumber)
		name = UnknownNumber + " " + name
	}

	components := strings.Split(strings.TrimSuffix(name, ext), separator)
	for i := range components {
		components[i] = strings.TrimSpace(components[i])
	}

	var (
		action       Action
		phoneNumbers []string
		timestampStr string
		doc          *goquery.Document
	)

	if strings.HasPrefix(name, groupConversation) {
		if len(components) != 2 {
			return nil, &ClassificationError{Name: name, Err: ErrUnsupportedName}
		}

		action = ActionGroupConversation
		timestampStr = components[1]

		// Group conversation names carry no phone numbers; they come from the
		// participants of the conversation document.
		companion := companionPath(path, name, format)
		var err error
		doc, err = loadDocument(companion)
		if err != nil {
			return nil, &ParticipantResolutionError{Path: companion, Err: err}
		}
		phoneNumbers = queryPhoneNumbers(doc)
		if len(phoneNumbers) == 0 {
			if !f.opts.TolerateMissingParticipants {
				return nil, &ParticipantResolutionError{Path: companion, Err: ErrMissingParticipants}
			}
			utils.Log.Warnf("No participants found in %q, using %q", companion, UnknownNumber)
			phoneNumbers = []string{UnknownNumber}
		}
		if format != FormatHTML || companion != path {
			doc = nil
		}
	} else {
		switch len(components) {
		case 3:
			action, ok = ParseAction(components[1])
			if !ok {
				return nil, &ClassificationError{Name: name, Err: fmt.Errorf("%w: %q", ErrUnknownAction, components[1])}
			}
			timestampStr = components[2]
		case 2:
			utils.Log.Warnf("Missing action in %q, assuming %s", name, ActionPlaced)
			action = ActionPlaced
			timestampStr = components[1]
		default:
			return nil, &ClassificationError{Name: name, Err: ErrUnsupportedName}
		}

		phoneNumbers = []string{phoneNumberKey(components[0])}
	}

	timestamp, err := ParseTimestamp(timestampStr)
	if err != nil {
		return nil, &ClassificationError{Name: name, Err: err}
	}

	entry, err := newEntry(action, format, name, phoneNumbers, timestamp, path, f.resolver)
	if err != nil {
		return nil, &ClassificationError{Name: name, Err: err}
	}
	entry.doc = doc

	utils.Log.Debugf("Parsed entry: %s", entry)
	return entry, nil
}

// phoneNumberKey normalizes the phone number component of a file name. Some
// exports use the contact name instead, which is kept as is.
func phoneNumberKey(component string) string {
	if component == "" {
		return UnknownNumber
	}
	if n := phonebook.Normalize(component); n != "" {
		return n
	}
	return component
}

// companionPath locates the HTML document that lists the participants of a
// group conversation file. Media names carry a "Z-<n>-<m>" counter after the
// timestamp which the document name lacks.
func companionPath(path, name string, format Format) string {
	if format == FormatHTML {
		return path
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if idx := strings.Index(base, "Z-"); idx >= 0 {
		base = base[:idx+1]
	}
	return filepath.Join(filepath.Dir(path), base+".html")
}

var timestampRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}_\d{2}_\d{2})(\.\d+)?(Z|[+-]\d{2}_?\d{2})?`)

// ParseTimestamp parses the "YYYY-MM-DDTHH_mm_ssZ" timestamps of export file
// names, ignoring anything that follows them.
func ParseTimestamp(s string) (time.Time, error) {
	m := timestampRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrTimestamp, s)
	}

	t, err := time.ParseInLocation("2006-01-02T15_04_05", m[1], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %s", ErrTimestamp, s, err)
	}

	if m[2] != "" {
		frac, err := strconv.ParseFloat("0"+m[2], 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %s", ErrTimestamp, s, err)
		}
		t = t.Add(time.Duration(frac * float64(time.Second)))
	}

	if zone := m[3]; zone != "" && zone != "Z" {
		digits := strings.ReplaceAll(zone[1:], "_", "")
		hours, _ := strconv.Atoi(digits[:2])
		minutes, _ := strconv.Atoi(digits[2:])
		offset := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
		if zone[0] == '+' {
			offset = -offset
		}
		t = t.Add(offset)
	}

	return t.UTC(), nil
}
