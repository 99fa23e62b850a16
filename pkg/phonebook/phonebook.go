// Package phonebook resolves phone numbers found in a Google Voice export to
// contact names loaded from a vCard address book.
package phonebook

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emersion/go-vcard"
	"github.com/sw33tLie/gvmerge/internal/utils"
)

type Strategy string

const (
	Exact  Strategy = "exact"
	Suffix Strategy = "suffix"
)

// DefaultSuffixLength is the suffix length suggested to users of the Suffix
// strategy: enough digits to cover a US number without its country code.
const DefaultSuffixLength = 10

// Options selects the matching strategy. SuffixLength is the shortest suffix
// the Suffix strategy accepts as a match.
type Options struct {
	Strategy     Strategy
	SuffixLength int
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = Exact
	}
	return o
}

func (o Options) String() string {
	if o.Strategy == Suffix {
		return fmt.Sprintf("%s (with suffix %d)", o.Strategy, o.SuffixLength)
	}
	return string(o.Strategy)
}

// Record is a single (name, number) pair loaded from the contact source.
type Record struct {
	RawNumber string
	Number    string
	Name      string
}

// Match is the result of a lookup. An empty Name means the number is unknown.
type Match struct {
	Name   string
	Number string
	Length int
}

func (m Match) Found() bool { return m.Name != "" }

type suffixEntry struct {
	name   string
	number string
}

type PhoneBook struct {
	opts    Options
	records []Record
	exact   map[string]string
	suffix  map[string]suffixEntry
	cache   map[string]Match
	stats   *Stats
}

var ErrContactsNotFound = errors.New("contacts file does not exist")

// New loads the phone book from a VCF file. An empty path yields an empty
// phone book that never matches.
func New(contactsPath string, opts Options) (*PhoneBook, error) {
	if contactsPath == "" {
		return NewFromRecords(nil, opts)
	}

	f, err := os.Open(contactsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrContactsNotFound, contactsPath)
		}
		return nil, err
	}
	defer f.Close()

	records, err := ReadVCF(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse contacts %s: %w", contactsPath, err)
	}

	pb, err := NewFromRecords(records, opts)
	if err != nil {
		return nil, err
	}
	utils.Log.Infof("Loaded %d phone numbers from %s using %s phone number matching strategy", len(records), contactsPath, pb.opts)
	return pb, nil
}

// ReadVCF reads every card in r. Cards without a formatted name or without a
// phone number are skipped with a warning.
func ReadVCF(r io.Reader) ([]Record, error) {
	dec := vcard.NewDecoder(r)

	var records []Record
	for {
		card, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		fn := card.PreferredValue(vcard.FieldFormattedName)
		if strings.TrimSpace(fn) == "" {
			utils.Log.Warnf("Unable to find the full name (FN) property for vCard with numbers %v", card.Values(vcard.FieldTelephone))
			continue
		}
		name := strings.Join(strings.Fields(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(fn)), " ")

		tels := card.Values(vcard.FieldTelephone)
		if len(tels) == 0 {
			utils.Log.Warnf("Unable to find the phone number (TEL) property for vCard %q", name)
			continue
		}

		for _, tel := range tels {
			number := Normalize(strings.TrimPrefix(strings.TrimSpace(tel), "tel:"))
			if number == "" {
				utils.Log.Warnf("Skipping empty phone number %q of %q", tel, name)
				continue
			}
			records = append(records, Record{RawNumber: tel, Number: number, Name: name})
		}
	}
	return records, nil
}

// NewFromRecords builds the lookup tables from records. Later records win
// over earlier ones on collisions.
func NewFromRecords(records []Record, opts Options) (*PhoneBook, error) {
	opts = opts.withDefaults()

	switch opts.Strategy {
	case Exact:
	case Suffix:
		if opts.SuffixLength <= 0 {
			return nil, fmt.Errorf("invalid suffix length of %d for suffix-based matching strategy", opts.SuffixLength)
		}
	default:
		return nil, fmt.Errorf("unknown matching strategy: %q", opts.Strategy)
	}

	pb := &PhoneBook{
		opts:   opts,
		exact:  make(map[string]string),
		suffix: make(map[string]suffixEntry),
		cache:  make(map[string]Match),
		stats:  newStats(),
	}

	for _, r := range records {
		r.Number = Normalize(r.Number)
		if r.Number == "" {
			continue
		}
		pb.records = append(pb.records, r)

		if existing, ok := pb.exact[r.Number]; ok && existing != r.Name {
			utils.Log.Warnf("Phone number %s is shared by %q and %q; using %q", r.Number, existing, r.Name, r.Name)
		}
		pb.exact[r.Number] = r.Name

		if opts.Strategy != Suffix {
			continue
		}

		// Every suffix from SuffixLength up to the full number points back at
		// the contact, so numbers missing a country or area code still match.
		n := len(r.Number)
		for l := opts.SuffixLength; l <= n; l++ {
			s := r.Number[n-l:]
			if existing, ok := pb.suffix[s]; ok && existing.number != r.Number {
				utils.Log.Warnf("Suffix %s of %s (%q) collides with %s (%q); using %q", s, r.Number, r.Name, existing.number, existing.name, r.Name)
			}
			pb.suffix[s] = suffixEntry{name: r.Name, number: r.Number}
		}
	}

	return pb, nil
}

func (p *PhoneBook) Options() Options { return p.opts }

func (p *PhoneBook) Len() int { return len(p.records) }

// Get resolves a phone number without recording statistics.
func (p *PhoneBook) Get(phoneNumber string) Match {
	number := Normalize(phoneNumber)
	if number == "" {
		return Match{}
	}

	if name, ok := p.exact[number]; ok {
		return Match{Name: name, Number: number, Length: len(number)}
	}

	if p.opts.Strategy != Suffix {
		return Match{}
	}

	if m, ok := p.cache[phoneNumber]; ok {
		return m
	}

	var m Match
	// Longest suffix first: the first hit is the most specific one. The
	// reported length is the configured floor, not the length of the hit.
	for i := 0; i+p.opts.SuffixLength <= len(number); i++ {
		s := number[i:]
		e, ok := p.suffix[s]
		if !ok {
			continue
		}
		utils.Log.Debugf("Found suffix-based match %s for phone number %s", s, number)
		m = Match{Name: e.name, Number: e.number, Length: p.opts.SuffixLength}
		break
	}

	p.cache[phoneNumber] = m
	return m
}

// GetAndRecordMatch resolves a phone number and records the outcome in the
// match statistics. Use it wherever the number ends up in merged output.
func (p *PhoneBook) GetAndRecordMatch(phoneNumber string) Match {
	m := p.Get(phoneNumber)
	if m.Found() {
		p.stats.recordMatch(m.Number, Normalize(phoneNumber), m.Length)
	} else if n := Normalize(phoneNumber); n != "" {
		p.stats.recordUnknown(n)
	}
	return m
}

func (p *PhoneBook) Stats() *Stats { return p.stats }
