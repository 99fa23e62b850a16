package entries

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sw33tLie/gvmerge/internal/utils"
	"golang.org/x/net/html"
)

type MessageType int

const (
	Received MessageType = 1
	Sent     MessageType = 2
)

// Me is the name the export gives to the account owner.
const Me = "Me"

// MessageMedia is one attachment of a message, read from the saved copy.
type MessageMedia struct {
	Name   string
	Format Format
	Data   []byte
}

// Message is one conversational turn of a merged document.
type Message struct {
	Type              MessageType
	Sender            string
	SenderName        string
	Target            string
	Participants      []string
	Timestamp         time.Time
	Text              string
	Media             []MessageMedia
	GroupConversation bool
	// Me is the number of the account owner when the document reveals it.
	Me string
}

func (m Message) TimestampMillis() int64 {
	return m.Timestamp.UnixMilli()
}

var dateLayouts = []string{
	"2006-01-02T15:04:05.000-07:00",
	time.RFC3339Nano,
	time.RFC3339,
}

func parseDocumentTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date %q", s)
}

// Messages extracts the text messages and call logs of a saved HTML entry.
func (e *Entry) Messages() ([]Message, error) {
	if e.Kind != KindHTML {
		return nil, fmt.Errorf("messages of %q: %w", e.Name, ErrUnsupported)
	}
	doc, err := e.Document()
	if err != nil {
		return nil, err
	}

	me := ""
	doc.Find(".message cite.sender").EachWithBreak(func(_ int, cite *goquery.Selection) bool {
		if strings.TrimSpace(cite.Find(".fn").First().Text()) == Me {
			me = telNumber(cite.Find("a").First())
			return false
		}
		return true
	})

	var out []Message
	var firstErr error

	// One pass keeps texts and calls in document order.
	doc.Find(".message, .haudio").Each(func(_ int, sel *goquery.Selection) {
		if firstErr != nil {
			return
		}
		var m Message
		var err error
		if sel.HasClass("haudio") {
			m, err = e.callLog(sel)
		} else {
			m, err = e.textMessage(sel, me)
		}
		if err != nil {
			firstErr = err
			return
		}
		out = append(out, m)
	})
	if firstErr != nil {
		return nil, firstErr
	}

	return out, nil
}

func (e *Entry) textMessage(msg *goquery.Selection, me string) (Message, error) {
	title, _ := msg.Find("abbr.dt").First().Attr("title")
	ts, err := parseDocumentTime(title)
	if err != nil {
		return Message{}, fmt.Errorf("message in %q: %w", e.Name, err)
	}

	cite := msg.Find("cite.sender").First()
	sender := telNumber(cite.Find("a").First())
	senderName := strings.TrimSpace(cite.Find(".fn").First().Text())

	m := Message{
		Type:              Received,
		Sender:            sender,
		SenderName:        senderName,
		Participants:      e.PhoneNumbers,
		Timestamp:         ts,
		Text:              quoteText(msg.Find("q").First()),
		GroupConversation: e.IsGroupConversation(),
		Me:                me,
	}
	if senderName == Me || (me != "" && sender == me) {
		m.Type = Sent
		m.SenderName = ""
	}
	if !m.GroupConversation && len(e.PhoneNumbers) > 0 {
		m.Target = e.PhoneNumbers[0]
	}

	msg.Find("img[src], audio[src], video[src], a.vcard[href]").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			src, _ = s.Attr("href")
		}
		if media, ok := e.readMedia(src); ok {
			m.Media = append(m.Media, media)
		}
	})

	return m, nil
}

func (e *Entry) callLog(call *goquery.Selection) (Message, error) {
	title, _ := call.Find("abbr.published").First().Attr("title")
	ts, err := parseDocumentTime(title)
	if err != nil {
		return Message{}, fmt.Errorf("call log in %q: %w", e.Name, err)
	}

	a := call.Find("a.tel").First()
	sender := telNumber(a)
	label := strings.TrimSpace(call.ChildrenFiltered(".fn").First().Text())
	if label == "" {
		label = "Call"
	}

	parts := []string{label}
	if d := strings.TrimSpace(call.Find("abbr.duration").First().Text()); d != "" {
		parts = append(parts, d)
	}
	if t := strings.TrimSpace(call.Find(".full-text").First().Text()); t != "" {
		parts = append(parts, t)
	}

	m := Message{
		Type:         Received,
		Sender:       sender,
		Participants: e.PhoneNumbers,
		Timestamp:    ts,
		Text:         strings.Join(parts, " "),
	}
	if strings.HasPrefix(strings.ToLower(label), "placed") {
		m.Type = Sent
	}
	if len(e.PhoneNumbers) > 0 {
		m.Target = e.PhoneNumbers[0]
	}
	if m.Sender == "" {
		m.Sender = m.Target
	}

	return m, nil
}

// quoteText renders the text of a message, turning line breaks into newlines.
func quoteText(q *goquery.Selection) string {
	if q.Length() == 0 {
		return ""
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := q.Get(0).FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return strings.TrimSpace(b.String())
}

// readMedia loads an attachment referenced from the saved document. Sources
// that were never replaced by a saved copy are skipped.
func (e *Entry) readMedia(src string) (MessageMedia, bool) {
	if src == "" || e.SavedPath == "" || !strings.HasPrefix(src, MediaDir+"/") {
		return MessageMedia{}, false
	}
	path := filepath.Join(filepath.Dir(e.SavedPath), filepath.FromSlash(src))
	data, err := os.ReadFile(path)
	if err != nil {
		utils.Log.Debugf("Skipping attachment %q of %q: %v", src, e.Name, err)
		return MessageMedia{}, false
	}
	name := filepath.Base(path)
	format, _ := ParseFormat(filepath.Ext(name))
	return MessageMedia{Name: name, Format: format, Data: data}, true
}
