package generators

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/sw33tLie/gvmerge/internal/utils"
	"github.com/sw33tLie/gvmerge/pkg/entries"
)

const SMSBackupName = "sms.xml"

const (
	null = "null"

	mmsContentType = "application/vnd.wap.multipart.related"

	mmsSent     = 128
	mmsReceived = 132
	boxInbox    = 1
	boxSent     = 2

	addrFrom   = 137
	addrTo     = 151
	charsetUTF = 106
)

const smsBackupHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

type smses struct {
	XMLName  xml.Name `xml:"smses"`
	Count    int      `xml:"count,attr"`
	Messages []interface{}
}

type sms struct {
	XMLName       xml.Name `xml:"sms"`
	Address       string   `xml:"address,attr"`
	Body          string   `xml:"body,attr"`
	Date          int64    `xml:"date,attr"`
	Locked        int      `xml:"locked,attr"`
	Protocol      int      `xml:"protocol,attr"`
	Read          int      `xml:"read,attr"`
	ScToa         string   `xml:"sc_toa,attr"`
	ServiceCenter string   `xml:"service_center,attr"`
	Status        int      `xml:"status,attr"`
	Subject       string   `xml:"subject,attr"`
	Toa           string   `xml:"toa,attr"`
	Type          int      `xml:"type,attr"`
	ContactName   string   `xml:"contact_name,attr,omitempty"`
}

type mms struct {
	XMLName     xml.Name `xml:"mms"`
	Address     string   `xml:"address,attr"`
	CtT         string   `xml:"ct_t,attr"`
	Date        int64    `xml:"date,attr"`
	MType       int      `xml:"m_type,attr"`
	MsgBox      int      `xml:"msg_box,attr"`
	Read        int      `xml:"read,attr"`
	Rr          int      `xml:"rr,attr"`
	Seen        int      `xml:"seen,attr"`
	SubID       int      `xml:"sub_id,attr"`
	TextOnly    int      `xml:"text_only,attr"`
	ContactName string   `xml:"contact_name,attr,omitempty"`
	Parts       []part   `xml:"parts>part"`
	Addrs       []addr   `xml:"addrs>addr"`
}

type part struct {
	Seq   int    `xml:"seq,attr"`
	Ct    string `xml:"ct,attr"`
	Name  string `xml:"name,attr,omitempty"`
	Chset string `xml:"chset,attr,omitempty"`
	Cd    string `xml:"cd,attr,omitempty"`
	Fn    string `xml:"fn,attr,omitempty"`
	Cid   string `xml:"cid,attr,omitempty"`
	Cl    string `xml:"cl,attr,omitempty"`
	CttS  string `xml:"ctt_s,attr,omitempty"`
	CttT  string `xml:"ctt_t,attr,omitempty"`
	Text  string `xml:"text,attr"`
	Data  string `xml:"data,attr,omitempty"`
}

type addr struct {
	Address string `xml:"address,attr"`
	Type    int    `xml:"type,attr"`
	Charset int    `xml:"charset,attr"`
}

// SMSBackup writes the messages of every merged conversation in the format
// read by SMS Backup & Restore.
type SMSBackup struct {
	outputDir string
	phoneBook Lookup
}

func NewSMSBackup(outputDir string, phoneBook Lookup) *SMSBackup {
	return &SMSBackup{outputDir: outputDir, phoneBook: phoneBook}
}

func (g *SMSBackup) Name() string { return "sms backup" }

func (g *SMSBackup) Path() string {
	return filepath.Join(g.outputDir, SMSBackupName)
}

func (g *SMSBackup) Generate(ctx context.Context, merged []*entries.Entry) error {
	doc := smses{}
	for _, e := range merged {
		if err := ctx.Err(); err != nil {
			return err
		}
		utils.Log.Debugf("Saving entry %q to the SMS backup export", e.Name)

		if e.Kind != entries.KindHTML {
			return fmt.Errorf("unable to export %q: %w", e.Name, entries.ErrUnsupported)
		}
		msgs, err := e.Messages()
		if err != nil {
			return err
		}
		for _, m := range msgs {
			doc.Messages = append(doc.Messages, g.element(m))
		}
	}
	doc.Count = len(doc.Messages)

	out, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", SMSBackupName, err)
	}

	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(g.Path(), append([]byte(smsBackupHeader), out...), 0o644)
}

func (g *SMSBackup) element(m entries.Message) interface{} {
	if m.GroupConversation || len(m.Media) > 0 {
		return g.mms(m)
	}
	return g.sms(m)
}

// address is the other party of a one-to-one message.
func address(m entries.Message) string {
	if m.Target != "" {
		return m.Target
	}
	return m.Sender
}

func (g *SMSBackup) contactName(m entries.Message, number string) string {
	if m.Type == entries.Received && m.SenderName != "" && m.SenderName != m.Sender {
		return m.SenderName
	}
	return lookup(g.phoneBook, number).Name
}

func (g *SMSBackup) sms(m entries.Message) sms {
	a := address(m)
	return sms{
		Address:       a,
		Body:          m.Text,
		Date:          m.TimestampMillis(),
		Locked:        0,
		Protocol:      0,
		Read:          1,
		ScToa:         null,
		ServiceCenter: null,
		Status:        1,
		Subject:       null,
		Toa:           null,
		Type:          int(m.Type),
		ContactName:   g.contactName(m, a),
	}
}

func (g *SMSBackup) mms(m entries.Message) mms {
	sent := m.Type == entries.Sent

	participants := m.Participants
	if !m.GroupConversation {
		participants = []string{address(m)}
	}

	x := mms{
		Address:  strings.Join(participants, "~"),
		CtT:      mmsContentType,
		Date:     m.TimestampMillis(),
		MType:    mmsReceived,
		MsgBox:   boxInbox,
		Read:     1,
		Rr:       129,
		Seen:     1,
		SubID:    1,
		TextOnly: 1,
	}
	if sent {
		x.MType = mmsSent
		x.MsgBox = boxSent
	}
	if !m.GroupConversation {
		x.ContactName = g.contactName(m, participants[0])
	} else if m.Type == entries.Received && m.SenderName != "" {
		x.ContactName = m.SenderName
	}

	seq := 0
	x.Parts = append(x.Parts, part{Seq: seq, Ct: "text/plain", Text: m.Text})
	for _, media := range m.Media {
		seq++
		x.Parts = append(x.Parts, part{
			Seq:   seq,
			Ct:    contentType(media),
			Name:  media.Name,
			Chset: null,
			Cd:    null,
			Fn:    null,
			Cid:   "<" + media.Name + ">",
			Cl:    media.Name,
			CttS:  null,
			CttT:  null,
			Text:  null,
			Data:  base64.StdEncoding.EncodeToString(media.Data),
		})
	}
	if len(m.Media) > 0 {
		x.TextOnly = 0
	}

	from := m.Sender
	if sent && m.Me != "" {
		from = m.Me
		x.Addrs = append(x.Addrs, addr{Address: m.Me, Type: addrFrom, Charset: charsetUTF})
	}
	for _, p := range participants {
		t := addrTo
		if p == from {
			t = addrFrom
		}
		x.Addrs = append(x.Addrs, addr{Address: p, Type: t, Charset: charsetUTF})
	}

	return x
}

var formatMIME = map[entries.Format]string{
	entries.FormatJPG: "image/jpeg",
	entries.FormatGIF: "image/gif",
	entries.FormatMP3: "audio/mpeg",
	entries.FormatMP4: "video/mp4",
	entries.Format3GP: "video/3gpp",
	entries.FormatAMR: "audio/amr",
	entries.FormatVCF: "text/x-vcard",
}

// contentType sniffs the MIME type of an attachment, falling back to the one
// implied by its extension.
func contentType(media entries.MessageMedia) string {
	kind, err := filetype.Match(media.Data)
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if t, ok := formatMIME[media.Format]; ok {
		return t
	}
	return "application/octet-stream"
}
