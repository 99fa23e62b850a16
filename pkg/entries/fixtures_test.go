package entries

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sw33tLie/gvmerge/pkg/phonebook"
)

const docHead = `<?xml version="1.0" ?>
<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml"><head><meta http-equiv="Content-Type" content="text/html; charset=UTF-8"/>
<title>%s</title>
<style type="text/css">body { color: red; }</style>
</head><body>`

const docTail = `<div class="tags">Labels: <a rel="tag" href="http://www.google.com/voice#inbox">Inbox</a></div>
</body></html>`

func textMessageHTML(number, name, iso, text string) string {
	return fmt.Sprintf(`<div class="message"><abbr class="dt" title="%s">%s</abbr>:
<cite class="sender vcard"><a class="tel" href="tel:%s"><span class="fn">%s</span></a></cite>:
<q>%s</q>
</div>`, iso, iso, number, name, text)
}

func sentMessageHTML(me, iso, text string) string {
	return fmt.Sprintf(`<div class="message"><abbr class="dt" title="%s">%s</abbr>:
<cite class="sender vcard"><a class="tel" href="tel:%s"><abbr class="fn" title="">Me</abbr></a></cite>:
<q>%s</q>
</div>`, iso, iso, me, text)
}

func textDocument(title string, messages ...string) string {
	return fmt.Sprintf(docHead, title) + `<div class="hChatLog hfeed">` + strings.Join(messages, "\n") + `</div>` + docTail
}

func groupDocument(participants [][2]string, messages ...string) string {
	var cites []string
	for _, p := range participants {
		cites = append(cites, fmt.Sprintf(`<cite class="sender vcard"><a class="tel" href="tel:%s"><span class="fn">%s</span></a></cite>`, p[0], p[1]))
	}
	return fmt.Sprintf(docHead, "Group Conversation") +
		`<div class="participants">Group conversation with:
` + strings.Join(cites, ", ") + `</div>
<div class="hChatLog hfeed">` + strings.Join(messages, "\n") + `</div>` + docTail
}

func callDocument(label, number, name, iso, duration string) string {
	return fmt.Sprintf(docHead, label) + fmt.Sprintf(`<div class="haudio"><span class="fn">%s</span>
<div class="contributor vcard">%s
<a class="tel" href="tel:%s"><span class="fn">%s</span></a></div>
<abbr class="published" title="%s">%s</abbr>
<br/>
<abbr class="duration" title="PT1M2S">%s</abbr>
</div>`, label, label, number, name, iso, iso, duration) + docTail
}

func voicemailDocument(number, iso, transcript, audio string) string {
	return fmt.Sprintf(docHead, "Voicemail") + fmt.Sprintf(`<div class="haudio"><span class="fn">Voicemail from</span>
<div class="contributor vcard">Voicemail from
<a class="tel" href="tel:%s"><span class="fn"></span></a></div>
<abbr class="published" title="%s">%s</abbr>
<span class="description"><span class="full-text">%s</span></span>
<br/>
<abbr class="duration" title="PT25S">(00:00:25)</abbr>
<audio controls="controls" src="%s"><a rel="enclosure" href="%s">Audio</a></audio>
</div>`, number, iso, iso, transcript, audio, audio) + docTail
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testPhoneBook(t *testing.T, records ...phonebook.Record) *phonebook.PhoneBook {
	t.Helper()
	pb, err := phonebook.NewFromRecords(records, phonebook.Options{Strategy: phonebook.Suffix, SuffixLength: 8})
	if err != nil {
		t.Fatalf("NewFromRecords: %v", err)
	}
	return pb
}
