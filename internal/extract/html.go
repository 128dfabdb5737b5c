package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var (
	shortcodeRe = regexp.MustCompile(`\[(/?)([a-zA-Z][a-zA-Z0-9_-]*)([^\]]*)\]`)
	attrIDRe    = regexp.MustCompile(`\bids?\s*=\s*["']?([0-9, ]+)`)
	hashtagRe   = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_]{2,})`)
	mentionRe   = regexp.MustCompile(`(?:^|\s)@([a-zA-Z0-9_.-]{2,})`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// StripHTML returns the visible text of s in NFC form: tags, script and
// style bodies and shortcode markers removed, whitespace collapsed.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	skip := 0
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way keep what was read.
			return collapse(shortcodeRe.ReplaceAllString(b.String(), " "))
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawText(name) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawText(name) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRawText(tag []byte) bool {
	switch string(tag) {
	case "script", "style":
		return true
	}
	return false
}

func collapse(s string) string {
	return norm.NFC.String(strings.TrimSpace(spaceRe.ReplaceAllString(s, " ")))
}

// tag is one start tag with its attributes.
type tag struct {
	name  string
	attrs map[string]string
}

// scanTags walks the start tags of s.
func scanTags(s string, fn func(tag)) {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, more := z.TagName()
		t := tag{name: string(name), attrs: map[string]string{}}
		for more {
			var k, v []byte
			k, v, more = z.TagAttr()
			t.attrs[string(k)] = string(v)
		}
		fn(t)
	}
}
