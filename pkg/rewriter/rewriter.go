// Package rewriter swaps locally-encoded image payloads for their hosted URLs.
package rewriter

import (
	"strings"

	"golang.org/x/net/html"
)

// Rewrite returns content with the src of every <img> whose value is a key of
// mapping replaced by the mapped URL. Everything else is copied byte for byte,
// so unmapped payloads stay exactly where they were.
func Rewrite(content string, mapping map[string]string) string {
	if len(mapping) == 0 || content == "" {
		return content
	}

	z := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	b.Grow(len(content))

	for {
		tt := z.Next()
		// TagName and TagAttr lowercase and unescape the buffer in place.
		raw := string(z.Raw())

		switch tt {
		case html.ErrorToken:
			b.WriteString(raw)
			return b.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			b.WriteString(rewriteTag(z, tt, raw, mapping))
		default:
			b.WriteString(raw)
		}
	}
}

func rewriteTag(z *html.Tokenizer, tt html.TokenType, raw string, mapping map[string]string) string {
	name, hasAttr := z.TagName()
	if string(name) != "img" || !hasAttr {
		return raw
	}

	var attrs []html.Attribute
	src, hosted := "", ""
	found := false
	for more := true; more; {
		var key, val []byte
		key, val, more = z.TagAttr()
		attr := html.Attribute{Key: string(key), Val: string(val)}
		if attr.Key == "src" && !found {
			found = true
			if url, ok := mapping[attr.Val]; ok {
				src, hosted = attr.Val, url
				attr.Val = url
			}
		}
		attrs = append(attrs, attr)
	}

	if hosted == "" {
		return raw
	}

	if i := srcValueIndex(raw, src); i >= 0 {
		return raw[:i] + html.EscapeString(hosted) + raw[i+len(src):]
	}

	// The payload was entity-encoded in the source; re-serialise just this tag.
	token := html.Token{Type: tt, Data: "img", Attr: attrs}
	return token.String()
}

// srcValueIndex returns the offset of src written literally as the value of a
// src attribute in raw, or -1 when it does not appear verbatim there.
func srcValueIndex(raw, src string) int {
	for _, q := range []string{`"`, `'`, ""} {
		needle := q + src + q
		for off := 0; off < len(raw); {
			i := strings.Index(raw[off:], needle)
			if i < 0 {
				break
			}
			i += off
			end := i + len(needle)
			if isSrcAssign(raw[:i]) && (q != "" || (end < len(raw) && isUnquotedEnd(raw[end]))) {
				return i + len(q)
			}
			off = i + 1
		}
	}
	return -1
}

// isSrcAssign reports whether before ends with `src=`, allowing whitespace
// around the equals sign.
func isSrcAssign(before string) bool {
	before = strings.TrimRight(before, " \t\n\r\f")
	if !strings.HasSuffix(before, "=") {
		return false
	}
	before = strings.TrimRight(before[:len(before)-1], " \t\n\r\f")
	n := len(before)
	if n < 4 || !strings.EqualFold(before[n-3:], "src") {
		return false
	}
	return isSpace(before[n-4]) || before[n-4] == '/'
}

func isUnquotedEnd(c byte) bool {
	return isSpace(c) || c == '/' || c == '>'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
