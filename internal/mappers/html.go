package mappers

import (
	"strings"

	"golang.org/x/net/html"
)

// StripTags removes markup and comments and keeps the text verbatim.
// Entities are not decoded.
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		}
	}
}
