package scanner

import (
	"strings"

	"golang.org/x/net/html"
)

// Title extracts the text of the first <title> element.
// Hosts that cannot ask a browser for the tab title use it to label tabs.
func Title(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	inTitle := false
	var sb strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if inTitle && string(name) == "title" {
				return strings.Join(strings.Fields(sb.String()), " ")
			}
		case html.TextToken:
			if inTitle {
				sb.Write(z.Text())
			}
		}
	}
}
