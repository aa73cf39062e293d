package fetch

import (
	"strings"

	"golang.org/x/net/html"
)

// sparseTextThreshold is the visible-text size below which a fetched
// document is probably a script shell or an interstitial rather than a
// product page.
const sparseTextThreshold = 200

// sniffTitle returns the first <title> text of the document, or "".
func sniffTitle(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "title" {
				if z.Next() == html.TextToken {
					return strings.TrimSpace(string(z.Text()))
				}
				return ""
			}
		}
	}
}

// visibleTextLength counts the bytes of rendered body text, skipping
// script, style and noscript content. Diagnostic only; the extraction
// pipeline does its own text walk.
func visibleTextLength(markup string) int {
	z := html.NewTokenizer(strings.NewReader(markup))
	inBody := false
	skipDepth := 0
	total := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return total
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "body":
				inBody = true
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				total += len(strings.TrimSpace(string(z.Text())))
			}
		}
	}
}
