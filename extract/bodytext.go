package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// maxBodyTextValue discards absurd amounts (order numbers, timestamps)
// the body-text patterns inevitably pick up.
const maxBodyTextValue = 1_000_000

// amount is the shared numeric core: grouped thousands with an optional
// decimal fragment, or a plain number.
const amount = `(\d{1,3}(?:\.\d{3})*(?:,\d{1,2})?|\d+(?:[.,]\d{1,2})?)`

// bodyPricePatterns cover the written forms a regional shop page uses:
// amount before/after the currency symbol, amount before/after the
// currency code, and the trailing-dash shorthand.
var bodyPricePatterns = []*regexp.Regexp{
	regexp.MustCompile(amount + `\s*€`),
	regexp.MustCompile(`€\s*` + amount),
	regexp.MustCompile(`(?i)` + amount + `\s*EUR\b`),
	regexp.MustCompile(`(?i)\bEUR\s*` + amount),
	regexp.MustCompile(`\b(\d{1,3}(?:\.\d{3})*|\d+),-`),
}

// collectBodyText scans the visible body text for written price forms.
// Every match carries its surrounding text as context for tax-keyword
// scoring later.
func (p *pipeline) collectBodyText() {
	text := visibleText(p.scopedHTML)
	if text == "" {
		return
	}
	for _, pat := range bodyPricePatterns {
		for _, loc := range pat.FindAllStringIndex(text, -1) {
			// The full match normalizes cleanly for every form: currency
			// marks are stripped as non-number characters, and the ",-"
			// shorthand must stay attached to its digits.
			v, ok := NormalizeNumber(text[loc[0]:loc[1]])
			if !ok || v > maxBodyTextValue {
				continue
			}
			p.push(v, "regex:body", contextAround(text, loc[0], loc[1], p.cfg.ContextRadius))
		}
	}
}

// contextAround slices radius characters on both sides of a match,
// clamped to rune boundaries.
func contextAround(text string, start, end, radius int) string {
	from := start - radius
	if from < 0 {
		from = 0
	}
	to := end + radius
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return text[from:to]
}

// visibleText extracts the text content of rawHTML, skipping script,
// style and noscript subtrees. Text inside <body> is preferred; markup
// fragments without a body (a scoped subtree) fall back to all text.
func visibleText(rawHTML string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	var all, body strings.Builder
	inBody := false
	sawBody := false
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if sawBody {
				return body.String()
			}
			return all.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "body":
				inBody = true
				sawBody = true
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "body":
				inBody = false
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			all.WriteString(text)
			all.WriteByte(' ')
			if inBody {
				body.WriteString(text)
				body.WriteByte(' ')
			}
		}
	}
}
