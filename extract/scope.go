package extract

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// scopeSelection narrows DOM-based collection to the first element
// matching the selector. It returns the scoped selection, its outer HTML
// (for the body-text collector), and whether scoping took effect. A
// selector that fails to compile or matches nothing leaves the whole
// document in play so extraction still has something to work with.
func scopeSelection(doc *goquery.Document, selector string) (*goquery.Selection, string, bool) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		slog.Debug("scope selector did not compile", "selector", selector, "error", err)
		return doc.Selection, "", false
	}
	matched := doc.FindMatcher(sel)
	if matched.Length() == 0 {
		return doc.Selection, "", false
	}
	first := matched.First()
	outer, err := goquery.OuterHtml(first)
	if err != nil {
		outer = ""
	}
	return first, outer, true
}
