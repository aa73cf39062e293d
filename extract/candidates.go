package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PriceCandidate is one provisionally extracted price value, tagged with
// the strategy that produced it. Candidates with non-finite or
// non-positive values are never constructed.
type PriceCandidate struct {
	Value   float64
	Source  string
	Context string
}

// metaPriceTags are the known social/meta price-amount families, in
// priority order. The first one whose content normalizes wins.
var metaPriceTags = []struct{ sel, label string }{
	{`meta[property="product:price:amount"]`, "meta:product:price:amount"},
	{`meta[property="og:price:amount"]`, "meta:og:price:amount"},
	{`meta[name="twitter:data1"]`, "meta:twitter:data1"},
}

// dataAttrSelectors are attribute-based price carriers. Each selector
// contributes at most one candidate; the selectors are not
// short-circuited against each other.
var dataAttrSelectors = []struct{ sel, attr string }{
	{"[data-price]", "data-price"},
	{"[data-price-amount]", "data-price-amount"},
	{"[data-product-price]", "data-product-price"},
	{`[data-testid*="price"]`, "data-testid"},
	{`[data-test-id*="price"]`, "data-test-id"},
	{`[data-cy*="price"]`, "data-cy"},
}

// currentPriceSelectors mark the price a shop is actually charging.
// Tried before the generic tier so sale prices dominate the candidate
// population on discount pages.
var currentPriceSelectors = []string{
	".price--current",
	".price-current",
	".current-price",
	".sale-price",
	".price--sale",
	".special-price",
	".final-price",
	".price-final",
	".offer-price",
	".price--reduced",
}

// genericPriceSelectors are the broad price classes/ids.
var genericPriceSelectors = []string{
	".price",
	".product-price",
	".product__price",
	".productPrice",
	".price-value",
	".price-amount",
	".price-box",
	"#price",
	"#product-price",
	"#our_price_display",
}

// strikeKeywords mark crossed-out reference prices (MSRP and friends)
// that must not be collected as the current price.
var strikeKeywords = []string{
	"uvp", "statt", "vorher", "durchgestrichen", "unverbindlich", "msrp", "rrp",
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// collectItemprop reads the first element annotated itemprop="price":
// machine-readable content/value attribute first, visible text otherwise.
func (p *pipeline) collectItemprop() {
	el := p.root.Find(`[itemprop="price"]`).First()
	if el.Length() == 0 {
		return
	}
	raw, ok := el.Attr("content")
	if !ok || strings.TrimSpace(raw) == "" {
		raw, ok = el.Attr("value")
	}
	if !ok || strings.TrimSpace(raw) == "" {
		raw = el.Text()
	}
	if v, ok := FirstNumber(raw); ok {
		p.push(v, "itemprop:price", "")
	}
}

// collectMetaTags probes the three meta-tag families and pushes at most
// one candidate.
func (p *pipeline) collectMetaTags() {
	for _, tag := range metaPriceTags {
		content, ok := p.doc.Find(tag.sel).First().Attr("content")
		if !ok {
			continue
		}
		if v, ok := NormalizeNumber(content); ok {
			p.push(v, tag.label, "")
			return
		}
	}
}

// collectDataAttrs scans the fixed data-attribute selector list. For the
// first matching element per selector, the attribute value is preferred
// over the element text (test-id style attributes never normalize, so
// those fall through to text).
func (p *pipeline) collectDataAttrs() {
	for _, entry := range dataAttrSelectors {
		el := p.root.Find(entry.sel).First()
		if el.Length() == 0 {
			continue
		}
		raw, _ := el.Attr(entry.attr)
		v, ok := NormalizeNumber(raw)
		if !ok {
			v, ok = FirstNumber(el.Text())
		}
		if ok {
			p.push(v, "attr:"+entry.attr, "")
		}
	}
}

// collectCSSClasses walks both selector tiers. Every matching element
// contributes, except those whose text carries a strike-through keyword.
func (p *pipeline) collectCSSClasses() {
	for _, tier := range [][]string{currentPriceSelectors, genericPriceSelectors} {
		for _, sel := range tier {
			p.root.Find(sel).Each(func(_ int, el *goquery.Selection) {
				text := strings.TrimSpace(el.Text())
				if text == "" || containsAny(strings.ToLower(text), strikeKeywords) {
					return
				}
				if v, ok := FirstNumber(text); ok {
					p.push(v, "css:"+sel, "")
				}
			})
		}
	}
}
