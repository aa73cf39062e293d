package extract

import (
	"encoding/json"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
)

// productTypes are the schema.org node types that may carry an offer
// price. AggregateOffer additionally carries lowPrice.
var productTypes = map[string]bool{
	"Product":        true,
	"Offer":          true,
	"AggregateOffer": true,
}

// collectStructured parses every JSON-LD block and walks the decoded
// graph. Each Product/Offer node pushes its price and lowPrice fields
// independently; the first acceptable product image is kept and never
// overwritten by later nodes.
func (p *pipeline) collectStructured() {
	p.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var tree interface{}
		if err := json.Unmarshal([]byte(s.Text()), &tree); err != nil {
			// Malformed block: skip it, extraction continues.
			slog.Debug("structured data block did not parse", "error", err)
			return
		}
		p.walkProductGraph(tree)
	})
}

// walkProductGraph recurses through arrays, @graph containers and nested
// offers alike: every map value is descended into, so any reachable
// Product/Offer node is visited exactly once.
func (p *pipeline) walkProductGraph(node interface{}) {
	switch n := node.(type) {
	case []interface{}:
		for _, item := range n {
			p.walkProductGraph(item)
		}
	case map[string]interface{}:
		if isProductNode(n) {
			if v, ok := normalizeJSONValue(n["price"]); ok {
				p.push(v, "jsonld:price", "")
			}
			if v, ok := normalizeJSONValue(n["lowPrice"]); ok {
				p.push(v, "jsonld:lowPrice", "")
			}
			if p.structImage == "" {
				if raw := firstImageString(n["image"]); raw != "" {
					if abs, ok := p.acceptImage(raw); ok {
						p.structImage = abs
					}
				}
			}
		}
		for _, v := range n {
			p.walkProductGraph(v)
		}
	}
}

// isProductNode checks @type, which appears both as a scalar and as an
// array of type names.
func isProductNode(n map[string]interface{}) bool {
	switch t := n["@type"].(type) {
	case string:
		return productTypes[t]
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok && productTypes[s] {
				return true
			}
		}
	}
	return false
}

// firstImageString unwraps the schema.org image field: a scalar URL, the
// first element of an array, or an ImageObject with url/@id.
func firstImageString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		if len(t) > 0 {
			return firstImageString(t[0])
		}
	case map[string]interface{}:
		if s, ok := t["url"].(string); ok {
			return s
		}
		if s, ok := t["@id"].(string); ok {
			return s
		}
	}
	return ""
}
