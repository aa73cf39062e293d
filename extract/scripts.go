package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Keyword sets for the script-blob walk. Matching is case-insensitive
// substring, so "price" already covers currentPrice, salesPrice,
// finalPrice, lowPrice and offerPrice; the longer names are kept for the
// regex fallback where only whole keys are seen.
var (
	priceKeywords = []string{
		"price", "currentprice", "salesprice", "finalprice",
		"lowprice", "offerprice", "amount", "value", "preis",
	}
	imageKeywords = []string{"image", "img", "bild", "thumbnail"}
)

var (
	// Quoted key with a bare or quoted numeric value, for scripts that
	// are not valid JSON.
	quotedPairPattern = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"\s*:\s*"?(-?\d[\d.,]*)"?`)

	// Bare image URLs by file extension.
	bareImagePattern = regexp.MustCompile(`https?://[^\s"'<>\\]+\.(?:jpe?g|png|webp|gif|avif)[^\s"'<>\\]*`)

	imageExtPattern = regexp.MustCompile(`(?i)\.(jpe?g|png|webp|gif|avif)([?#]|$)`)
)

// collectScripts scans inline script bodies. Valid JSON gets the typed
// recursive walk; anything else falls back to regex extraction of
// keyword-matching key:value pairs and bare image URLs.
func (p *pipeline) collectScripts() {
	p.root.Find("script").Each(func(_ int, s *goquery.Selection) {
		if typ, _ := s.Attr("type"); strings.EqualFold(typ, "application/ld+json") {
			return // owned by the structured-data collector
		}
		body := strings.TrimSpace(s.Text())
		if body == "" {
			return
		}
		var tree interface{}
		if err := json.Unmarshal([]byte(body), &tree); err == nil {
			p.walkScriptTree("", tree)
			return
		}
		p.scanScriptText(body)
	})
}

// walkScriptTree descends the generic tree (null | number | string |
// list | map) and matches leaf keys against the keyword sets.
func (p *pipeline) walkScriptTree(key string, node interface{}) {
	switch n := node.(type) {
	case map[string]interface{}:
		for k, v := range n {
			p.walkScriptTree(k, v)
		}
	case []interface{}:
		for _, item := range n {
			p.walkScriptTree(key, item)
		}
	default:
		if key == "" {
			return
		}
		lower := strings.ToLower(key)
		if containsAny(lower, priceKeywords) {
			if v, ok := normalizeJSONValue(node); ok {
				p.push(v, "script:"+key, "")
			}
		}
		if p.scriptImage == "" && containsAny(lower, imageKeywords) {
			if s, ok := node.(string); ok && looksLikeImageURL(s) {
				if abs, ok := p.acceptImage(s); ok {
					p.scriptImage = abs
				}
			}
		}
	}
}

// scanScriptText is the parse-failure fallback: regex out quoted
// key:value pairs for the same keyword set, plus bare image URLs.
func (p *pipeline) scanScriptText(body string) {
	for _, m := range quotedPairPattern.FindAllStringSubmatch(body, -1) {
		if !containsAny(strings.ToLower(m[1]), priceKeywords) {
			continue
		}
		if v, ok := NormalizeNumber(m[2]); ok {
			p.push(v, "script:"+m[1], "")
		}
	}
	if p.scriptImage == "" {
		for _, raw := range bareImagePattern.FindAllString(body, -1) {
			if abs, ok := p.acceptImage(raw); ok {
				p.scriptImage = abs
				break
			}
		}
	}
}

// looksLikeImageURL filters out plain words that happen to live under an
// image-ish key ("imageType": "main" must not become a relative URL).
func looksLikeImageURL(s string) bool {
	return strings.HasPrefix(s, "http") || strings.HasPrefix(s, "//") ||
		imageExtPattern.MatchString(s)
}
