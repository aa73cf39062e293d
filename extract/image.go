package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imageDenylist substrings mark chrome assets and lazy-load stand-ins
// that are never the product photo.
var imageDenylist = []string{"sprite", "icon", "logo", "placeholder", "loading"}

// minImageArea in square pixels excludes thumbnails from the
// largest-image fallback.
const minImageArea = 40000

// metaImageTags in fixed priority order.
var metaImageTags = []struct{ sel, label string }{
	{`meta[property="og:image"]`, "og:image"},
	{`meta[property="og:image:secure_url"]`, "og:image:secure_url"},
	{`meta[name="twitter:image"]`, "twitter:image"},
}

// productImageSelectors, specific containers first. The bare-img case is
// handled separately by the area fallback.
var productImageSelectors = []string{
	".product-image img",
	".product-gallery img",
	".product-photo img",
	".gallery-image img",
	"#product-image img",
	".main-image img",
	"img.product-image",
	`img[itemprop="image"]`,
}

// lazySrcAttrs are probed after the direct src, before the srcset.
var lazySrcAttrs = []string{"data-src", "data-original", "data-lazy-src"}

// AbsoluteImageURL applies the image accept predicate: absolutize
// against the page URL (protocol-relative becomes https), require an
// http(s) scheme, and reject denylisted URLs.
func AbsoluteImageURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	s := abs.String()
	if containsAny(strings.ToLower(s), imageDenylist) {
		return "", false
	}
	return s, true
}

func (p *pipeline) acceptImage(raw string) (string, bool) {
	return AbsoluteImageURL(p.base, raw)
}

// resolveImage runs the cascade over the whole document and returns the
// first accepted absolute URL plus a tag naming the winning step.
func resolveImage(doc *goquery.Document, base *url.URL) (string, string) {
	// 1. Social/meta tags.
	for _, tag := range metaImageTags {
		if content, ok := doc.Find(tag.sel).First().Attr("content"); ok {
			if abs, ok := AbsoluteImageURL(base, content); ok {
				return abs, "meta:" + tag.label
			}
		}
	}

	// 2. Widest <picture> source entry.
	if raw := widestPictureSource(doc); raw != "" {
		if abs, ok := AbsoluteImageURL(base, raw); ok {
			return abs, "picture"
		}
	}

	// 3. Product-image selectors with per-element attribute priority.
	for _, sel := range productImageSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if abs, ok := imageFromElement(el, base); ok {
				found = abs
				return false
			}
			return true
		})
		if found != "" {
			return found, "selector:" + sel
		}
	}

	// 4. Preload hint.
	if href, ok := doc.Find(`link[rel="preload"][as="image"]`).First().Attr("href"); ok {
		if abs, ok := AbsoluteImageURL(base, href); ok {
			return abs, "preload"
		}
	}

	// 5. Largest declared <img>, thumbnails and chrome assets excluded.
	if abs := largestImage(doc, base); abs != "" {
		return abs, "largest"
	}

	return "", ""
}

// imageFromElement reads one img element's attributes in priority order:
// direct src, the lazy-load variants, then its own srcset (widest entry).
func imageFromElement(el *goquery.Selection, base *url.URL) (string, bool) {
	if src, ok := el.Attr("src"); ok {
		if abs, ok := AbsoluteImageURL(base, src); ok {
			return abs, true
		}
	}
	for _, attr := range lazySrcAttrs {
		if src, ok := el.Attr(attr); ok {
			if abs, ok := AbsoluteImageURL(base, src); ok {
				return abs, true
			}
		}
	}
	for _, attr := range []string{"srcset", "data-srcset"} {
		if set, ok := el.Attr(attr); ok {
			if raw := widestFromSrcset(set); raw != "" {
				if abs, ok := AbsoluteImageURL(base, raw); ok {
					return abs, true
				}
			}
		}
	}
	return "", false
}

// widestPictureSource scans every <picture> source-set and returns the
// URL with the largest width descriptor.
func widestPictureSource(doc *goquery.Document) string {
	best, bestWidth := "", -1
	doc.Find("picture source[srcset]").Each(func(_ int, s *goquery.Selection) {
		set, _ := s.Attr("srcset")
		for _, entry := range parseSrcset(set) {
			if entry.width > bestWidth {
				best, bestWidth = entry.url, entry.width
			}
		}
	})
	return best
}

// widestFromSrcset picks the widest entry of a single srcset value.
func widestFromSrcset(set string) string {
	best, bestWidth := "", -1
	for _, entry := range parseSrcset(set) {
		if entry.width > bestWidth {
			best, bestWidth = entry.url, entry.width
		}
	}
	return best
}

type srcsetEntry struct {
	url   string
	width int
}

// parseSrcset splits "url 320w, url 640w" into entries; descriptors
// other than width (or missing ones) count as width 0.
func parseSrcset(set string) []srcsetEntry {
	var entries []srcsetEntry
	for _, part := range strings.Split(set, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 {
			continue
		}
		e := srcsetEntry{url: fields[0]}
		if len(fields) > 1 && strings.HasSuffix(fields[1], "w") {
			if n, err := strconv.Atoi(strings.TrimSuffix(fields[1], "w")); err == nil {
				e.width = n
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// largestImage returns the accepted img URL with the largest declared
// width*height area above the thumbnail threshold.
func largestImage(doc *goquery.Document, base *url.URL) string {
	best, bestArea := "", 0
	doc.Find("img").Each(func(_ int, el *goquery.Selection) {
		src, ok := el.Attr("src")
		if !ok {
			return
		}
		area := declaredArea(el)
		if area <= minImageArea || area <= bestArea {
			return
		}
		if abs, ok := AbsoluteImageURL(base, src); ok {
			best, bestArea = abs, area
		}
	})
	return best
}

// declaredArea multiplies the width/height attributes, tolerating a px
// suffix. Missing or unparseable dimensions give area 0.
func declaredArea(el *goquery.Selection) int {
	w := dimensionAttr(el, "width")
	h := dimensionAttr(el, "height")
	return w * h
}

func dimensionAttr(el *goquery.Selection, name string) int {
	v, ok := el.Attr(name)
	if !ok {
		return 0
	}
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
