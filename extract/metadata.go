package extract

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// minArticleLength is the minimum readability text length for the
// description path; below it the meta description is used instead.
const minArticleLength = 80

// newMarkdownConverter builds the reusable, goroutine-safe converter for
// descriptions: base plugin strips script/style/head noise, commonmark
// renders standard markdown.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
}

// pageTitle prefers og:title over the document title.
func pageTitle(doc *goquery.Document) string {
	if t, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// describe produces a short markdown summary of the page's main content:
// readability isolates the article, the converter renders markdown, and
// the result is truncated. Pages readability cannot crack fall back to
// the meta description.
func (e *Extractor) describe(rawHTML string, base *url.URL, doc *goquery.Document) string {
	article, err := readability.FromReader(strings.NewReader(rawHTML), base)
	if err == nil && len(strings.TrimSpace(article.TextContent)) >= minArticleLength {
		domain := ""
		if base != nil {
			domain = base.Host
		}
		md, convErr := e.mdConverter.ConvertString(article.Content, converter.WithDomain(domain))
		if convErr == nil {
			if md = strings.TrimSpace(md); md != "" {
				return truncateRunes(md, e.cfg.DescriptionLimit)
			}
		} else {
			slog.Debug("description markdown conversion failed", "error", convErr)
		}
	}
	if d, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		return truncateRunes(strings.TrimSpace(d), e.cfg.DescriptionLimit)
	}
	return ""
}

// truncateRunes cuts s to at most limit runes, appending an ellipsis
// when something was dropped.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
