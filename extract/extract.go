// Package extract infers a product price and a product image from
// arbitrary e-commerce markup. Seven independent collectors feed one
// candidate population, price arbitration reduces it to a single value,
// and an ordered cascade resolves the image; when the static markup
// yields an incomplete result a rendered second pass can replace it.
package extract

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"

	"github.com/pricepeek/pricepeek/models"
)

// Pass labels for Result.Pass.
const (
	PassStatic   = "static"
	PassRendered = "rendered"
)

// RenderedDocument is the markup captured by a headless render.
type RenderedDocument struct {
	HTML     string
	FinalURL string
}

// RenderFunc obtains rendered markup for a URL. Wired in from main so
// the pipeline stays decoupled from the browser engine.
type RenderFunc func(ctx context.Context, pageURL string) (*RenderedDocument, error)

// Config tunes the pipeline.
type Config struct {
	// MinPlausible/MaxPlausible bound the arbitration plausibility band.
	MinPlausible float64
	MaxPlausible float64

	// ContextRadius is the surrounding-text capture in characters.
	ContextRadius int

	// DescriptionLimit caps the markdown description in runes.
	DescriptionLimit int
}

func (c Config) withDefaults() Config {
	if c.MinPlausible == 0 {
		c.MinPlausible = 10
	}
	if c.MaxPlausible == 0 {
		c.MaxPlausible = 100000
	}
	if c.ContextRadius == 0 {
		c.ContextRadius = 60
	}
	if c.DescriptionLimit == 0 {
		c.DescriptionLimit = 500
	}
	return c
}

// Extractor runs the two-stage price/image pipeline:
//
//	Stage 1 (static):   parse the as-fetched markup, run all collectors
//	Stage 2 (rendered): conditional re-run against headless-browser markup
//
// The markdown converter is created once and reused across all requests
// (goroutine-safe). Everything else is created fresh per extraction, so
// concurrent extractions share no mutable state.
type Extractor struct {
	cfg         Config
	render      RenderFunc
	mdConverter *converter.Converter
}

// New initialises the Extractor. render may be nil; the rendered pass is
// then never attempted.
func New(cfg Config, render RenderFunc) *Extractor {
	return &Extractor{
		cfg:         cfg.withDefaults(),
		render:      render,
		mdConverter: newMarkdownConverter(),
	}
}

// Options carries per-peek parameters into the pipeline.
type Options struct {
	// RenderPermitted allows the rendered second pass when the static
	// result is missing a price or an image.
	RenderPermitted bool

	// Selector narrows DOM-based price collection to the first matching
	// element. Structured data, meta tags and the image cascade always
	// see the whole document.
	Selector string

	// IncludeDescription adds the markdown description to the result.
	IncludeDescription bool
}

// Result is the outcome of one extraction. Price is nil and Image empty
// when no qualifying candidate was found; that is a valid outcome, not
// an error.
type Result struct {
	Price       *float64
	Image       string
	Title       string
	Description string
	Pass        string
	FinalURL    string
	Strategies  []string
	Candidates  []PriceCandidate
}

// Extract runs the pipeline against staticHTML, then decides whether a
// rendered pass is warranted.
//
// Flow:
//  1. Static pass: all collectors, then arbitration and image resolution.
//  2. If rendering is permitted and the price or image is still missing,
//     render the URL and re-run the full pipeline; the rendered result
//     replaces the static one entirely (no merging across passes).
//  3. A failed render falls back to the static result when one exists;
//     with no document from any stage the peek fails as NO_DOCUMENT.
func (e *Extractor) Extract(ctx context.Context, staticHTML, pageURL string, opts Options) (*Result, error) {
	// ── 1. Static pass ──────────────────────────────────────────────
	var out1 *Result
	if strings.TrimSpace(staticHTML) != "" {
		out1 = e.runPipeline(staticHTML, pageURL, opts, PassStatic)
	}

	// ── 2. Render decision ──────────────────────────────────────────
	needRender := opts.RenderPermitted && e.render != nil &&
		(out1 == nil || out1.Price == nil || out1.Image == "")
	if !needRender {
		if out1 == nil {
			return nil, models.NewPeekError(models.ErrCodeNoDocument,
				"no document obtained and rendering not permitted", nil)
		}
		return out1, nil
	}

	// ── 3. Rendered pass ────────────────────────────────────────────
	rendered, err := e.render(ctx, pageURL)
	if err != nil || rendered == nil || strings.TrimSpace(rendered.HTML) == "" {
		if out1 != nil {
			slog.Warn("rendered pass failed, keeping static result",
				"url", pageURL, "error", err)
			out1.Strategies = append(out1.Strategies, "render:failed")
			return out1, nil
		}
		return nil, models.NewPeekError(models.ErrCodeNoDocument,
			"no document obtained from any stage", err)
	}
	finalURL := rendered.FinalURL
	if finalURL == "" {
		finalURL = pageURL
	}
	return e.runPipeline(rendered.HTML, finalURL, opts, PassRendered), nil
}

// pipeline is the per-pass working state shared by the collectors.
type pipeline struct {
	doc        *goquery.Document
	root       *goquery.Selection
	base       *url.URL
	scopedHTML string
	cfg        Config

	cands      []PriceCandidate
	strategies []string

	// structImage is the structured-data image: first accepted wins,
	// never overwritten. scriptImage is the soft candidate from script
	// blobs, used only when everything else came up empty.
	structImage string
	scriptImage string
}

func (p *pipeline) push(value float64, source, context string) {
	p.cands = append(p.cands, PriceCandidate{Value: value, Source: source, Context: context})
}

func (p *pipeline) note(stage string) {
	p.strategies = append(p.strategies, stage)
}

// runPipeline executes one full pass over a document snapshot.
func (e *Extractor) runPipeline(rawHTML, pageURL string, opts Options, pass string) *Result {
	res := &Result{Pass: pass, FinalURL: pageURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		slog.Warn("document parse failed", "url", pageURL, "error", err)
		return res
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	p := &pipeline{
		doc:        doc,
		root:       doc.Selection,
		base:       base,
		scopedHTML: rawHTML,
		cfg:        e.cfg,
	}
	if opts.Selector != "" {
		if root, outer, ok := scopeSelection(doc, opts.Selector); ok {
			p.root = root
			if outer != "" {
				p.scopedHTML = outer
			}
			p.note("scope")
		}
	}

	// All collectors always run; arbitration needs the full candidate
	// population, not the first strategy that happens to hit.
	collectors := []struct {
		name string
		run  func()
	}{
		{"jsonld", p.collectStructured},
		{"itemprop", p.collectItemprop},
		{"meta", p.collectMetaTags},
		{"attr", p.collectDataAttrs},
		{"css", p.collectCSSClasses},
		{"script", p.collectScripts},
		{"regex:body", p.collectBodyText},
	}
	for _, c := range collectors {
		before := len(p.cands)
		c.run()
		if len(p.cands) > before {
			p.note(c.name)
		}
	}

	if v, ok := ChoosePrice(p.cands, e.cfg.MinPlausible, e.cfg.MaxPlausible); ok {
		res.Price = &v
	}

	// Image precedence: structured product markup beats the cascade;
	// the script-blob soft candidate comes last.
	if p.structImage != "" {
		res.Image = p.structImage
		p.note("image:structured")
	} else if u, tag := resolveImage(doc, base); u != "" {
		res.Image = u
		p.note("image:" + tag)
	} else if p.scriptImage != "" {
		res.Image = p.scriptImage
		p.note("image:script")
	}

	res.Title = pageTitle(doc)
	if opts.IncludeDescription {
		res.Description = e.describe(rawHTML, base, doc)
	}
	res.Strategies = p.strategies
	res.Candidates = p.cands
	return res
}
