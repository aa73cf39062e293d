package extract

import (
	"context"
	"strings"
	"testing"
)

func TestPageTitle(t *testing.T) {
	t.Run("og title preferred", func(t *testing.T) {
		doc := mustDoc(t, `<html><head>
		<title>Produkt kaufen | shop.example</title>
		<meta property="og:title" content="Produkt Modell X">
		</head><body></body></html>`)

		if got := pageTitle(doc); got != "Produkt Modell X" {
			t.Errorf("pageTitle = %q, want the og:title", got)
		}
	})

	t.Run("document title fallback", func(t *testing.T) {
		doc := mustDoc(t, `<html><head><title>  Produkt kaufen  </title></head><body></body></html>`)

		if got := pageTitle(doc); got != "Produkt kaufen" {
			t.Errorf("pageTitle = %q, want the trimmed document title", got)
		}
	})

	t.Run("empty og title skipped", func(t *testing.T) {
		doc := mustDoc(t, `<html><head>
		<meta property="og:title" content="   ">
		<title>Nur der Titel</title>
		</head><body></body></html>`)

		if got := pageTitle(doc); got != "Nur der Titel" {
			t.Errorf("pageTitle = %q, want the document title", got)
		}
	})
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("kurz", 10); got != "kurz" {
		t.Errorf("short input = %q, want unchanged", got)
	}
	if got := truncateRunes("abcdefgh", 5); got != "abcde…" {
		t.Errorf("truncated = %q, want %q", got, "abcde…")
	}
	if got := truncateRunes("ääääää", 3); got != "äää…" {
		t.Errorf("multibyte truncation = %q, want %q", got, "äää…")
	}
	if got := truncateRunes("whatever", 0); got != "whatever" {
		t.Errorf("zero limit = %q, want unchanged", got)
	}
}

func TestDescribe_MetaDescriptionFallback(t *testing.T) {
	// Too little article text for readability, so the meta description
	// carries the result.
	page := `<html><head>
	<meta name="description" content="Eine kurze Produktbeschreibung.">
	</head><body><p>Hi</p></body></html>`

	e := New(Config{}, nil)
	doc := mustDoc(t, page)

	got := e.describe(page, testBase(t), doc)
	if got != "Eine kurze Produktbeschreibung." {
		t.Errorf("describe = %q, want the meta description", got)
	}
}

func TestDescribe_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("Wort ", 300)
	page := `<html><head>
	<meta name="description" content="` + long + `">
	</head><body><p>Hi</p></body></html>`

	e := New(Config{DescriptionLimit: 50}, nil)
	doc := mustDoc(t, page)

	got := e.describe(page, testBase(t), doc)
	if len([]rune(got)) > 51 {
		t.Errorf("describe length = %d runes, want at most limit plus ellipsis", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("describe = %q, want a trailing ellipsis after truncation", got)
	}
}

func TestExtract_DescriptionOnlyWhenRequested(t *testing.T) {
	page := `<html><head>
	<meta name="description" content="Beschreibung des Produkts.">
	</head><body><p>Hi</p></body></html>`
	e := New(Config{}, nil)

	plain, err := e.Extract(context.Background(), page, "https://shop.example/produkt/123", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if plain.Description != "" {
		t.Errorf("description = %q, want empty unless requested", plain.Description)
	}

	withDesc, err := e.Extract(context.Background(), page, "https://shop.example/produkt/123",
		Options{IncludeDescription: true})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if withDesc.Description == "" {
		t.Error("description missing although requested")
	}
}
