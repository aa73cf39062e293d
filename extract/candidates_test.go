package extract

import (
	"testing"
)

func TestCollectItemprop(t *testing.T) {
	t.Run("content attribute preferred", func(t *testing.T) {
		p := newTestPipeline(t, `<html><body>
		<span itemprop="price" content="49.90">ab 59 €</span>
		</body></html>`)
		p.collectItemprop()

		if len(p.cands) != 1 || p.cands[0].Value != 49.90 {
			t.Fatalf("candidates = %+v, want 49.90 from the content attribute", p.cands)
		}
	})

	t.Run("value attribute fallback", func(t *testing.T) {
		p := newTestPipeline(t, `<html><body>
		<input itemprop="price" value="24,99">
		</body></html>`)
		p.collectItemprop()

		if len(p.cands) != 1 || p.cands[0].Value != 24.99 {
			t.Fatalf("candidates = %+v, want 24.99 from the value attribute", p.cands)
		}
	})

	t.Run("visible text fallback", func(t *testing.T) {
		p := newTestPipeline(t, `<html><body>
		<span itemprop="price">19,99 €</span>
		</body></html>`)
		p.collectItemprop()

		if len(p.cands) != 1 || p.cands[0].Value != 19.99 {
			t.Fatalf("candidates = %+v, want 19.99 from the element text", p.cands)
		}
	})

	t.Run("absent", func(t *testing.T) {
		p := newTestPipeline(t, `<html><body><p>nichts</p></body></html>`)
		p.collectItemprop()

		if len(p.cands) != 0 {
			t.Errorf("candidates = %+v, want none", p.cands)
		}
	})
}

func TestCollectMetaTags(t *testing.T) {
	t.Run("family priority", func(t *testing.T) {
		p := newTestPipeline(t, `<html><head>
		<meta property="og:price:amount" content="89.00">
		<meta property="product:price:amount" content="79.00">
		</head><body></body></html>`)
		p.collectMetaTags()

		if len(p.cands) != 1 {
			t.Fatalf("got %d candidates, want exactly one meta candidate", len(p.cands))
		}
		if p.cands[0].Value != 79.00 || p.cands[0].Source != "meta:product:price:amount" {
			t.Errorf("candidate = %+v, want 79.00 from product:price:amount", p.cands[0])
		}
	})

	t.Run("unparseable content falls through", func(t *testing.T) {
		p := newTestPipeline(t, `<html><head>
		<meta property="product:price:amount" content="ask us">
		<meta name="twitter:data1" content="49,95 €">
		</head><body></body></html>`)
		p.collectMetaTags()

		if len(p.cands) != 1 || p.cands[0].Source != "meta:twitter:data1" {
			t.Fatalf("candidates = %+v, want one from twitter:data1", p.cands)
		}
		if p.cands[0].Value != 49.95 {
			t.Errorf("value = %v, want 49.95", p.cands[0].Value)
		}
	})
}

func TestCollectDataAttrs(t *testing.T) {
	t.Run("attribute value", func(t *testing.T) {
		p := newTestPipeline(t, `<html><body>
		<div data-price="19.99">weg damit</div>
		</body></html>`)
		p.collectDataAttrs()

		if len(p.cands) != 1 || p.cands[0].Value != 19.99 || p.cands[0].Source != "attr:data-price" {
			t.Fatalf("candidates = %+v, want 19.99 from attr:data-price", p.cands)
		}
	})

	t.Run("testid attr yields to element text", func(t *testing.T) {
		p := newTestPipeline(t, `<html><body>
		<span data-testid="product-price-label">24,99 €</span>
		</body></html>`)
		p.collectDataAttrs()

		if len(p.cands) != 1 || p.cands[0].Value != 24.99 {
			t.Fatalf("candidates = %+v, want 24.99 from the element text", p.cands)
		}
	})

	t.Run("one candidate per selector", func(t *testing.T) {
		p := newTestPipeline(t, `<html><body>
		<div data-price="10.00"></div>
		<div data-price="11.00"></div>
		<div data-product-price="12.00"></div>
		</body></html>`)
		p.collectDataAttrs()

		if len(p.cands) != 2 {
			t.Fatalf("got %d candidates, want first-per-selector semantics: %+v", len(p.cands), p.cands)
		}
		if p.cands[0].Value != 10.00 || p.cands[1].Value != 12.00 {
			t.Errorf("candidates = %+v, want 10.00 and 12.00", p.cands)
		}
	})
}

func TestCollectCSSClasses(t *testing.T) {
	t.Run("strike keywords skipped", func(t *testing.T) {
		p := newTestPipeline(t, `<html><body>
		<div class="price">UVP 39,99 €</div>
		<div class="price--current">29,99 €</div>
		</body></html>`)
		p.collectCSSClasses()

		if len(p.cands) != 1 || p.cands[0].Value != 29.99 {
			t.Fatalf("candidates = %+v, want only the current price", p.cands)
		}
	})

	t.Run("every match contributes", func(t *testing.T) {
		p := newTestPipeline(t, `<html><body>
		<span class="price">19,99 €</span>
		<span class="price">19,99 €</span>
		</body></html>`)
		p.collectCSSClasses()

		if len(p.cands) != 2 {
			t.Fatalf("got %d candidates, want both price elements: %+v", len(p.cands), p.cands)
		}
	})

	t.Run("current tier before generic tier", func(t *testing.T) {
		p := newTestPipeline(t, `<html><body>
		<span class="sale-price">15,00 €</span>
		<span class="price">25,00 €</span>
		</body></html>`)
		p.collectCSSClasses()

		if len(p.cands) != 2 {
			t.Fatalf("got %d candidates: %+v", len(p.cands), p.cands)
		}
		if p.cands[0].Value != 15.00 {
			t.Errorf("first candidate = %+v, want the sale price collected first", p.cands[0])
		}
	})
}
