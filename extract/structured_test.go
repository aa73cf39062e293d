package extract

import (
	"testing"
)

func TestCollectStructured_ProductWithNestedOffer(t *testing.T) {
	p := newTestPipeline(t, `<html><head><script type="application/ld+json">
	{
		"@context": "https://schema.org",
		"@type": "Product",
		"name": "Kaffeemaschine",
		"image": "https://cdn.example/p/kaffee.jpg",
		"offers": {
			"@type": "Offer",
			"price": "129.00",
			"priceCurrency": "EUR"
		}
	}
	</script></head><body></body></html>`)

	p.collectStructured()

	if len(p.cands) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(p.cands), p.cands)
	}
	if p.cands[0].Value != 129.00 || p.cands[0].Source != "jsonld:price" {
		t.Errorf("candidate = %+v, want 129.00 from jsonld:price", p.cands[0])
	}
	if p.structImage != "https://cdn.example/p/kaffee.jpg" {
		t.Errorf("structImage = %q, want the product image", p.structImage)
	}
}

func TestCollectStructured_GraphContainer(t *testing.T) {
	p := newTestPipeline(t, `<html><head><script type="application/ld+json">
	{
		"@context": "https://schema.org",
		"@graph": [
			{"@type": "BreadcrumbList"},
			{"@type": "Product", "offers": {"@type": "Offer", "price": 59.95}}
		]
	}
	</script></head><body></body></html>`)

	p.collectStructured()

	if len(p.cands) != 1 || p.cands[0].Value != 59.95 {
		t.Fatalf("candidates = %+v, want one 59.95 from the @graph product", p.cands)
	}
}

func TestCollectStructured_AggregateOffer(t *testing.T) {
	p := newTestPipeline(t, `<html><head><script type="application/ld+json">
	{
		"@type": "AggregateOffer",
		"lowPrice": "24.99",
		"price": "29.99"
	}
	</script></head><body></body></html>`)

	p.collectStructured()

	if len(p.cands) != 2 {
		t.Fatalf("got %d candidates, want price and lowPrice: %+v", len(p.cands), p.cands)
	}
	values := map[float64]string{}
	for _, c := range p.cands {
		values[c.Value] = c.Source
	}
	if values[29.99] != "jsonld:price" {
		t.Errorf("29.99 source = %q, want jsonld:price", values[29.99])
	}
	if values[24.99] != "jsonld:lowPrice" {
		t.Errorf("24.99 source = %q, want jsonld:lowPrice", values[24.99])
	}
}

func TestCollectStructured_FirstImageWins(t *testing.T) {
	p := newTestPipeline(t, `<html><head>
	<script type="application/ld+json">
	{"@type": "Product", "image": "https://cdn.example/first.jpg", "offers": {"@type": "Offer", "price": "10.00"}}
	</script>
	<script type="application/ld+json">
	{"@type": "Product", "image": "https://cdn.example/second.jpg"}
	</script>
	</head><body></body></html>`)

	p.collectStructured()

	if p.structImage != "https://cdn.example/first.jpg" {
		t.Errorf("structImage = %q, want the first accepted image to stick", p.structImage)
	}
}

func TestCollectStructured_MalformedBlockSkipped(t *testing.T) {
	p := newTestPipeline(t, `<html><head>
	<script type="application/ld+json">{not valid json</script>
	<script type="application/ld+json">{"@type": "Offer", "price": "15.50"}</script>
	</head><body></body></html>`)

	p.collectStructured()

	if len(p.cands) != 1 || p.cands[0].Value != 15.50 {
		t.Fatalf("candidates = %+v, want 15.50 from the valid block", p.cands)
	}
}

func TestCollectStructured_TypeArray(t *testing.T) {
	p := newTestPipeline(t, `<html><head><script type="application/ld+json">
	{"@type": ["Thing", "Product"], "offers": {"@type": "Offer", "price": "42.00"}}
	</script></head><body></body></html>`)

	p.collectStructured()

	if len(p.cands) != 1 || p.cands[0].Value != 42.00 {
		t.Fatalf("candidates = %+v, want 42.00 from the array-typed product", p.cands)
	}
}

func TestFirstImageString(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"scalar", "https://cdn.example/a.jpg", "https://cdn.example/a.jpg"},
		{"array takes first", []interface{}{"https://cdn.example/a.jpg", "https://cdn.example/b.jpg"}, "https://cdn.example/a.jpg"},
		{"image object url", map[string]interface{}{"url": "https://cdn.example/o.jpg"}, "https://cdn.example/o.jpg"},
		{"image object id", map[string]interface{}{"@id": "https://cdn.example/i.jpg"}, "https://cdn.example/i.jpg"},
		{"nil", nil, ""},
		{"empty array", []interface{}{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstImageString(tt.in); got != tt.want {
				t.Errorf("firstImageString = %q, want %q", got, tt.want)
			}
		})
	}
}
