package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "Pricepeek API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per URL for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Test URLs covering typical product-page shapes.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Structured", "https://www.thomann.de/de/harley_benton_sc_450_plus.htm"},
	{"Meta", "https://www.otto.de/p/adidas-sportswear-sneaker-grand-court-2-0-1727015758"},
	{"Rendered", "https://www.mediamarkt.de/de/product/_apple-iphone-15-128gb-2873119.html"},
	{"Marketplace", "https://www.ebay.de/itm/254983477937"},
	{"Boutique", "https://www.manufactum.de/feuerzeug-zippo-chrom-a24243/"},
}

// --- Request / Response types (mirrors models package) ---

type peekRequest struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout"`
	Debug   bool   `json:"debug"`
}

type peekResponse struct {
	Success    bool         `json:"success"`
	Price      *float64     `json:"price"`
	Title      string       `json:"title"`
	Image      string       `json:"image"`
	Pass       string       `json:"pass"`
	Transport  string       `json:"transport"`
	Candidates []candidate  `json:"candidates"`
	Timing     timingInfo   `json:"timing"`
	Error      *errorDetail `json:"error,omitempty"`
}

type candidate struct {
	Value  float64 `json:"value"`
	Source string  `json:"source"`
}

type timingInfo struct {
	TotalMs   int64 `json:"total_ms"`
	FetchMs   int64 `json:"fetch_ms"`
	ExtractMs int64 `json:"extract_ms"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Benchmark result types ---

type runResult struct {
	Run        int      `json:"run"`
	TotalMs    int64    `json:"total_ms"`
	FetchMs    int64    `json:"fetch_ms"`
	ExtractMs  int64    `json:"extract_ms"`
	Pass       string   `json:"pass"`
	Transport  string   `json:"transport"`
	Price      *float64 `json:"price,omitempty"`
	HasImage   bool     `json:"has_image"`
	HasTitle   bool     `json:"has_title"`
	Candidates int      `json:"candidates"`
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
}

type urlAverages struct {
	TotalMs    float64 `json:"total_ms"`
	FetchMs    float64 `json:"fetch_ms"`
	ExtractMs  float64 `json:"extract_ms"`
	Candidates float64 `json:"candidates"`
	PriceRate  float64 `json:"price_rate"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Label    string       `json:"label"`
	Runs     []runResult  `json:"runs"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Pricepeek Benchmark Suite ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure Pricepeek is running (e.g. make run)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	for _, t := range testURLs {
		fmt.Printf("Benchmarking [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(t.URL, i)
			switch {
			case rr.Success && rr.Price != nil:
				fmt.Printf("OK  %dms  %.2f EUR (%s pass)\n", rr.TotalMs, *rr.Price, rr.Pass)
			case rr.Success:
				fmt.Printf("OK  %dms  no price (%s pass)\n", rr.TotalMs, rr.Pass)
			default:
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Averages = computeAverages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	// Print summary table.
	printTable(report.Results)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkURL(url string, run int) runResult {
	rr := runResult{Run: run}

	reqBody := peekRequest{
		URL:     url,
		Timeout: 60,
		Debug:   true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest("POST", *apiURL+"/api/v1/peek", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 90 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var pr peekResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = pr.Success
	rr.TotalMs = pr.Timing.TotalMs
	rr.FetchMs = pr.Timing.FetchMs
	rr.ExtractMs = pr.Timing.ExtractMs
	rr.Pass = pr.Pass
	rr.Transport = pr.Transport
	rr.Price = pr.Price
	rr.HasImage = pr.Image != ""
	rr.HasTitle = pr.Title != ""
	rr.Candidates = len(pr.Candidates)

	if pr.Error != nil {
		rr.Error = pr.Error.Message
	}

	return rr
}

func computeAverages(runs []runResult) *urlAverages {
	var successCount, priceCount int
	var avg urlAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		if r.Price != nil {
			priceCount++
		}
		avg.TotalMs += float64(r.TotalMs)
		avg.FetchMs += float64(r.FetchMs)
		avg.ExtractMs += float64(r.ExtractMs)
		avg.Candidates += float64(r.Candidates)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.FetchMs /= n
	avg.ExtractMs /= n
	avg.Candidates /= n
	avg.PriceRate = float64(priceCount) / n * 100
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tPrice Rate\tCandidates\tPass\n")
	fmt.Fprintf(w, "───\t───────────\t──────────\t──────────\t────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}

		fmt.Fprintf(w, "%s\t%dms\t%.0f%%\t%.1f\t%s\n",
			truncateURL(r.URL, 40),
			int64(r.Averages.TotalMs),
			r.Averages.PriceRate,
			r.Averages.Candidates,
			dominantPass(r.Runs),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

// dominantPass returns the pass most runs ended on.
func dominantPass(runs []runResult) string {
	counts := map[string]int{}
	for _, r := range runs {
		if r.Success {
			counts[r.Pass]++
		}
	}
	best, bestCount := "-", 0
	for pass, count := range counts {
		if count > bestCount {
			best = pass
			bestCount = count
		}
	}
	return best
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
