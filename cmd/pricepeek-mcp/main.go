package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// peekResponse mirrors the Pricepeek API response model.
type peekResponse struct {
	Success     bool     `json:"success"`
	Price       *float64 `json:"price"`
	Title       string   `json:"title"`
	Image       string   `json:"image"`
	Description string   `json:"description"`
	Pass        string   `json:"pass"`
	FinalURL    string   `json:"final_url"`
	Error       *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// batchResponse mirrors the Pricepeek batch API response.
type batchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// batchStatusResponse mirrors the Pricepeek batch status API response.
type batchStatusResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Results   []json.RawMessage `json:"results"`
}

func main() {
	apiURL := os.Getenv("PRICEPEEK_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	// Optional; the API accepts anonymous requests when auth is disabled.
	apiKey := os.Getenv("PRICEPEEK_API_KEY")

	s := server.NewMCPServer(
		"pricepeek",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	peekPriceTool := mcp.NewTool("peek_price",
		mcp.WithDescription("Extract the product price and main image from a product page URL. Tries a fast static fetch first and falls back to a headless browser for JavaScript-rendered shops."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the product page"),
		),
		mcp.WithBoolean("render",
			mcp.Description("Force the rendered pass on (true) or off (false). Omit to let the server decide."),
		),
		mcp.WithString("selector",
			mcp.Description("CSS selector that narrows extraction to one region of the page, e.g. a single offer on a multi-product page"),
		),
		mcp.WithBoolean("description",
			mcp.Description("Include a short markdown description of the product"),
		),
	)
	s.AddTool(peekPriceTool, handlePeekPrice(apiURL, apiKey))

	// peek_batch tool
	peekBatchTool := mcp.NewTool("peek_batch",
		mcp.WithDescription("Extract prices and images from multiple product page URLs in parallel. Useful for comparing one product across several shops."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of product page URLs"),
		),
		mcp.WithBoolean("render",
			mcp.Description("Force the rendered pass on (true) or off (false) for every URL. Omit to let the server decide."),
		),
	)
	s.AddTool(peekBatchTool, handlePeekBatch(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Pricepeek API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until status is no longer "processing" or context is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			if apiKey != "" {
				req.Header.Set("X-API-Key", apiKey)
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			// Quick check if still processing.
			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}

// formatPeek renders one peek result as readable text.
func formatPeek(pr *peekResponse) string {
	var sb strings.Builder
	if pr.Price != nil {
		sb.WriteString(fmt.Sprintf("Price: %.2f EUR\n", *pr.Price))
	} else {
		sb.WriteString("Price: not found\n")
	}
	if pr.Title != "" {
		sb.WriteString("Title: " + pr.Title + "\n")
	}
	if pr.Image != "" {
		sb.WriteString("Image: " + pr.Image + "\n")
	}
	if pr.FinalURL != "" {
		sb.WriteString(fmt.Sprintf("Source: %s (%s pass)\n", pr.FinalURL, pr.Pass))
	}
	if pr.Description != "" {
		sb.WriteString("\n" + pr.Description + "\n")
	}
	return sb.String()
}

func handlePeekPrice(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]interface{}{
			"url": url,
		}

		args := request.GetArguments()
		if render, ok := args["render"]; ok {
			payload["render"] = render
		}
		if selector := request.GetString("selector", ""); selector != "" {
			payload["selector"] = selector
		}
		if desc, ok := args["description"]; ok {
			payload["description"] = desc
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/peek", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("peek request failed: %v", err)), nil
		}

		var peekResp peekResponse
		if err := json.Unmarshal(respBody, &peekResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !peekResp.Success {
			errMsg := "peek failed"
			if peekResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", peekResp.Error.Code, peekResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatPeek(&peekResp)), nil
	}
}

func handlePeekBatch(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}

		payload := map[string]interface{}{
			"urls": urls,
		}
		args := request.GetArguments()
		if render, ok := args["render"]; ok {
			payload["options"] = map[string]interface{}{"render": render}
		}

		// POST to create batch job.
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/peek/batch", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		var batchResp batchResponse
		if err := json.Unmarshal(respBody, &batchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch response: %v", err)), nil
		}

		if batchResp.ID == "" {
			return mcp.NewToolResultError("batch job creation failed"), nil
		}

		// Poll for completion.
		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/peek/batch/"+batchResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}

		var statusResp batchStatusResponse
		if err := json.Unmarshal(resultBody, &statusResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch status: %v", err)), nil
		}

		// Format results.
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Batch %s: %s (%d/%d completed)\n\n", statusResp.ID, statusResp.Status, statusResp.Completed, statusResp.Total))

		for i, raw := range statusResp.Results {
			label := fmt.Sprintf("result %d", i+1)
			if i < len(urls) {
				label = urls[i]
			}

			var pr peekResponse
			if err := json.Unmarshal(raw, &pr); err != nil {
				sb.WriteString(fmt.Sprintf("--- [%d] %s: parse error ---\n\n", i+1, label))
				continue
			}
			if pr.Success {
				sb.WriteString(fmt.Sprintf("--- [%d] %s ---\n%s\n", i+1, label, formatPeek(&pr)))
			} else {
				errMsg := "unknown error"
				if pr.Error != nil {
					errMsg = pr.Error.Message
				}
				sb.WriteString(fmt.Sprintf("--- [%d] %s FAILED: %s ---\n\n", i+1, label, errMsg))
			}
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
