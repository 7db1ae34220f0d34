package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// analyzeResponse mirrors the Croscope API analyze response.
type analyzeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// jobStatusResponse mirrors the Croscope API job status response.
type jobStatusResponse struct {
	ID        string              `json:"id"`
	Status    string              `json:"status"`
	Completed int                 `json:"completed"`
	Total     int                 `json:"total"`
	Records   []map[string]string `json:"records"`
}

// narrativeResponse mirrors the Croscope API narrative response.
type narrativeResponse struct {
	Success   bool   `json:"success"`
	Narrative string `json:"narrative"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("CROSCOPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("CROSCOPE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "CROSCOPE_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"croscope",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	analyzeTool := mcp.NewTool("analyze_pages",
		mcp.WithDescription("Analyze landing pages for conversion rate optimization. Captures a full-page screenshot of each URL in a headless browser, sends it to a multimodal model, and returns one structured audit record per page."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of landing page URLs to analyze"),
		),
		mcp.WithString("prompt",
			mcp.Description("Optional custom analysis prompt; replaces the default CRO audit prompt for the whole batch"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Per-page capture timeout in seconds (default: 120, max: 300)"),
		),
	)
	s.AddTool(analyzeTool, handleAnalyzePages(apiURL, apiKey))

	statusTool := mcp.NewTool("get_analysis",
		mcp.WithDescription("Fetch the status and records of a previously started analysis job by ID."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The analysis job ID"),
		),
	)
	s.AddTool(statusTool, handleGetAnalysis(apiURL, apiKey))

	narrativeTool := mcp.NewTool("analysis_narrative",
		mcp.WithDescription("Generate a prose comparison report from a finished analysis job."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The analysis job ID"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Who the report is written for, e.g. a company or page name"),
		),
	)
	s.AddTool(narrativeTool, handleNarrative(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Croscope API and returns the response body.
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
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// apiGet sends a GET request to the Croscope API and returns the response body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)

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
			body, err := apiGet(ctx, client, apiURL, apiKey, endpoint)
			if err != nil {
				return nil, err
			}

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

func handleAnalyzePages(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}

		payload := map[string]interface{}{
			"urls": urls,
		}
		if prompt := request.GetString("prompt", ""); prompt != "" {
			payload["prompt"] = prompt
		}

		args := request.GetArguments()
		if timeout, ok := args["timeout"]; ok {
			payload["options"] = map[string]interface{}{"timeout": timeout}
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/analyze", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analyze request failed: %v", err)), nil
		}

		var analyzeResp analyzeResponse
		if err := json.Unmarshal(respBody, &analyzeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse analyze response: %v", err)), nil
		}
		if analyzeResp.ID == "" {
			errMsg := "analysis job creation failed"
			if analyzeResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", analyzeResp.Error.Code, analyzeResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/analyze/"+analyzeResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling analysis job failed: %v", err)), nil
		}

		var statusResp jobStatusResponse
		if err := json.Unmarshal(resultBody, &statusResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse job status: %v", err)), nil
		}

		return mcp.NewToolResultText(formatJob(&statusResp)), nil
	}
}

func handleGetAnalysis(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/analyze/"+id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status request failed: %v", err)), nil
		}

		var statusResp jobStatusResponse
		if err := json.Unmarshal(body, &statusResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse job status: %v", err)), nil
		}
		if statusResp.ID == "" {
			return mcp.NewToolResultError("analysis job not found"), nil
		}

		return mcp.NewToolResultText(formatJob(&statusResp)), nil
	}
}

func handleNarrative(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 300 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		subject, err := request.RequireString("subject")
		if err != nil {
			return mcp.NewToolResultError("subject is required"), nil
		}

		payload := map[string]string{"subject": subject}
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/analyze/"+id+"/narrative", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("narrative request failed: %v", err)), nil
		}

		var narResp narrativeResponse
		if err := json.Unmarshal(respBody, &narResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse narrative response: %v", err)), nil
		}
		if !narResp.Success {
			errMsg := "narrative generation failed"
			if narResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", narResp.Error.Code, narResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(narResp.Narrative), nil
	}
}

// formatJob renders a job status as readable text, one block per record.
func formatJob(job *jobStatusResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job %s: %s (%d/%d completed)\n\n", job.ID, job.Status, job.Completed, job.Total))

	for i, rec := range job.Records {
		name := rec["Platform"]
		if errMsg, failed := rec["error"]; failed {
			sb.WriteString(fmt.Sprintf("--- [%d] %s FAILED: %s ---\n\n", i+1, name, errMsg))
			continue
		}
		sb.WriteString(fmt.Sprintf("--- [%d] %s (%s) ---\n", i+1, name, rec["URL"]))

		keys := make([]string, 0, len(rec))
		for k := range rec {
			if k == "Platform" || k == "URL" {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("%s: %s\n", k, rec[k]))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
