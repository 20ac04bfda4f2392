// Package extract provides HTTP clients for the two external
// collaborators the claims pipeline depends on: an OCR service for
// document text and an LLM for structured field extraction.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	azureAPIVersion  = "2023-07-31"
	azureLayoutModel = "prebuilt-layout"

	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 2 * time.Minute
)

// AzureConfig configures the Document Intelligence client.
type AzureConfig struct {
	Endpoint     string
	APIKey       string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// AzureClient extracts document text with the Azure Document
// Intelligence layout model. Analysis is asynchronous on the service
// side: the submit call returns an operation URL which is polled until
// the analysis succeeds or fails.
type AzureClient struct {
	cfg  AzureConfig
	http *http.Client
}

func NewAzureClient(cfg AzureConfig, client *http.Client) (*AzureClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("azure endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("azure api key is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &AzureClient{cfg: cfg, http: client}, nil
}

type azureAnalyzeResponse struct {
	Status        string      `json:"status"`
	Error         *azureError `json:"error"`
	AnalyzeResult struct {
		Content string `json:"content"`
	} `json:"analyzeResult"`
}

type azureError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *azureError) String() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ExtractText submits the document for layout analysis and polls until
// the service reports a terminal status.
func (c *AzureClient) ExtractText(ctx context.Context, document []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	opURL, err := c.submit(ctx, document, contentType)
	if err != nil {
		return "", err
	}
	return c.poll(ctx, opURL)
}

func (c *AzureClient) submit(ctx context.Context, document []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), azureLayoutModel, azureAPIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(document))
	if err != nil {
		return "", fmt.Errorf("building analyze request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting document for analysis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("analyze request rejected: status %d: %s", resp.StatusCode, body)
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", errors.New("analyze response missing Operation-Location header")
	}
	return opURL, nil
}

func (c *AzureClient) poll(ctx context.Context, opURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		result, err := c.fetchResult(ctx, opURL)
		if err != nil {
			return "", err
		}

		switch result.Status {
		case "succeeded":
			return result.AnalyzeResult.Content, nil
		case "failed":
			if result.Error != nil {
				return "", fmt.Errorf("document analysis failed: %s", result.Error)
			}
			return "", errors.New("document analysis failed")
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for document analysis: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *AzureClient) fetchResult(ctx context.Context, opURL string) (*azureAnalyzeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building poll request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling analysis result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("poll request rejected: status %d: %s", resp.StatusCode, body)
	}

	var result azureAnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding analysis result: %w", err)
	}
	return &result, nil
}
