package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// OCRClient calls an external PDF-to-markdown service. The service accepts a
// multipart "file" field and answers with {"status": "...", "text": "..."}.
type OCRClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewOCRClient(endpoint string, timeout time.Duration) *OCRClient {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &OCRClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type ocrResponse struct {
	Status         string `json:"status"`
	Text           string `json:"text"`
	Message        string `json:"message"`
	PagesProcessed int    `json:"pages_processed"`
}

// Markdown uploads the PDF and returns the service's markdown rendition.
func (c *OCRClient) Markdown(ctx context.Context, data []byte, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr service status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var out ocrResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		// Some deployments return the markdown as the raw body.
		return string(respBody), nil
	}
	if out.Status == "error" {
		return "", fmt.Errorf("ocr service error: %s", out.Message)
	}
	return out.Text, nil
}

// Close releases resources.
func (c *OCRClient) Close() {
	c.httpClient.CloseIdleConnections()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
