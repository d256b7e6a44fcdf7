package docscan

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/infrastructure/resilience"
)

// Client talks to the OCR/extraction sidecar service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewClient(baseURL string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type extractRequest struct {
	Filename      string `json:"filename"`
	MimeType      string `json:"mime_type"`
	ContentBase64 string `json:"content_base64"`
}

type extractResponse struct {
	Text     string            `json:"text"`
	Fields   map[string]string `json:"fields"`
	Language string            `json:"language"`
}

// ExtractBytes sends raw document bytes for OCR and structured-field parsing.
func (c *Client) ExtractBytes(ctx context.Context, filename, mimeType string, content []byte) (domain.Extraction, error) {
	request := extractRequest{
		Filename:      filename,
		MimeType:      mimeType,
		ContentBase64: base64.StdEncoding.EncodeToString(content),
	}

	var response extractResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/extract", request, &response, "extract")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "docscan.extract", call, classifyExtractError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.Extraction{}, err
	}

	return domain.Extraction{
		Text:     response.Text,
		Fields:   response.Fields,
		Language: response.Language,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("docscan %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return formatHTTPError(operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func formatHTTPError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("docscan %s status: %s: %w", operation, resp.Status, statusKind(resp.StatusCode))
	}
	return fmt.Errorf("docscan %s status: %s: %s: %w", operation, resp.Status, msg, statusKind(resp.StatusCode))
}

type httpStatusError int

func (e httpStatusError) Error() string {
	return fmt.Sprintf("http status %d", int(e))
}

func statusKind(code int) error {
	return httpStatusError(code)
}
