package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"crawlchat/config"
)

const (
	askPath   = "/ask"
	crawlPath = "/crawl"
	imagePath = "/serverless-image-generation/"
	voicePath = "/voice-chat"
)

type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
}

type AskResponse struct {
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer"`
}

type CrawlRequest struct {
	URL string `json:"url"`
}

type CrawlResponse struct {
	Message string `json:"message"`
}

// NewClient builds a client for the backend at baseURL. A nil httpClient
// means a client with no overall timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}

	parsedURL, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: missing host", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    parsedURL,
	}, nil
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// VoiceURL returns the WebSocket address of the voice endpoint.
func (c *Client) VoiceURL() string {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + voicePath
	u.RawQuery = ""
	return u.String()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Ask sends one question and returns the answer text.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	endpoint := c.endpoint(askPath, url.Values{"question": {question}})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logf("[Backend] GET %s", endpoint)

	var out AskResponse
	if err := c.do(req, OpAsk, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// Crawl asks the backend to crawl rawURL. The URL is normalized first.
func (c *Client) Crawl(ctx context.Context, rawURL string) (string, error) {
	body, err := json.Marshal(CrawlRequest{URL: NormalizeURL(rawURL)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.endpoint(crawlPath, nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logf("[Backend] POST %s %s", endpoint, body)

	var out CrawlResponse
	if err := c.do(req, OpCrawl, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// GenerateImage asks the backend to render prompt and returns the PNG bytes.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	endpoint := c.endpoint(imagePath, url.Values{"prompt": {prompt}})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	logf("[Backend] POST %s", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(OpImage, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no image data received")
	}
	return data, nil
}

func (c *Client) do(req *http.Request, op Op, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logf("[Backend] %s transport error: %v", op, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := newStatusError(op, resp)
		logf("[Backend] %s failed: status %d detail %q", op, statusErr.StatusCode, statusErr.Detail)
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func logf(format string, args ...any) {
	if config.DebugLog != nil {
		config.DebugLog.Printf(format, args...)
	}
}
