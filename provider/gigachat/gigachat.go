package gigachat

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	oauthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	apiBase  = "https://gigachat.devices.sberbank.ru/api/v1"
)

// Options configures a GigaChat client.
type Options struct {
	Credentials    string // base64 authorization key for the OAuth exchange
	Scope          string
	Model          string
	EmbeddingModel string
	VerifySSL      bool
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	Logger         *log.Logger
}

// Client talks to the GigaChat REST API. Access tokens are short-lived
// and refreshed transparently.
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *log.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewClient builds a GigaChat client. Credentials are required; the
// sandbox endpoints use a certificate chain that is commonly not in
// the system trust store, which is what VerifySSL=false is for.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Credentials) == "" {
		return nil, errors.New("gigachat credentials are empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[GIGACHAT] ", log.LstdFlags)
	}
	transport := &http.Transport{}
	if !opts.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout, Transport: transport},
		logger:     opts.Logger,
	}, nil
}

// Chat sends one system+user exchange and returns the model's reply.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	reqBody := chatRequest{
		Model: c.opts.Model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gigachat chat call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gigachat chat returned status %d: %s", resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("gigachat returned no choices")
	}
	if out.Usage.TotalTokens > 0 {
		c.logger.Printf("chat tokens used: prompt=%d completion=%d total=%d",
			out.Usage.PromptTokens, out.Usage.CompletionTokens, out.Usage.TotalTokens)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// CreateEmbedding embeds the given texts with the multilingual
// embeddings model.
func (c *Client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"model": c.opts.EmbeddingModel,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiBase+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gigachat embedding call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gigachat embeddings returned status %d: %s", resp.StatusCode, snippet)
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	vecs := make([][]float32, len(out.Data))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// token returns a valid access token, exchanging the authorization key
// when the cached one is missing or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.expiresAt.Add(-30*time.Second)) {
		return c.accessToken, nil
	}

	form := url.Values{"scope": {c.opts.Scope}}
	req, err := http.NewRequestWithContext(ctx, "POST", oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create oauth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", "Basic "+c.opts.Credentials)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gigachat oauth call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gigachat oauth returned status %d: %s", resp.StatusCode, snippet)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"` // unix millis
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode oauth response: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("gigachat oauth returned empty token")
	}
	c.accessToken = out.AccessToken
	c.expiresAt = time.UnixMilli(out.ExpiresAt)
	return c.accessToken, nil
}
