package anthropic

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

	"github.com/cenkalti/backoff/v5"

	"github.com/MikeSquared-Agency/nova/internal/llm"
)

const (
	apiURL           = "https://api.anthropic.com/v1/messages"
	defaultMaxTokens = 1024
)

type Client struct {
	apiKey  string
	model   string
	url     string
	retries uint
	client  *http.Client
	backoff func() backoff.BackOff
}

func NewClient(apiKey, model string, retries uint) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		url:     apiURL,
		retries: retries,
		client:  &http.Client{Timeout: 120 * time.Second},
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 4 * time.Second
			return b
		},
	}
}

// SetTestTransport points the client at a test server and removes retry delays.
func (c *Client) SetTestTransport(url string) {
	c.url = url
	c.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type request struct {
	Model       string      `json:"model"`
	MaxTokens   int         `json:"max_tokens"`
	System      string      `json:"system,omitempty"`
	Messages    []message   `json:"messages"`
	Temperature *float64    `json:"temperature,omitempty"`
	Tools       []tool      `json:"tools,omitempty"`
	ToolChoice  *toolChoice `json:"tool_choice,omitempty"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type response struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements llm.Generator.
func (c *Client) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	resp, err := c.send(ctx, c.buildRequest(p))
	if err != nil {
		return "", err
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", &llm.GenerationError{Err: errors.New("empty response content")}
	}
	return strings.Join(parts, ""), nil
}

// GenerateJSON forces a single tool call whose input schema is the requested
// schema and returns the tool input.
func (c *Client) GenerateJSON(ctx context.Context, p llm.Prompt, schema llm.Schema) (json.RawMessage, error) {
	req := c.buildRequest(p)
	req.Tools = []tool{{Name: schema.Name, Description: schema.Description, InputSchema: schema.Definition}}
	req.ToolChoice = &toolChoice{Type: "tool", Name: schema.Name}

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == schema.Name && len(block.Input) > 0 {
			return block.Input, nil
		}
	}
	return nil, &llm.GenerationError{Err: fmt.Errorf("no %s tool call in response", schema.Name)}
}

func (c *Client) buildRequest(p llm.Prompt) request {
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return request{
		Model:       c.model,
		MaxTokens:   maxTokens,
		System:      p.System,
		Messages:    toMessages(p.Turns),
		Temperature: p.Temperature,
	}
}

// toMessages merges consecutive turns of the same role; the API expects
// alternating roles starting with the user.
func toMessages(turns []llm.Turn) []message {
	var out []message
	for _, t := range turns {
		role := string(t.Role)
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + t.Text
			continue
		}
		out = append(out, message{Role: role, Content: t.Text})
	}
	return out
}

func (c *Client) send(ctx context.Context, reqBody request) (*response, error) {
	if c.apiKey == "" {
		return nil, llm.ErrNotConfigured
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	op := func() (*response, error) {
		resp, err := c.do(ctx, body)
		if err != nil {
			var genErr *llm.GenerationError
			if errors.As(err, &genErr) && !genErr.Transient {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(c.retries+1),
	)
}

func (c *Client) do(ctx context.Context, body []byte) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &llm.GenerationError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		// ctx cancellation is not worth retrying
		return nil, &llm.GenerationError{Transient: ctx.Err() == nil, Err: fmt.Errorf("api call: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.GenerationError{Transient: true, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Type != "" {
			return nil, &llm.GenerationError{
				StatusCode: resp.StatusCode,
				Transient:  transient,
				Err:        fmt.Errorf("%s: %s", errResp.Error.Type, errResp.Error.Message),
			}
		}
		return nil, &llm.GenerationError{StatusCode: resp.StatusCode, Transient: transient, Err: errors.New(string(respBody))}
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &llm.GenerationError{Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	return &apiResp, nil
}
