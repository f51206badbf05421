package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatRequest is one prompt sent to a decision model.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
}

// ChatResponse is the model's completion.
type ChatResponse struct {
	Content   string
	Reasoning string
}

// ModelClient calls a decision model.
type ModelClient interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// HTTPModelClient talks to any OpenAI-compatible chat completion
// endpoint.
type HTTPModelClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPModelClient creates a client for baseURL (e.g.
// "https://api.openai.com/v1"). A non-positive timeout falls back to
// two minutes.
func NewHTTPModelClient(baseURL, apiKey string, timeout time.Duration) *HTTPModelClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPModelClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends a completion request and returns the first choice.
func (c *HTTPModelClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("read chat response: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ChatResponse{}, fmt.Errorf("decode chat response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return ChatResponse{}, fmt.Errorf("model api error %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("model returned no choices")
	}

	choice := parsed.Choices[0].Message
	return ChatResponse{
		Content:   choice.Content,
		Reasoning: choice.ReasoningContent,
	}, nil
}
