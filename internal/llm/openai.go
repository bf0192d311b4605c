package llm

import (
	"bufio"
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

const defaultMaxTokens = 4096

var ErrNoEndpoint = errors.New("no completion endpoint configured")

// UpstreamError is a non-2xx reply from the completion API
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion request failed with status %d: %s", e.StatusCode, e.Body)
}

// OpenAIProvider talks to any OpenAI compatible chat completions API
type OpenAIProvider struct {
	httpClient *http.Client
	apiKey     string
	model      string
	endpoints  []string
	balancer   Balancer
}

type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURLs  []string
	Balancer  Balancer
	Timeout   time.Duration
	MaxTokens int
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Balancer == nil {
		cfg.Balancer = &RoundRobin{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	endpoints := make([]string, 0, len(cfg.BaseURLs))
	for _, base := range cfg.BaseURLs {
		endpoints = append(endpoints, strings.TrimRight(base, "/")+"/chat/completions")
	}

	return &OpenAIProvider{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		endpoints:  endpoints,
		balancer:   cfg.Balancer,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

type completionRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
}

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (p *OpenAIProvider) Stream(ctx context.Context, userMessage string, chatCtx ChatContext, emit EmitFunc) error {
	endpoint := p.balancer.Next(p.endpoints)
	if endpoint == "" {
		return ErrNoEndpoint
	}

	body, err := json.Marshal(completionRequest{
		Model:     p.model,
		Messages:  BuildMessages(userMessage, chatCtx),
		MaxTokens: defaultMaxTokens,
		Stream:    true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("completion request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	return readEventStream(resp.Body, emit)
}

// readEventStream forwards the content deltas of an SSE completion stream
func readEventStream(r io.Reader, emit EmitFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return nil
		}

		var chunk completionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("malformed completion chunk: %w", err)
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := emit(choice.Delta.Content); err != nil {
				return err
			}
		}
	}

	return scanner.Err()
}
