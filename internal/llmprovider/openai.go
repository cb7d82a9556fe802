package llmprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider calls the Chat Completions API.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIProvider builds an OpenAI provider connector with a
// dedicated HTTP client, matching the gateway connectors' pattern of
// one client (and its own idle-connection pool) per provider.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIBaseURL,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.model }

type openAIChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *OpenAIProvider) Generate(prompt string, timeoutSeconds int) (Response, error) {
	reqBody := openAIChatRequest{
		Model: p.model,
		Messages: []openAIChatMessage{
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, NewProviderError("marshal request: "+err.Error(), "")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, NewProviderError("create request: "+err.Error(), "")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, NewProviderError("openai request failed: "+err.Error(), "timeout")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, NewProviderError("reading response: "+err.Error(), "")
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, NewProviderError(
			fmt.Sprintf("openai returned status %d: %s", resp.StatusCode, string(respBody)),
			errorCodeForStatus(resp.StatusCode, respBody),
		)
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Response{}, NewProviderError("decode response: "+err.Error(), "json")
	}
	if len(decoded.Choices) == 0 {
		return Response{}, NewProviderError("openai returned no choices", "json")
	}

	var raw map[string]any
	_ = json.Unmarshal(respBody, &raw)

	return Response{OutputText: decoded.Choices[0].Message.Content, Raw: raw}, nil
}

// errorCodeForStatus maps an HTTP status onto the small vocabulary of
// provider error codes the llm orchestrator's retry classifier knows
// about (see internal/llm).
func errorCodeForStatus(status int, body []byte) string {
	switch status {
	case http.StatusUnauthorized:
		return "401"
	case http.StatusForbidden:
		return "403"
	case http.StatusTooManyRequests:
		if bytes.Contains(body, []byte("insufficient_quota")) {
			return "insufficient_quota"
		}
		return "rate_limit"
	}
	return ""
}
