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

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider calls the Generative Language API's generateContent
// endpoint, translating the single-prompt request shape the
// orchestrator uses into Gemini's contents/parts structure.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (p *GeminiProvider) Name() string  { return "google" }
func (p *GeminiProvider) Model() string { return p.model }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

func (p *GeminiProvider) Generate(prompt string, timeoutSeconds int) (Response, error) {
	reqBody := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, NewProviderError("marshal request: "+err.Error(), "")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, NewProviderError("create request: "+err.Error(), "")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, NewProviderError("gemini request failed: "+err.Error(), "timeout")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, NewProviderError("reading response: "+err.Error(), "")
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, NewProviderError(
			fmt.Sprintf("gemini returned status %d: %s", resp.StatusCode, string(respBody)),
			errorCodeForStatus(resp.StatusCode, respBody),
		)
	}

	var decoded struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Response{}, NewProviderError("decode response: "+err.Error(), "json")
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return Response{}, NewProviderError("gemini returned no candidates", "json")
	}

	var raw map[string]any
	_ = json.Unmarshal(respBody, &raw)

	return Response{OutputText: decoded.Candidates[0].Content.Parts[0].Text, Raw: raw}, nil
}
