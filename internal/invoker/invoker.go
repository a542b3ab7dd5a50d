// Package invoker wraps the outbound calls the pipeline makes to Stage-1,
// reviewer, and Chairman backends behind a single interface, grounded on the
// llama.cpp-compatible local completion contract and the Hugging Face/Gemini
// hosted contracts (spec §6).
package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dev.helix.agent/council/internal/errors"
)

// Invoker sends a prompt payload to a backend and returns its generated
// text, or an *errors.InvokerError classified by failure kind.
type Invoker interface {
	// Label identifies this invoker for model_label/origin_model fields.
	Label() string
	// Generate sends prompt to the backend and returns the generated text
	// with leading and trailing whitespace trimmed.
	Generate(ctx context.Context, prompt Prompt) (string, error)
	// HealthCheck reports whether the backend currently answers as online.
	HealthCheck(ctx context.Context) bool
}

// Prompt is the backend-agnostic request payload. Fields not applicable to
// a given backend are ignored by that backend's invoker.
type Prompt struct {
	Text        string
	Temperature float64
	MaxTokens   int
}

// httpDo is the narrow surface invokers need from *http.Client, so tests can
// substitute a fake transport without standing up a real listener.
type httpDo interface {
	Do(req *http.Request) (*http.Response, error)
}

// LocalCompletionInvoker talks to a llama.cpp-compatible local inference
// server: POST {base}/completion, GET {base}/health.
type LocalCompletionInvoker struct {
	label      string
	baseURL    string
	httpClient httpDo
}

// NewLocalCompletionInvoker builds an invoker for a local completion
// backend labeled label, serving at baseURL.
func NewLocalCompletionInvoker(label, baseURL string, timeout time.Duration) *LocalCompletionInvoker {
	return &LocalCompletionInvoker{
		label:      label,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (i *LocalCompletionInvoker) Label() string { return i.label }

func (i *LocalCompletionInvoker) Generate(ctx context.Context, prompt Prompt) (string, error) {
	payload := map[string]interface{}{
		"prompt":      prompt.Text,
		"temperature": prompt.Temperature,
	}
	if prompt.MaxTokens > 0 {
		payload["n_predict"] = prompt.MaxTokens
	}

	raw, err := i.doRequest(ctx, http.MethodPost, "/completion", payload)
	if err != nil {
		return "", err
	}

	var result map[string]interface{}
	_ = json.Unmarshal(raw, &result)

	var generated string
	switch {
	case result["content"] != nil:
		generated, _ = result["content"].(string)
	case result["choices"] != nil:
		if choices, ok := result["choices"].([]interface{}); ok && len(choices) > 0 {
			if first, ok := choices[0].(map[string]interface{}); ok {
				generated, _ = first["text"].(string)
			}
		}
	case result["text"] != nil:
		generated, _ = result["text"].(string)
	default:
		// Unrecognized payload shape: fall back to the stringified body
		// rather than silently returning empty text (spec's JSON recovery
		// policy applies equally to the raw completion response).
		generated = string(raw)
	}
	return strings.TrimSpace(generated), nil
}

func (i *LocalCompletionInvoker) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (i *LocalCompletionInvoker) doRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewTransportError(i.label, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, i.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewTransportError(i.label, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewTimeoutError(i.label, err)
		}
		return nil, errors.NewTransportError(i.label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewStatusError(i.label, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError(i.label, err)
	}
	return raw, nil
}

// HostedInferenceInvoker talks to a Hugging Face-style hosted inference
// endpoint: POST {apiURL}/{model} with bearer auth.
type HostedInferenceInvoker struct {
	label      string
	apiURL     string
	apiToken   string
	httpClient httpDo
}

// NewHostedInferenceInvoker builds an invoker for a bearer-authenticated
// hosted inference backend.
func NewHostedInferenceInvoker(label, apiURL, model, apiToken string, timeout time.Duration) *HostedInferenceInvoker {
	return &HostedInferenceInvoker{
		label:      label,
		apiURL:     strings.TrimRight(apiURL, "/") + "/" + model,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (i *HostedInferenceInvoker) Label() string { return i.label }

func (i *HostedInferenceInvoker) Generate(ctx context.Context, prompt Prompt) (string, error) {
	payload := map[string]interface{}{
		"inputs": prompt.Text,
		"parameters": map[string]interface{}{
			"temperature": prompt.Temperature,
		},
	}

	req, err := i.newRequest(ctx, http.MethodPost, payload)
	if err != nil {
		return "", err
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.NewTimeoutError(i.label, err)
		}
		return "", errors.NewTransportError(i.label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.NewStatusError(i.label, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewTransportError(i.label, err)
	}

	generated := extractGeneratedText(raw)
	generated = strings.ReplaceAll(generated, prompt.Text, "")
	return strings.TrimSpace(generated), nil
}

// extractGeneratedText handles the Hugging Face response shapes: a list of
// {"generated_text": ...} objects, or a single dict with "generated_text" or
// "text".
func extractGeneratedText(raw []byte) string {
	var list []map[string]interface{}
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		if text, ok := list[0]["generated_text"].(string); ok {
			return text
		}
	}

	var obj map[string]interface{}
	if json.Unmarshal(raw, &obj) == nil {
		if text, ok := obj["generated_text"].(string); ok {
			return text
		}
		if text, ok := obj["text"].(string); ok {
			return text
		}
	}

	return string(raw)
}

func (i *HostedInferenceInvoker) newRequest(ctx context.Context, method string, payload interface{}) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewTransportError(i.label, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, i.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewTransportError(i.label, err)
	}
	req.Header.Set("Authorization", "Bearer "+i.apiToken)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// HealthCheck treats 200 (ready) and 503 (loading) as online, matching the
// hosted inference API's model-warmup convention.
func (i *HostedInferenceInvoker) HealthCheck(ctx context.Context) bool {
	req, err := i.newRequest(ctx, http.MethodGet, nil)
	if err != nil {
		return false
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusServiceUnavailable
}

// HostedChatInvoker talks to a free-form generative chat backend (used only
// for the Chairman/synthesis stage).
type HostedChatInvoker struct {
	label      string
	apiURL     string
	apiKey     string
	model      string
	httpClient httpDo
}

// NewHostedChatInvoker builds the Chairman's hosted chat invoker.
func NewHostedChatInvoker(label, apiURL, model, apiKey string, timeout time.Duration) *HostedChatInvoker {
	return &HostedChatInvoker{
		label:      label,
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (i *HostedChatInvoker) Label() string { return i.label }

func (i *HostedChatInvoker) Generate(ctx context.Context, prompt Prompt) (string, error) {
	payload := map[string]interface{}{
		"model": i.model,
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt.Text}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     prompt.Temperature,
			"maxOutputTokens": prompt.MaxTokens,
			"candidateCount":  1,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.NewTransportError(i.label, err)
	}

	url := fmt.Sprintf("%s?key=%s", i.apiURL, i.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.NewTransportError(i.label, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.NewTimeoutError(i.label, err)
		}
		return "", errors.NewTransportError(i.label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.NewStatusError(i.label, resp.StatusCode)
	}

	var decoded struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.NewTransportError(i.label, err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", errors.NewTransportError(i.label, fmt.Errorf("empty candidate response"))
	}
	return strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text), nil
}

func (i *HostedChatInvoker) HealthCheck(ctx context.Context) bool {
	if i.apiKey == "" {
		return false
	}
	_, err := i.Generate(ctx, Prompt{Text: "Test", MaxTokens: 4})
	return err == nil
}
