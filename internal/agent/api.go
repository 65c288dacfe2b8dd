package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// API backend defaults
const (
	DefaultAPIBaseURL = "http://localhost:8000/v1"
	DefaultAPIKeyEnv  = "OPENAI_API_KEY"
	apiProbeTimeout   = 5 * time.Second
	apiTemperature    = 0.7
)

// APIBackend sends the prompt to an OpenAI-compatible chat completions
// endpoint. The model has no tool access, so it can only succeed at tasks
// where a human or later iteration applies its answer.
type APIBackend struct {
	model   string
	baseURL string
	keyEnv  string
	client  *http.Client
}

// NewAPI returns an API backend. Empty baseURL and keyEnv select the defaults.
func NewAPI(model, baseURL, keyEnv string) *APIBackend {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if keyEnv == "" {
		keyEnv = DefaultAPIKeyEnv
	}
	return &APIBackend{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		keyEnv:  keyEnv,
		client:  &http.Client{},
	}
}

// Name implements Backend.
func (b *APIBackend) Name() string {
	return string(KindAPI)
}

// CheckAvailable probes GET {base}/models.
func (b *APIBackend) CheckAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, apiProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	b.authorize(req)
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (b *APIBackend) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+os.Getenv(b.keyEnv))
}

// Run implements Backend.
func (b *APIBackend) Run(ctx context.Context, prompt, _ string, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := json.Marshal(chatRequest{
		Model:       b.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: apiTemperature,
	})
	if err != nil {
		return failed("API request failed: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return failed("API request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.authorize(req)

	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failed("API request timed out after %v", timeout)
		}
		return failed("API request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed("API request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{
			ExitCode: resp.StatusCode,
			Stderr:   fmt.Sprintf("API request failed: %d - %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return failed("API request failed: invalid response: %v", err)
	}
	if len(parsed.Choices) == 0 {
		return failed("API request failed: response has no choices")
	}
	return Result{ExitCode: 0, Stdout: parsed.Choices[0].Message.Content, Success: true}
}
