package genai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/openclaw/whatsapp-bridge-go/internal/errors"
)

// Client talks to an Ollama server's generate API.
type Client struct {
	host    string
	model   string
	httpcli *http.Client
}

func NewClient(host, model string, timeout time.Duration) *Client {
	return &Client{
		host:    host,
		model:   model,
		httpcli: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate returns the full generated text for prompt, blocking until done.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.GenerateStream(ctx, prompt, nil)
}

// GenerateStream generates text for prompt, invoking onChunk (if non-nil)
// with each partial response in order, and returns the aggregated text.
func (c *Client) GenerateStream(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: true,
	})
	if err != nil {
		return "", apperrors.Generation(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Generation(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpcli.Do(req)
	if err != nil {
		return "", apperrors.External("ollama", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.External("ollama", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var full bytes.Buffer
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", apperrors.Generation(fmt.Errorf("malformed stream chunk: %w", err))
		}
		if chunk.Error != "" {
			return "", apperrors.Generation(fmt.Errorf("ollama: %s", chunk.Error))
		}
		if chunk.Response != "" {
			full.WriteString(chunk.Response)
			if onChunk != nil {
				onChunk(chunk.Response)
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", apperrors.Generation(err)
	}

	return full.String(), nil
}
