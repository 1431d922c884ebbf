// Package gemini implements the judging capability on Google's Gemini API.
package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/havenyouth/hilo/internal/classifier"
)

const defaultTimeout = 8 * time.Second

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

func New(ctx context.Context, c Config) (*Client, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is empty")
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(c.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}

	m := gc.GenerativeModel(c.Model)
	m.SetTemperature(0)
	m.ResponseMIMEType = "application/json"

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{client: gc, model: m, timeout: timeout}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Judge sends the judging prompt and decodes the verdict. The call is
// bounded by the configured timeout; a deadline hit surfaces as an error
// that the coordinator degrades to a miss.
func (c *Client) Judge(ctx context.Context, req classifier.Request) (classifier.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(ctx, genai.Text(classifier.BuildPrompt(req)))
	if err != nil {
		return classifier.Response{}, fmt.Errorf("gemini: generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return classifier.Response{}, fmt.Errorf("gemini: empty response")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return classifier.Response{}, fmt.Errorf("gemini: unexpected part type %T", resp.Candidates[0].Content.Parts[0])
	}

	return classifier.ParseResponse(string(text))
}
