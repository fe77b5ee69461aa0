// Package generation fills in characters and places with a Gemini model.
// Each call is a single structured-output request; nothing is streamed and
// nothing is kept between calls.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"lorebook/internal/logging"
	"lorebook/internal/lore"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Model is the part of the genai API this package calls. *genai.Models
// satisfies it.
type Model interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Character is a generated character.
type Character struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Description string   `json:"description"`
	Traits      []string `json:"traits"`
}

// Place is a generated place.
type Place struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client generates structured entities.
type Client struct {
	models  Model
	model   string
	timeout time.Duration
}

// New creates a client. With no API key the client is still returned, but
// every call fails with lore.ErrMissingCredential and nothing is sent.
func New(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{model: cfg.Model, timeout: cfg.Timeout}
	if c.model == "" {
		c.model = DefaultModel
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		logging.Generation("no API key configured; generation disabled")
		return c, nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GenAI client: %w", lore.ErrGeneration, err)
	}
	c.models = gc.Models
	logging.Generation("GenAI client ready (model=%s)", c.model)
	return c, nil
}

// NewWithModel creates a client over an existing Model.
func NewWithModel(m Model, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{models: m, model: model}
}

// Configured reports whether calls can reach the model.
func (c *Client) Configured() bool { return c != nil && c.models != nil }

// ModelName returns the configured model id.
func (c *Client) ModelName() string { return c.model }

// GenerateCharacter asks the model for a character matching prompt.
func (c *Client) GenerateCharacter(ctx context.Context, prompt string) (Character, error) {
	var out Character
	err := c.generate(ctx, "character", characterRequest(prompt), &out)
	if err != nil {
		return Character{}, err
	}
	out.Name = strings.TrimSpace(out.Name)
	if out.Name == "" {
		return Character{}, fmt.Errorf("%w: response has no name", lore.ErrGeneration)
	}
	if out.Traits == nil {
		out.Traits = []string{}
	}
	return out, nil
}

// GeneratePlace asks the model for a place matching prompt.
func (c *Client) GeneratePlace(ctx context.Context, prompt string) (Place, error) {
	var out Place
	err := c.generate(ctx, "place", placeRequest(prompt), &out)
	if err != nil {
		return Place{}, err
	}
	out.Name = strings.TrimSpace(out.Name)
	if out.Name == "" {
		return Place{}, fmt.Errorf("%w: response has no name", lore.ErrGeneration)
	}
	return out, nil
}

func (c *Client) generate(ctx context.Context, what string, req request, out any) error {
	if !c.Configured() {
		return errors.Join(lore.ErrGeneration, fmt.Errorf("%w: generation API key is not set", lore.ErrMissingCredential))
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	timer := logging.StartTimer(logging.CategoryGeneration, "generate "+what)
	defer timer.StopWithThreshold(30 * time.Second)
	logging.GenerationDebug("generate %s: %q", what, req.content)

	resp, err := c.models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(req.content, genai.RoleUser)},
		req.config,
	)
	if err != nil {
		logging.Get(logging.CategoryGeneration).Error("generate %s failed: %v", what, err)
		return fmt.Errorf("%w: %w", lore.ErrGeneration, err)
	}
	if resp == nil {
		return fmt.Errorf("%w: empty response", lore.ErrGeneration)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return fmt.Errorf("%w: model returned no text", lore.ErrGeneration)
	}
	if err := json.Unmarshal([]byte(stripFence(text)), out); err != nil {
		logging.Get(logging.CategoryGeneration).Warn("unparsable %s response: %q", what, text)
		return fmt.Errorf("%w: unparsable response: %w", lore.ErrGeneration, err)
	}
	return nil
}

// stripFence removes a ```json fence some models wrap around JSON output.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
