package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matsen/citeq/internal/httpx"
)

const (
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultModel is the default generation model.
	DefaultModel = "llama2"

	// DefaultAnswerAttempts bounds how often a prompt is re-sent when the
	// model does not produce an answer marker.
	DefaultAnswerAttempts = 5

	answerMarker = "ANSWER:"

	apiPathTags     = "/api/tags"
	apiPathGenerate = "/api/generate"
)

// ErrNoAnswer indicates the model never produced an answer marker.
var ErrNoAnswer = errors.New("model response has no answer")

// Classifier assigns a label to a citation context.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// OllamaClassifier prompts a local Ollama model and maps its answer onto a
// label set.
type OllamaClassifier struct {
	baseURL  string
	model    string
	labels   LabelSet
	attempts int
	http     *httpx.Client
	log      *zap.Logger
}

// OllamaOption configures an OllamaClassifier.
type OllamaOption func(*OllamaClassifier)

// WithBaseURL sets the Ollama API base URL.
func WithBaseURL(url string) OllamaOption {
	return func(c *OllamaClassifier) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the generation model.
func WithModel(model string) OllamaOption {
	return func(c *OllamaClassifier) {
		c.model = model
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *httpx.Client) OllamaOption {
	return func(c *OllamaClassifier) {
		c.http = hc
	}
}

// WithAnswerAttempts sets how many generations may be requested per
// citation before giving up on an answer.
func WithAnswerAttempts(n int) OllamaOption {
	return func(c *OllamaClassifier) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) OllamaOption {
	return func(c *OllamaClassifier) {
		if log != nil {
			c.log = log
		}
	}
}

// NewOllamaClassifier creates a classifier for labels.
func NewOllamaClassifier(labels LabelSet, opts ...OllamaOption) *OllamaClassifier {
	c := &OllamaClassifier{
		baseURL:  DefaultOllamaURL,
		model:    DefaultModel,
		labels:   labels,
		attempts: DefaultAnswerAttempts,
		http:     httpx.NewClient(httpx.WithRateLimit(0), httpx.WithMaxAttempts(3)),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ModelName returns the name of the generation model.
func (c *OllamaClassifier) ModelName() string {
	return c.model
}

// Classify prompts the model with text and returns the nearest label.
func (c *OllamaClassifier) Classify(ctx context.Context, text string) (string, error) {
	prompt := c.labels.Prompt + text

	for attempt := 1; attempt <= c.attempts; attempt++ {
		var resp ollamaGenerateResponse
		err := c.http.PostJSON(ctx, c.baseURL+apiPathGenerate, nil, ollamaGenerateRequest{
			Model:  c.model,
			Prompt: prompt,
			Stream: false,
		}, &resp)
		if err != nil {
			return "", fmt.Errorf("generating: %w", err)
		}

		if answer, ok := parseAnswer(resp.Response); ok {
			return c.labels.Nearest(answer), nil
		}
		c.log.Debug("response without answer, asking again",
			zap.Int("attempt", attempt),
			zap.String("response", resp.Response))
	}
	return "", fmt.Errorf("%d generations: %w", c.attempts, ErrNoAnswer)
}

// parseAnswer returns the text following the answer marker.
func parseAnswer(response string) (string, bool) {
	_, after, ok := strings.Cut(response, answerMarker)
	if !ok {
		return "", false
	}
	// A second marker ends the answer.
	after, _, _ = strings.Cut(after, answerMarker)
	return strings.ToLower(strings.TrimSpace(after)), true
}

// HasModel checks that Ollama is reachable and serves the configured model.
func (c *OllamaClassifier) HasModel(ctx context.Context) (bool, error) {
	var result ollamaTagsResponse
	if err := c.http.FetchJSON(ctx, c.baseURL+apiPathTags, nil, &result); err != nil {
		return false, fmt.Errorf("ollama is not running: %w", err)
	}

	for _, m := range result.Models {
		if m.Name == c.model || strings.TrimSuffix(m.Name, ":latest") == c.model {
			return true, nil
		}
	}
	return false, nil
}

// ollamaGenerateRequest is the request body for the Ollama generate API.
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaGenerateResponse is the non-streaming response of the generate API.
type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// ollamaTagsResponse is the response from the Ollama tags API.
type ollamaTagsResponse struct {
	Models []ollamaModel `json:"models"`
}

type ollamaModel struct {
	Name string `json:"name"`
}
