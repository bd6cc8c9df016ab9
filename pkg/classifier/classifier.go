// Package classifier assigns one of a fixed set of labels to text using a chat model
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/dan-solli/gptkit/pkg/llm"
)

// DefaultMaxExamples bounds the few-shot examples kept per label by Tune.
const DefaultMaxExamples = 3

// Hyperparameter keys accepted by SetHyperparameters.
const (
	ParamMaxExamples      = "max_examples"
	ParamDefaultLabel     = "default_label"
	ParamStructuredOutput = "structured_output"
)

var (
	// ErrNoLabels means the classifier has no candidate labels to choose from.
	ErrNoLabels = errors.New("classifier has no candidate labels")

	// ErrUnknownHyperparameter is returned by SetHyperparameters for unsupported keys.
	ErrUnknownHyperparameter = errors.New("unknown hyperparameter")
)

const systemPrompt = `You are a text classification assistant.

Assign the text given by the user to exactly one of these candidate labels:
%s

Respond with ONLY valid JSON:
{"label": "<one of the candidate labels>"}`

type example struct {
	text  string
	label string
}

// labelResponse is the structured output shape when structured_output is set.
type labelResponse struct {
	Label string `json:"label"`
}

// Classifier predicts labels for text with an llm.Classifier.
// Tune and SetHyperparameters may run concurrently with predictions.
type Classifier struct {
	model  llm.Classifier
	logger *slog.Logger

	mu           sync.RWMutex
	labels       []string
	defaultLabel string
	maxExamples  int
	structured   bool
	examples     []example
}

var _ llm.Tunable = (*Classifier)(nil)

// New creates a Classifier choosing among labels. Labels are trimmed and
// deduplicated; they may be left empty and derived later by Tune.
func New(model llm.Classifier, labels []string) *Classifier {
	return &Classifier{
		model:       model,
		labels:      uniqueLabels(labels),
		maxExamples: DefaultMaxExamples,
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func (c *Classifier) WithLogger(logger *slog.Logger) *Classifier {
	c.logger = logger
	return c
}

func (c *Classifier) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Labels returns the candidate labels.
func (c *Classifier) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.labels...)
}

// PredictOne returns the label for text. A label outside the candidate set, or a
// completion without a readable label, yields the default label.
func (c *Classifier) PredictOne(ctx context.Context, text string) (string, error) {
	c.mu.RLock()
	if len(c.labels) == 0 {
		c.mu.RUnlock()
		return "", ErrNoLabels
	}
	messages := c.buildMessages(text)
	structured := c.structured
	c.mu.RUnlock()

	var label string
	if structured {
		var out labelResponse
		if err := c.model.GetParsedCompletion(ctx, messages, &out); err != nil {
			return "", fmt.Errorf("classify: %w", err)
		}
		label = out.Label
	} else {
		completion, err := c.model.GetChatCompletion(ctx, messages, llm.WithJSONResponse(true))
		if err != nil {
			return "", fmt.Errorf("classify: %w", err)
		}
		label, err = c.model.ExtractLabel(completion)
		if err != nil && !errors.Is(err, llm.ErrNoLabel) {
			return "", fmt.Errorf("classify: %w", err)
		}
		if err != nil {
			c.log().Warn("completion carried no label, using default", "error", err)
		}
	}

	return c.normalize(label), nil
}

// Predict labels each text in order. It stops at the first failed prediction.
func (c *Classifier) Predict(ctx context.Context, texts []string) ([]string, error) {
	labels := make([]string, 0, len(texts))
	for i, text := range texts {
		label, err := c.PredictOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// normalize maps label onto the candidate set, case-insensitively, falling back
// to the default label.
func (c *Classifier) normalize(label string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	label = strings.TrimSpace(label)
	for _, candidate := range c.labels {
		if candidate == label {
			return candidate
		}
	}
	for _, candidate := range c.labels {
		if strings.EqualFold(candidate, label) {
			return candidate
		}
	}

	fallback := c.fallbackLabel()
	if label != "" {
		c.log().Warn("predicted label is not a candidate, using default",
			"label", label,
			"default_label", fallback)
	}
	return fallback
}

func (c *Classifier) fallbackLabel() string {
	if c.defaultLabel != "" {
		return c.defaultLabel
	}
	return c.labels[0]
}

// buildMessages must be called with c.mu held.
func (c *Classifier) buildMessages(text string) []llm.Message {
	quoted := make([]string, len(c.labels))
	for i, l := range c.labels {
		quoted[i] = fmt.Sprintf("- %q", l)
	}

	messages := make([]llm.Message, 0, 2+2*len(c.examples))
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(systemPrompt, strings.Join(quoted, "\n")),
	})
	for _, ex := range c.examples {
		answer, _ := json.Marshal(labelResponse{Label: ex.label})
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: ex.text},
			llm.Message{Role: llm.RoleAssistant, Content: string(answer)},
		)
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: text})
}

// Tune records labelled examples used as few-shot context, keeping at most
// max_examples per label. When the classifier was created without labels, the
// candidate set becomes the distinct values of y in order of appearance.
// Nothing is sent to the provider.
func (c *Classifier) Tune(ctx context.Context, X, y []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(X) != len(y) {
		return fmt.Errorf("tune: %d texts but %d labels", len(X), len(y))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	labels := c.labels
	if len(labels) == 0 {
		labels = uniqueLabels(y)
	}
	if len(labels) == 0 {
		return ErrNoLabels
	}

	known := make(map[string]bool, len(labels))
	for _, l := range labels {
		known[l] = true
	}

	perLabel := make(map[string]int)
	var examples []example
	for i, text := range X {
		label := strings.TrimSpace(y[i])
		if !known[label] {
			return fmt.Errorf("tune: example %d has label %q outside the candidate set", i, label)
		}
		if perLabel[label] >= c.maxExamples {
			continue
		}
		perLabel[label]++
		examples = append(examples, example{text: text, label: label})
	}

	c.labels = labels
	c.examples = examples
	c.log().Debug("classifier tuned",
		"labels", len(labels),
		"examples", len(examples))
	return nil
}

// SetHyperparameters applies max_examples (non-negative int), default_label
// (a candidate label) and structured_output (bool). Nothing is applied when any
// key is unknown or any value is invalid. A lower max_examples trims stored examples.
func (c *Classifier) SetHyperparameters(params map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	maxExamples, defaultLabel, structured := c.maxExamples, c.defaultLabel, c.structured
	for key, value := range params {
		switch key {
		case ParamMaxExamples:
			n, ok := asInt(value)
			if !ok || n < 0 {
				return fmt.Errorf("%s must be a non-negative integer, got %v", key, value)
			}
			maxExamples = n
		case ParamDefaultLabel:
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("%s must be a string, got %T", key, value)
			}
			defaultLabel = strings.TrimSpace(s)
		case ParamStructuredOutput:
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("%s must be a bool, got %T", key, value)
			}
			structured = b
		default:
			return fmt.Errorf("%w: %q", ErrUnknownHyperparameter, key)
		}
	}

	if defaultLabel != "" && !slices.Contains(c.labels, defaultLabel) {
		return fmt.Errorf("%s %q is not a candidate label", ParamDefaultLabel, defaultLabel)
	}

	c.maxExamples, c.defaultLabel, c.structured = maxExamples, defaultLabel, structured
	c.examples = trimExamples(c.examples, maxExamples)
	return nil
}

func trimExamples(examples []example, perLabel int) []example {
	counts := make(map[string]int)
	kept := examples[:0]
	for _, ex := range examples {
		if counts[ex.label] >= perLabel {
			continue
		}
		counts[ex.label]++
		kept = append(kept, ex)
	}
	return kept
}

// asInt accepts the integer shapes produced by Go callers, JSON and YAML decoding.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func uniqueLabels(labels []string) []string {
	var out []string
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
