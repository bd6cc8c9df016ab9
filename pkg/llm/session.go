package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Session binds a Completer to one key/organization pair and a set of default
// call options. It implements TextCompleter and Classifier.
type Session struct {
	completer *Completer
	key       string
	org       string
	opts      []CallOption
}

var _ Classifier = (*Session)(nil)

// Session returns a Session using key and org for every call. opts apply before
// any per-call options.
func (c *Completer) Session(key, org string, opts ...CallOption) *Session {
	return &Session{completer: c, key: key, org: org, opts: opts}
}

func (s *Session) merge(opts []CallOption) []CallOption {
	merged := make([]CallOption, 0, len(s.opts)+len(opts))
	merged = append(merged, s.opts...)
	return append(merged, opts...)
}

// GetChatCompletion implements TextCompleter.
func (s *Session) GetChatCompletion(ctx context.Context, messages []Message, opts ...CallOption) (Completion, error) {
	return s.completer.GetChatCompletion(ctx, messages, s.key, s.org, s.merge(opts)...)
}

// GetParsedCompletion implements TextCompleter.
func (s *Session) GetParsedCompletion(ctx context.Context, messages []Message, out any, opts ...CallOption) error {
	return s.completer.GetParsedCompletion(ctx, messages, out, s.key, s.org, s.merge(opts)...)
}

// CompletionToString returns the content of the primary choice.
func (s *Session) CompletionToString(completion Completion) (string, error) {
	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return completion.Choices[0].Message.Content, nil
}

// ExtractLabel reads the "label" key from the primary choice's JSON content.
// Markdown code fences around the JSON are ignored and an array value yields its
// first element.
func (s *Session) ExtractLabel(completion Completion) (string, error) {
	content, err := s.CompletionToString(completion)
	if err != nil {
		return "", err
	}
	return extractLabel(content)
}

func extractLabel(content string) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripMarkdownCodeFence(content)), &payload); err != nil {
		return "", fmt.Errorf("%w: content is not a JSON object: %v", ErrNoLabel, err)
	}

	raw, ok := payload["label"]
	if !ok {
		return "", fmt.Errorf("%w: missing \"label\" key", ErrNoLabel)
	}

	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		return strings.TrimSpace(label), nil
	}

	var labels []string
	if err := json.Unmarshal(raw, &labels); err == nil && len(labels) > 0 {
		return strings.TrimSpace(labels[0]), nil
	}

	return "", fmt.Errorf("%w: \"label\" is neither a string nor a list of strings", ErrNoLabel)
}

var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*\n?(.*?)\\s*```$")

// stripMarkdownCodeFence removes markdown code fences from LLM responses.
// Handles formats like: ```json\n...\n``` or ```\n...\n```
func stripMarkdownCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if matches := codeFence.FindStringSubmatch(s); len(matches) == 2 {
		return strings.TrimSpace(matches[1])
	}
	return s
}
