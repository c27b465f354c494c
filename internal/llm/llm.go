// Package llm defines the contracts the pipeline uses to talk to text
// generation and embedding providers.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation history sent to a provider.
type Turn struct {
	Role Role
	Text string
}

// Prompt is the full context for a single generation call.
type Prompt struct {
	System      string
	Turns       []Turn
	MaxTokens   int
	Temperature *float64
}

// Schema describes a JSON object the provider is asked to produce.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// StructuredGenerator is implemented by providers that can constrain their
// output to a JSON schema.
type StructuredGenerator interface {
	GenerateJSON(ctx context.Context, p Prompt, schema Schema) (json.RawMessage, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNotConfigured is returned by providers that have no credentials.
var ErrNotConfigured = errors.New("llm: provider not configured")

// GenerationError wraps a failed provider call.
type GenerationError struct {
	StatusCode int
	Transient  bool
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Unconfigured stands in for a provider whose credentials are missing.
type Unconfigured struct{}

func (Unconfigured) Generate(context.Context, Prompt) (string, error) {
	return "", ErrNotConfigured
}

func (Unconfigured) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrNotConfigured
}

func Float(v float64) *float64 { return &v }
