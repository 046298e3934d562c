// Package ai exposes the language-model completion capability behind the
// conversation engine and the synthesis pipeline. Two backends exist: the
// Ark chat model (one stateless completion call per turn) and Gemini
// (provider-side dialogue continuation). Callers pick one at startup and
// use the same two calling conventions against either.
package ai

import (
	"context"

	"github.com/ellielabs/ellie/backend/internal/model/chat"
)

// Config carries per-request generation parameters. Nil fields fall back
// to the backend's defaults.
type Config struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	// SafetyRelaxed loosens the provider content filter where the backend
	// supports it; backends without such a control ignore it.
	SafetyRelaxed bool
}

// Gateway is the synchronous request/response generation capability.
// Implementations perform no retries; retry policy belongs to the caller.
type Gateway interface {
	// Generate runs a single completion over the role-tagged messages and
	// returns the generated text. Fails with *ConfigError when messages is
	// empty or contains an unrecognized role, and with *GenerationError on
	// transport or provider failure.
	Generate(ctx context.Context, messages []chat.Turn, cfg Config) (string, error)

	// OpenDialogue starts a multi-turn exchange seeded with systemPrompt.
	// Where the dialogue history lives depends on the backend.
	OpenDialogue(ctx context.Context, systemPrompt string, cfg Config) (Dialogue, error)
}

// Dialogue is an open multi-turn exchange with the model.
type Dialogue interface {
	// Send submits one user turn and returns the model's reply. On failure
	// the dialogue history is left exactly as it was.
	Send(ctx context.Context, text string) (string, error)

	// Record appends scripted turns to caller-side history without a
	// generation call. Provider-side dialogues cannot inject history and
	// ignore it; scripted turns still live in the session transcript.
	Record(turns ...chat.Turn)
}
