package ai

import (
	"errors"
	"fmt"

	"github.com/ellielabs/ellie/backend/internal/model/chat"
)

// GenerationError reports a transport or provider failure (rate limit,
// timeout, content-policy rejection). Recoverable: the caller may retry
// the same turn.
type GenerationError struct {
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("ai: %s generation failed: %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ConfigError reports malformed generation input. A programming error;
// it should not occur in normal operation.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "ai: " + e.Reason }

// IsGenerationError reports whether err wraps a *GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

func validateMessages(messages []chat.Turn) error {
	if len(messages) == 0 {
		return &ConfigError{Reason: "empty message sequence"}
	}
	for _, m := range messages {
		switch m.Role {
		case chat.RoleSystem, chat.RoleUser, chat.RoleAssistant:
		default:
			return &ConfigError{Reason: fmt.Sprintf("unrecognized role %q", m.Role)}
		}
	}
	return nil
}
