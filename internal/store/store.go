// Package store is the durable record keeper for authorization tokens,
// persona configuration, and append-only journal entries.
package store

import (
	"context"

	"github.com/ellielabs/ellie/backend/internal/model/journal"
	"github.com/ellielabs/ellie/backend/internal/model/persona"
)

// NoReflections is the sentinel element returned by ListRecentReflections
// when a user has no stored reflections at all. It lets prompt assembly
// distinguish "new user" from an empty feedback block.
const NoReflections = "No Reflections"

// Store exposes the persistence operations the conversation engine and
// synthesis pipeline depend on. Implementations must report I/O failures
// as *StoreError; an empty result is never a substitute for an error.
type Store interface {
	// GetToken returns the stored access token for a user. ok is false
	// when no record (or no token) exists; that is not an error.
	GetToken(ctx context.Context, userID int64) (token string, ok bool, err error)

	// PutAuthorization upserts a user's token. Persona fields are only
	// overwritten when non-nil.
	PutAuthorization(ctx context.Context, userID int64, token string, personaName, personaPrompt *string) error

	// GetPersona returns the user's persona, or the built-in default when
	// no record exists.
	GetPersona(ctx context.Context, userID int64) (persona.Persona, error)

	UpdatePersonaName(ctx context.Context, userID int64, name string) error
	UpdatePersonaPrompt(ctx context.Context, userID int64, prompt string) error
	UpdatePersonaTopic(ctx context.Context, userID int64, topic string) error

	// AppendJournal writes a new immutable journal record. A write failure
	// propagates; it is never swallowed.
	AppendJournal(ctx context.Context, userID int64, entry, reflection string) error

	// ListRecentEntries returns entry texts, newest first. An empty slice
	// means the user has no entries yet.
	ListRecentEntries(ctx context.Context, userID int64, limit int) ([]string, error)

	// ListRecentReflections returns reflection texts, newest first, or a
	// single NoReflections element when none exist.
	ListRecentReflections(ctx context.Context, userID int64, limit int) ([]string, error)

	// ListJournal returns full journal records, newest first. Serves the
	// admin review surface; conversation code uses the text lists above.
	ListJournal(ctx context.Context, userID int64, limit int) ([]journal.Entry, error)
}
