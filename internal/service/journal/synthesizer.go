// Package journal turns a finished conversation transcript into a
// persisted journal entry and private reflection pair.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ellielabs/ellie/backend/internal/model/chat"
	"github.com/ellielabs/ellie/backend/internal/service/ai"
	"github.com/ellielabs/ellie/backend/internal/service/prompt"
	"github.com/ellielabs/ellie/backend/internal/store"
)

// Config controls synthesis behavior.
type Config struct {
	Generation ai.Config
	// ReflectionUseTopic embeds only the persona's topic in the reflection
	// prompt instead of the full backstory.
	ReflectionUseTopic bool
}

// Result carries the two generated texts. On a persistence failure the
// texts are still populated so the caller can decide to show them.
type Result struct {
	Entry      string
	Reflection string
}

// Synthesizer runs the two dependent generation calls and persists the
// pair.
type Synthesizer struct {
	gateway ai.Gateway
	store   store.Store
	cfg     Config
	log     zerolog.Logger
}

// NewSynthesizer wires the pipeline to its gateway and store.
func NewSynthesizer(gateway ai.Gateway, st store.Store, cfg Config, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		gateway: gateway,
		store:   st,
		cfg:     cfg,
		log:     logger.With().Str("component", "synthesizer").Logger(),
	}
}

// Synthesize generates the journal entry, then the reflection (which
// embeds the entry, so the calls are strictly sequenced), and persists the
// pair. Nothing is written unless both generations succeed. If generation
// succeeds but the write fails, the populated Result is returned together
// with the *store.StoreError so the caller can still show the texts.
func (s *Synthesizer) Synthesize(ctx context.Context, userID int64, transcript chat.Transcript, now time.Time) (Result, error) {
	p, err := s.store.GetPersona(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("synthesize: %w", err)
	}

	journalPrompt := prompt.BuildJournalPrompt(now, transcript)
	entry, err := s.gateway.Generate(ctx,
		[]chat.Turn{{Role: chat.RoleSystem, Content: journalPrompt}}, s.cfg.Generation)
	if err != nil {
		return Result{}, fmt.Errorf("synthesize journal: %w", err)
	}
	s.log.Debug().Int64("user_id", userID).Int("entry_len", len(entry)).Msg("journal entry generated")

	backstory := p.SystemPrompt
	if s.cfg.ReflectionUseTopic && p.Topic != "" {
		backstory = p.Topic
	}
	reflectionPrompt := prompt.BuildReflectionPrompt(backstory, entry, transcript)
	reflection, err := s.gateway.Generate(ctx,
		[]chat.Turn{{Role: chat.RoleSystem, Content: reflectionPrompt}}, s.cfg.Generation)
	if err != nil {
		return Result{}, fmt.Errorf("synthesize reflection: %w", err)
	}
	s.log.Debug().Int64("user_id", userID).Int("reflection_len", len(reflection)).Msg("reflection generated")

	res := Result{Entry: entry, Reflection: reflection}
	if err := s.store.AppendJournal(ctx, userID, entry, reflection); err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("journal persistence failed after generation")
		return res, err
	}

	s.log.Info().Int64("user_id", userID).Msg("journal entry persisted")
	return res, nil
}
