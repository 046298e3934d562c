// Package conversation owns the per-user finite-state machine that drives
// authentication, the scripted check-in, free-form dialogue, the persona
// setup flow, and journal triggering.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ellielabs/ellie/backend/internal/model/chat"
	"github.com/ellielabs/ellie/backend/internal/model/persona"
	"github.com/ellielabs/ellie/backend/internal/service/ai"
	"github.com/ellielabs/ellie/backend/internal/service/journal"
	"github.com/ellielabs/ellie/backend/internal/service/prompt"
	"github.com/ellielabs/ellie/backend/internal/store"
)

// Config controls engine behavior.
type Config struct {
	// AdminUserID bypasses the token check.
	AdminUserID int64
	// HistoryLimit bounds the journal entries and reflections folded into
	// session context. Defaults to 5.
	HistoryLimit int
	// PersonaFeedback regenerates the persona system prompt from recent
	// reflections on session start.
	PersonaFeedback bool
	Generation      ai.Config
	// Now is a test seam; defaults to time.Now.
	Now func() time.Time
}

// Engine holds one live session per user and processes inbound events
// strictly sequentially per user.
type Engine struct {
	mu       sync.Mutex
	sessions map[int64]*session

	store   store.Store
	gateway ai.Gateway
	synth   *journal.Synthesizer
	cfg     Config
	log     zerolog.Logger
}

// NewEngine wires the state machine to its collaborators.
func NewEngine(st store.Store, gateway ai.Gateway, synth *journal.Synthesizer, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		sessions: make(map[int64]*session),
		store:    st,
		gateway:  gateway,
		synth:    synth,
		cfg:      cfg,
		log:      logger.With().Str("component", "conversation").Logger(),
	}
}

// HandleEvent processes one inbound event and returns the outbound reply.
// Events for the same user are serialized; a failure never leaves the
// session in an undefined state.
func (e *Engine) HandleEvent(ctx context.Context, ev chat.Event) chat.Reply {
	sess := e.sessionFor(ev.UserID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = time.Now()

	log := e.log.With().
		Int64("user_id", ev.UserID).
		Str("session_id", sess.id).
		Str("state", sess.state.String()).
		Logger()

	cmd := ""
	if ev.Kind == chat.KindCommand {
		cmd = normalizeCommand(ev.Value)
		switch cmd {
		case "/cancel":
			sess.state = StateEnd
			e.drop(ev.UserID)
			return e.reply(ev.UserID, msgCancel)
		case "/start":
			return e.handleStart(ctx, log, sess, ev)
		case "/setup":
			return e.handleSetup(ctx, log, sess, ev)
		}
	}

	switch sess.state {
	case StateAuthenticate:
		return e.handleAuthenticate(ctx, log, sess, ev, cmd)
	case StateRecentUse:
		return e.handleRecentUse(ctx, log, sess, ev, cmd)
	case StateListen:
		return e.handleListen(ctx, log, sess, ev, cmd)
	case StateSetupName:
		return e.handleSetupName(ctx, log, sess, ev)
	case StateSetupBackstory:
		return e.handleSetupBackstory(ctx, log, sess, ev)
	case StateSetupPurpose:
		return e.handleSetupPurpose(ctx, log, sess, ev)
	default:
		return e.reply(ev.UserID, msgIdle)
	}
}

// Sessions reports the number of live sessions.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// EvictIdle drops sessions idle for longer than maxIdle and returns the
// count. Sessions with an event in flight are skipped.
func (e *Engine) EvictIdle(maxIdle time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for uid, s := range e.sessions {
		if !s.mu.TryLock() {
			continue
		}
		idle := time.Since(s.lastSeen)
		s.mu.Unlock()
		if idle > maxIdle {
			delete(e.sessions, uid)
			n++
		}
	}
	if n > 0 {
		e.log.Info().Int("evicted", n).Msg("idle sessions evicted")
	}
	return n
}

// --- start & authentication ---

func (e *Engine) handleStart(ctx context.Context, log zerolog.Logger, sess *session, ev chat.Event) chat.Reply {
	authorized, err := e.authorized(ctx, ev.UserID)
	if err != nil {
		log.Error().Err(err).Msg("authorization lookup failed")
		return e.reply(ev.UserID, msgApology)
	}
	if !authorized {
		sess.state = StateAuthenticate
		sess.awaitingToken = true
		return e.reply(ev.UserID, msgUnauthorized)
	}
	return e.openSession(ctx, log, sess, ev.UserID, ev.Username)
}

func (e *Engine) handleAuthenticate(ctx context.Context, log zerolog.Logger, sess *session, ev chat.Event, cmd string) chat.Reply {
	if ev.Kind != chat.KindText {
		if sess.awaitingToken {
			return e.reply(ev.UserID, msgUnauthorized)
		}
		return e.reply(ev.UserID, msgIdle)
	}
	if !sess.awaitingToken {
		return e.reply(ev.UserID, msgIdle)
	}

	stored, ok, err := e.store.GetToken(ctx, ev.UserID)
	if err != nil {
		log.Error().Err(err).Msg("token lookup failed")
		return e.reply(ev.UserID, msgApology)
	}
	if !ok || stored != strings.TrimSpace(ev.Value) {
		log.Info().Msg("token mismatch")
		return e.reply(ev.UserID, msgInvalidToken)
	}

	sess.awaitingToken = false
	opened := e.openSession(ctx, log, sess, ev.UserID, ev.Username)
	opened.Text = msgAuthSuccess + "\n\n" + opened.Text
	return opened
}

// openSession runs fresh start handling: persona and history from the
// store, system prompt assembly, dialogue open, greeting exchange. On any
// failure the session state is left untouched and the user must reissue
// start.
func (e *Engine) openSession(ctx context.Context, log zerolog.Logger, sess *session, userID int64, username string) chat.Reply {
	// A start always resets the session; a failure below leaves it in the
	// pre-session state.
	sess.reset()

	p, err := e.store.GetPersona(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("persona fetch failed")
		return e.reply(userID, msgApology)
	}

	if e.cfg.PersonaFeedback {
		if refreshed, err := e.refreshPersona(ctx, userID, p); err != nil {
			log.Warn().Err(err).Msg("persona feedback refresh failed, using stored prompt")
		} else {
			p.SystemPrompt = refreshed
		}
	}

	entries, err := e.store.ListRecentEntries(ctx, userID, e.cfg.HistoryLimit)
	if err != nil {
		// A store outage is not the same as an empty history; abort.
		log.Error().Err(err).Msg("journal history fetch failed")
		return e.reply(userID, msgApology)
	}

	system := prompt.BuildSystemPrompt(p, e.cfg.Now(), entries)
	dialogue, err := e.gateway.OpenDialogue(ctx, system, e.cfg.Generation)
	if err != nil {
		log.Error().Err(err).Msg("dialogue open failed")
		return e.reply(userID, msgGenApology)
	}

	greeting := prompt.BuildGreeting(username)
	opening, err := dialogue.Send(ctx, greeting)
	if err != nil {
		log.Error().Err(err).Msg("opening exchange failed")
		return e.reply(userID, msgGenApology)
	}

	dialogue.Record(chat.Turn{Role: chat.RoleAssistant, Content: msgCheckIn})
	sess.dialogue = dialogue
	sess.transcript = chat.Transcript{
		{Role: chat.RoleSystem, Content: system},
		{Role: chat.RoleUser, Content: greeting},
		{Role: chat.RoleAssistant, Content: opening},
		{Role: chat.RoleAssistant, Content: msgCheckIn},
	}
	sess.state = StateRecentUse

	log.Info().Int("history_entries", len(entries)).Msg("session opened")
	return e.reply(userID, opening+"\n\n"+msgCheckIn, repliesCheckIn...)
}

func (e *Engine) authorized(ctx context.Context, userID int64) (bool, error) {
	if userID == e.cfg.AdminUserID {
		return true, nil
	}
	_, ok, err := e.store.GetToken(ctx, userID)
	return ok, err
}

// refreshPersona regenerates the system prompt from recent reflections.
// The regenerated prompt is persisted best-effort and used either way.
func (e *Engine) refreshPersona(ctx context.Context, userID int64, p persona.Persona) (string, error) {
	reflections, err := e.store.ListRecentReflections(ctx, userID, e.cfg.HistoryLimit)
	if err != nil {
		return "", err
	}
	feedback := prompt.BuildFeedbackPrompt(p, reflections)
	refreshed, err := e.gateway.Generate(ctx,
		[]chat.Turn{{Role: chat.RoleSystem, Content: feedback}}, e.cfg.Generation)
	if err != nil {
		return "", err
	}
	if err := e.store.UpdatePersonaPrompt(ctx, userID, refreshed); err != nil {
		e.log.Warn().Err(err).Int64("user_id", userID).Msg("refreshed prompt not persisted")
	}
	return refreshed, nil
}

// --- check-in & dialogue ---

func (e *Engine) handleRecentUse(ctx context.Context, log zerolog.Logger, sess *session, ev chat.Event, cmd string) chat.Reply {
	switch cmd {
	case "/yes":
		out, err := e.generateTurn(ctx, log, sess, "Yes")
		if err != nil {
			return e.reply(ev.UserID, msgGenApology, repliesCheckIn...)
		}
		sess.state = StateListen
		return e.reply(ev.UserID, out, repliesListen...)
	case "/no":
		// Scripted: no generation call for this transition.
		sess.transcript = append(sess.transcript,
			chat.Turn{Role: chat.RoleUser, Content: "No"},
			chat.Turn{Role: chat.RoleAssistant, Content: msgEncouragement},
		)
		sess.dialogue.Record(
			chat.Turn{Role: chat.RoleUser, Content: "No"},
			chat.Turn{Role: chat.RoleAssistant, Content: msgEncouragement},
		)
		sess.state = StateListen
		return e.reply(ev.UserID, msgEncouragement)
	case "/end":
		sess.state = StateEnd
		e.drop(ev.UserID)
		return e.reply(ev.UserID, msgFarewell)
	case "":
		// Free text during the check-in: repeat the question.
		return e.reply(ev.UserID, msgCheckIn, repliesCheckIn...)
	default:
		return e.reply(ev.UserID, msgUnknown, repliesCheckIn...)
	}
}

func (e *Engine) handleListen(ctx context.Context, log zerolog.Logger, sess *session, ev chat.Event, cmd string) chat.Reply {
	switch cmd {
	case "":
		out, err := e.generateTurn(ctx, log, sess, ev.Value)
		if err != nil {
			return e.reply(ev.UserID, msgGenApology, repliesListen...)
		}
		return e.reply(ev.UserID, out, repliesListen...)
	case "/yes", "/no":
		// Quick-reply buttons pressed mid-dialogue carry their literal
		// answer into the conversation.
		answer := "Yes"
		if cmd == "/no" {
			answer = "No"
		}
		out, err := e.generateTurn(ctx, log, sess, answer)
		if err != nil {
			return e.reply(ev.UserID, msgGenApology, repliesListen...)
		}
		return e.reply(ev.UserID, out, repliesListen...)
	case "/journal":
		return e.handleJournal(ctx, log, sess, ev)
	case "/end":
		sess.state = StateEnd
		e.drop(ev.UserID)
		return e.reply(ev.UserID, msgFarewell)
	default:
		return e.reply(ev.UserID, msgUnknown, repliesListen...)
	}
}

// generateTurn runs one dialogue exchange. The transcript is only mutated
// after the gateway call succeeds, so a failed call leaves it untouched.
func (e *Engine) generateTurn(ctx context.Context, log zerolog.Logger, sess *session, text string) (string, error) {
	out, err := sess.dialogue.Send(ctx, text)
	if err != nil {
		log.Error().Err(err).Msg("generation failed, transcript unchanged")
		return "", err
	}
	sess.transcript = append(sess.transcript,
		chat.Turn{Role: chat.RoleUser, Content: text},
		chat.Turn{Role: chat.RoleAssistant, Content: out},
	)
	return out, nil
}

func (e *Engine) handleJournal(ctx context.Context, log zerolog.Logger, sess *session, ev chat.Event) chat.Reply {
	res, err := e.synth.Synthesize(ctx, ev.UserID, sess.transcript.Clone(), e.cfg.Now())
	switch {
	case err == nil:
		return e.reply(ev.UserID, res.Entry, repliesListen...)
	case store.IsStoreError(err) && res.Entry != "":
		// Policy: show the generated text, never claim it was saved.
		log.Error().Err(err).Msg("journal generated but not persisted")
		return e.reply(ev.UserID, msgSaveFailed+"\n\n"+res.Entry, repliesListen...)
	default:
		log.Error().Err(err).Msg("journal synthesis failed")
		return e.reply(ev.UserID, msgApology, repliesListen...)
	}
}

// --- persona setup flow ---

func (e *Engine) handleSetup(ctx context.Context, log zerolog.Logger, sess *session, ev chat.Event) chat.Reply {
	authorized, err := e.authorized(ctx, ev.UserID)
	if err != nil {
		log.Error().Err(err).Msg("authorization lookup failed")
		return e.reply(ev.UserID, msgApology)
	}
	if !authorized {
		sess.state = StateAuthenticate
		sess.awaitingToken = true
		return e.reply(ev.UserID, msgUnauthorized)
	}

	setup, err := e.gateway.OpenDialogue(ctx, prompt.SetupSystemPrompt, e.cfg.Generation)
	if err != nil {
		log.Error().Err(err).Msg("setup dialogue open failed")
		return e.reply(ev.UserID, msgGenApology)
	}
	sess.setup = setup
	sess.state = StateSetupName
	return e.reply(ev.UserID, msgSetupWelcome)
}

func (e *Engine) handleSetupName(ctx context.Context, log zerolog.Logger, sess *session, ev chat.Event) chat.Reply {
	name := strings.TrimSpace(ev.Value)
	if ev.Kind != chat.KindText || name == "" {
		return e.reply(ev.UserID, msgSetupWelcome)
	}
	if err := e.store.UpdatePersonaName(ctx, ev.UserID, name); err != nil {
		log.Error().Err(err).Msg("persona name update failed")
		return e.reply(ev.UserID, msgApology)
	}
	sess.state = StateSetupBackstory
	return e.reply(ev.UserID, msgAskBackstory)
}

func (e *Engine) handleSetupBackstory(ctx context.Context, log zerolog.Logger, sess *session, ev chat.Event) chat.Reply {
	backstory := strings.TrimSpace(ev.Value)
	if ev.Kind != chat.KindText || backstory == "" {
		return e.reply(ev.UserID, msgAskBackstory)
	}

	// The designer dialogue refines the raw backstory into a full system
	// prompt; on generation failure the raw text is stored as-is.
	refined := backstory
	if sess.setup != nil {
		if _, err := sess.setup.Send(ctx, prompt.BuildSetupGoal(backstory)); err != nil {
			log.Warn().Err(err).Msg("backstory refinement failed, storing raw text")
		} else if out, err := sess.setup.Send(ctx, prompt.SetupFinalize); err != nil {
			log.Warn().Err(err).Msg("prompt finalization failed, storing raw text")
		} else {
			refined = out
		}
	}

	if err := e.store.UpdatePersonaPrompt(ctx, ev.UserID, refined); err != nil {
		log.Error().Err(err).Msg("persona prompt update failed")
		return e.reply(ev.UserID, msgApology)
	}
	sess.state = StateSetupPurpose
	return e.reply(ev.UserID, msgAskPurpose)
}

func (e *Engine) handleSetupPurpose(ctx context.Context, log zerolog.Logger, sess *session, ev chat.Event) chat.Reply {
	topic := strings.TrimSpace(ev.Value)
	if ev.Kind != chat.KindText || topic == "" {
		return e.reply(ev.UserID, msgAskPurpose)
	}
	if err := e.store.UpdatePersonaTopic(ctx, ev.UserID, topic); err != nil {
		log.Error().Err(err).Msg("persona topic update failed")
		return e.reply(ev.UserID, msgApology)
	}
	sess.state = StateEnd
	e.drop(ev.UserID)
	log.Info().Msg("persona setup complete")
	return e.reply(ev.UserID, msgSetupDone)
}

// --- session bookkeeping ---

func (e *Engine) sessionFor(userID int64) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[userID]
	if !ok {
		s = newSession()
		e.sessions[userID] = s
	}
	return s
}

func (e *Engine) drop(userID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, userID)
}

func (e *Engine) reply(userID int64, text string, suggested ...string) chat.Reply {
	return chat.Reply{UserID: userID, Text: text, SuggestedReplies: suggested}
}

func normalizeCommand(value string) string {
	cmd := strings.ToLower(strings.TrimSpace(value))
	if cmd == "" {
		return ""
	}
	if !strings.HasPrefix(cmd, "/") {
		cmd = "/" + cmd
	}
	return cmd
}
