package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ellielabs/ellie/backend/internal/model/chat"
	"github.com/ellielabs/ellie/backend/internal/service/ai"
)

// session is the transient per-user conversation state. It lives only
// while the process runs; a new start event always resets it.
type session struct {
	// mu serializes event handling for this user. It is held across
	// gateway and store calls, which is what guarantees at most one
	// in-flight event per user.
	mu sync.Mutex

	id         string
	state      State
	transcript chat.Transcript
	dialogue   ai.Dialogue
	// setup is the persona-designer dialogue; only non-nil inside the
	// setup flow.
	setup         ai.Dialogue
	awaitingToken bool
	lastSeen      time.Time
}

func newSession() *session {
	return &session{
		id:       uuid.NewString(),
		state:    StateAuthenticate,
		lastSeen: time.Now(),
	}
}

// reset returns the session to the pre-session state. Caller holds mu.
func (s *session) reset() {
	s.state = StateAuthenticate
	s.transcript = nil
	s.dialogue = nil
	s.setup = nil
	s.awaitingToken = false
}
