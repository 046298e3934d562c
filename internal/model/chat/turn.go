package chat

// Role tags for transcript turns. The gateway rejects anything else.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one exchange unit inside a transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered sequence of turns in the current session.
// The first turn is always the assembled system prompt.
type Transcript []Turn

// Clone returns a copy so callers can hand transcripts across goroutines
// without sharing the backing array.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}
