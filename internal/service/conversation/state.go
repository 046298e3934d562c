package conversation

// State identifies where a user's session is in the scripted flow.
type State int

const (
	// StateAuthenticate gates everything behind the access token. A fresh
	// session starts here until start handling succeeds.
	StateAuthenticate State = iota
	// StateRecentUse is the scripted check-in right after the opening
	// exchange.
	StateRecentUse
	// StateListen is free-form dialogue.
	StateListen
	// Setup flow: naming, backstory, then topic.
	StateSetupName
	StateSetupBackstory
	StateSetupPurpose
	// StateEnd is terminal; the session is dropped on reaching it.
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateAuthenticate:
		return "authenticate"
	case StateRecentUse:
		return "recent_use"
	case StateListen:
		return "listen"
	case StateSetupName:
		return "setup_name"
	case StateSetupBackstory:
		return "setup_backstory"
	case StateSetupPurpose:
		return "setup_purpose"
	case StateEnd:
		return "end"
	default:
		return "unknown"
	}
}
