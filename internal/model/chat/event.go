package chat

// Event kinds delivered by the transport.
const (
	KindCommand = "command"
	KindText    = "text"
)

// Event is one inbound text event for a user.
type Event struct {
	UserID int64  `json:"userId"`
	Kind   string `json:"kind"`
	Value  string `json:"value"`
	// Username is the display name, when the transport knows it. Only
	// consulted by start handling.
	Username string `json:"username,omitempty"`
}

// Reply is the outbound answer to one event. SuggestedReplies models the
// quick-reply buttons the transport renders; the strings are the exact
// commands the engine matches on.
type Reply struct {
	UserID           int64    `json:"userId"`
	Text             string   `json:"text"`
	SuggestedReplies []string `json:"suggestedReplies,omitempty"`
}
