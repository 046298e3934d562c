package conversation

// User-visible replies. The transition table matches the command strings
// in suggested replies literally, so they must round-trip unchanged.
const (
	msgUnauthorized  = "You are not authorized. Provide the access token."
	msgAuthSuccess   = "Authentication successful. You can now use the bot."
	msgInvalidToken  = "Invalid token. Please try again."
	msgApology       = "Sorry, an error occurred. Please try again later."
	msgGenApology    = "Sorry, I couldn't generate a response at the moment. Please try again."
	msgCheckIn       = "Have you used recently?"
	msgEncouragement = "That's great news! 😊 I'd love to hear more about what's been helping you avoid using substances. Would you like to share what's been working well for you?"
	msgFarewell      = "Bye! Take care."
	msgCancel        = "Bye! I hope we can talk again some day."
	msgIdle          = "Send /start to begin."
	msgUnknown       = "I didn't recognize that command."
	msgSaveFailed    = "I couldn't save this entry, but here it is:"

	msgSetupWelcome = "Welcome: Experience journaling like never before. Dive into meaningful conversations with your own AI bot, designed to help you understand yourself better. Save your interactive journal with /journal, and let your bot surprise you with thoughtful messages.\n\nLet's start by naming your bot."
	msgAskBackstory = "Please provide your bot's main goal or backstory. (< 1000 characters)"
	msgAskPurpose   = "Please provide your bot's main purpose. (< 1000 characters)"
	msgSetupDone    = "Your bot is ready! /start to begin."
)

var (
	repliesCheckIn = []string{"/yes", "/no"}
	repliesListen  = []string{"/journal", "/end"}
)
