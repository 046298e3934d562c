// Package prompt assembles every text sent to the language-model gateway.
// All functions are pure: persisted history, the clock reading, and the
// transcript are passed in, never fetched.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/ellielabs/ellie/backend/internal/model/chat"
	"github.com/ellielabs/ellie/backend/internal/model/persona"
)

// NoEntriesMarker appears in the system prompt when the user has no
// journal history yet.
const NoEntriesMarker = "The writer has no previous journal entries yet."

// referenceZone is the fixed zone all rendered timestamps use, so prompts
// read the same regardless of where the process runs.
var referenceZone = loadReferenceZone()

func loadReferenceZone() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return time.FixedZone("PST", -8*60*60)
	}
	return loc
}

// Timestamp renders now in the fixed reference zone.
func Timestamp(now time.Time) string {
	return now.In(referenceZone).Format("2006-01-02 15:04")
}

// BuildSystemPrompt concatenates the persona's backstory with the current
// timestamp and the user's recent journal entries, newest first. With no
// entries the block states so explicitly instead of being empty.
func BuildSystemPrompt(p persona.Persona, now time.Time, recentEntries []string) string {
	var b strings.Builder
	b.WriteString(p.SystemPrompt)
	if p.Topic != "" {
		b.WriteString("\n\nJournal topic: ")
		b.WriteString(p.Topic)
	}
	b.WriteString("\n\nThe current date and time is ")
	b.WriteString(Timestamp(now))
	b.WriteString(".\n\n")
	if len(recentEntries) == 0 {
		b.WriteString(NoEntriesMarker)
	} else {
		b.WriteString("Previous journal entries, newest first:\n")
		b.WriteString(strings.Join(recentEntries, "\n"))
	}
	return b.String()
}

// BuildGreeting is the deterministic first user turn of every session.
func BuildGreeting(username string) string {
	if username == "" {
		username = "User"
	}
	return fmt.Sprintf("Hey, my username is %s.", username)
}

// RenderTranscript flattens a transcript to "role: content" lines, in
// original order, role labels verbatim, nothing deduplicated.
func RenderTranscript(transcript chat.Transcript) string {
	lines := make([]string, 0, len(transcript))
	for _, t := range transcript {
		lines = append(lines, t.Role+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// BuildJournalPrompt parameterizes the journal-analysis template with the
// rendered timestamp and transcript.
func BuildJournalPrompt(now time.Time, transcript chat.Transcript) string {
	return fmt.Sprintf(journalTemplate, Timestamp(now), RenderTranscript(transcript))
}

// BuildReflectionPrompt renders the inner-monologue instruction. backstory
// is either the persona's full system prompt or just its topic; the
// synthesis config decides which.
func BuildReflectionPrompt(backstory, journalText string, transcript chat.Transcript) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(reflectionTemplate, backstory))
	b.WriteString("\n\nEllie's Journal:\n")
	b.WriteString(journalText)
	b.WriteString("\n\n### START Chat Transcript:\n")
	b.WriteString(RenderTranscript(transcript))
	b.WriteString("\n### END Chat Transcript")
	return b.String()
}

// BuildFeedbackPrompt asks the model to regenerate a persona's system
// prompt using its past private reflections as feedback.
func BuildFeedbackPrompt(p persona.Persona, reflections []string) string {
	var fb strings.Builder
	for _, r := range reflections {
		fb.WriteString("\n")
		fb.WriteString(r)
		fb.WriteString("\n")
	}
	return fmt.Sprintf(feedbackTemplate, p.SystemPrompt, p.Topic, fb.String())
}

// BuildSetupGoal phrases the user's backstory answer for the
// persona-designer dialogue.
func BuildSetupGoal(backstory string) string {
	return "Your goal is: " + backstory
}
