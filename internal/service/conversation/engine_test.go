package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ellielabs/ellie/backend/internal/model/chat"
	"github.com/ellielabs/ellie/backend/internal/service/ai"
	"github.com/ellielabs/ellie/backend/internal/service/journal"
	"github.com/ellielabs/ellie/backend/internal/store"
)

// scriptedDialogue replays canned responses and records everything.
type scriptedDialogue struct {
	responses []string
	err       error
	sent      []string
	recorded  []chat.Turn
}

func (d *scriptedDialogue) Send(_ context.Context, text string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	d.sent = append(d.sent, text)
	if len(d.responses) > 0 {
		out := d.responses[0]
		d.responses = d.responses[1:]
		return out, nil
	}
	return "ok", nil
}

func (d *scriptedDialogue) Record(turns ...chat.Turn) {
	d.recorded = append(d.recorded, turns...)
}

// fakeGateway hands out queued dialogues and replays Generate responses.
type fakeGateway struct {
	dialogues []*scriptedDialogue
	opened    []*scriptedDialogue
	openErr   error

	genResponses []string
	genCalls     int
	genErr       error
}

func (g *fakeGateway) Generate(_ context.Context, _ []chat.Turn, _ ai.Config) (string, error) {
	g.genCalls++
	if g.genErr != nil {
		return "", g.genErr
	}
	if len(g.genResponses) > 0 {
		out := g.genResponses[0]
		g.genResponses = g.genResponses[1:]
		return out, nil
	}
	return "generated", nil
}

func (g *fakeGateway) OpenDialogue(_ context.Context, _ string, _ ai.Config) (ai.Dialogue, error) {
	if g.openErr != nil {
		return nil, g.openErr
	}
	var d *scriptedDialogue
	if len(g.dialogues) > 0 {
		d = g.dialogues[0]
		g.dialogues = g.dialogues[1:]
	} else {
		d = &scriptedDialogue{}
	}
	g.opened = append(g.opened, d)
	return d, nil
}

type appendFailStore struct {
	store.Store
}

func (s *appendFailStore) AppendJournal(context.Context, int64, string, string) error {
	return &store.StoreError{Op: "append journal", Err: errors.New("disk full")}
}

const uid int64 = 100

func newTestEngine(st store.Store, gw *fakeGateway, cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	}
	synth := journal.NewSynthesizer(gw, st, journal.Config{}, zerolog.Nop())
	return NewEngine(st, gw, synth, cfg, zerolog.Nop())
}

func authorize(t *testing.T, st store.Store) {
	t.Helper()
	if err := st.PutAuthorization(context.Background(), uid, "secret", nil, nil); err != nil {
		t.Fatalf("PutAuthorization: %v", err)
	}
}

func cmdEvent(c string) chat.Event {
	return chat.Event{UserID: uid, Kind: chat.KindCommand, Value: c}
}

func textEvent(v string) chat.Event {
	return chat.Event{UserID: uid, Kind: chat.KindText, Value: v}
}

// startSession drives an authorized user through /start into the check-in.
func startSession(t *testing.T, e *Engine) chat.Reply {
	t.Helper()
	r := e.HandleEvent(context.Background(), cmdEvent("/start"))
	if got := e.sessionFor(uid).state; got != StateRecentUse {
		t.Fatalf("state after start = %v, want %v (reply %q)", got, StateRecentUse, r.Text)
	}
	return r
}

func TestStartUnauthorized(t *testing.T) {
	e := newTestEngine(store.NewMemory(), &fakeGateway{}, Config{})

	r := e.HandleEvent(context.Background(), cmdEvent("/start"))
	if r.Text != msgUnauthorized {
		t.Fatalf("reply = %q, want %q", r.Text, msgUnauthorized)
	}
	if e.sessionFor(uid).state != StateAuthenticate {
		t.Fatalf("state = %v, want %v", e.sessionFor(uid).state, StateAuthenticate)
	}
}

func TestStartOpensSession(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	gw := &fakeGateway{dialogues: []*scriptedDialogue{{responses: []string{"Hi, I'm Ellie."}}}}
	e := newTestEngine(st, gw, Config{})

	r := e.HandleEvent(context.Background(), chat.Event{UserID: uid, Kind: chat.KindCommand, Value: "/start", Username: "sam"})

	want := "Hi, I'm Ellie.\n\n" + msgCheckIn
	if r.Text != want {
		t.Fatalf("reply = %q, want %q", r.Text, want)
	}
	if len(r.SuggestedReplies) != 2 || r.SuggestedReplies[0] != "/yes" || r.SuggestedReplies[1] != "/no" {
		t.Fatalf("suggested = %v, want [/yes /no]", r.SuggestedReplies)
	}

	d := gw.opened[0]
	if len(d.sent) != 1 || d.sent[0] != "Hey, my username is sam." {
		t.Fatalf("greeting sent = %v", d.sent)
	}
	// The scripted check-in question is injected into dialogue history.
	if len(d.recorded) != 1 || d.recorded[0].Content != msgCheckIn {
		t.Fatalf("recorded = %v", d.recorded)
	}

	sess := e.sessionFor(uid)
	if sess.state != StateRecentUse {
		t.Fatalf("state = %v, want %v", sess.state, StateRecentUse)
	}
	if len(sess.transcript) != 4 {
		t.Fatalf("transcript has %d turns, want 4", len(sess.transcript))
	}
}

func TestAuthenticateRejectsWrongToken(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	e := newTestEngine(st, &fakeGateway{}, Config{})
	ctx := context.Background()

	// A different user holds no token and must be challenged.
	other := chat.Event{UserID: 999, Kind: chat.KindCommand, Value: "/start"}
	if r := e.HandleEvent(ctx, other); r.Text != msgUnauthorized {
		t.Fatalf("reply = %q, want challenge", r.Text)
	}
	wrong := chat.Event{UserID: 999, Kind: chat.KindText, Value: "wrong"}
	if r := e.HandleEvent(ctx, wrong); r.Text != msgInvalidToken {
		t.Fatalf("wrong token reply = %q, want %q", r.Text, msgInvalidToken)
	}
	if e.sessionFor(999).state != StateAuthenticate {
		t.Fatal("a rejected token must keep the user in the challenge")
	}
}

func TestAuthenticateAcceptsStoredToken(t *testing.T) {
	st := store.NewMemory()
	gw := &fakeGateway{}
	e := newTestEngine(st, gw, Config{})
	ctx := context.Background()

	if r := e.HandleEvent(ctx, cmdEvent("/start")); r.Text != msgUnauthorized {
		t.Fatalf("reply = %q, want challenge", r.Text)
	}
	// Token lands in the store between the challenge and the answer.
	authorize(t, st)

	r := e.HandleEvent(ctx, textEvent("  secret  "))
	if !strings.HasPrefix(r.Text, msgAuthSuccess) {
		t.Fatalf("reply = %q, want %q prefix", r.Text, msgAuthSuccess)
	}
	if e.sessionFor(uid).state != StateRecentUse {
		t.Fatalf("state = %v, want %v", e.sessionFor(uid).state, StateRecentUse)
	}
}

func TestAdminBypassesToken(t *testing.T) {
	e := newTestEngine(store.NewMemory(), &fakeGateway{}, Config{AdminUserID: uid})
	startSession(t, e)
}

func TestRecentUseYesGenerates(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	gw := &fakeGateway{dialogues: []*scriptedDialogue{{responses: []string{"Hi.", "Tell me more."}}}}
	e := newTestEngine(st, gw, Config{})
	startSession(t, e)

	r := e.HandleEvent(context.Background(), cmdEvent("/yes"))
	if r.Text != "Tell me more." {
		t.Fatalf("reply = %q", r.Text)
	}
	if len(r.SuggestedReplies) != 2 || r.SuggestedReplies[0] != "/journal" {
		t.Fatalf("suggested = %v, want [/journal /end]", r.SuggestedReplies)
	}
	d := gw.opened[0]
	if d.sent[len(d.sent)-1] != "Yes" {
		t.Fatalf("last sent = %q, want Yes", d.sent[len(d.sent)-1])
	}
	if e.sessionFor(uid).state != StateListen {
		t.Fatalf("state = %v, want %v", e.sessionFor(uid).state, StateListen)
	}
}

func TestRecentUseNoIsScripted(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	gw := &fakeGateway{}
	e := newTestEngine(st, gw, Config{})
	startSession(t, e)

	sess := e.sessionFor(uid)
	before := len(sess.transcript)
	d := gw.opened[0]
	sendsBefore := len(d.sent)

	r := e.HandleEvent(context.Background(), cmdEvent("/no"))
	if r.Text != msgEncouragement {
		t.Fatalf("reply = %q, want encouragement", r.Text)
	}
	if len(d.sent) != sendsBefore {
		t.Fatal("scripted /no made a generation call")
	}
	if len(sess.transcript) != before+2 {
		t.Fatalf("transcript grew by %d turns, want 2", len(sess.transcript)-before)
	}
	// Both scripted turns are injected into dialogue history too.
	if n := len(d.recorded); n < 3 || d.recorded[n-2].Content != "No" || d.recorded[n-1].Content != msgEncouragement {
		t.Fatalf("recorded = %v", d.recorded)
	}
	if sess.state != StateListen {
		t.Fatalf("state = %v, want %v", sess.state, StateListen)
	}
}

func TestFreeTextDuringCheckInRepeatsQuestion(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	gw := &fakeGateway{}
	e := newTestEngine(st, gw, Config{})
	startSession(t, e)

	d := gw.opened[0]
	sendsBefore := len(d.sent)

	r := e.HandleEvent(context.Background(), textEvent("hello?"))
	if r.Text != msgCheckIn {
		t.Fatalf("reply = %q, want repeated check-in", r.Text)
	}
	if len(d.sent) != sendsBefore {
		t.Fatal("free text during check-in triggered a generation call")
	}
}

func TestEndDropsSession(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	e := newTestEngine(st, &fakeGateway{}, Config{})
	startSession(t, e)

	r := e.HandleEvent(context.Background(), cmdEvent("/end"))
	if r.Text != msgFarewell {
		t.Fatalf("reply = %q, want %q", r.Text, msgFarewell)
	}
	if e.Sessions() != 0 {
		t.Fatalf("Sessions = %d after end, want 0", e.Sessions())
	}
}

func TestCancelFromAnyState(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	e := newTestEngine(st, &fakeGateway{}, Config{})
	startSession(t, e)
	e.HandleEvent(context.Background(), cmdEvent("/yes"))

	r := e.HandleEvent(context.Background(), cmdEvent("/cancel"))
	if r.Text != msgCancel {
		t.Fatalf("reply = %q, want %q", r.Text, msgCancel)
	}
	if e.Sessions() != 0 {
		t.Fatalf("Sessions = %d after cancel, want 0", e.Sessions())
	}
}

func TestGenerationFailureLeavesTranscriptUntouched(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	gw := &fakeGateway{}
	e := newTestEngine(st, gw, Config{})
	startSession(t, e)
	e.HandleEvent(context.Background(), cmdEvent("/yes"))

	sess := e.sessionFor(uid)
	before := sess.transcript.Clone()
	gw.opened[0].err = errors.New("timeout")

	r := e.HandleEvent(context.Background(), textEvent("are you there?"))
	if r.Text != msgGenApology {
		t.Fatalf("reply = %q, want apology", r.Text)
	}
	if sess.state != StateListen {
		t.Fatalf("state = %v, want %v", sess.state, StateListen)
	}
	if len(sess.transcript) != len(before) {
		t.Fatalf("transcript mutated on failure: %d turns, want %d", len(sess.transcript), len(before))
	}

	// The same turn succeeds on retry.
	gw.opened[0].err = nil
	if r := e.HandleEvent(context.Background(), textEvent("are you there?")); r.Text != "ok" {
		t.Fatalf("retry reply = %q", r.Text)
	}
	if len(sess.transcript) != len(before)+2 {
		t.Fatalf("transcript has %d turns after retry, want %d", len(sess.transcript), len(before)+2)
	}
}

func TestJournalPersistsAndStaysListening(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	gw := &fakeGateway{genResponses: []string{"today's entry", "private reflection"}}
	e := newTestEngine(st, gw, Config{})
	startSession(t, e)
	e.HandleEvent(context.Background(), cmdEvent("/yes"))

	r := e.HandleEvent(context.Background(), cmdEvent("/journal"))
	if r.Text != "today's entry" {
		t.Fatalf("reply = %q, want the journal entry", r.Text)
	}
	if gw.genCalls != 2 {
		t.Fatalf("generation calls = %d, want 2 (journal then reflection)", gw.genCalls)
	}

	entries, _ := st.ListRecentEntries(context.Background(), uid, 10)
	if len(entries) != 1 || entries[0] != "today's entry" {
		t.Fatalf("persisted entries = %v", entries)
	}
	refs, _ := st.ListRecentReflections(context.Background(), uid, 10)
	if len(refs) != 1 || refs[0] != "private reflection" {
		t.Fatalf("persisted reflections = %v", refs)
	}

	// The session survives a journal save.
	if e.sessionFor(uid).state != StateListen {
		t.Fatalf("state after journal = %v, want %v", e.sessionFor(uid).state, StateListen)
	}
}

func TestJournalPersistFailureShowsEntry(t *testing.T) {
	base := store.NewMemory()
	authorize(t, base)
	st := &appendFailStore{Store: base}
	gw := &fakeGateway{genResponses: []string{"the entry", "the reflection"}}
	e := newTestEngine(st, gw, Config{})
	startSession(t, e)
	e.HandleEvent(context.Background(), cmdEvent("/yes"))

	r := e.HandleEvent(context.Background(), cmdEvent("/journal"))
	if !strings.HasPrefix(r.Text, msgSaveFailed) {
		t.Fatalf("reply = %q, want save-failed notice", r.Text)
	}
	if !strings.Contains(r.Text, "the entry") {
		t.Fatal("reply does not show the generated entry")
	}
	if e.sessionFor(uid).state != StateListen {
		t.Fatalf("state = %v, want %v", e.sessionFor(uid).state, StateListen)
	}
}

func TestJournalGenerationFailureApologizes(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	gw := &fakeGateway{}
	e := newTestEngine(st, gw, Config{})
	startSession(t, e)
	e.HandleEvent(context.Background(), cmdEvent("/yes"))

	gw.genErr = errors.New("overloaded")
	r := e.HandleEvent(context.Background(), cmdEvent("/journal"))
	if r.Text != msgApology {
		t.Fatalf("reply = %q, want apology", r.Text)
	}
	if entries, _ := st.ListRecentEntries(context.Background(), uid, 10); len(entries) != 0 {
		t.Fatalf("entries written despite failure: %v", entries)
	}
}

func TestStartResetsExistingSession(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	gw := &fakeGateway{}
	e := newTestEngine(st, gw, Config{})
	startSession(t, e)
	e.HandleEvent(context.Background(), cmdEvent("/yes"))
	e.HandleEvent(context.Background(), textEvent("long chat"))

	startSession(t, e)
	sess := e.sessionFor(uid)
	if len(sess.transcript) != 4 {
		t.Fatalf("transcript after restart has %d turns, want a fresh 4", len(sess.transcript))
	}
	if len(gw.opened) != 2 {
		t.Fatalf("dialogues opened = %d, want a fresh one per start", len(gw.opened))
	}
}

func TestSetupFlow(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	gw := &fakeGateway{dialogues: []*scriptedDialogue{
		{responses: []string{"noted", "You are Iris, a thoughtful companion."}},
	}}
	e := newTestEngine(st, gw, Config{})
	ctx := context.Background()

	if r := e.HandleEvent(ctx, cmdEvent("/setup")); r.Text != msgSetupWelcome {
		t.Fatalf("reply = %q, want welcome", r.Text)
	}
	if r := e.HandleEvent(ctx, textEvent("Iris")); r.Text != msgAskBackstory {
		t.Fatalf("reply = %q, want backstory question", r.Text)
	}
	if r := e.HandleEvent(ctx, textEvent("help me track my sleep")); r.Text != msgAskPurpose {
		t.Fatalf("reply = %q, want purpose question", r.Text)
	}
	if r := e.HandleEvent(ctx, textEvent("sleep journaling")); r.Text != msgSetupDone {
		t.Fatalf("reply = %q, want done", r.Text)
	}
	if e.Sessions() != 0 {
		t.Fatalf("Sessions = %d after setup, want 0", e.Sessions())
	}

	p, err := st.GetPersona(ctx, uid)
	if err != nil {
		t.Fatalf("GetPersona: %v", err)
	}
	if p.Name != "Iris" {
		t.Fatalf("persona name = %q", p.Name)
	}
	if p.SystemPrompt != "You are Iris, a thoughtful companion." {
		t.Fatalf("persona prompt = %q, want the refined prompt", p.SystemPrompt)
	}
	if p.Topic != "sleep journaling" {
		t.Fatalf("persona topic = %q", p.Topic)
	}
}

func TestSetupStoresRawBackstoryOnRefinementFailure(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	gw := &fakeGateway{dialogues: []*scriptedDialogue{{err: errors.New("down")}}}
	e := newTestEngine(st, gw, Config{})
	ctx := context.Background()

	e.HandleEvent(ctx, cmdEvent("/setup"))
	e.HandleEvent(ctx, textEvent("Iris"))
	if r := e.HandleEvent(ctx, textEvent("raw backstory")); r.Text != msgAskPurpose {
		t.Fatalf("reply = %q, want purpose question", r.Text)
	}

	p, _ := st.GetPersona(ctx, uid)
	if p.SystemPrompt != "raw backstory" {
		t.Fatalf("persona prompt = %q, want raw backstory fallback", p.SystemPrompt)
	}
}

func TestPersonaFeedbackRefresh(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	if err := st.AppendJournal(context.Background(), uid, "e", "yesterday's reflection"); err != nil {
		t.Fatalf("AppendJournal: %v", err)
	}
	gw := &fakeGateway{genResponses: []string{"refreshed system prompt"}}
	e := newTestEngine(st, gw, Config{PersonaFeedback: true})
	startSession(t, e)

	if gw.genCalls != 1 {
		t.Fatalf("generation calls = %d, want 1 feedback call", gw.genCalls)
	}
	p, _ := st.GetPersona(context.Background(), uid)
	if p.SystemPrompt != "refreshed system prompt" {
		t.Fatalf("persona prompt = %q, want refreshed", p.SystemPrompt)
	}
	if sys := e.sessionFor(uid).transcript[0].Content; !strings.Contains(sys, "refreshed system prompt") {
		t.Fatal("session system prompt not built from refreshed persona")
	}
}

func TestIdleWithoutSession(t *testing.T) {
	e := newTestEngine(store.NewMemory(), &fakeGateway{}, Config{})
	if r := e.HandleEvent(context.Background(), textEvent("hello")); r.Text != msgIdle {
		t.Fatalf("reply = %q, want idle hint", r.Text)
	}
}

func TestEvictIdle(t *testing.T) {
	st := store.NewMemory()
	authorize(t, st)
	e := newTestEngine(st, &fakeGateway{}, Config{})
	startSession(t, e)

	if n := e.EvictIdle(time.Hour); n != 0 {
		t.Fatalf("EvictIdle evicted %d fresh sessions", n)
	}
	e.sessionFor(uid).lastSeen = time.Now().Add(-3 * time.Hour)
	if n := e.EvictIdle(time.Hour); n != 1 {
		t.Fatalf("EvictIdle = %d, want 1", n)
	}
	if e.Sessions() != 0 {
		t.Fatalf("Sessions = %d after eviction, want 0", e.Sessions())
	}
}

func TestNormalizeCommand(t *testing.T) {
	cases := map[string]string{
		"/Start":   "/start",
		"  /END  ": "/end",
		"journal":  "/journal",
		"":         "",
	}
	for in, want := range cases {
		if got := normalizeCommand(in); got != want {
			t.Fatalf("normalizeCommand(%q) = %q, want %q", in, got, want)
		}
	}
}
