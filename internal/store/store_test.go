package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ellielabs/ellie/backend/internal/model/persona"
	"github.com/ellielabs/ellie/backend/internal/store"
)

func openBoth(t *testing.T) map[string]store.Store {
	t.Helper()
	sq, err := store.OpenSQLite(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]store.Store{
		"sqlite": sq,
		"memory": store.NewMemory(),
	}
}

func TestTokenRoundTrip(t *testing.T) {
	for name, s := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, ok, err := s.GetToken(ctx, 42); err != nil || ok {
				t.Fatalf("GetToken before authorize = ok=%v err=%v, want absent", ok, err)
			}

			if err := s.PutAuthorization(ctx, 42, "secret", nil, nil); err != nil {
				t.Fatalf("PutAuthorization: %v", err)
			}
			tok, ok, err := s.GetToken(ctx, 42)
			if err != nil || !ok || tok != "secret" {
				t.Fatalf("GetToken = %q ok=%v err=%v, want secret", tok, ok, err)
			}

			// Re-authorizing replaces the token.
			if err := s.PutAuthorization(ctx, 42, "rotated", nil, nil); err != nil {
				t.Fatalf("PutAuthorization again: %v", err)
			}
			if tok, _, _ := s.GetToken(ctx, 42); tok != "rotated" {
				t.Fatalf("token after rotate = %q, want rotated", tok)
			}
		})
	}
}

func TestPersonaDefaultsAndUpdates(t *testing.T) {
	for name, s := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			p, err := s.GetPersona(ctx, 7)
			if err != nil {
				t.Fatalf("GetPersona: %v", err)
			}
			if p.Name != persona.DefaultName || p.SystemPrompt != persona.DefaultSystemPrompt {
				t.Fatalf("unknown user did not yield default persona: %+v", p)
			}

			if err := s.PutAuthorization(ctx, 7, "t", nil, nil); err != nil {
				t.Fatalf("PutAuthorization: %v", err)
			}
			if err := s.UpdatePersonaName(ctx, 7, "Iris"); err != nil {
				t.Fatalf("UpdatePersonaName: %v", err)
			}
			if err := s.UpdatePersonaPrompt(ctx, 7, "You are Iris."); err != nil {
				t.Fatalf("UpdatePersonaPrompt: %v", err)
			}
			if err := s.UpdatePersonaTopic(ctx, 7, "sleep"); err != nil {
				t.Fatalf("UpdatePersonaTopic: %v", err)
			}

			p, err = s.GetPersona(ctx, 7)
			if err != nil {
				t.Fatalf("GetPersona after updates: %v", err)
			}
			if p.Name != "Iris" || p.SystemPrompt != "You are Iris." || p.Topic != "sleep" {
				t.Fatalf("persona after updates = %+v", p)
			}
		})
	}
}

func TestPutAuthorizationKeepsPersonaWhenNil(t *testing.T) {
	for name, s := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			name1, prompt1 := "Iris", "You are Iris."

			if err := s.PutAuthorization(ctx, 9, "t1", &name1, &prompt1); err != nil {
				t.Fatalf("PutAuthorization: %v", err)
			}
			// Token rotation with nil persona fields must not reset them.
			if err := s.PutAuthorization(ctx, 9, "t2", nil, nil); err != nil {
				t.Fatalf("PutAuthorization rotate: %v", err)
			}

			p, err := s.GetPersona(ctx, 9)
			if err != nil {
				t.Fatalf("GetPersona: %v", err)
			}
			if p.Name != "Iris" || p.SystemPrompt != "You are Iris." {
				t.Fatalf("persona fields were reset on rotate: %+v", p)
			}
		})
	}
}

func TestJournalNewestFirst(t *testing.T) {
	for name, s := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, pair := range [][2]string{{"E1", "R1"}, {"E2", "R2"}, {"E3", "R3"}} {
				if err := s.AppendJournal(ctx, 5, pair[0], pair[1]); err != nil {
					t.Fatalf("AppendJournal(%s): %v", pair[0], err)
				}
			}

			entries, err := s.ListRecentEntries(ctx, 5, 10)
			if err != nil {
				t.Fatalf("ListRecentEntries: %v", err)
			}
			if len(entries) != 3 || entries[0] != "E3" || entries[1] != "E2" || entries[2] != "E1" {
				t.Fatalf("entries = %v, want newest first [E3 E2 E1]", entries)
			}

			refs, err := s.ListRecentReflections(ctx, 5, 2)
			if err != nil {
				t.Fatalf("ListRecentReflections: %v", err)
			}
			if len(refs) != 2 || refs[0] != "R3" || refs[1] != "R2" {
				t.Fatalf("reflections = %v, want [R3 R2]", refs)
			}
		})
	}
}

func TestJournalIsolatedPerUser(t *testing.T) {
	for name, s := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := s.AppendJournal(ctx, 1, "mine", "r"); err != nil {
				t.Fatalf("AppendJournal: %v", err)
			}
			entries, err := s.ListRecentEntries(ctx, 2, 10)
			if err != nil {
				t.Fatalf("ListRecentEntries: %v", err)
			}
			if len(entries) != 0 {
				t.Fatalf("user 2 sees user 1's entries: %v", entries)
			}
		})
	}
}

func TestListJournalFullRecords(t *testing.T) {
	for name, s := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := s.AppendJournal(ctx, 8, "E1", "R1"); err != nil {
				t.Fatalf("AppendJournal: %v", err)
			}
			if err := s.AppendJournal(ctx, 8, "E2", "R2"); err != nil {
				t.Fatalf("AppendJournal: %v", err)
			}

			recs, err := s.ListJournal(ctx, 8, 10)
			if err != nil {
				t.Fatalf("ListJournal: %v", err)
			}
			if len(recs) != 2 {
				t.Fatalf("ListJournal returned %d records, want 2", len(recs))
			}
			if recs[0].Entry != "E2" || recs[0].Reflection != "R2" {
				t.Fatalf("newest record = %+v", recs[0])
			}
			if recs[0].UserID != 8 || recs[0].CreatedAt.IsZero() {
				t.Fatalf("record missing identity or timestamp: %+v", recs[0])
			}

			if empty, err := s.ListJournal(ctx, 8, 0); err != nil || len(empty) != 0 {
				t.Fatalf("ListJournal limit 0 = %v, %v", empty, err)
			}
		})
	}
}

func TestReflectionsSentinel(t *testing.T) {
	for name, s := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			refs, err := s.ListRecentReflections(ctx, 77, 5)
			if err != nil {
				t.Fatalf("ListRecentReflections: %v", err)
			}
			if len(refs) != 1 || refs[0] != store.NoReflections {
				t.Fatalf("reflections for empty user = %v, want [%q]", refs, store.NoReflections)
			}
		})
	}
}

func TestListLimits(t *testing.T) {
	for name, s := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := s.AppendJournal(ctx, 3, "E1", "R1"); err != nil {
				t.Fatalf("AppendJournal: %v", err)
			}
			entries, err := s.ListRecentEntries(ctx, 3, 0)
			if err != nil {
				t.Fatalf("ListRecentEntries: %v", err)
			}
			if len(entries) != 0 {
				t.Fatalf("limit 0 returned %v", entries)
			}
		})
	}
}
