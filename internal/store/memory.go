package store

import (
	"context"
	"sync"
	"time"

	"github.com/ellielabs/ellie/backend/internal/model/journal"
	"github.com/ellielabs/ellie/backend/internal/model/persona"
)

type userRecord struct {
	token   string
	hasTok  bool
	persona persona.Persona
	exists  bool
}

type entryRecord struct {
	entry      string
	reflection string
	createdAt  time.Time
}

// Memory implements Store with in-process maps. Used by tests and as a
// throwaway backend when no database path is configured.
type Memory struct {
	mu      sync.RWMutex
	users   map[int64]*userRecord
	entries map[int64][]entryRecord
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[int64]*userRecord),
		entries: make(map[int64][]entryRecord),
	}
}

func (m *Memory) user(userID int64) *userRecord {
	rec, ok := m.users[userID]
	if !ok {
		rec = &userRecord{persona: persona.Default()}
		m.users[userID] = rec
	}
	return rec
}

func (m *Memory) GetToken(_ context.Context, userID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[userID]
	if !ok || !rec.hasTok {
		return "", false, nil
	}
	return rec.token, true, nil
}

func (m *Memory) PutAuthorization(_ context.Context, userID int64, token string, personaName, personaPrompt *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.user(userID)
	rec.token = token
	rec.hasTok = token != ""
	if personaName != nil {
		rec.persona.Name = *personaName
	}
	if personaPrompt != nil {
		rec.persona.SystemPrompt = *personaPrompt
	}
	rec.persona.UpdatedAt = time.Now().UTC()
	rec.exists = true
	return nil
}

func (m *Memory) GetPersona(_ context.Context, userID int64) (persona.Persona, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[userID]
	if !ok || !rec.exists {
		return persona.Default(), nil
	}
	return rec.persona, nil
}

func (m *Memory) UpdatePersonaName(_ context.Context, userID int64, name string) error {
	return m.updatePersona(userID, func(p *persona.Persona) { p.Name = name })
}

func (m *Memory) UpdatePersonaPrompt(_ context.Context, userID int64, prompt string) error {
	return m.updatePersona(userID, func(p *persona.Persona) { p.SystemPrompt = prompt })
}

func (m *Memory) UpdatePersonaTopic(_ context.Context, userID int64, topic string) error {
	return m.updatePersona(userID, func(p *persona.Persona) { p.Topic = topic })
}

func (m *Memory) updatePersona(userID int64, apply func(*persona.Persona)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.user(userID)
	apply(&rec.persona)
	rec.persona.UpdatedAt = time.Now().UTC()
	rec.exists = true
	return nil
}

func (m *Memory) AppendJournal(_ context.Context, userID int64, entry, reflection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = append(m.entries[userID], entryRecord{
		entry:      entry,
		reflection: reflection,
		createdAt:  time.Now().UTC(),
	})
	return nil
}

func (m *Memory) ListJournal(_ context.Context, userID int64, limit int) ([]journal.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []journal.Entry{}, nil
	}
	recs := m.entries[userID]
	out := make([]journal.Entry, 0, limit)
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, journal.Entry{
			UserID:     userID,
			Entry:      recs[i].entry,
			Reflection: recs[i].reflection,
			CreatedAt:  recs[i].createdAt,
		})
	}
	return out, nil
}

func (m *Memory) ListRecentEntries(_ context.Context, userID int64, limit int) ([]string, error) {
	return m.list(userID, limit, func(r entryRecord) string { return r.entry }), nil
}

func (m *Memory) ListRecentReflections(_ context.Context, userID int64, limit int) ([]string, error) {
	out := m.list(userID, limit, func(r entryRecord) string { return r.reflection })
	if len(out) == 0 {
		return []string{NoReflections}, nil
	}
	return out, nil
}

func (m *Memory) list(userID int64, limit int, pick func(entryRecord) string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []string{}
	}
	recs := m.entries[userID]
	out := make([]string, 0, limit)
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, pick(recs[i]))
	}
	return out
}
