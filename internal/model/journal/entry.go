package journal

import "time"

// Entry is one persisted journal record. Immutable once written; only the
// synthesis pipeline creates them.
type Entry struct {
	UserID     int64     `json:"userId"`
	Entry      string    `json:"entry"`
	Reflection string    `json:"reflection"`
	CreatedAt  time.Time `json:"createdAt"`
}
