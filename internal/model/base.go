package model

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the primary key is still zero. Postgres
// could generate it with gen_random_uuid(), but rows must also be creatable on
// SQLite, which has no such function.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
