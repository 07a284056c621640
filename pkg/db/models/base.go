package models

import (
	"github.com/google/uuid"
)

// ensureID assigns a random UUID when the caller left the key blank, so rows
// get identifiers on drivers without gen_random_uuid().
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
