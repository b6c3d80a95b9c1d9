package models

import (
	"time"

	"github.com/google/uuid"
)

// StyleRecord represents a persisted writing style.
type StyleRecord struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Description string      `db:"description" json:"description"`
	Config      StyleConfig `db:"config_json" json:"config_json"` // Stored as JSON text to keep key order
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}
