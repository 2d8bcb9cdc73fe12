package model

import (
	"encoding/json"
	"time"
)

// ExternalCollection is the mirror-side identity of a synced collection.
type ExternalCollection struct {
	Key        string          `json:"key" db:"collection_key"`
	ExternalID string          `json:"external_id" db:"external_id"`
	EntityType EntityType      `json:"entity_type" db:"entity_type"`
	Schema     json.RawMessage `json:"schema" db:"schema"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// ExternalLink associates a local entity with its row in a mirror collection.
type ExternalLink struct {
	CollectionKey string     `json:"collection_key" db:"collection_key"`
	EntityType    EntityType `json:"entity_type" db:"entity_type"`
	RefID         string     `json:"ref_id" db:"ref_id"`
	ExternalID    string     `json:"external_id" db:"external_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
