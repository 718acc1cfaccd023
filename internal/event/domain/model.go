// Package domain contains the append-only domain event record.
package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
)

// Event is an immutable audit/domain record. Hash is unique; inserting
// an event whose hash already exists is a no-op, which makes submission
// idempotent under retries.
type Event struct {
	ID          string            `gorm:"primaryKey;type:text"`
	Type        string            `gorm:"type:text;not null;index"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null"`
	OrgID       snowflake.ID      `gorm:"column:org_id;not null;index"`
	Livemode    bool              `gorm:"not null"`
	Hash        string            `gorm:"type:text;not null;uniqueIndex:ux_events_hash"`
	OccurredAt  time.Time         `gorm:"not null"`
	SubmittedAt time.Time         `gorm:"not null"`
	ProcessedAt *time.Time        `gorm:"column:processed_at"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "events" }

// New builds an event with a fresh ULID and a content hash over the
// identifying fields. Two events with identical type, payload, org and
// occurrence time collapse into one stored row.
func New(eventType string, payload map[string]any, orgID snowflake.ID, livemode bool, occurredAt time.Time) (Event, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return Event{}, errors.New("event type is empty")
	}
	if orgID == 0 {
		return Event{}, errors.New("event organization is empty")
	}
	// ULIDs carry a millisecond timestamp; a zero or pre-epoch time
	// cannot be encoded.
	if occurredAt.IsZero() || occurredAt.Before(time.Unix(0, 0)) {
		return Event{}, errors.New("event occurrence time is invalid")
	}
	if payload == nil {
		payload = map[string]any{}
	}

	hash, err := contentHash(eventType, payload, orgID, livemode, occurredAt)
	if err != nil {
		return Event{}, err
	}

	return Event{
		ID:         ulid.MustNew(ulid.Timestamp(occurredAt.UTC()), rand.Reader).String(),
		Type:       eventType,
		Payload:    datatypes.JSONMap(payload),
		OrgID:      orgID,
		Livemode:   livemode,
		Hash:       hash,
		OccurredAt: occurredAt.UTC(),
	}, nil
}

// contentHash canonicalizes over json.Marshal, which emits map keys in
// sorted order, so equal payloads hash equally regardless of insertion
// order.
func contentHash(eventType string, payload map[string]any, orgID snowflake.ID, livemode bool, occurredAt time.Time) (string, error) {
	canonical := struct {
		Type       string         `json:"type"`
		Payload    map[string]any `json:"payload"`
		OrgID      string         `json:"org_id"`
		Livemode   bool           `json:"livemode"`
		OccurredAt string         `json:"occurred_at"`
	}{eventType, payload, orgID.String(), livemode, occurredAt.UTC().Format(time.RFC3339Nano)}

	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
