package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DefaultIdempotencyTTL is how long a stored response replays for retries.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyRecord stores the first response produced for a
// (key, caller, endpoint) tuple, replayed verbatim on retries whose body
// hash matches. At most one live record exists per tuple.
type IdempotencyRecord struct {
	Key            string    `json:"key" db:"idempotency_key"`
	CallerID       string    `json:"caller_id" db:"caller_id"`
	Endpoint       string    `json:"endpoint" db:"endpoint"`
	BodyHash       string    `json:"body_hash" db:"body_hash"`
	ResponseStatus int       `json:"response_status" db:"response_status"`
	ResponseBody   []byte    `json:"response_body" db:"response_body"`
	ExpiresAt      time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// HashRequestBody computes the canonical hash of a request body used to
// detect key reuse with a different payload.
func HashRequestBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
