package domain

import (
	"strconv"
	"time"
)

const (
	EventTypeCheckoutCreated    = "checkout.created"
	EventTypeEntitlementGranted = "entitlement.granted"
)

// Event доменное событие, публикуемое в Kafka.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	StreamID   string    `json:"stream_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Amount     Money     `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Key ключ партиционирования: все события одной покупки попадают в одну партицию.
func (e Event) Key() string {
	return e.UserID + ":" + e.StreamID
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
