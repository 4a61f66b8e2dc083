package websocket

import (
	"encoding/json"
	"time"

	"github.com/property-booking/backend/internal/storage/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeBookingCreated   MessageType = "booking.created"
	TypeBookingCancelled MessageType = "booking.cancelled"
	TypeRatingUpdated    MessageType = "rating.updated"

	// Client -> Server command types
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client response types
	TypeSubscribeAck MessageType = "subscribe.ack"
	TypePong         MessageType = "pong"
	TypeError        MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// Command is a message sent by a client.
type Command struct {
	Type        MessageType `json:"type"`
	PropertyIDs []int64     `json:"property_ids,omitempty"`
}

// BookingPayload is the payload for booking.created and booking.cancelled events.
type BookingPayload struct {
	BookingID   int64       `json:"booking_id"`
	ApartmentID int64       `json:"apartment_id"`
	PropertyID  int64       `json:"property_id"`
	StartDate   models.Date `json:"start_date"`
	EndDate     models.Date `json:"end_date"`
}

// RatingPayload is the payload for rating.updated events.
type RatingPayload struct {
	PropertyID  int64    `json:"property_id"`
	AvgRating   *float64 `json:"avg_rating"`
	RatingCount int      `json:"rating_count"`
}

// SubscribeAckPayload lists the properties a client now watches; empty
// means all of them.
type SubscribeAckPayload struct {
	PropertyIDs []int64 `json:"property_ids"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
