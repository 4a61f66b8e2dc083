package websocket

import (
	"log"

	"github.com/property-booking/backend/internal/storage/models"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastBookingCreated sends a booking created event.
func (b *EventBroadcaster) BroadcastBookingCreated(bk models.Booking, propertyID int64) {
	b.publish(propertyID, NewMessage(TypeBookingCreated, bookingPayload(bk, propertyID)))
}

// BroadcastBookingCancelled sends a booking cancelled event.
func (b *EventBroadcaster) BroadcastBookingCancelled(bk models.Booking, propertyID int64) {
	b.publish(propertyID, NewMessage(TypeBookingCancelled, bookingPayload(bk, propertyID)))
}

// BroadcastRatingUpdated sends a rating updated event. Its signature
// matches rating.UpdateFunc.
func (b *EventBroadcaster) BroadcastRatingUpdated(propertyID int64, avg *float64, count int) {
	payload := RatingPayload{
		PropertyID:  propertyID,
		AvgRating:   avg,
		RatingCount: count,
	}
	b.publish(propertyID, NewMessage(TypeRatingUpdated, payload))
}

func bookingPayload(bk models.Booking, propertyID int64) BookingPayload {
	return BookingPayload{
		BookingID:   bk.ID,
		ApartmentID: bk.ApartmentID,
		PropertyID:  propertyID,
		StartDate:   bk.StartDate,
		EndDate:     bk.EndDate,
	}
}

// publish sends a message to the clients watching a property.
func (b *EventBroadcaster) publish(propertyID int64, msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}

	b.hub.Publish(propertyID, data)
}
