package service

import (
	"context"
	"log"

	"tourdesk/internal/model"
	"tourdesk/internal/queue"

	"github.com/google/uuid"
)

// Realtime event types pushed to back-office dashboards
const (
	EventBookingCreated   = "booking.created"
	EventBookingUpdated   = "booking.updated"
	EventBookingConfirmed = "booking.confirmed"
	EventInvoiceCreated   = "invoice.created"
	EventInvoiceUpdated   = "invoice.updated"
)

// Broadcaster pushes realtime events to the connected clients of a company.
type Broadcaster interface {
	Publish(companyID uuid.UUID, eventType string, data interface{})
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(uuid.UUID, string, interface{}) {}

func broadcasterOrNop(b Broadcaster) Broadcaster {
	if b == nil {
		return nopBroadcaster{}
	}
	return b
}

func confirmedEvent(b *model.Booking, companyName string, at string) queue.BookingConfirmedEvent {
	ev := queue.BookingConfirmedEvent{
		BookingID:     b.ID.String(),
		BookingRef:    b.BookingRef,
		CompanyID:     b.CompanyID.String(),
		CompanyName:   companyName,
		ActivityDate:  b.ActivityDate.Format("2006-01-02"),
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		Adults:        b.Adults,
		Children:      b.Children,
		Infants:       b.Infants,
		Transport:     b.Transport,
		PickupTime:    b.PickupTime,
		Hotel:         b.Hotel,
		Source:        b.Source,
		ConfirmedAt:   at,
	}
	if b.Program != nil {
		ev.ProgramName = b.Program.Name
	}
	return ev
}

// publishConfirmed hands the event to the queue. A broker outage must not
// fail the confirmation itself.
func publishConfirmed(ctx context.Context, pub queue.Publisher, ev queue.BookingConfirmedEvent) {
	if pub == nil {
		return
	}
	if err := pub.PublishBookingConfirmed(ctx, ev); err != nil {
		log.Printf("[QUEUE] failed to publish booking %s confirmation: %v", ev.BookingRef, err)
	}
}
