package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestHandleDecodesEvent(t *testing.T) {
	var got BookingConfirmedEvent
	c := NewConsumer("", func(_ context.Context, ev BookingConfirmedEvent) error {
		got = ev
		return nil
	})

	body, _ := json.Marshal(BookingConfirmedEvent{BookingID: "b1", BookingRef: "BK-1", Adults: 2})
	if err := c.handle(context.Background(), body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got.BookingRef != "BK-1" || got.Adults != 2 {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestHandleRejectsBadPayloads(t *testing.T) {
	c := NewConsumer("", func(context.Context, BookingConfirmedEvent) error {
		t.Fatal("handler must not be called")
		return nil
	})
	if err := c.handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if err := c.handle(context.Background(), []byte(`{"booking_ref":"BK-1"}`)); err == nil {
		t.Fatal("expected missing id error")
	}
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Minute) {
		t.Fatal("sleep should return false once cancelled")
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.PublishBookingConfirmed(context.Background(), BookingConfirmedEvent{}); err != nil {
		t.Fatal(err)
	}
}
