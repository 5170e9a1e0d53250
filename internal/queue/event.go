// Package queue carries domain events over RabbitMQ.
package queue

// BookingConfirmedQueue is the durable queue confirmed bookings are published to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a booking moves to confirmed. It holds
// enough for consumers to notify the guest without querying the database.
type BookingConfirmedEvent struct {
	BookingID     string `json:"booking_id"`
	BookingRef    string `json:"booking_ref"`
	CompanyID     string `json:"company_id"`
	CompanyName   string `json:"company_name"`
	ProgramName   string `json:"program_name"`
	ActivityDate  string `json:"activity_date"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Adults        int    `json:"adults"`
	Children      int    `json:"children"`
	Infants       int    `json:"infants"`
	Transport     string `json:"transport"`
	PickupTime    string `json:"pickup_time"`
	Hotel         string `json:"hotel"`
	Source        string `json:"source"`
	ConfirmedAt   string `json:"confirmed_at"`
}
