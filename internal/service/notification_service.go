package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"tourdesk/internal/mailer"
	"tourdesk/internal/model"
	"tourdesk/internal/queue"
	"tourdesk/internal/repository"

	"github.com/google/uuid"
)

type TestEmailRequest struct {
	To string `json:"to" binding:"required,email"`
}

// OPLine is one booking on the operations report.
type OPLine struct {
	BookingRef   string `json:"booking_ref"`
	CustomerName string `json:"customer_name"`
	Adults       int    `json:"adults"`
	Children     int    `json:"children"`
	Infants      int    `json:"infants"`
	PickupTime   string `json:"pickup_time"`
	Hotel        string `json:"hotel"`
	AgentName    string `json:"agent_name"`
	Collect      string `json:"collect"`
}

type OPProgram struct {
	ProgramName string   `json:"program_name"`
	Pax         int      `json:"pax"`
	Lines       []OPLine `json:"lines"`
}

// OPReport is the day sheet the operations team works from.
type OPReport struct {
	Date          string      `json:"date"`
	CompanyName   string      `json:"company_name"`
	TotalBookings int         `json:"total_bookings"`
	TotalPax      int         `json:"total_pax"`
	TotalPickups  int         `json:"total_pickups"`
	Programs      []OPProgram `json:"programs"`
}

type NotificationService interface {
	SendTestEmail(ctx context.Context, scope Scope, to string) error
	SendPickupNotification(ctx context.Context, scope Scope, bookingID uuid.UUID) error
	BuildOPReport(ctx context.Context, scope Scope, date time.Time) (*OPReport, error)
	SendOPReport(ctx context.Context, scope Scope, date time.Time) (*OPReport, error)
	SendBookingConfirmation(ctx context.Context, event queue.BookingConfirmedEvent) error
}

type notificationService struct {
	sender      mailer.Sender
	companyRepo repository.CompanyRepository
	bookingRepo repository.BookingRepository
}

func NewNotificationService(sender mailer.Sender, companyRepo repository.CompanyRepository, bookingRepo repository.BookingRepository) NotificationService {
	return &notificationService{sender: sender, companyRepo: companyRepo, bookingRepo: bookingRepo}
}

func (s *notificationService) send(ctx context.Context, to []string, subject, tmpl string, data interface{}) error {
	body, err := mailer.Render(tmpl, data)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, mailer.Message{To: to, Subject: subject, HTML: body}); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}

func (s *notificationService) company(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	company, err := s.companyRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("company", err)
	}
	return company, nil
}

func (s *notificationService) SendTestEmail(ctx context.Context, scope Scope, to string) error {
	company, err := s.company(ctx, scope.CompanyID)
	if err != nil {
		return err
	}
	data := map[string]string{
		"CompanyName": company.Name,
		"SentAt":      scope.Now.In(scope.loc()).Format("2006-01-02 15:04 MST"),
	}
	return s.send(ctx, []string{to}, "Test email from "+company.Name, "test", data)
}

// SendPickupNotification tells the guest when and where they are picked up.
func (s *notificationService) SendPickupNotification(ctx context.Context, scope Scope, bookingID uuid.UUID) error {
	booking, err := s.bookingRepo.FindByID(ctx, scope.CompanyID, bookingID)
	if err != nil {
		return lookupErr("booking", err)
	}
	switch {
	case booking.Transport != model.TransportPickup:
		return invalid("booking %s has no pickup", booking.BookingRef)
	case booking.CustomerEmail == "":
		return invalid("booking %s has no customer email", booking.BookingRef)
	case booking.PickupTime == "":
		return invalid("booking %s has no pickup time yet", booking.BookingRef)
	case booking.Status == model.BookingCancelled || booking.Status == model.BookingVoid:
		return conflict("booking %s is %s", booking.BookingRef, booking.Status)
	}

	company, err := s.company(ctx, scope.CompanyID)
	if err != nil {
		return err
	}
	settings, err := loadSettings(ctx, s.companyRepo, scope.CompanyID)
	if err != nil {
		return err
	}
	subject := settings.PickupEmailSubject
	if subject == "" {
		subject = model.DefaultSettings(scope.CompanyID).PickupEmailSubject
	}

	programName := ""
	if booking.Program != nil {
		programName = booking.Program.Name
	}
	data := map[string]string{
		"CustomerName": booking.CustomerName,
		"ProgramName":  programName,
		"ActivityDate": booking.ActivityDate.Format("Mon 2 Jan 2006"),
		"PickupTime":   booking.PickupTime,
		"Hotel":        booking.Hotel,
		"RoomNo":       booking.RoomNo,
		"BookingRef":   booking.BookingRef,
		"CompanyName":  company.Name,
	}
	return s.send(ctx, []string{booking.CustomerEmail}, subject, "pickup", data)
}

// BuildOPReport lists the day's live bookings grouped by program, pickups in
// pickup-time order.
func (s *notificationService) BuildOPReport(ctx context.Context, scope Scope, date time.Time) (*OPReport, error) {
	company, err := s.company(ctx, scope.CompanyID)
	if err != nil {
		return nil, err
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	bookings, err := s.bookingRepo.ListAll(ctx, scope.CompanyID, repository.BookingFilter{From: &day, To: &day})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	report := &OPReport{Date: day.Format("2006-01-02"), CompanyName: company.Name, Programs: []OPProgram{}}
	index := map[uuid.UUID]int{}
	for _, b := range bookings {
		if b.Status == model.BookingCancelled || b.Status == model.BookingVoid {
			continue
		}
		i, ok := index[b.ProgramID]
		if !ok {
			name := ""
			if b.Program != nil {
				name = b.Program.Name
			}
			i = len(report.Programs)
			index[b.ProgramID] = i
			report.Programs = append(report.Programs, OPProgram{ProgramName: name})
		}

		line := OPLine{
			BookingRef:   b.BookingRef,
			CustomerName: b.CustomerName,
			Adults:       b.Adults,
			Children:     b.Children,
			Infants:      b.Infants,
			PickupTime:   b.PickupTime,
			Hotel:        b.Hotel,
		}
		if b.Agent != nil {
			line.AgentName = b.Agent.Name
		}
		if b.CollectAmount.IsPositive() {
			line.Collect = company.Currency + " " + b.CollectAmount.StringFixed(2)
		}

		p := &report.Programs[i]
		p.Lines = append(p.Lines, line)
		p.Pax += b.SlotPax()
		report.TotalBookings++
		report.TotalPax += b.SlotPax()
		if b.Transport == model.TransportPickup {
			report.TotalPickups++
		}
	}

	sort.SliceStable(report.Programs, func(i, j int) bool {
		return strings.ToLower(report.Programs[i].ProgramName) < strings.ToLower(report.Programs[j].ProgramName)
	})
	return report, nil
}

// SendOPReport emails the day's report to the company's notify address.
func (s *notificationService) SendOPReport(ctx context.Context, scope Scope, date time.Time) (*OPReport, error) {
	settings, err := loadSettings(ctx, s.companyRepo, scope.CompanyID)
	if err != nil {
		return nil, err
	}
	if settings.NotifyEmail == "" {
		return nil, invalid("no notification email configured")
	}
	report, err := s.BuildOPReport(ctx, scope, date)
	if err != nil {
		return nil, err
	}
	subject := fmt.Sprintf("Operations report %s", report.Date)
	if err := s.send(ctx, []string{settings.NotifyEmail}, subject, "op_report", report); err != nil {
		return nil, err
	}
	return report, nil
}

// SendBookingConfirmation is the queue handler for confirmed bookings.
// Bookings without an email address are acknowledged silently.
func (s *notificationService) SendBookingConfirmation(ctx context.Context, event queue.BookingConfirmedEvent) error {
	if event.CustomerEmail == "" {
		log.Printf("[MAIL] booking %s has no email, skipping confirmation", event.BookingRef)
		return nil
	}
	subject := fmt.Sprintf("Booking %s confirmed", event.BookingRef)
	return s.send(ctx, []string{event.CustomerEmail}, subject, "confirmation", event)
}
