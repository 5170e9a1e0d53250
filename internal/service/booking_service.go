package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tourdesk/internal/availability"
	"tourdesk/internal/document"
	"tourdesk/internal/model"
	"tourdesk/internal/queue"
	"tourdesk/internal/repository"
	"tourdesk/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// --- DTOs ---

type BookingRequest struct {
	ProgramID     string                 `json:"program_id" binding:"required,uuid"`
	AgentID       string                 `json:"agent_id" binding:"omitempty,uuid"`
	CustomerName  string                 `json:"customer_name" binding:"required,max=255"`
	CustomerEmail string                 `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone string                 `json:"customer_phone" binding:"max=50"`
	Hotel         string                 `json:"hotel" binding:"max=255"`
	RoomNo        string                 `json:"room_no" binding:"max=30"`
	Transport     string                 `json:"transport" binding:"required,oneof=pickup come_direct"`
	PickupTime    string                 `json:"pickup_time" binding:"omitempty,datetime=15:04"`
	Adults        int                    `json:"adults" binding:"min=0"`
	Children      int                    `json:"children" binding:"min=0"`
	Infants       int                    `json:"infants" binding:"min=0"`
	ActivityDate  string                 `json:"activity_date" binding:"required,datetime=2006-01-02"`
	CollectAmount decimal.Decimal        `json:"collect_amount" swaggertype:"string"`
	Status        string                 `json:"status" binding:"omitempty,oneof=pending confirmed"` // create only
	Notes         string                 `json:"notes"`
	Extras        map[string]interface{} `json:"extras"`
}

type BookingResponse struct {
	model.Booking
	ProgramName string `json:"program_name"`
	AgentName   string `json:"agent_name"`
	Invoiced    bool   `json:"invoiced"`
	Warning     string `json:"warning,omitempty"` // capacity is advisory for staff bookings
}

type BookingService interface {
	CreateBooking(ctx context.Context, scope Scope, req BookingRequest) (*BookingResponse, error)
	UpdateBooking(ctx context.Context, scope Scope, id uuid.UUID, req BookingRequest) (*BookingResponse, error)
	GetBooking(ctx context.Context, scope Scope, id uuid.UUID) (*BookingResponse, error)
	ListBookings(ctx context.Context, scope Scope, filter repository.BookingFilter, page pagination.Params) ([]BookingResponse, int64, error)
	Transition(ctx context.Context, scope Scope, id uuid.UUID, to string) (*BookingResponse, error)
	ExportCSV(ctx context.Context, scope Scope, filter repository.BookingFilter) ([]byte, error)
	VoucherPDF(ctx context.Context, scope Scope, id uuid.UUID) ([]byte, string, error)
}

type bookingService struct {
	bookingRepo repository.BookingRepository
	programRepo repository.ProgramRepository
	agentRepo   repository.AgentRepository
	availRepo   repository.AvailabilityRepository
	companyRepo repository.CompanyRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	publisher   queue.Publisher
	events      Broadcaster
}

func NewBookingService(
	bookingRepo repository.BookingRepository,
	programRepo repository.ProgramRepository,
	agentRepo repository.AgentRepository,
	availRepo repository.AvailabilityRepository,
	companyRepo repository.CompanyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	publisher queue.Publisher,
	events Broadcaster,
) BookingService {
	return &bookingService{
		bookingRepo: bookingRepo,
		programRepo: programRepo,
		agentRepo:   agentRepo,
		availRepo:   availRepo,
		companyRepo: companyRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		publisher:   publisher,
		events:      broadcasterOrNop(events),
	}
}

// bookingTransitions lists, per target status, the statuses a booking may
// leave for it.
var bookingTransitions = map[string][]string{
	model.BookingConfirmed: {model.BookingPending},
	model.BookingCompleted: {model.BookingConfirmed},
	model.BookingCancelled: {model.BookingPending, model.BookingConfirmed},
	model.BookingVoid:      {model.BookingPending, model.BookingConfirmed, model.BookingCompleted},
}

func canTransitionBooking(from, to string) bool {
	for _, s := range bookingTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

func newBookingRef(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "BK" + now.Format("060102") + "-" + suffix
}

func toBookingResponse(b *model.Booking) BookingResponse {
	res := BookingResponse{Booking: *b, Invoiced: b.InvoiceID != nil}
	if b.Program != nil {
		res.ProgramName = b.Program.Name
	}
	if b.Agent != nil {
		res.AgentName = b.Agent.Name
	}
	return res
}

func capacityWarning(day availability.Day) string {
	switch {
	case day.Unlimited:
		return ""
	case day.Status == availability.Closed:
		return "program is closed on this date"
	case day.Booked > day.TotalSlots:
		return fmt.Sprintf("date is overbooked by %d pax", day.Booked-day.TotalSlots)
	}
	return ""
}

// apply validates req and copies it onto b, resolving the program and agent.
func (s *bookingService) apply(ctx context.Context, scope Scope, b *model.Booking, req BookingRequest) error {
	if req.Adults+req.Children < 1 {
		return invalid("a booking needs at least one adult or child")
	}
	if req.Transport == model.TransportPickup && strings.TrimSpace(req.Hotel) == "" {
		return invalid("pickup bookings need a hotel")
	}
	if req.CollectAmount.IsNegative() {
		return invalid("collect amount must not be negative")
	}
	date, err := availability.ParseDate(req.ActivityDate)
	if err != nil {
		return invalid("invalid activity date %q", req.ActivityDate)
	}

	programID, err := uuid.Parse(req.ProgramID)
	if err != nil {
		return invalid("invalid program id")
	}
	program, err := s.programRepo.FindByID(ctx, scope.CompanyID, programID)
	if err != nil {
		return lookupErr("program", err)
	}

	var agent *model.Agent
	if req.AgentID != "" {
		agentID, err := uuid.Parse(req.AgentID)
		if err != nil {
			return invalid("invalid agent id")
		}
		if agent, err = s.agentRepo.FindByID(ctx, scope.CompanyID, agentID); err != nil {
			return lookupErr("agent", err)
		}
	}

	var extras datatypes.JSON
	if len(req.Extras) > 0 {
		raw, err := json.Marshal(req.Extras)
		if err != nil {
			return invalid("invalid extras")
		}
		extras = datatypes.JSON(raw)
	}

	b.ProgramID = program.ID
	b.Program = program
	b.AgentID = nil
	b.Agent = agent
	if agent != nil {
		b.AgentID = &agent.ID
	}
	b.CustomerName = strings.TrimSpace(req.CustomerName)
	b.CustomerEmail = req.CustomerEmail
	b.CustomerPhone = req.CustomerPhone
	b.Hotel = req.Hotel
	b.RoomNo = req.RoomNo
	b.Transport = req.Transport
	b.PickupTime = req.PickupTime
	b.Adults = req.Adults
	b.Children = req.Children
	b.Infants = req.Infants
	b.ActivityDate = date
	b.CollectAmount = req.CollectAmount
	b.Notes = req.Notes
	b.Extras = extras
	return nil
}

func (s *bookingService) warn(ctx context.Context, scope Scope, res *BookingResponse) {
	if res.Status == model.BookingCancelled || res.Status == model.BookingVoid {
		return
	}
	day, err := evaluateDate(ctx, s.availRepo, res.ProgramID, res.ActivityDate, scope.Today(), false)
	if err != nil {
		return
	}
	res.Warning = capacityWarning(day)
}

// CreateBooking records a staff booking. Capacity is not enforced: staff may
// overbook and get a warning instead.
func (s *bookingService) CreateBooking(ctx context.Context, scope Scope, req BookingRequest) (*BookingResponse, error) {
	booking := model.Booking{
		CompanyID:     scope.CompanyID,
		BookingRef:    newBookingRef(scope.Now),
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentUnpaid,
		Source:        model.SourceStaff,
	}
	if req.Status == model.BookingConfirmed {
		booking.Status = model.BookingConfirmed
	}
	if err := s.apply(ctx, scope, &booking, req); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.bookingRepo.Create(txCtx, &booking); err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		entry := newAuditLog(scope, model.ActionCreateBooking, booking.ID.String(), booking.BookingRef, req)
		if err := s.auditRepo.Log(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := toBookingResponse(&booking)
	s.warn(ctx, scope, &res)
	s.events.Publish(scope.CompanyID, EventBookingCreated, res)
	if booking.Status == model.BookingConfirmed {
		s.announceConfirmed(ctx, &booking, scope.Now)
	}
	return &res, nil
}

// UpdateBooking replaces the editable fields. Invoiced bookings keep the
// fields their invoice line was priced from.
func (s *bookingService) UpdateBooking(ctx context.Context, scope Scope, id uuid.UUID, req BookingRequest) (*BookingResponse, error) {
	var booking *model.Booking
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		booking, err = s.bookingRepo.FindByID(txCtx, scope.CompanyID, id)
		if err != nil {
			return lookupErr("booking", err)
		}
		if booking.Status == model.BookingCancelled || booking.Status == model.BookingVoid {
			return conflict("booking %s is %s and can no longer be edited", booking.BookingRef, booking.Status)
		}

		before := *booking
		if err := s.apply(txCtx, scope, booking, req); err != nil {
			return err
		}
		if booking.InvoiceID != nil && invoicedFieldsChanged(&before, booking) {
			return conflict("booking %s is invoiced; program, agent, date and pax are locked", booking.BookingRef)
		}

		if err := s.bookingRepo.Update(txCtx, booking); err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		entry := newAuditLog(scope, model.ActionUpdateBooking, booking.ID.String(), booking.BookingRef, req)
		if err := s.auditRepo.Log(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := toBookingResponse(booking)
	s.warn(ctx, scope, &res)
	s.events.Publish(scope.CompanyID, EventBookingUpdated, res)
	return &res, nil
}

func invoicedFieldsChanged(a, b *model.Booking) bool {
	sameAgent := (a.AgentID == nil && b.AgentID == nil) ||
		(a.AgentID != nil && b.AgentID != nil && *a.AgentID == *b.AgentID)
	return a.ProgramID != b.ProgramID || !sameAgent ||
		a.Adults != b.Adults || a.Children != b.Children ||
		!a.ActivityDate.Equal(b.ActivityDate)
}

func (s *bookingService) GetBooking(ctx context.Context, scope Scope, id uuid.UUID) (*BookingResponse, error) {
	booking, err := s.bookingRepo.FindByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, lookupErr("booking", err)
	}
	res := toBookingResponse(booking)
	return &res, nil
}

func (s *bookingService) ListBookings(ctx context.Context, scope Scope, filter repository.BookingFilter, page pagination.Params) ([]BookingResponse, int64, error) {
	bookings, total, err := s.bookingRepo.List(ctx, scope.CompanyID, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	res := make([]BookingResponse, 0, len(bookings))
	for i := range bookings {
		res = append(res, toBookingResponse(&bookings[i]))
	}
	return res, total, nil
}

// Transition moves a booking along the status table. Invoiced bookings cannot
// be cancelled or voided until their draft invoice is deleted.
func (s *bookingService) Transition(ctx context.Context, scope Scope, id uuid.UUID, to string) (*BookingResponse, error) {
	if _, known := bookingTransitions[to]; !known {
		return nil, invalid("unknown booking status %q", to)
	}

	var booking *model.Booking
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		booking, err = s.bookingRepo.FindByID(txCtx, scope.CompanyID, id)
		if err != nil {
			return lookupErr("booking", err)
		}
		if !canTransitionBooking(booking.Status, to) {
			return conflict("booking %s is %s and cannot become %s", booking.BookingRef, booking.Status, to)
		}
		if booking.InvoiceID != nil && (to == model.BookingCancelled || to == model.BookingVoid) {
			return conflict("booking %s is invoiced; delete its draft invoice first", booking.BookingRef)
		}

		from := booking.Status
		if err := s.bookingRepo.UpdateStatus(txCtx, booking.ID, to); err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		booking.Status = to

		entry := newAuditLog(scope, model.ActionBookingTransition, booking.ID.String(), booking.BookingRef,
			map[string]string{"from": from, "to": to})
		if err := s.auditRepo.Log(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := toBookingResponse(booking)
	s.events.Publish(scope.CompanyID, EventBookingUpdated, res)
	if to == model.BookingConfirmed {
		s.announceConfirmed(ctx, booking, scope.Now)
	}
	return &res, nil
}

func (s *bookingService) announceConfirmed(ctx context.Context, b *model.Booking, at time.Time) {
	companyName := ""
	if company, err := s.companyRepo.FindByID(ctx, b.CompanyID); err == nil {
		companyName = company.Name
	}
	ev := confirmedEvent(b, companyName, at.UTC().Format(time.RFC3339))
	publishConfirmed(ctx, s.publisher, ev)
	s.events.Publish(b.CompanyID, EventBookingConfirmed, ev)
}

var csvHeader = []string{
	"booking_ref", "activity_date", "program", "agent", "customer_name", "customer_phone",
	"hotel", "room_no", "transport", "pickup_time", "adults", "children", "infants",
	"collect_amount", "status", "payment_status", "invoiced",
}

// ExportCSV writes every booking matching filter, oldest activity first.
func (s *bookingService) ExportCSV(ctx context.Context, scope Scope, filter repository.BookingFilter) ([]byte, error) {
	bookings, err := s.bookingRepo.ListAll(ctx, scope.CompanyID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for i := range bookings {
		r := toBookingResponse(&bookings[i])
		record := []string{
			r.BookingRef,
			r.ActivityDate.Format("2006-01-02"),
			r.ProgramName,
			r.AgentName,
			r.CustomerName,
			r.CustomerPhone,
			r.Hotel,
			r.RoomNo,
			r.Transport,
			r.PickupTime,
			strconv.Itoa(r.Adults),
			strconv.Itoa(r.Children),
			strconv.Itoa(r.Infants),
			r.CollectAmount.StringFixed(2),
			r.Status,
			r.PaymentStatus,
			strconv.FormatBool(r.Invoiced),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// VoucherPDF renders the guest voucher of a booking.
func (s *bookingService) VoucherPDF(ctx context.Context, scope Scope, id uuid.UUID) ([]byte, string, error) {
	booking, err := s.bookingRepo.FindByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, "", lookupErr("booking", err)
	}
	if booking.Status == model.BookingCancelled || booking.Status == model.BookingVoid {
		return nil, "", conflict("booking %s is %s", booking.BookingRef, booking.Status)
	}
	company, err := s.companyRepo.FindByID(ctx, scope.CompanyID)
	if err != nil {
		return nil, "", lookupErr("company", err)
	}

	r := toBookingResponse(booking)
	pdf, err := document.VoucherPDF(document.Voucher{
		CompanyName:   company.Name,
		Currency:      company.Currency,
		BookingRef:    r.BookingRef,
		ProgramName:   r.ProgramName,
		ActivityDate:  r.ActivityDate,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		Adults:        r.Adults,
		Children:      r.Children,
		Infants:       r.Infants,
		Transport:     r.Transport,
		PickupTime:    r.PickupTime,
		Hotel:         r.Hotel,
		RoomNo:        r.RoomNo,
		AgentName:     r.AgentName,
		CollectAmount: r.CollectAmount,
		Notes:         r.Notes,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to render voucher: %w", err)
	}
	return pdf, "voucher-" + r.BookingRef + ".pdf", nil
}
