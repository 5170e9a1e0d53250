package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tourdesk/internal/availability"
	"tourdesk/internal/model"
	"tourdesk/internal/payment"
	"tourdesk/internal/pricing"
	"tourdesk/internal/queue"
	"tourdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type PublicProgram struct {
	ID                string          `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	PricingType       string          `json:"pricing_type"`
	SellingPrice      decimal.Decimal `json:"selling_price" swaggertype:"string"`
	AdultSellingPrice decimal.Decimal `json:"adult_selling_price" swaggertype:"string"`
	ChildSellingPrice decimal.Decimal `json:"child_selling_price" swaggertype:"string"`
}

type PublicPage struct {
	CompanyName string          `json:"company_name"`
	Slug        string          `json:"slug"`
	Currency    string          `json:"currency"`
	Timezone    string          `json:"timezone"`
	Programs    []PublicProgram `json:"programs"`
}

type PublicBookingRequest struct {
	ProgramID     string `json:"program_id" binding:"required,uuid"`
	ActivityDate  string `json:"activity_date" binding:"required,datetime=2006-01-02"`
	CustomerName  string `json:"customer_name" binding:"required,max=255"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
	CustomerPhone string `json:"customer_phone" binding:"max=50"`
	Hotel         string `json:"hotel" binding:"max=255"`
	RoomNo        string `json:"room_no" binding:"max=30"`
	Transport     string `json:"transport" binding:"required,oneof=pickup come_direct"`
	Adults        int    `json:"adults" binding:"min=0,max=50"`
	Children      int    `json:"children" binding:"min=0,max=50"`
	Infants       int    `json:"infants" binding:"min=0,max=50"`
	Notes         string `json:"notes" binding:"max=1000"`
}

type PublicBookingResponse struct {
	BookingID  string            `json:"booking_id"`
	BookingRef string            `json:"booking_ref"`
	Status     string            `json:"status"`
	Amount     decimal.Decimal   `json:"amount" swaggertype:"string"`
	Currency   string            `json:"currency"`
	Checkout   *payment.Checkout `json:"checkout,omitempty"`
}

type PublicBookingService interface {
	Page(ctx context.Context, slug string) (*PublicPage, error)
	Calendar(ctx context.Context, slug string, programID uuid.UUID, year int, month time.Month) ([]availability.Day, error)
	Book(ctx context.Context, slug string, req PublicBookingRequest) (*PublicBookingResponse, error)
	HandlePaymentNotification(ctx context.Context, n payment.Notification) error
}

type publicBookingService struct {
	companyRepo repository.CompanyRepository
	programRepo repository.ProgramRepository
	agentRepo   repository.AgentRepository
	bookingRepo repository.BookingRepository
	availRepo   repository.AvailabilityRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	gateway     payment.Gateway
	publisher   queue.Publisher
	events      Broadcaster
	now         func() time.Time
}

func NewPublicBookingService(
	companyRepo repository.CompanyRepository,
	programRepo repository.ProgramRepository,
	agentRepo repository.AgentRepository,
	bookingRepo repository.BookingRepository,
	availRepo repository.AvailabilityRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	gateway payment.Gateway,
	publisher queue.Publisher,
	events Broadcaster,
	now func() time.Time,
) PublicBookingService {
	if now == nil {
		now = time.Now
	}
	return &publicBookingService{
		companyRepo: companyRepo,
		programRepo: programRepo,
		agentRepo:   agentRepo,
		bookingRepo: bookingRepo,
		availRepo:   availRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		gateway:     gateway,
		publisher:   publisher,
		events:      broadcasterOrNop(events),
		now:         now,
	}
}

// company resolves an enabled booking page. Disabled pages look missing.
func (s *publicBookingService) company(ctx context.Context, slug string) (*model.Company, Scope, error) {
	company, err := s.companyRepo.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, Scope{}, lookupErr("booking page", err)
	}
	settings, err := loadSettings(ctx, s.companyRepo, company.ID)
	if err != nil {
		return nil, Scope{}, err
	}
	if !settings.BookingPageEnabled {
		return nil, Scope{}, fmt.Errorf("booking page %w", ErrNotFound)
	}
	return company, SystemScope(*company, s.now()), nil
}

func (s *publicBookingService) activeProgram(ctx context.Context, companyID, programID uuid.UUID) (*model.Program, error) {
	program, err := s.programRepo.FindByID(ctx, companyID, programID)
	if err != nil {
		return nil, lookupErr("program", err)
	}
	if !program.IsActive {
		return nil, fmt.Errorf("program %w", ErrNotFound)
	}
	return program, nil
}

func (s *publicBookingService) Page(ctx context.Context, slug string) (*PublicPage, error) {
	company, _, err := s.company(ctx, slug)
	if err != nil {
		return nil, err
	}
	programs, err := s.programRepo.List(ctx, company.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}

	page := &PublicPage{
		CompanyName: company.Name,
		Slug:        company.Slug,
		Currency:    company.Currency,
		Timezone:    company.Timezone,
		Programs:    make([]PublicProgram, 0, len(programs)),
	}
	for _, p := range programs {
		page.Programs = append(page.Programs, PublicProgram{
			ID:                p.ID.String(),
			Code:              p.Code,
			Name:              p.Name,
			PricingType:       p.PricingType,
			SellingPrice:      p.SellingPrice,
			AdultSellingPrice: p.AdultSellingPrice,
			ChildSellingPrice: p.ChildSellingPrice,
		})
	}
	return page, nil
}

func (s *publicBookingService) Calendar(ctx context.Context, slug string, programID uuid.UUID, year int, month time.Month) ([]availability.Day, error) {
	company, scope, err := s.company(ctx, slug)
	if err != nil {
		return nil, err
	}
	if _, err := s.activeProgram(ctx, company.ID, programID); err != nil {
		return nil, err
	}
	return monthCalendar(ctx, s.availRepo, programID, year, month, scope.loc(), scope.Today())
}

// Book takes a guest booking. Unlike staff bookings capacity is enforced:
// the slot row stays locked from the check until the booking is stored, so
// two guests cannot both take the last seats.
func (s *publicBookingService) Book(ctx context.Context, slug string, req PublicBookingRequest) (*PublicBookingResponse, error) {
	company, scope, err := s.company(ctx, slug)
	if err != nil {
		return nil, err
	}
	pax := req.Adults + req.Children
	if pax < 1 {
		return nil, invalid("a booking needs at least one adult or child")
	}
	if req.Transport == model.TransportPickup && strings.TrimSpace(req.Hotel) == "" {
		return nil, invalid("pickup bookings need a hotel")
	}
	date, err := availability.ParseDate(req.ActivityDate)
	if err != nil {
		return nil, invalid("invalid activity date %q", req.ActivityDate)
	}
	programID, err := uuid.Parse(req.ProgramID)
	if err != nil {
		return nil, invalid("invalid program id")
	}
	program, err := s.activeProgram(ctx, company.ID, programID)
	if err != nil {
		return nil, err
	}

	direct, err := s.agentRepo.FindDirect(ctx, company.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load direct agent: %w", err)
	}

	amount := pricing.SellingTotal(programPrice(*program), req.Adults, req.Children)
	ref := newBookingRef(scope.Now)
	booking := model.Booking{
		CompanyID:     company.ID,
		BookingRef:    ref,
		ProgramID:     program.ID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Hotel:         req.Hotel,
		RoomNo:        req.RoomNo,
		Transport:     req.Transport,
		Adults:        req.Adults,
		Children:      req.Children,
		Infants:       req.Infants,
		ActivityDate:  date,
		CollectAmount: decimal.Zero,
		OnlineAmount:  amount,
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentPending,
		PaymentRef:    ref,
		Source:        model.SourcePublic,
		Notes:         req.Notes,
	}
	if direct != nil {
		booking.AgentID = &direct.ID
	}
	free := amount.IsZero()
	if free {
		booking.Status = model.BookingConfirmed
		booking.PaymentStatus = model.PaymentPaid
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		day, err := evaluateDate(txCtx, s.availRepo, program.ID, date, scope.Today(), true)
		if err != nil {
			return err
		}
		switch {
		case day.Disabled:
			return invalid("%s is in the past", day.Date)
		case day.Status == availability.Closed:
			return conflict("%s is closed", day.Date)
		case !day.Fits(pax):
			return conflict("only %d seats left on %s", day.Remaining, day.Date)
		}

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

	booking.Program = program
	booking.Agent = direct
	s.events.Publish(company.ID, EventBookingCreated, toBookingResponse(&booking))

	res := &PublicBookingResponse{
		BookingID:  booking.ID.String(),
		BookingRef: booking.BookingRef,
		Status:     booking.Status,
		Amount:     amount,
		Currency:   company.Currency,
	}
	if free {
		s.announce(ctx, company, &booking, scope.Now)
		return res, nil
	}

	checkout, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		OrderID:     booking.PaymentRef,
		Amount:      amount,
		Description: program.Name + " " + req.ActivityDate,
		Customer: payment.Customer{
			Name:  booking.CustomerName,
			Email: booking.CustomerEmail,
			Phone: booking.CustomerPhone,
		},
	})
	if err != nil {
		log.Printf("[PAYMENT] checkout for booking %s failed: %v", booking.BookingRef, err)
		if uerr := s.bookingRepo.UpdatePayment(ctx, booking.ID, model.PaymentFailed, booking.Status); uerr != nil {
			log.Printf("[PAYMENT] failed to flag booking %s: %v", booking.BookingRef, uerr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	res.Checkout = checkout
	return res, nil
}

// HandlePaymentNotification applies a gateway callback. Unknown orders and
// statuses are acknowledged without changes so the gateway stops retrying.
func (s *publicBookingService) HandlePaymentNotification(ctx context.Context, n payment.Notification) error {
	if !s.gateway.Verify(n) {
		return fmt.Errorf("%w: invalid payment signature", ErrForbidden)
	}
	paymentStatus, ok := payment.Status(n)
	if !ok {
		log.Printf("[PAYMENT] ignoring status %q for order %s", n.TransactionStatus, n.OrderID)
		return nil
	}

	booking, err := s.bookingRepo.FindByPaymentRef(ctx, n.OrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[PAYMENT] notification for unknown order %s", n.OrderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	if booking.PaymentStatus == model.PaymentPaid || booking.PaymentStatus == paymentStatus {
		return nil
	}

	status := booking.Status
	if paymentStatus == model.PaymentPaid && status == model.BookingPending {
		status = model.BookingConfirmed
	}

	company, err := s.companyRepo.FindByID(ctx, booking.CompanyID)
	if err != nil {
		return lookupErr("company", err)
	}
	scope := SystemScope(*company, s.now())

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.bookingRepo.UpdatePayment(txCtx, booking.ID, paymentStatus, status); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		entry := newAuditLog(scope, model.ActionPaymentUpdate, booking.ID.String(), booking.BookingRef, map[string]string{
			"transaction_id":     n.TransactionID,
			"transaction_status": n.TransactionStatus,
			"payment_status":     paymentStatus,
		})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return err
	}

	confirmed := status == model.BookingConfirmed && booking.Status != model.BookingConfirmed
	booking.Status = status
	booking.PaymentStatus = paymentStatus
	s.events.Publish(booking.CompanyID, EventBookingUpdated, toBookingResponse(booking))
	if confirmed {
		s.announce(ctx, company, booking, scope.Now)
	}
	return nil
}

func (s *publicBookingService) announce(ctx context.Context, company *model.Company, b *model.Booking, at time.Time) {
	ev := confirmedEvent(b, company.Name, at.UTC().Format(time.RFC3339))
	publishConfirmed(ctx, s.publisher, ev)
	s.events.Publish(company.ID, EventBookingConfirmed, ev)
}
