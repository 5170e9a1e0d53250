package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tourdesk/internal/mailer"
	"tourdesk/internal/model"
	"tourdesk/internal/payment"
	"tourdesk/internal/queue"
	"tourdesk/internal/repository"
	"tourdesk/internal/sequence"
	"tourdesk/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(day int) time.Time { return time.Date(2026, 10, day, 0, 0, 0, 0, time.UTC) }

func scopeFor(company model.Company, role string) Scope {
	return Scope{CompanyID: company.ID, Role: role, Now: testNow, Location: time.UTC}
}

type fakeGateway struct {
	verify   bool
	err      error
	requests []payment.CheckoutRequest
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Checkout{Token: "tok-" + req.OrderID, RedirectURL: "https://pay.example/" + req.OrderID}, nil
}

func (g *fakeGateway) Verify(payment.Notification) bool { return g.verify }

type fakePublisher struct {
	events []queue.BookingConfirmedEvent
}

func (p *fakePublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.events = append(p.events, ev)
	return nil
}

type fakeSender struct {
	err  error
	sent []mailer.Message
}

func (s *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBroadcaster) Publish(_ uuid.UUID, eventType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

func (b *fakeBroadcaster) has(eventType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e == eventType {
			return true
		}
	}
	return false
}

// env wires every service onto one test database.
type env struct {
	db        *gorm.DB
	gateway   *fakeGateway
	publisher *fakePublisher
	sender    *fakeSender
	events    *fakeBroadcaster

	pricingRepo repository.AgentPricingRepository
	bookingRepo repository.BookingRepository
	availRepo   repository.AvailabilityRepository

	pricing       PricingService
	invoices      InvoiceService
	availability  AvailabilityService
	bookings      BookingService
	public        PublicBookingService
	agents        AgentService
	users         UserService
	notifications NotificationService
	settings      SettingsService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)

	companyRepo := repository.NewCompanyRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	programRepo := repository.NewProgramRepository(db)
	pricingRepo := repository.NewAgentPricingRepository(db)
	availRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	txManager := repository.NewTransactionManager(db)
	counter := sequence.NewDBCounter(db, sequence.MaxIssued(invoiceRepo))

	e := &env{
		db:          db,
		gateway:     &fakeGateway{verify: true},
		publisher:   &fakePublisher{},
		sender:      &fakeSender{},
		events:      &fakeBroadcaster{},
		pricingRepo: pricingRepo,
		bookingRepo: bookingRepo,
		availRepo:   availRepo,
	}
	e.pricing = NewPricingService(agentRepo, programRepo, pricingRepo, auditRepo, txManager)
	e.invoices = e.invoicesWith(counter)
	e.availability = NewAvailabilityService(availRepo, programRepo, auditRepo, txManager)
	e.bookings = NewBookingService(bookingRepo, programRepo, agentRepo, availRepo, companyRepo, auditRepo, txManager, e.publisher, e.events)
	e.public = NewPublicBookingService(companyRepo, programRepo, agentRepo, bookingRepo, availRepo, auditRepo, txManager,
		e.gateway, e.publisher, e.events, func() time.Time { return testNow })
	e.agents = NewAgentService(agentRepo, bookingRepo, invoiceRepo, pricingRepo, auditRepo, txManager)
	e.users = NewUserService(userRepo, companyRepo, agentRepo, auditRepo, txManager, "test-secret")
	e.notifications = NewNotificationService(e.sender, companyRepo, bookingRepo)
	e.settings = NewSettingsService(companyRepo, auditRepo, txManager)
	return e
}

// invoicesWith builds an invoice service numbering through counter.
func (e *env) invoicesWith(counter sequence.Counter) InvoiceService {
	return NewInvoiceService(
		repository.NewInvoiceRepository(e.db),
		e.bookingRepo,
		repository.NewAgentRepository(e.db),
		e.pricingRepo,
		repository.NewCompanyRepository(e.db),
		repository.NewAuditRepository(e.db),
		repository.NewTransactionManager(e.db),
		counter,
		e.events,
	)
}

// failingCounter fails its first allocation and then defers to next.
type failingCounter struct {
	next  sequence.Counter
	calls int
}

func (c *failingCounter) Next(ctx context.Context, companyID uuid.UUID, period string) (int64, error) {
	c.calls++
	if c.calls == 1 {
		return 0, errors.New("counter unavailable")
	}
	return c.next.Next(ctx, companyID, period)
}

func (e *env) price(t *testing.T, company model.Company, agent model.Agent, program model.Program, price string) {
	t.Helper()
	row := model.AgentPricing{AgentID: agent.ID, ProgramID: program.ID, CompanyID: company.ID, AgentPrice: d(price)}
	if err := e.pricingRepo.Upsert(context.Background(), []model.AgentPricing{row}); err != nil {
		t.Fatalf("price: %v", err)
	}
}

func (e *env) slot(t *testing.T, company model.Company, program model.Program, day time.Time, total int, open bool) {
	t.Helper()
	row := model.ProgramAvailability{CompanyID: company.ID, ProgramID: program.ID, Date: day, TotalSlots: total, IsOpen: open}
	if err := e.availRepo.Upsert(context.Background(), []model.ProgramAvailability{row}); err != nil {
		t.Fatalf("slot: %v", err)
	}
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
