// Package scheduler runs the periodic back-office jobs: persisting overdue
// invoices and mailing the next day's operations report.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tourdesk/internal/model"
	"tourdesk/internal/service"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const jobTimeout = 4 * time.Minute

type companySource interface {
	ListAll(ctx context.Context) ([]model.Company, error)
	GetSettings(ctx context.Context, companyID uuid.UUID) (*model.CompanySettings, error)
}

type overdueMarker interface {
	MarkOverdue(ctx context.Context, scope service.Scope) (int64, error)
}

type opReporter interface {
	SendOPReport(ctx context.Context, scope service.Scope, date time.Time) (*service.OPReport, error)
}

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	cron      *cron.Cron
	companies companySource
	invoices  overdueMarker
	reports   opReporter
	now       func() time.Time
}

func New(companies companySource, invoices overdueMarker, reports opReporter) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		companies: companies,
		invoices:  invoices,
		reports:   reports,
		now:       time.Now,
	}
}

// Start registers both jobs and starts the runner. An empty spec disables
// its job.
func (s *Scheduler) Start(overdueSpec, reportSpec string) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"overdue", overdueSpec, s.SweepOverdue},
		{"op-report", reportSpec, s.SendOPReports},
	}
	for _, job := range jobs {
		if job.spec == "" {
			log.Printf("[SCHEDULER] %s job disabled", job.name)
			continue
		}
		job := job
		_, err := s.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := job.run(ctx); err != nil {
				log.Printf("[SCHEDULER] %s: %v", job.name, err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", job.name, job.spec, err)
		}
		log.Printf("[SCHEDULER] %s scheduled %q", job.name, job.spec)
	}
	s.cron.Start()
	return nil
}

// Stop halts the runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// SweepOverdue marks every company's past-due sent invoices overdue. Each
// company is judged by its own calendar date.
func (s *Scheduler) SweepOverdue(ctx context.Context) error {
	companies, err := s.companies.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list companies: %w", err)
	}
	var total int64
	for _, company := range companies {
		n, err := s.invoices.MarkOverdue(ctx, service.SystemScope(company, s.now()))
		if err != nil {
			log.Printf("[SCHEDULER] overdue sweep for %s failed: %v", company.Slug, err)
			continue
		}
		total += n
	}
	if total > 0 {
		log.Printf("[SCHEDULER] marked %d invoices overdue", total)
	}
	return nil
}

// SendOPReports mails tomorrow's operations report to every company that
// configured a notify address.
func (s *Scheduler) SendOPReports(ctx context.Context) error {
	companies, err := s.companies.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list companies: %w", err)
	}
	for _, company := range companies {
		settings, err := s.companies.GetSettings(ctx, company.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			log.Printf("[SCHEDULER] settings for %s: %v", company.Slug, err)
			continue
		}
		if settings.NotifyEmail == "" {
			continue
		}

		scope := service.SystemScope(company, s.now())
		tomorrow := scope.Today().AddDate(0, 0, 1)
		report, err := s.reports.SendOPReport(ctx, scope, tomorrow)
		if err != nil {
			log.Printf("[SCHEDULER] op report for %s failed: %v", company.Slug, err)
			continue
		}
		log.Printf("[SCHEDULER] op report %s sent for %s (%d bookings)", report.Date, company.Slug, report.TotalBookings)
	}
	return nil
}
