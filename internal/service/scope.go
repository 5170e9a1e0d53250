package service

import (
	"time"

	"tourdesk/internal/availability"
	"tourdesk/internal/model"

	"github.com/google/uuid"
)

// Scope is the caller's identity and clock. Services take it explicitly
// instead of reading session state, which keeps them testable.
type Scope struct {
	CompanyID uuid.UUID
	UserID    *uuid.UUID // nil for guests and background jobs
	Role      string
	Now       time.Time
	Location  *time.Location
}

// SystemScope is used by background jobs acting for a company.
func SystemScope(company model.Company, now time.Time) Scope {
	return Scope{CompanyID: company.ID, Now: now, Location: company.Location()}
}

func (s Scope) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Today is the company's current calendar date as midnight UTC.
func (s Scope) Today() time.Time {
	return availability.CalendarDate(s.Now.In(s.loc()))
}

// CanManage reports whether the caller may change settings and the team.
func (s Scope) CanManage() bool {
	return s.Role == model.RoleOwner || s.Role == model.RoleAdmin
}
