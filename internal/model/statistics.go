package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardStats aggregates booking and invoicing totals for a date range
type DashboardStats struct {
	RangeStart      time.Time        `json:"range_start"`
	RangeEnd        time.Time        `json:"range_end"`
	BookingsByState map[string]int64 `json:"bookings_by_status"`
	TotalPax        int64            `json:"total_pax"`
	CollectRevenue  decimal.Decimal  `json:"collect_revenue"`
	OnlineRevenue   decimal.Decimal  `json:"online_revenue"`
	InvoicedTotal   decimal.Decimal  `json:"invoiced_total"`
	OutstandingDue  decimal.Decimal  `json:"outstanding_due"`
	TopPrograms     []ProgramRanking `json:"top_programs"`
	TopAgents       []AgentRanking   `json:"top_agents"`
}

// ProgramRanking ranks programs by booked pax
type ProgramRanking struct {
	ProgramID   string `json:"program_id"`
	ProgramName string `json:"program_name"`
	Bookings    int64  `json:"bookings"`
	Pax         int64  `json:"pax"`
}

// AgentRanking ranks agents by booking count
type AgentRanking struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Bookings  int64  `json:"bookings"`
	Pax       int64  `json:"pax"`
}
