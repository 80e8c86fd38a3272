package app

import (
	"time"

	"meeting-scheduler/internal/availability"
)

type createBookingLinkReq struct {
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=1,max=1440"`
}

// publicLink is what guests see; host identity stays private.
type publicLink struct {
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}

func toPublicLink(l *availability.BookingLink) publicLink {
	return publicLink{
		Slug:            l.Slug,
		Title:           l.Title,
		Description:     l.Description,
		DurationMinutes: l.DurationMinutes,
	}
}

// updatePolicyReq has pointer fields so absent keys keep their current value.
type updatePolicyReq struct {
	StartHour  *int    `json:"start_hour"`
	EndHour    *int    `json:"end_hour"`
	DaysOfWeek *[]int  `json:"days_of_week"`
	Timezone   *string `json:"timezone"`
}

func (r updatePolicyReq) applyTo(p *availability.Policy) {
	if r.StartHour != nil {
		p.StartHour = *r.StartHour
	}
	if r.EndHour != nil {
		p.EndHour = *r.EndHour
	}
	if r.DaysOfWeek != nil {
		days := make([]time.Weekday, 0, len(*r.DaysOfWeek))
		for _, d := range *r.DaysOfWeek {
			days = append(days, time.Weekday(d))
		}
		p.AllowedWeekdays = days
	}
	if r.Timezone != nil {
		p.Timezone = *r.Timezone
	}
}

type policyResp struct {
	availability.Policy
	Default bool `json:"default"`
}

type createBlockedReq struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
	Title     string    `json:"title"`
}

type createBookingReq struct {
	Slug       string    `json:"slug" binding:"required"`
	GuestName  string    `json:"guest_name" binding:"required"`
	GuestEmail string    `json:"guest_email" binding:"required,email"`
	GuestNotes string    `json:"guest_notes"`
	StartTime  time.Time `json:"start_time" binding:"required"`
}

type availabilityResp struct {
	Date             string   `json:"date"`
	Timezone         string   `json:"timezone"`
	AvailableSlots   []string `json:"available_slots"`
	CalendarDegraded bool     `json:"calendar_degraded"`
}
