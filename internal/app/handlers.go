package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/booking"
)

// GET /api/availability/:slug?date=YYYY-MM-DD
func (a *App) GetAvailabilityHandler(c *gin.Context) {
	ctx := c.Request.Context()

	dateStr := c.Query("date")
	if dateStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date parameter is required"})
		return
	}
	date, err := availability.ParseDate(dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := a.Store.GetBookingLinkBySlug(ctx, c.Param("slug"))
	if err != nil {
		a.internalError(c, "get booking link", err)
		return
	}
	if link == nil || !link.Active {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking link not found"})
		return
	}

	res, err := a.Availability.Compute(ctx, link.ID, date)
	switch {
	case errors.Is(err, availability.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		a.internalError(c, "compute availability", err)
		return
	}

	slots := make([]string, 0, len(res.Slots))
	for _, s := range res.Slots {
		slots = append(slots, s.Start.UTC().Format(time.RFC3339))
	}
	c.JSON(http.StatusOK, availabilityResp{
		Date:             date.String(),
		Timezone:         res.Policy.Timezone,
		AvailableSlots:   slots,
		CalendarDegraded: res.CalendarDegraded,
	})
}

// POST /api/bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := a.Bookings.Create(c.Request.Context(), booking.Request{
		Slug:       req.Slug,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		GuestNotes: req.GuestNotes,
		Start:      req.StartTime,
	})
	var taken *booking.SlotNoLongerAvailableError
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"booking": b})
	case errors.As(err, &taken):
		c.JSON(http.StatusConflict, gin.H{"error": "slot no longer available"})
	case errors.Is(err, booking.ErrLinkNotFound), errors.Is(err, booking.ErrHostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrHostBusy):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "host is busy, retry shortly"})
	case errors.Is(err, availability.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		a.internalError(c, "create booking", err)
	}
}

// GET /api/bookings
func (a *App) ListBookingsHandler(c *gin.Context) {
	bookings, err := a.Bookings.ListForHost(c.Request.Context(), hostID(c))
	if err != nil {
		a.internalError(c, "list bookings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// DELETE /api/bookings/:id
func (a *App) CancelBookingHandler(c *gin.Context) {
	b, err := a.Bookings.Cancel(c.Request.Context(), hostID(c), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"booking": b})
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		a.internalError(c, "cancel booking", err)
	}
}

// GET /api/booking-links
func (a *App) ListBookingLinksHandler(c *gin.Context) {
	links, err := a.Store.ListBookingLinks(c.Request.Context(), hostID(c))
	if err != nil {
		a.internalError(c, "list booking links", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

// POST /api/booking-links
func (a *App) CreateBookingLinkHandler(c *gin.Context) {
	var req createBookingLinkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	link := &availability.BookingLink{
		HostID:          hostID(c),
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
	}
	if err := a.Store.CreateBookingLink(c.Request.Context(), link); err != nil {
		a.internalError(c, "create booking link", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"link": link})
}

// GET /api/public/booking-links/:slug
func (a *App) GetPublicBookingLinkHandler(c *gin.Context) {
	link, err := a.Store.GetBookingLinkBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		a.internalError(c, "get booking link", err)
		return
	}
	if link == nil || !link.Active {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking link not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"link": toPublicLink(link)})
}

// GET /api/booking-links/:id/availability
func (a *App) GetAvailabilitySettingsHandler(c *gin.Context) {
	link, ok := a.ownedLink(c)
	if !ok {
		return
	}
	p, err := a.Store.GetAvailabilityPolicy(c.Request.Context(), link.ID)
	if err != nil {
		a.internalError(c, "get availability policy", err)
		return
	}
	if p == nil {
		c.JSON(http.StatusOK, policyResp{Policy: availability.DefaultPolicy(link.ID, a.DefaultTimezone), Default: true})
		return
	}
	c.JSON(http.StatusOK, policyResp{Policy: *p})
}

// PUT /api/booking-links/:id/availability
func (a *App) UpdateAvailabilitySettingsHandler(c *gin.Context) {
	link, ok := a.ownedLink(c)
	if !ok {
		return
	}
	var req updatePolicyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	current, err := a.Store.GetAvailabilityPolicy(ctx, link.ID)
	if err != nil {
		a.internalError(c, "get availability policy", err)
		return
	}
	p := availability.DefaultPolicy(link.ID, a.DefaultTimezone)
	if current != nil {
		p = *current
	}
	p.BookingLinkID = link.ID
	req.applyTo(&p)

	if err := p.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.Store.UpsertAvailabilityPolicy(ctx, &p); err != nil {
		a.internalError(c, "save availability policy", err)
		return
	}
	c.JSON(http.StatusOK, policyResp{Policy: p})
}

// GET /api/booking-links/:id/blocked-times
func (a *App) ListBlockedTimesHandler(c *gin.Context) {
	link, ok := a.ownedLink(c)
	if !ok {
		return
	}
	blocks, err := a.Store.ListAllBlockedIntervals(c.Request.Context(), link.ID)
	if err != nil {
		a.internalError(c, "list blocked times", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked_times": blocks})
}

// POST /api/booking-links/:id/blocked-times
func (a *App) CreateBlockedTimeHandler(c *gin.Context) {
	link, ok := a.ownedLink(c)
	if !ok {
		return
	}
	var req createBlockedReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.StartTime.Before(req.EndTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be before end_time"})
		return
	}
	block := &availability.BlockedInterval{
		BookingLinkID: link.ID,
		Start:         req.StartTime.UTC(),
		End:           req.EndTime.UTC(),
		Title:         req.Title,
	}
	if err := a.Store.CreateBlockedInterval(c.Request.Context(), block); err != nil {
		a.internalError(c, "create blocked time", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"blocked_time": block})
}

// DELETE /api/booking-links/:id/blocked-times/:blockID
func (a *App) DeleteBlockedTimeHandler(c *gin.Context) {
	link, ok := a.ownedLink(c)
	if !ok {
		return
	}
	removed, err := a.Store.DeleteBlockedInterval(c.Request.Context(), link.ID, c.Param("blockID"))
	if err != nil {
		a.internalError(c, "delete blocked time", err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "blocked time not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ownedLink loads :id and checks it belongs to the caller. It writes the error response itself.
func (a *App) ownedLink(c *gin.Context) (*availability.BookingLink, bool) {
	link, err := a.Store.GetBookingLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.internalError(c, "get booking link", err)
		return nil, false
	}
	// other hosts' links are reported as missing
	if link == nil || link.HostID != hostID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking link not found"})
		return nil, false
	}
	return link, true
}

func (a *App) internalError(c *gin.Context, op string, err error) {
	a.logger().ErrorContext(c.Request.Context(), op+" failed",
		"request_id", c.GetString(requestIDKey),
		"err", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
