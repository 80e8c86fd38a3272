package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

// Handler builds the gin engine and wraps it for tracing.
func (a *App) Handler(checks ...ReadyCheck) http.Handler {
	return otelhttp.NewHandler(a.Router(checks...), "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (a *App) Router(checks ...ReadyCheck) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(a.logger()))

	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/readyz", readyHandler(checks))

	// OAuth2 callback (must be outside auth middleware)
	router.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	api := router.Group("/api")
	{
		api.GET("/availability/:slug", a.GetAvailabilityHandler)
		api.GET("/public/booking-links/:slug", a.GetPublicBookingLinkHandler)
		api.POST("/bookings", a.CreateBookingHandler)
	}

	authed := api.Group("", a.Auth.Middleware())
	{
		authed.GET("/bookings", a.ListBookingsHandler)
		authed.DELETE("/bookings/:id", a.CancelBookingHandler)

		links := authed.Group("/booking-links")
		{
			links.GET("", a.ListBookingLinksHandler)
			links.POST("", a.CreateBookingLinkHandler)
			links.GET("/:id/availability", a.GetAvailabilitySettingsHandler)
			links.PUT("/:id/availability", a.UpdateAvailabilitySettingsHandler)
			links.GET("/:id/blocked-times", a.ListBlockedTimesHandler)
			links.POST("/:id/blocked-times", a.CreateBlockedTimeHandler)
			links.DELETE("/:id/blocked-times/:blockID", a.DeleteBlockedTimeHandler)
		}

		authed.GET("/calendar/auth", a.GoogleAuthHandler)
	}

	return router
}

func readyHandler(checks []ReadyCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		var failures []string
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				name := check.Name
				if name == "" {
					name = "dependency"
				}
				failures = append(failures, name+": "+err.Error())
			}
		}
		if len(failures) > 0 {
			c.String(http.StatusServiceUnavailable, strings.Join(failures, "; "))
			return
		}
		c.String(http.StatusOK, "ok")
	}
}
