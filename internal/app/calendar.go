package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// GET /api/calendar/auth
// Returns the Google consent URL for the authenticated host.
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}

	state, err := a.Auth.SignState(hostID(c), a.clock())
	if err != nil {
		a.internalError(c, "sign oauth state", err)
		return
	}

	// prompt=consent makes Google issue a refresh token on every connect
	url := a.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	c.JSON(http.StatusOK, gin.H{"auth_url": url})
}

// GET /oauth2callback
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	if reason := c.Query("error"); reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization denied: " + reason})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	host, err := a.Auth.VerifyState(c.Query("state"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
		return
	}

	ctx := c.Request.Context()
	token, err := a.OAuth.Exchange(ctx, code)
	if err != nil {
		a.logger().WarnContext(ctx, "oauth code exchange failed", "host_id", host, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}

	scope, _ := token.Extra("scope").(string)
	if err := a.Store.SaveCalendarCredential(ctx, host, token, scope); err != nil {
		a.internalError(c, "save calendar credential", err)
		return
	}
	a.logger().InfoContext(ctx, "google calendar connected", "host_id", host, "scope", scope)

	if a.ConsentRedirect != "" {
		c.Redirect(http.StatusFound, a.ConsentRedirect)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Google Calendar connected"})
}
