package app

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	hostIDKey     = "host_id"
	stateAudience = "calendar-connect"
	stateTTL      = 10 * time.Minute
)

// Authenticator accepts HS256 JWTs whose subject is the host ID, or static
// tokens configured as "hostID:token".
type Authenticator struct {
	secret       []byte
	stateKey     []byte
	staticTokens map[string]string
}

func NewAuthenticator(jwtSecret string, staticTokens []string) (*Authenticator, error) {
	a := &Authenticator{
		secret:       []byte(strings.TrimSpace(jwtSecret)),
		staticTokens: make(map[string]string),
	}
	for _, entry := range staticTokens {
		hostID, token, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || hostID == "" || token == "" {
			return nil, fmt.Errorf("static token %q must look like hostID:token", entry)
		}
		a.staticTokens[token] = hostID
	}

	a.stateKey = a.secret
	if len(a.stateKey) == 0 {
		// states only need to outlive one consent round trip on this process
		a.stateKey = make([]byte, 32)
		if _, err := rand.Read(a.stateKey); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Middleware authenticates the request and stores the host ID in the gin context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		tokenStr := parts[1]

		if len(a.secret) > 0 {
			if hostID, err := a.parseHostToken(tokenStr); err == nil {
				c.Set(hostIDKey, hostID)
				c.Next()
				return
			}
		}

		for token, hostID := range a.staticTokens {
			if subtle.ConstantTimeCompare([]byte(tokenStr), []byte(token)) == 1 {
				c.Set(hostIDKey, hostID)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

func (a *Authenticator) parseHostToken(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5*time.Second))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	for _, aud := range claims.Audience {
		if aud == stateAudience {
			return "", errors.New("oauth state is not an access token")
		}
	}
	return claims.Subject, nil
}

// SignState binds an OAuth consent round trip to hostID.
func (a *Authenticator) SignState(hostID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   hostID,
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.stateKey)
}

// VerifyState returns the host ID carried by a state issued by SignState.
func (a *Authenticator) VerifyState(state string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(token *jwt.Token) (interface{}, error) {
		return a.stateKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("state has no subject")
	}
	return claims.Subject, nil
}

func hostID(c *gin.Context) string {
	return c.GetString(hostIDKey)
}
