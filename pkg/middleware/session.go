package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/everycheese/everycheese/internal/models"
	"github.com/everycheese/everycheese/internal/sessions"
	"github.com/everycheese/everycheese/pkg/logger"
	"github.com/gin-gonic/gin"
)

const userKey = "user"

// SessionValidator resolves a session cookie value.
type SessionValidator interface {
	Resolve(ctx context.Context, token string) (*sessions.Session, error)
}

// UserLoader loads the user a session belongs to.
type UserLoader interface {
	GetBySub(ctx context.Context, sub string) (*models.User, error)
}

// SessionMiddleware attaches the signed-in user to the context when the
// request carries a valid session cookie. It never aborts.
func SessionMiddleware(cookieName string, sv SessionValidator, ul UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		sess, err := sv.Resolve(ctx, token)
		if err != nil {
			logger.Warnf("session lookup failed: %v", err)
			c.Next()
			return
		}
		if sess == nil {
			c.Next()
			return
		}
		u, err := ul.GetBySub(ctx, sess.Sub)
		if err != nil {
			logger.Warnf("session user lookup failed (sub=%s): %v", sess.Sub, err)
		}
		if u != nil {
			c.Set(userKey, u)
		}
		c.Next()
	}
}

// SetUser attaches u to the request context.
func SetUser(c *gin.Context, u *models.User) {
	c.Set(userKey, u)
}

// CurrentUser returns the signed-in user or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// LoginRequired redirects anonymous requests to loginURL, passing the
// original path as the next parameter.
func LoginRequired(loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) != nil {
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, loginURL+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}
