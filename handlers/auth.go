package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/everycheese/everycheese/internal/config"
	"github.com/everycheese/everycheese/internal/models"
	"github.com/everycheese/everycheese/internal/sessions"
	"github.com/everycheese/everycheese/internal/tokens"
	"github.com/everycheese/everycheese/internal/users"
	"github.com/everycheese/everycheese/internal/web"
	"github.com/everycheese/everycheese/pkg/logger"
	"github.com/everycheese/everycheese/pkg/metrics"
	"github.com/everycheese/everycheese/pkg/middleware"
	"github.com/gin-gonic/gin"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultCookieName = "everycheese_session"
	afterLoginPath    = "/cheeses/"
)

var errNoSubject = errors.New("identity token carries no subject")

// Authenticator signs a user in against the identity provider and returns
// the verified ID token claims. *oidc.KeycloakClient implements it.
type Authenticator interface {
	PasswordLogin(ctx context.Context, username, password string) (map[string]interface{}, error)
	ExchangeCode(ctx context.Context, code, redirectURI string) (map[string]interface{}, error)
}

// LoginRequest used for the JSON login API
type LoginRequest struct {
	Mode        string `json:"mode" binding:"required,oneof=password auth_code"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Code        string `json:"code"`         // authorization code
	RedirectURI string `json:"redirect_uri"` // redirect uri used in auth code flow
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	auth        Authenticator
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
}

// NewAuthHandler wires the auth endpoints. auth may be nil when no identity
// provider is configured; logins then fail.
func NewAuthHandler(cfg *config.Config, auth Authenticator, u *users.Service, s *sessions.Service) *AuthHandler {
	return &AuthHandler{cfg: cfg, auth: auth, usersSvc: u, sessionsSvc: s}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

// RegisterWeb mounts the browser sign-in and sign-out pages.
func (h *AuthHandler) RegisterWeb(r gin.IRouter) {
	r.GET("/accounts/login/", h.LoginPage)
	r.POST("/accounts/login/", h.LoginSubmit)
	r.POST("/accounts/logout/", h.LogoutSubmit)
}

func (h *AuthHandler) accessTTL() time.Duration {
	if h.cfg.JWT.AccessTokenTTL > 0 {
		return h.cfg.JWT.AccessTokenTTL
	}
	return defaultAccessTTL
}

func (h *AuthHandler) cookieName() string {
	if h.cfg.Session.CookieName != "" {
		return h.cfg.Session.CookieName
	}
	return defaultCookieName
}

// refreshTTL is the lifetime of sessions opened through the JSON API.
func (h *AuthHandler) refreshTTL() time.Duration {
	if h.cfg.JWT.RefreshTokenTTL > 0 {
		return h.cfg.JWT.RefreshTokenTTL
	}
	return h.cookieTTL()
}

func (h *AuthHandler) cookieTTL() time.Duration {
	if h.cfg.Session.TTL > 0 {
		return h.cfg.Session.TTL
	}
	return sessions.DefaultTTL
}

// signIn upserts the user described by claims and opens a session for it
// lasting ttl.
func (h *AuthHandler) signIn(ctx context.Context, claims map[string]interface{}, ttl time.Duration) (*models.User, string, error) {
	u, err := h.usersSvc.SyncFromClaims(ctx, claims)
	if err != nil {
		return nil, "", err
	}
	if u == nil {
		return nil, "", errNoSubject
	}
	token, err := h.sessionsSvc.Start(ctx, u.Sub, ttl)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login implements the JSON login: password grant (dev/testing) and authorization-code exchange
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.auth == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Keycloak not configured"})
		return
	}
	ctx := c.Request.Context()

	var claims map[string]interface{}
	var err error
	if req.Mode == "password" {
		claims, err = h.auth.PasswordLogin(ctx, req.Username, req.Password)
	} else {
		if req.Code == "" || req.RedirectURI == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code and redirect_uri required for auth_code mode"})
			return
		}
		logger.Debugf("Login(auth_code): received code length=%d redirect_uri=%s", len(req.Code), req.RedirectURI)
		claims, err = h.auth.ExchangeCode(ctx, req.Code, req.RedirectURI)
	}
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		logger.Warnf("login (%s) failed: %v", req.Mode, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed", "details": err.Error()})
		return
	}

	u, rft, err := h.signIn(ctx, claims, h.refreshTTL())
	if err != nil {
		logger.Errorf("sign-in failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed", "details": err.Error()})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.accessTTL())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"access_token":       access,
		"refresh_token":      rft,
		"expires_in":         int(h.accessTTL().Seconds()),
		"refresh_expires_in": int(h.refreshTTL().Seconds()),
		"user":               u,
	})
}

// Refresh accepts a refresh token and returns a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.sessionsSvc.Resolve(c.Request.Context(), req.RefreshToken)
	if err != nil {
		logger.Errorf("refresh validation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	u, err := h.usersSvc.GetBySub(c.Request.Context(), sess.Sub)
	if err != nil || u == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.accessTTL())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access, "expires_in": int(h.accessTTL().Seconds())})
}

// Logout invalidates the refresh token and blacklists the bearer access token, if any
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if at, ok := middleware.BearerToken(c); ok {
		if exp, err := tokens.ExpiresAt(at); err == nil {
			if err := sessions.BlacklistAccessToken(ctx, at, time.Until(exp)); err != nil {
				logger.Errorf("blacklist access token: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
				return
			}
		}
	}
	if err := h.sessionsSvc.End(ctx, req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

type loginPage struct {
	web.Page
	Next     string
	Username string
	Error    string
}

const msgBadCredentials = "Please enter a correct username and password."

func (h *AuthHandler) LoginPage(c *gin.Context) {
	next := safeNext(c.Query("next"))
	if middleware.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, next)
		return
	}
	c.HTML(http.StatusOK, "login.html", loginPage{Page: web.Page{Title: "Sign In"}, Next: next})
}

// LoginSubmit handles the sign-in form. On success it sets the session
// cookie and redirects to the local next path.
func (h *AuthHandler) LoginSubmit(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	next := safeNext(c.PostForm("next"))
	p := loginPage{Page: web.Page{Title: "Sign In"}, Next: next, Username: username}

	if h.auth == nil {
		p.Error = "Sign-in is not available right now."
		c.HTML(http.StatusServiceUnavailable, "login.html", p)
		return
	}
	ctx := c.Request.Context()
	claims, err := h.auth.PasswordLogin(ctx, username, c.PostForm("password"))
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		logger.Infof("web login failed for %q: %v", username, err)
		p.Error = msgBadCredentials
		c.HTML(http.StatusOK, "login.html", p)
		return
	}
	u, token, err := h.signIn(ctx, claims, h.cookieTTL())
	if err != nil {
		logger.Errorf("web sign-in failed: %v", err)
		p.Error = "Sign-in failed. Please try again."
		c.HTML(http.StatusInternalServerError, "login.html", p)
		return
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	logger.Infof("user signed in: sub=%s", u.Sub)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName(), token, int(h.cookieTTL().Seconds()), "/", "", h.cfg.Session.Secure, true)
	c.Redirect(http.StatusFound, next)
}

func (h *AuthHandler) LogoutSubmit(c *gin.Context) {
	if token, err := c.Cookie(h.cookieName()); err == nil && token != "" {
		if err := h.sessionsSvc.End(c.Request.Context(), token); err != nil {
			logger.Warnf("delete session on logout: %v", err)
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName(), "", -1, "/", "", h.cfg.Session.Secure, true)
	c.Redirect(http.StatusFound, afterLoginPath)
}

// safeNext returns next when it is a path on this site, else the list page.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return afterLoginPath
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return afterLoginPath
	}
	return next
}
