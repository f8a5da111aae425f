package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/everycheese/everycheese/internal/sessions"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type claimsToken map[string]interface{}

func (t claimsToken) Claims(v interface{}) error {
	mm, ok := v.(*map[string]interface{})
	if !ok {
		return fmt.Errorf("unsupported claims type %T", v)
	}
	*mm = t
	return nil
}

// tokenTable accepts exactly the tokens it holds.
type tokenTable map[string]claimsToken

func (tt tokenTable) Verify(_ context.Context, raw string) (Token, error) {
	if tok, ok := tt[raw]; ok {
		return tok, nil
	}
	return nil, fmt.Errorf("unknown token")
}

var knownTokens = tokenTable{
	"goodtoken":   {"sub": "user1", "email": "cheesemonger@example.com"},
	"black-token": {"sub": "user1"},
}

func serveAuth(t *testing.T, header string) *httptest.ResponseRecorder {
	t.Helper()
	g := gin.New()
	g.GET("/", AuthMiddleware(knownTokens), func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"claims": claims})
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_RejectsBadHeaders(t *testing.T) {
	for _, h := range []string{"", "BadHeader", "Basic abc", "Bearer ", "Bearer nope"} {
		assert.Equal(t, http.StatusUnauthorized, serveAuth(t, h).Code, "header %q", h)
	}
}

func TestBearerToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "bearer  abc ")
	tok, ok := BearerToken(c)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	rw := serveAuth(t, "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Equal(t, "user1", got["claims"]["sub"])
}

func TestAuthMiddleware_RejectsBlacklistedToken(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	sessions.SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	defer sessions.SetBlacklistClient(nil)

	require.NoError(t, sessions.BlacklistAccessToken(context.Background(), "black-token", 5*time.Second))

	require.Equal(t, http.StatusUnauthorized, serveAuth(t, "Bearer black-token").Code)
	require.Equal(t, http.StatusOK, serveAuth(t, "Bearer goodtoken").Code)
}
