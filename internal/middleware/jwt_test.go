package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notebook/internal/model"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
)

type fakeAuth struct {
	users map[string]*model.User
}

func (f *fakeAuth) Authenticate(ctx context.Context, token string) (*model.User, error) {
	user, ok := f.users[token]
	if !ok {
		return nil, appErr.ErrUnauthorized
	}
	if !user.IsActive {
		return nil, appErr.ErrForbidden
	}
	return user, nil
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := &fakeAuth{users: map[string]*model.User{
		"admin": {ID: "a", IsActive: true, IsSuperuser: true},
		"user":  {ID: "u", IsActive: true},
	}}
	r := gin.New()
	g := r.Group("", JWTAuth(auth))
	g.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextUserIDKey)) })
	g.GET("/admin", RequireSuperuser(), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth_SetsUserID(t *testing.T) {
	r := newAuthRouter()
	w := get(r, "/me", "user")
	require.Equal(t, "u", w.Body.String())

	w = get(r, "/me", "")
	require.NotEqual(t, "u", w.Body.String())
	require.Contains(t, w.Body.String(), "Not authenticated")

	w = get(r, "/me", "bogus")
	require.Contains(t, w.Body.String(), "unauthorized")
}

func TestRequireSuperuser(t *testing.T) {
	r := newAuthRouter()
	require.Equal(t, "ok", get(r, "/admin", "admin").Body.String())
	require.Contains(t, get(r, "/admin", "user").Body.String(), "enough privileges")
}

func TestRequestID_EchoesOrGenerates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "abc", w.Body.String())
	require.Equal(t, "abc", w.Header().Get("X-Request-Id"))

	w = get(r, "/", "")
	require.Len(t, w.Body.String(), 36)
}
