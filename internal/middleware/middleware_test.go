package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextSessionKey))
	})
	return router
}

func serve(router *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	router := newTestRouter(JWT(validatorStub{claims: &models.JWTClaims{UserID: "u1"}}))

	require.Equal(t, http.StatusUnauthorized, serve(router, nil).Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, map[string]string{"Authorization": "Token abc"}).Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, map[string]string{"Authorization": "Bearer "}).Code)
}

func TestJWTPropagatesValidatorError(t *testing.T) {
	router := newTestRouter(JWT(validatorStub{err: appErrors.Wrap(errors.New("bad"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")}))
	require.Equal(t, http.StatusUnauthorized, serve(router, map[string]string{"Authorization": "Bearer abc"}).Code)
}

func TestRBACAllowsConfiguredRoles(t *testing.T) {
	admin := validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}
	teacher := validatorStub{claims: &models.JWTClaims{UserID: "u2", Role: models.RoleTeacher}}
	bearer := map[string]string{"Authorization": "Bearer abc"}

	allowed := newTestRouter(JWT(admin), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	require.Equal(t, http.StatusOK, serve(allowed, bearer).Code)

	denied := newTestRouter(JWT(teacher), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	require.Equal(t, http.StatusForbidden, serve(denied, bearer).Code)

	anonymous := newTestRouter(RequireRoles(models.RoleAdmin))
	require.Equal(t, http.StatusUnauthorized, serve(anonymous, nil).Code)
}

func TestSessionResolution(t *testing.T) {
	anonymous := newTestRouter(Session())
	recorder := serve(anonymous, nil)
	require.Equal(t, "default", recorder.Body.String())

	recorder = serve(anonymous, map[string]string{SessionHeader: "tab-7"})
	require.Equal(t, "tab-7", recorder.Body.String())
	require.Equal(t, "tab-7", recorder.Header().Get(SessionHeader))

	authenticated := newTestRouter(OptionalJWT(validatorStub{claims: &models.JWTClaims{UserID: "user-1"}}), Session())
	recorder = serve(authenticated, map[string]string{"Authorization": "Bearer abc", SessionHeader: "tab-7"})
	require.Equal(t, "user-1", recorder.Body.String())
}
