package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusreg/enrollment-api/internal/models"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := models.IdentityClaims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func runIdentity(t *testing.T, authorization string) (models.Requester, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var requester models.Requester
	var found bool

	r := gin.New()
	r.Use(Identity(testSecret))
	r.GET("/probe", func(c *gin.Context) {
		requester, found = RequesterFromContext(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return requester, found
}

func TestIdentityAttachesRequester(t *testing.T) {
	token := signToken(t, testSecret, "stu-1", models.RoleStudent)

	requester, found := runIdentity(t, "Bearer "+token)
	require.True(t, found)
	assert.Equal(t, "stu-1", requester.ID)
	assert.Equal(t, models.RoleStudent, requester.Role)
	assert.False(t, requester.IsAdmin())
}

func TestIdentityAdminRole(t *testing.T) {
	token := signToken(t, testSecret, "staff-1", models.RoleAdmin)

	requester, found := runIdentity(t, "Bearer "+token)
	require.True(t, found)
	assert.True(t, requester.IsAdmin())
}

func TestIdentityMissingHeader(t *testing.T) {
	_, found := runIdentity(t, "")
	assert.False(t, found)
}

func TestIdentityMalformedHeader(t *testing.T) {
	_, found := runIdentity(t, "Token abc")
	assert.False(t, found)
}

func TestIdentityWrongSecret(t *testing.T) {
	token := signToken(t, "another-secret", "stu-1", models.RoleStudent)

	_, found := runIdentity(t, "Bearer "+token)
	assert.False(t, found)
}
