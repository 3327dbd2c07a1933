package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pasindubuddhika1999/findmyphone/internal/auth"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
)

const testSecret = "middleware-test-secret"

func tokenFor(t *testing.T, role models.Role) (string, primitive.ObjectID) {
	t.Helper()
	user := &models.User{Username: "kasun", Role: role, AccountType: models.AccountTypeIndividual}
	user.ID = primitive.NewObjectID()
	token, err := auth.GenerateJWT(user, testSecret, time.Hour)
	require.NoError(t, err)
	return token, user.ID
}

func setupAuthEngine(bans *memoryBanList) *gin.Engine {
	gin.SetMode(gin.TestMode)
	a := NewAuthenticator(testSecret, bans)
	r := gin.New()
	who := func(c *gin.Context) {
		p := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": p.IsAuthenticated(), "username": p.Username})
	}
	r.GET("/private", a.Required(), who)
	r.GET("/public", a.Optional(), who)
	r.GET("/admin", a.Required(), AdminMiddleware(), who)
	return r
}

func get(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAuthenticator_Required(t *testing.T) {
	router := setupAuthEngine(&memoryBanList{banned: map[string]bool{}})
	token, _ := tokenFor(t, models.RoleUser)

	assert.Equal(t, http.StatusUnauthorized, get(router, "/private", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/private", "not-a-jwt").Code)

	w := get(router, "/private", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"kasun"`)

	w = httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Token "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticator_BannedAccount(t *testing.T) {
	bans := &memoryBanList{banned: map[string]bool{}}
	router := setupAuthEngine(bans)
	token, userID := tokenFor(t, models.RoleUser)
	bans.banned[userID.Hex()] = true

	w := get(router, "/private", token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "banned")

	// Public routes stay reachable, but anonymously.
	w = get(router, "/public", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)
}

func TestAuthenticator_BanListOutageLetsRequestThrough(t *testing.T) {
	router := setupAuthEngine(&memoryBanList{banned: map[string]bool{}, err: errors.New("redis down")})
	token, _ := tokenFor(t, models.RoleUser)
	assert.Equal(t, http.StatusOK, get(router, "/private", token).Code)
}

func TestAuthenticator_Optional(t *testing.T) {
	router := setupAuthEngine(&memoryBanList{banned: map[string]bool{}})
	token, _ := tokenFor(t, models.RoleUser)

	assert.Contains(t, get(router, "/public", "").Body.String(), `"authenticated":false`)
	assert.Contains(t, get(router, "/public", "garbage").Body.String(), `"authenticated":false`)
	assert.Contains(t, get(router, "/public", token).Body.String(), `"authenticated":true`)
}

func TestAdminMiddleware(t *testing.T) {
	router := setupAuthEngine(&memoryBanList{banned: map[string]bool{}})
	userToken, _ := tokenFor(t, models.RoleUser)
	adminToken, _ := tokenFor(t, models.RoleAdmin)

	w := get(router, "/admin", userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Administrator privileges required")
	assert.Equal(t, http.StatusOK, get(router, "/admin", adminToken).Code)
}
