package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pasindubuddhika1999/findmyphone/internal/api/middleware"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/policy"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	alice = policy.Principal{UserID: primitive.NewObjectID(), Username: "alice", Role: models.RoleUser, AccountType: models.AccountTypeIndividual}
	admin = policy.Principal{UserID: primitive.NewObjectID(), Username: "root", Role: models.RoleAdmin, AccountType: models.AccountTypeIndividual}
)

// newEngine returns a router whose requests all run as p.
func newEngine(p policy.Principal) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyPrincipal, p)
		c.Next()
	})
	return r
}

func serve(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, _ := json.Marshal(b)
			reader = bytes.NewReader(raw)
		}
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}
