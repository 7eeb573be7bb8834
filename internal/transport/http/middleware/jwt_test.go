package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mathtutor/internal/pkg/jwtutil"
)

const testSecret = "test-secret"

func newProtectedRouter(admin bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{AuthJWT(testSecret)}
	if admin {
		handlers = append(handlers, AdminOnly())
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetUint(ContextUserIDKey),
			"role":    c.GetString(ContextRoleKey),
		})
	})
	r.POST("/protected", handlers...)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthJWTMissingToken(t *testing.T) {
	rec := doRequest(t, newProtectedRouter(false), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := body["error"]; !ok {
		t.Fatalf("401 body must carry an error field, got %s", rec.Body.String())
	}
}

func TestAuthJWTInvalidToken(t *testing.T) {
	rec := doRequest(t, newProtectedRouter(false), "garbage")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthJWTWrongScheme(t *testing.T) {
	r := newProtectedRouter(false)
	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthJWTSetsClaimsOnContext(t *testing.T) {
	token, err := jwtutil.GenerateToken(testSecret, time.Hour, 7, "an", jwtutil.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, newProtectedRouter(false), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.UserID != 7 || body.Role != jwtutil.RoleStudent {
		t.Fatalf("context claims = %+v", body)
	}
}

func TestAdminOnlyRejectsStudentToken(t *testing.T) {
	token, err := jwtutil.GenerateToken(testSecret, time.Hour, 7, "an", jwtutil.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, newProtectedRouter(true), token)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestAdminOnlyAdmitsAdminToken(t *testing.T) {
	token, err := jwtutil.GenerateToken(testSecret, time.Hour, 1, "thaygiao123", jwtutil.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, newProtectedRouter(true), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}
