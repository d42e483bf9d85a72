package billing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"calltrack/internal/auth"
	"calltrack/internal/rbac"

	"github.com/gin-gonic/gin"
)

type stubUsage struct {
	sum Summary
	err error
}

func (s stubUsage) Summary(ctx context.Context, userID string) (Summary, error) { return s.sum, s.err }

func serve(role string, usage UsageReader) int {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/calls", func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "u1", role))
		c.Next()
	}, RequireAvailableMinutes(usage), func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/calls", nil))
	return w.Code
}

func TestRequireAvailableMinutes(t *testing.T) {
	if code := serve(rbac.RoleUser, stubUsage{sum: Summary{TotalMinutesAvailable: 3}}); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if code := serve(rbac.RoleUser, stubUsage{sum: Summary{}}); code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", code)
	}
	if code := serve(rbac.RoleAdmin, stubUsage{sum: Summary{}}); code != http.StatusAccepted {
		t.Fatalf("admin should bypass, got %d", code)
	}
	if code := serve(rbac.RoleUser, stubUsage{err: errors.New("db")}); code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
}
