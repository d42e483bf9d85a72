package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"calltrack/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, "user-1", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !pair.AccessExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected access expiry %v", pair.AccessExpiresAt)
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerify_Expired(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()
	pair, _ := m.IssuePair(now, "user-1", "user")
	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_RejectsWrongTokenType(t *testing.T) {
	m := newManager(t)
	p, err := m.IssuePair(time.Now(), "u", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_AcceptsSubjectOnlyToken(t *testing.T) {
	m := newManager(t)
	now := time.Now()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ext-7",
			Issuer:    "issuer",
			Audience:  jwt.ClaimStrings{"aud"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Role:      "admin",
		TokenType: TokenTypeAccess,
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := m.Verify(raw, TokenTypeAccess, now)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "ext-7" {
		t.Fatalf("expected user id from sub, got %q", claims.UserID)
	}
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)
	pair, _ := m.IssuePair(time.Now(), "user-1", "admin")

	r := gin.New()
	r.GET("/me", RequireAccessToken(m), func(c *gin.Context) {
		id, _ := FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "role": id.Role})
	})

	cases := map[string]int{
		"":                            http.StatusUnauthorized,
		"Bearer nope":                 http.StatusUnauthorized,
		"Bearer " + pair.RefreshToken: http.StatusUnauthorized,
		"Bearer " + pair.AccessToken:  http.StatusOK,
		"Basic " + pair.AccessToken:   http.StatusUnauthorized,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("header %q: expected %d, got %d", header, want, w.Code)
		}
	}
}
