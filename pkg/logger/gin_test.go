package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddleware_PropagatesRequestIDAndCallSid(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(Middleware(base))
	r.POST("/webhooks/twilio/status", func(c *gin.Context) {
		if FromGin(c) == slog.Default() {
			t.Errorf("expected request logger on gin context")
		}
		From(c.Request.Context()).Info("inside")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader("CallSid=CA42"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Request-Id", "rid-1")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "rid-1" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var inside map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &inside); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inside["request_id"] != "rid-1" || inside["call_sid"] != "CA42" {
		t.Fatalf("expected request_id and call_sid attrs, got %v", inside)
	}
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestAttach_ReachesSummaryLine(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(slog.New(slog.NewJSONHandler(&buf, nil))))
	r.GET("/v1/calls", func(c *gin.Context) {
		Attach(c, "user_id", "u1")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/calls", nil))

	var summary map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &summary); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if summary["user_id"] != "u1" || summary["path"] != "/v1/calls" {
		t.Fatalf("expected user_id on summary line, got %v", summary)
	}
}

func TestNewWithWriter_LocalIsTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "local").Debug("hello")
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "service=calltrack") {
		t.Fatalf("expected text debug line, got %q", buf.String())
	}

	buf.Reset()
	NewWithWriter(&buf, "production").Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug suppressed in production, got %q", buf.String())
	}
}
