package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/notifyhub/mailqueue/internal/api/middleware"
)

func TestCorrelationID(t *testing.T) {
	var seen string
	h := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetCorrelationID(r.Context())
	}))

	t.Run("echoes caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.CorrelationHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if seen != "abc-123" || rec.Header().Get(middleware.CorrelationHeader) != "abc-123" {
			t.Fatalf("expected echoed id, got ctx=%q header=%q", seen, rec.Header().Get(middleware.CorrelationHeader))
		}
	})

	t.Run("generates when missing or oversized", func(t *testing.T) {
		for _, in := range []string{"", strings.Repeat("x", 200)} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if in != "" {
				req.Header.Set(middleware.CorrelationHeader, in)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if seen == "" || seen == in || len(seen) != 36 {
				t.Fatalf("expected a generated uuid, got %q", seen)
			}
		}
	})
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusNotFound, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}
	for _, tc := range tests {
		h := middleware.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/queue/stats", nil))

		entries := logs.TakeAll()
		if len(entries) != 1 {
			t.Fatalf("expected one log line, got %d", len(entries))
		}
		if entries[0].Level != tc.level {
			t.Fatalf("status %d: expected %s, got %s", tc.status, tc.level, entries[0].Level)
		}
		if got := entries[0].ContextMap()["status"]; got != int64(tc.status) {
			t.Fatalf("expected status field %d, got %v", tc.status, got)
		}
	}
}
