package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestQueryIntRange(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCtx := func(query string) *gin.Context {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
		return c
	}

	t.Run("absent uses default", func(t *testing.T) {
		c := newCtx("")
		n, ok := queryIntRange(c, "limit", 10, 1, 100)
		if !ok || n != 10 {
			t.Errorf("got (%d, %v), want (10, true)", n, ok)
		}
	})

	t.Run("in range", func(t *testing.T) {
		c := newCtx("limit=50")
		n, ok := queryIntRange(c, "limit", 10, 1, 100)
		if !ok || n != 50 {
			t.Errorf("got (%d, %v), want (50, true)", n, ok)
		}
	})

	t.Run("above max is rejected with 422", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
		_, ok := queryIntRange(c, "limit", 10, 1, 100)
		if ok {
			t.Fatalf("expected ok=false for an out-of-range value")
		}
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", w.Code)
		}
	})

	t.Run("below min is rejected with 422", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/?page=0", nil)
		_, ok := queryIntRange(c, "page", 1, 1, 1000)
		if ok {
			t.Fatalf("expected ok=false for a below-minimum value")
		}
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", w.Code)
		}
	})

	t.Run("non-integer is rejected with 422", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/?hours=soon", nil)
		_, ok := queryIntRange(c, "hours", 24, 1, 168)
		if ok {
			t.Fatalf("expected ok=false for a non-integer value")
		}
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", w.Code)
		}
	})
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.016, 1.02},
		{1.004, 1.0},
		{0, 0},
		{12.3456, 12.35},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimePtr_Nil(t *testing.T) {
	if got := formatTimePtr(nil); got != nil {
		t.Errorf("expected nil for a nil time pointer, got %v", got)
	}
}

func TestFormatTimePtr_Set(t *testing.T) {
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	got := formatTimePtr(&ts)
	want := "2026-07-30T12:00:00Z"
	if got != want {
		t.Errorf("formatTimePtr = %v, want %v", got, want)
	}
}
