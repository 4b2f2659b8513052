package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"Gin_postgres_redis_tool_lending/db"

	"github.com/gin-gonic/gin"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: user 3", db.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: already returned", db.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: tool \"Leiter\"", db.ErrInsufficientAvailability), http.StatusConflict},
		{fmt.Errorf("%w: due date", db.ErrInvalid), http.StatusBadRequest},
		{fmt.Errorf("%w: role ADMIN missing", db.ErrConfiguration), http.StatusInternalServerError},
		{fmt.Errorf("driver: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestWriteErrorBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/loans/1", nil)

	writeError(c, fmt.Errorf("%w: loan 1", db.ErrNotFound))
	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("missing error message: %s", w.Body.String())
	}
}

func TestParamID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, tc := range []struct {
		raw  string
		want uint
		ok   bool
	}{
		{"42", 42, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"abc", 0, false},
	} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: tc.raw}}
		got, ok := paramID(c, "id")
		if got != tc.want || ok != tc.ok {
			t.Fatalf("paramID(%q) = %d, %v", tc.raw, got, ok)
		}
		if !ok && w.Code != http.StatusBadRequest {
			t.Fatalf("paramID(%q) wrote %d", tc.raw, w.Code)
		}
	}
}

func TestQueryID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/loans?borrowerId=7", nil)
	id, ok := queryID(c, "borrowerId")
	if !ok || id == nil || *id != 7 {
		t.Fatalf("queryID = %v, %v", id, ok)
	}
	if id, ok := queryID(c, "departmentId"); !ok || id != nil {
		t.Fatalf("absent param = %v, %v", id, ok)
	}
}

func TestParseLead(t *testing.T) {
	set, id, err := parseLead(nil)
	if err != nil || set || id != nil {
		t.Fatalf("absent: %v %v %v", set, id, err)
	}
	set, id, err = parseLead(json.RawMessage("null"))
	if err != nil || !set || id != nil {
		t.Fatalf("null: %v %v %v", set, id, err)
	}
	set, id, err = parseLead(json.RawMessage("5"))
	if err != nil || !set || id == nil || *id != 5 {
		t.Fatalf("value: %v %v %v", set, id, err)
	}
	if _, _, err = parseLead(json.RawMessage(`"x"`)); err == nil {
		t.Fatalf("string lead should fail")
	}
}
