package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"smartexpense/internal/core"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"amount": 42.5, "category": "Food", "date": "2026-10-05", "description": "  Pizza\u0000 night  ", "recurring": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
	if recurring := parser.Get("recurring"); recurring != "true" {
		t.Errorf("Get('recurring') = %q, want 'true'", recurring)
	}

	want := core.Submission{Amount: "42.5", Category: "Food", Date: "2026-10-05", Description: "Pizza night"}
	if got := parser.Submission(); got != want {
		t.Errorf("Submission() = %+v, want %+v", got, want)
	}
}

func TestRequestBodyParser_JSONWithoutContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(` {"amount": "7"}`))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() {
		t.Error("Expected body starting with { to be read as JSON")
	}
	if amount := parser.Get("amount"); amount != "7" {
		t.Errorf("Get('amount') = %q, want '7'", amount)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "amount=12.50&category=Transport&date=2026-10-01&description=Bus+ticket&edit_id=4"
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if id := parser.Get("edit_id"); id != "4" {
		t.Errorf("Get('edit_id') = %q, want '4'", id)
	}

	want := core.Submission{Amount: "12.50", Category: "Transport", Date: "2026-10-01", Description: "Bus ticket"}
	if got := parser.Submission(); got != want {
		t.Errorf("Submission() = %+v, want %+v", got, want)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
	if err := parser.RequireBody(); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("RequireBody() error = %v, want ErrEmptyBody", err)
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(`{"amount": `))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err == nil {
		t.Fatal("Parse() expected error for malformed JSON")
	}
	// The error is sticky.
	if err := parser.RequireBody(); err == nil {
		t.Error("RequireBody() expected error after failed Parse")
	}
	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false after failed Parse")
	}
	if string(parser.GetRaw()) != `{"amount": ` {
		t.Errorf("GetRaw() = %q", parser.GetRaw())
	}
	if parser.ContentType() != "application/json" {
		t.Errorf("ContentType() = %q", parser.ContentType())
	}
}

func TestRequestBodyParser_BodyIsCapped(t *testing.T) {
	body := "description=" + strings.Repeat("a", maxBodySize*2)
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := len(parser.GetRaw()); got != maxBodySize {
		t.Errorf("read %d bytes, want %d", got, maxBodySize)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  plain  ", "plain"},
		{"tab\tkept", "tab\tkept"},
		{"line\nbreak", "line\nbreak"},
		{"bell\x07gone", "bellgone"},
		{"\x00\x01", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
