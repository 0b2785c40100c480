package render_test

import (
	"strings"
	"testing"

	"emaildispatch/internal/render"
)

func TestRenderKnownTemplate(t *testing.T) {
	r := render.New()

	headers, body, err := r.Render("user_welcome", map[string]any{
		"name":              "Ada",
		"verification_link": "https://example.com/verify/abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(headers.Subject, "Ada") {
		t.Errorf("expected subject to mention name, got %q", headers.Subject)
	}
	if !strings.Contains(string(body), "https://example.com/verify/abc") {
		t.Errorf("expected body to contain verification link, got %q", body)
	}
}

func TestRenderUnknownTemplateErrors(t *testing.T) {
	r := render.New()

	if _, _, err := r.Render("does_not_exist", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestFallback(t *testing.T) {
	headers, body := render.Fallback(map[string]any{
		"subject": "Your order shipped",
		"message": "It's on the way.",
	})
	if headers.Subject != "Your order shipped" {
		t.Errorf("expected fallback subject, got %q", headers.Subject)
	}
	if string(body) != "It's on the way." {
		t.Errorf("expected fallback message, got %q", body)
	}
}

func TestFallbackDefaultsSubject(t *testing.T) {
	headers, _ := render.Fallback(map[string]any{})
	if headers.Subject == "" {
		t.Error("expected a non-empty default subject")
	}
}
