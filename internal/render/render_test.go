package render_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/notifyhub/mailqueue/internal/domain"
	"github.com/notifyhub/mailqueue/internal/render"
)

func fixedClock() time.Time { return time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC) }

func TestRenderer_Render(t *testing.T) {
	r := render.New("", "Learning Hub", "https://learn.example.org").WithClock(fixedClock)

	body, err := r.Render(render.TemplateEnrollmentConfirmation, map[string]string{
		"{user_first_name}": "Ada",
		"tutorial_title":    "Geospatial <Basics>",
		"tutorial_url":      "https://learn.example.org/t/1?a=1&b=2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Hi Ada,",
		"Geospatial &lt;Basics&gt;",
		`href="https://learn.example.org/t/1?a=1&amp;b=2"`,
		"2026 Learning Hub",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q:\n%s", want, body)
		}
	}
	if !render.Validate(body) {
		t.Fatal("expected rendered body to be a complete HTML document")
	}
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	r := render.New("", "", "")
	for _, id := range []string{"does-not-exist", "../secrets", ""} {
		if _, err := r.Render(id, nil); !errors.Is(err, domain.ErrTemplateNotFound) {
			t.Fatalf("%q: expected ErrTemplateNotFound, got %v", id, err)
		}
	}
}

func TestRenderer_OverrideDirectory(t *testing.T) {
	dir := t.TempDir()
	custom := "<html><body>Custom for {user_first_name}</body></html>"
	if err := os.WriteFile(filepath.Join(dir, "progress-reminder.html"), []byte(custom), 0o600); err != nil {
		t.Fatal(err)
	}

	r := render.New(dir, "", "")
	body, err := r.Render(render.TemplateProgressReminder, map[string]string{"user_first_name": "Grace"})
	if err != nil {
		t.Fatal(err)
	}
	if body != "<html><body>Custom for Grace</body></html>" {
		t.Fatalf("unexpected override body %q", body)
	}

	// Templates without an override still come from the built-in set.
	if _, err := r.Render(render.TemplateCompletionCongratulations, nil); err != nil {
		t.Fatalf("expected built-in fallback, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	if render.Validate("") || render.Validate("<p>fragment</p>") {
		t.Fatal("fragments must not validate")
	}
	if !render.Validate("<HTML><BODY></BODY></HTML>") {
		t.Fatal("expected case-insensitive match")
	}
}
