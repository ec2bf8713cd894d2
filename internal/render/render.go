// Package render turns a template id and a variable map into an HTML body.
package render

import (
	"embed"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/notifyhub/mailqueue/internal/domain"
)

//go:embed templates/*.html
var builtin embed.FS

// Template ids shipped with the binary.
const (
	TemplateEnrollmentConfirmation    = "enrollment-confirmation"
	TemplateProgressReminder          = "progress-reminder"
	TemplateCompletionCongratulations = "completion-congratulations"
)

// Renderer substitutes {name} placeholders in HTML templates. Templates in
// the override directory win over the built-in ones.
type Renderer struct {
	overrideDir string
	siteName    string
	siteURL     string
	now         func() time.Time
}

func New(overrideDir, siteName, siteURL string) *Renderer {
	return &Renderer{
		overrideDir: overrideDir,
		siteName:    siteName,
		siteURL:     siteURL,
		now:         time.Now,
	}
}

// WithClock replaces the clock used for date defaults.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	r.now = now
	return r
}

// Render loads templateID and replaces every {name} with the escaped value
// from vars, falling back to the site defaults. Unknown placeholders are
// left as-is.
func (r *Renderer) Render(templateID string, vars map[string]string) (string, error) {
	content, err := r.load(templateID)
	if err != nil {
		return "", err
	}

	merged := r.defaults()
	for k, v := range vars {
		merged[strings.Trim(k, "{}")] = v
	}

	// Sorted for a deterministic replacer when one key prefixes another.
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(merged)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", html.EscapeString(merged[k]))
	}
	return strings.NewReplacer(pairs...).Replace(content), nil
}

// Validate reports whether content looks like a complete HTML document.
func Validate(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "<html") && strings.Contains(lower, "</html>") &&
		strings.Contains(lower, "<body") && strings.Contains(lower, "</body>")
}

func (r *Renderer) defaults() map[string]string {
	now := r.now()
	return map[string]string{
		"site_name":    r.siteName,
		"site_url":     r.siteURL,
		"current_date": now.Format("January 2, 2006"),
		"current_year": now.Format("2006"),
	}
}

func (r *Renderer) load(templateID string) (string, error) {
	if templateID == "" || strings.ContainsAny(templateID, `/\`) || strings.Contains(templateID, "..") {
		return "", fmt.Errorf("%w: %q", domain.ErrTemplateNotFound, templateID)
	}
	name := templateID + ".html"

	if r.overrideDir != "" {
		b, err := os.ReadFile(filepath.Join(r.overrideDir, name))
		if err == nil {
			return string(b), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read template override %s: %w", templateID, err)
		}
	}

	b, err := builtin.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrTemplateNotFound, templateID)
	}
	return string(b), nil
}
