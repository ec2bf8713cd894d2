package transport

import (
	"bytes"
	"strings"
	"testing"
)

func TestSMTPTransport_BuildMessage(t *testing.T) {
	tr := NewSMTPTransport(SMTPConfig{Host: "mail.example.org", Port: 587, From: "no-reply@example.org", FromName: "Learning Hub"})
	m := tr.buildMessage(Message{
		ID:          "abc",
		To:          "ada@example.com",
		DisplayName: "Ada Lovelace",
		Subject:     "Welcome",
		Body:        "<p>hi</p>",
		Category:    "enrollment_confirmation",
	})

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	raw := buf.String()
	for _, want := range []string{
		`From: "Learning Hub" <no-reply@example.org>`,
		`To: "Ada Lovelace" <ada@example.com>`,
		"Subject: Welcome",
		"Message-ID: <abc@mail.example.org>",
		"X-Category: enrollment_confirmation",
		"Content-Type: text/html",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("missing %q in:\n%s", want, raw)
		}
	}
}
